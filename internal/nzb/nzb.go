package nzb

import "encoding/xml"

// Model is the parsed form of an NZB document: one file entry per
// posted binary, each pointing at its article segments.
type Model struct {
	XMLName xml.Name `xml:"nzb"`
	Files   []File   `xml:"file"`
}

type File struct {
	Subject  string    `xml:"subject,attr"`
	Poster   string    `xml:"poster,attr"`
	Groups   []string  `xml:"groups>group"`
	Segments []Segment `xml:"segments>segment"`
}

type Segment struct {
	XMLName   xml.Name `xml:"segment"`
	Number    int      `xml:"number,attr"`
	Bytes     int64    `xml:"bytes,attr"`
	MessageID string   `xml:",chardata"`
}

// TotalSize sums the declared size of every segment.
func (f *File) TotalSize() int64 {
	var total int64
	for _, s := range f.Segments {
		total += s.Bytes
	}
	return total
}
