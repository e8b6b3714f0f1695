package yenc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Subject is the parsed form of an article subject announcing a yEnc
// post. Zero values mean the field was absent.
type Subject struct {
	// Description is the free text before the filename.
	Description string

	// Filename is the advertised file, quotes stripped.
	Filename string

	// Index / Count come from an NZB-style [i/n] marker; distinct from
	// the yEnc pair.
	Index int
	Count int

	// YIndex / YCount come from the (i/n) pair after the yEnc marker.
	// YIndex may be absent on its own: "(/n)" is a legal form.
	YIndex int
	YCount int

	// Size is the optional trailing decimal after the (i/n) pair.
	Size int64
}

// The common trailer shared by both subject shapes: the (possibly
// quoted) filename, the literal yEnc marker, the (i/n) pair and an
// optional trailing size.
const subjectTail = `(?:"([^"]*)"|(\S+))` +
	`\s+yEnc\s+` +
	`\((\d*)/(\d+)\)` +
	`(?:\s+(\d+))?` +
	`\s*$`

// bareRe matches a subject that is nothing but the filename and the
// yEnc trailer. It runs first so a quoted filename with spaces is
// never mistaken for a description.
var bareRe = regexp.MustCompile(`^\s*` + subjectTail)

// subjectRe adds the optional description and [i/n] pair in front.
var subjectRe = regexp.MustCompile(
	`^\s*` +
		`(?:(?:"([^"]*)"|(.+?))\s+)?` + // description
		`(?:\[(\d+)/(\d+)\]\s*)?` + // [index/count]
		`(?:-\s+)?` +
		subjectTail)

var indexRe = regexp.MustCompile(`^\[(\d+)/(\d+)\]$`)

// ParseSubject extracts the yEnc posting fields from an article
// subject. Returns nil when the subject does not announce a yEnc post.
func ParseSubject(text string) *Subject {
	if m := bareRe.FindStringSubmatch(text); m != nil {
		return subjectFromMatch(nil, m[1:])
	}
	m := subjectRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return subjectFromMatch(m[1:5], m[5:])
}

// subjectFromMatch assembles a Subject from the four optional leading
// captures (quoted/bare description, index, count) and the five
// trailer captures (quoted/bare filename, yindex, ycount, size).
func subjectFromMatch(lead, tail []string) *Subject {
	s := &Subject{}

	if lead != nil {
		if lead[0] != "" {
			s.Description = lead[0]
		} else {
			s.Description = strings.TrimSpace(lead[1])
		}
		// A bare trailing dash belongs to the separator, not the text.
		s.Description = strings.TrimSpace(strings.TrimSuffix(s.Description, " -"))

		if lead[2] != "" {
			s.Index, _ = strconv.Atoi(lead[2])
			s.Count, _ = strconv.Atoi(lead[3])
		} else if im := indexRe.FindStringSubmatch(s.Description); im != nil {
			// A bare [i/n] with no description lands in the description
			// capture; reclassify it.
			s.Description = ""
			s.Index, _ = strconv.Atoi(im[1])
			s.Count, _ = strconv.Atoi(im[2])
		}
	}

	if tail[0] != "" {
		s.Filename = tail[0]
	} else {
		s.Filename = tail[1]
	}
	if s.Filename == "" {
		return nil
	}

	if tail[2] != "" {
		s.YIndex, _ = strconv.Atoi(tail[2])
	}
	s.YCount, _ = strconv.Atoi(tail[3])

	if tail[4] != "" {
		s.Size, _ = strconv.ParseInt(tail[4], 10, 64)
	}

	return s
}

// String renders the canonical subject form; ParseSubject applied to
// the result reproduces the fields the formatter preserves.
func (s *Subject) String() string {
	var b strings.Builder

	if s.Description != "" {
		fmt.Fprintf(&b, "%s ", s.Description)
	}
	if s.Count > 0 {
		fmt.Fprintf(&b, "[%d/%d] ", s.Index, s.Count)
	}
	if s.Description != "" || s.Count > 0 {
		b.WriteString("- ")
	}
	fmt.Fprintf(&b, "%q yEnc (", s.Filename)
	if s.YIndex > 0 {
		fmt.Fprintf(&b, "%d", s.YIndex)
	}
	fmt.Fprintf(&b, "/%d)", s.YCount)
	if s.Size > 0 {
		fmt.Fprintf(&b, " %d", s.Size)
	}
	return b.String()
}
