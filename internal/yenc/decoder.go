package yenc

import (
	"bufio"
	"bytes"
	"errors"
	"hash/crc32"
	"io"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

var (
	// ErrNoYencHeader indicates the stream ended without a =ybegin line.
	ErrNoYencHeader = errors.New("no yenc begin header found")

	// ErrMalformedHeader indicates a control line the grammar rejects.
	ErrMalformedHeader = errors.New("malformed yenc header")
)

// DecoderOptions configures a Decoder. The zero value decodes into
// memory-backed buffers in the current directory using the fast
// transform.
type DecoderOptions struct {
	// WorkDir receives temp-file backings for large payloads.
	WorkDir string

	// MemLimit is the spill threshold handed to the output buffer.
	MemLimit int64

	// MaxBytes stops decoding once the output reaches this length; the
	// remainder of the part is still scanned so the trailer is
	// consumed. The result is marked truncated. 0 means no limit.
	MaxBytes int64

	// Reference selects the byte-at-a-time reference transform instead
	// of the accelerated one. Both produce identical output; the knob
	// exists so tests can hold one against the other.
	Reference bool
}

// Decoder turns a line-oriented yEnc stream into a binary payload.
// Configuration is fixed at construction; each Decode call runs an
// independent state machine over one input stream.
type Decoder struct {
	opts DecoderOptions
}

func NewDecoder(opts DecoderOptions) *Decoder {
	return &Decoder{opts: opts}
}

var controlPrefix = []byte("=y")

// Decode scans the stream for a =ybegin marker, reverses the byte
// mapping line by line and finalizes a binary buffer. Corrupt or
// truncated payloads are returned as values with the matching
// Validity; only a missing begin marker, a malformed control line or a
// failing reader yields an error.
func (d *Decoder) Decode(r io.Reader) (*content.Binary, error) {
	br := bufio.NewReaderSize(r, 64<<10)

	begin, err := d.seekBegin(br)
	if err != nil {
		return nil, err
	}

	out := content.NewBinary(d.opts.WorkDir, d.opts.MemLimit)
	out.Filename = begin.Name
	out.Part = begin.Part
	out.TotalParts = begin.Total
	out.DeclaredSize = begin.Size
	out.DeclaredFileSize = begin.Size

	decodeLine := decodeLineFast
	if d.opts.Reference {
		decodeLine = decodeLineRef
	}

	crc := crc32.NewIEEE()
	scratch := make([]byte, 0, 1<<10)

	var part, end *Header
	truncated := false
	draining := false

	for end == nil {
		line, rerr := readLine(br)
		if rerr != nil && rerr != io.EOF {
			out.Close()
			return nil, rerr
		}

		if len(line) > 0 {
			if bytes.HasPrefix(line, controlPrefix) {
				h := Detect(string(line), KeyAny, false)
				if h == nil || h.Key == KeyBegin {
					out.Close()
					return nil, ErrMalformedHeader
				}
				switch h.Key {
				case KeyPart:
					if part == nil {
						part = h
						out.DeclaredSize = h.PartSize()
					}
				case KeyEnd:
					end = h
				}
			} else if !draining {
				scratch = decodeLine(line, scratch[:0])

				emit := scratch
				if d.opts.MaxBytes > 0 && out.Len()+int64(len(emit)) >= d.opts.MaxBytes {
					emit = emit[:d.opts.MaxBytes-out.Len()]
					truncated = true
					draining = true
				}
				if len(emit) > 0 {
					crc.Write(emit)
					if _, werr := out.Write(emit); werr != nil {
						out.Close()
						return nil, werr
					}
				}
			}
		}

		if rerr == io.EOF {
			break
		}
	}

	d.finalize(out, part, end, crc.Sum32(), truncated)
	return out, nil
}

// seekBegin consumes lines until a strict =ybegin match.
func (d *Decoder) seekBegin(br *bufio.Reader) (*Header, error) {
	for {
		line, err := readLine(br)
		if len(line) > 0 {
			if h := Detect(string(line), KeyBegin, true); h != nil {
				return h, nil
			}
		}
		if err == io.EOF {
			return nil, ErrNoYencHeader
		}
		if err != nil {
			return nil, err
		}
	}
}

// finalize stamps CRC metadata and the three-way verdict on the
// buffer. A short payload reads as truncated even when the CRC also
// fails; corrupt is reserved for full-length payloads.
func (d *Decoder) finalize(out *content.Binary, part, end *Header, actual uint32, truncated bool) {
	out.ActualCRC = actual

	single := part == nil && out.TotalParts <= 1

	mismatch := false
	if end != nil {
		if end.HasPartCRC {
			out.DeclaredCRC = end.PartCRC
			out.HasDeclaredCRC = true
			mismatch = mismatch || end.PartCRC != actual
		}
		if end.HasCRC {
			out.DeclaredFileCRC = end.CRC
			out.HasDeclaredFileCRC = true
			if single {
				if !end.HasPartCRC {
					out.DeclaredCRC = end.CRC
					out.HasDeclaredCRC = true
				}
				mismatch = mismatch || end.CRC != actual
			}
		}
	}

	switch {
	case truncated || end == nil:
		out.Validity = content.ValidityTruncated
	case out.DeclaredSize > 0 && out.Len() < out.DeclaredSize:
		out.Validity = content.ValidityTruncated
	case mismatch:
		out.Validity = content.ValidityCorrupt
	default:
		out.Validity = content.ValidityOK
	}

	out.Finalize()
}

// readLine yields the next line with its terminator stripped, CRLF or
// bare LF. The final line may arrive together with io.EOF.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line, err
}
