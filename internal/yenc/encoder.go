package yenc

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

const (
	// DefaultLineLength is the column width used when none is given.
	DefaultLineLength = 128

	MinLineLength = 16
	MaxLineLength = 1024
)

var (
	// ErrInvalidLineLength indicates a line length outside [16, 1024].
	ErrInvalidLineLength = errors.New("line length outside [16, 1024]")

	// ErrInvalidPartSize indicates a negative split threshold.
	ErrInvalidPartSize = errors.New("part size must not be negative")

	// ErrEmptyInput indicates an input with no bytes to frame.
	ErrEmptyInput = errors.New("nothing to encode")
)

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// WorkDir receives temp-file backings for large parts.
	WorkDir string

	// MemLimit is the spill threshold handed to output buffers.
	MemLimit int64

	// LineLength is the column width of encoded lines; escapes count
	// two columns. 0 selects DefaultLineLength.
	LineLength int

	// PartSize splits the input into parts of at most this many bytes.
	// 0 produces a single part.
	PartSize int64

	// Name overrides the advertised filename.
	Name string

	// Reference selects the byte-at-a-time reference transform; see
	// DecoderOptions.Reference.
	Reference bool
}

// Encoder frames binary payloads as yEnc parts. Configuration is fixed
// at construction and validated there; encoding well-formed input
// cannot fail except on I/O.
type Encoder struct {
	opts EncoderOptions
}

func NewEncoder(opts EncoderOptions) (*Encoder, error) {
	if opts.LineLength == 0 {
		opts.LineLength = DefaultLineLength
	}
	if opts.LineLength < MinLineLength || opts.LineLength > MaxLineLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLineLength, opts.LineLength)
	}
	if opts.PartSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartSize, opts.PartSize)
	}
	return &Encoder{opts: opts}, nil
}

// source is the random-access view the encoder needs over its input.
type source interface {
	ReadRange(off, n int64) ([]byte, error)
	Len() int64
}

// fileSource adapts a file on disk.
type fileSource struct {
	f    *os.File
	size int64
}

func (fs *fileSource) ReadRange(off, n int64) ([]byte, error) {
	out := make([]byte, n)
	if _, err := fs.f.ReadAt(out, off); err != nil {
		return nil, err
	}
	return out, nil
}

func (fs *fileSource) Len() int64 { return fs.size }

// Parts returns a lazy iterator producing one framed ascii part per
// Next call, in ascending part order. The advertised name falls back
// to the input's filename.
func (e *Encoder) Parts(src *content.Binary) (*PartIter, error) {
	name := e.opts.Name
	if name == "" {
		name = src.Filename
	}
	return e.newIter(src, name, nil)
}

// PartsFile is Parts over a file on disk; the name defaults to the
// path basename. Close the iterator to release the file handle.
func (e *Encoder) PartsFile(path string) (*PartIter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	name := e.opts.Name
	if name == "" {
		name = filepath.Base(path)
	}
	return e.newIter(&fileSource{f: f, size: st.Size()}, name, f)
}

func (e *Encoder) newIter(src source, name string, closer io.Closer) (*PartIter, error) {
	size := src.Len()
	if size == 0 {
		if closer != nil {
			closer.Close()
		}
		return nil, ErrEmptyInput
	}
	if name == "" {
		name = "unknown"
	}

	total := 1
	if e.opts.PartSize > 0 {
		total = int((size + e.opts.PartSize - 1) / e.opts.PartSize)
	}

	return &PartIter{
		enc:     e,
		src:     src,
		closer:  closer,
		name:    name,
		size:    size,
		total:   total,
		next:    1,
		fileCRC: crc32.NewIEEE(),
	}, nil
}

// Encode frames src and collects every part.
func (e *Encoder) Encode(src *content.Binary) ([]*content.Ascii, error) {
	it, err := e.Parts(src)
	if err != nil {
		return nil, err
	}
	return collect(it)
}

// EncodeFile frames the file at path and collects every part.
func (e *Encoder) EncodeFile(path string) ([]*content.Ascii, error) {
	it, err := e.PartsFile(path)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	return collect(it)
}

func collect(it *PartIter) ([]*content.Ascii, error) {
	var parts []*content.Ascii
	for {
		part, err := it.Next()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			for _, p := range parts {
				p.Close()
			}
			return nil, err
		}
		parts = append(parts, part)
	}
}

// PartIter produces framed parts one at a time.
type PartIter struct {
	enc     *Encoder
	src     source
	closer  io.Closer
	name    string
	size    int64
	total   int
	next    int
	fileCRC hash.Hash32
}

// Total reports how many parts the input splits into.
func (it *PartIter) Total() int { return it.total }

// Close releases the underlying file handle, if any.
func (it *PartIter) Close() error {
	if it.closer != nil {
		err := it.closer.Close()
		it.closer = nil
		return err
	}
	return nil
}

// Next frames the next part. Returns io.EOF once every part has been
// produced.
func (it *PartIter) Next() (*content.Ascii, error) {
	if it.next > it.total {
		return nil, io.EOF
	}
	idx := it.next
	it.next++

	opts := &it.enc.opts
	multi := it.total > 1

	// 1-based inclusive offsets of this part inside the whole file.
	var begin, end int64
	if multi {
		begin = int64(idx-1)*opts.PartSize + 1
		end = begin + opts.PartSize - 1
		if end > it.size {
			end = it.size
		}
	} else {
		begin, end = 1, it.size
	}
	partLen := end - begin + 1

	out := content.NewAscii(opts.WorkDir, opts.MemLimit)
	out.Filename = it.name
	if multi {
		out.Part = idx
		out.TotalParts = it.total
	}

	if err := it.writePart(out, idx, begin, end, partLen); err != nil {
		out.Close()
		return nil, err
	}

	out.Validity = content.ValidityOK
	out.Finalize()
	return out, nil
}

func (it *PartIter) writePart(out *content.Ascii, idx int, begin, end, partLen int64) error {
	opts := &it.enc.opts
	multi := it.total > 1

	var err error
	if multi {
		_, err = fmt.Fprintf(out, "=ybegin part=%d total=%d line=%d size=%d name=%s\r\n=ypart begin=%d end=%d\r\n",
			idx, it.total, opts.LineLength, it.size, it.name, begin, end)
	} else {
		_, err = fmt.Fprintf(out, "=ybegin line=%d size=%d name=%s\r\n",
			opts.LineLength, it.size, it.name)
	}
	if err != nil {
		return err
	}

	be := &bodyEncoder{
		w:         out,
		lineLen:   opts.LineLength,
		reference: opts.Reference,
	}
	partCRC := crc32.NewIEEE()

	const chunkSize = 64 << 10
	for off := begin - 1; off < end; {
		n := end - off
		if n > chunkSize {
			n = chunkSize
		}
		chunk, err := it.src.ReadRange(off, n)
		if err != nil {
			return err
		}
		partCRC.Write(chunk)
		it.fileCRC.Write(chunk)
		if err := be.write(chunk); err != nil {
			return err
		}
		off += n
	}
	if err := be.flush(); err != nil {
		return err
	}

	out.PayloadCRC = partCRC.Sum32()

	if multi {
		trailer := fmt.Sprintf("=yend size=%d part=%d pcrc32=%08x", partLen, idx, out.PayloadCRC)
		if idx == it.total {
			trailer += fmt.Sprintf(" crc32=%08x", it.fileCRC.Sum32())
		}
		_, err = fmt.Fprintf(out, "%s\r\n", trailer)
	} else {
		_, err = fmt.Fprintf(out, "=yend size=%d crc32=%08x\r\n", partLen, out.PayloadCRC)
	}
	return err
}

// bodyEncoder applies the byte mapping and wraps lines at the
// configured column width; an escape spans two columns and never
// splits across lines.
type bodyEncoder struct {
	w         io.Writer
	lineLen   int
	col       int
	line      []byte
	reference bool
}

func (be *bodyEncoder) write(src []byte) error {
	if be.reference {
		return be.writeRef(src)
	}
	return be.writeFast(src)
}

// writeRef is the reference loop: one decision per byte.
func (be *bodyEncoder) writeRef(src []byte) error {
	for _, b := range src {
		if err := be.add(b + byteOffset); err != nil {
			return err
		}
	}
	return nil
}

// writeFast batches runs of mapped bytes that neither need escaping
// nor cross the line boundary; everything else goes through the same
// add path as the reference loop, keeping the output identical.
func (be *bodyEncoder) writeFast(src []byte) error {
	for len(src) > 0 {
		room := be.lineLen - be.col
		run := 0
		for run < len(src) && run < room {
			e := src[run] + byteOffset
			if needsEscape(e) || (be.col+run == 0 && needsLeadingEscape(e)) {
				break
			}
			run++
		}
		if run == 0 {
			if err := be.add(src[0] + byteOffset); err != nil {
				return err
			}
			src = src[1:]
			continue
		}

		n := len(be.line)
		be.line = append(be.line, src[:run]...)
		seg := be.line[n:]
		for i := range seg {
			seg[i] += byteOffset
		}
		be.col += run
		src = src[run:]

		if be.col >= be.lineLen {
			if err := be.endLine(); err != nil {
				return err
			}
		}
	}
	return nil
}

// add places one mapped byte, breaking the line first when it would
// not fit.
func (be *bodyEncoder) add(e byte) error {
	esc := needsEscape(e) || (be.col == 0 && needsLeadingEscape(e))
	width := 1
	if esc {
		width = 2
	}

	if be.col+width > be.lineLen && be.col > 0 {
		if err := be.endLine(); err != nil {
			return err
		}
		// Re-evaluate the column-one rule on the fresh line.
		esc = needsLeadingEscape(e)
		width = 1
		if esc {
			width = 2
		}
	}

	if esc {
		be.line = append(be.line, escapeChar, e+escapeShift)
	} else {
		be.line = append(be.line, e)
	}
	be.col += width
	return nil
}

func (be *bodyEncoder) endLine() error {
	be.line = append(be.line, '\r', '\n')
	_, err := be.w.Write(be.line)
	be.line = be.line[:0]
	be.col = 0
	return err
}

// flush terminates a trailing short line.
func (be *bodyEncoder) flush() error {
	if be.col == 0 {
		return nil
	}
	return be.endLine()
}
