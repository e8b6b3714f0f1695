package yenc

import (
	"errors"
	"hash/crc32"
	"io"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

// ErrNoParts indicates Assemble was handed an empty set.
var ErrNoParts = errors.New("no parts to assemble")

// AssemblerOptions configures part assembly output buffers.
type AssemblerOptions struct {
	WorkDir  string
	MemLimit int64
}

// Assembler concatenates decoded parts of one logical file back into a
// contiguous artifact.
type Assembler struct {
	opts AssemblerOptions
}

func NewAssembler(opts AssemblerOptions) *Assembler {
	return &Assembler{opts: opts}
}

// Assemble orders parts by their 1-based index and concatenates their
// payloads. Delivery order does not matter. The result is ok only when
// the indices are exactly {1..N} and the whole-file CRC declared by
// the last part, if any, matches the concatenation. Two parts claiming
// the same index keep the later-added one and mark the result corrupt.
func (a *Assembler) Assemble(parts []*content.Binary) (*content.Binary, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	byIndex := make(map[int]*content.Binary, len(parts))
	duplicate := false
	maxIndex := 0
	for _, p := range parts {
		idx := p.Part
		if idx == 0 {
			idx = 1
		}
		if _, seen := byIndex[idx]; seen {
			duplicate = true
		}
		byIndex[idx] = p
		if idx > maxIndex {
			maxIndex = idx
		}
	}

	first := parts[0]
	total := first.TotalParts
	if total == 0 {
		total = maxIndex
	}

	complete := !duplicate && len(byIndex) == total && maxIndex == total
	for i := 1; i <= total && complete; i++ {
		if _, ok := byIndex[i]; !ok {
			complete = false
		}
	}

	out := content.NewBinary(a.opts.WorkDir, a.opts.MemLimit)
	out.Filename = first.Filename
	out.DeclaredSize = first.DeclaredFileSize
	out.DeclaredFileSize = first.DeclaredFileSize

	crc := crc32.NewIEEE()
	var last *content.Binary
	for i := 1; i <= maxIndex; i++ {
		p, ok := byIndex[i]
		if !ok {
			continue
		}
		last = p

		r, err := p.Reader()
		if err != nil {
			out.Close()
			return nil, err
		}
		if _, err := io.Copy(io.MultiWriter(out, crc), r); err != nil {
			out.Close()
			return nil, err
		}
	}
	out.ActualCRC = crc.Sum32()

	if last != nil && last.HasDeclaredFileCRC {
		out.DeclaredCRC = last.DeclaredFileCRC
		out.HasDeclaredCRC = true
		out.DeclaredFileCRC = last.DeclaredFileCRC
		out.HasDeclaredFileCRC = true
	}

	switch {
	case duplicate:
		out.Validity = content.ValidityCorrupt
	case !complete:
		out.Validity = content.ValidityTruncated
	case out.HasDeclaredCRC && out.DeclaredCRC != out.ActualCRC:
		out.Validity = content.ValidityCorrupt
	case out.DeclaredSize > 0 && out.Len() < out.DeclaredSize:
		out.Validity = content.ValidityTruncated
	default:
		out.Validity = content.ValidityOK
	}

	out.Finalize()
	return out, nil
}
