// Package yenc implements the yEnc transport encoding used on Usenet:
// the control-line grammar, the article-subject parser, a streaming
// decoder, a part-splitting encoder and the multi-part assembler.
// Decoding and encoding each exist twice, as a byte-at-a-time
// reference transform and an accelerated one, selected per instance;
// the two are required to agree bit-for-bit.
package yenc

import (
	"io"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

// Options configures a combined Codec.
type Options struct {
	WorkDir    string
	MemLimit   int64
	MaxBytes   int64
	LineLength int
	PartSize   int64
	Reference  bool
}

// Codec bundles a Decoder and an Encoder behind one value so it can be
// placed in a codec pipeline.
type Codec struct {
	dec *Decoder
	enc *Encoder
}

func NewCodec(opts Options) (*Codec, error) {
	enc, err := NewEncoder(EncoderOptions{
		WorkDir:    opts.WorkDir,
		MemLimit:   opts.MemLimit,
		LineLength: opts.LineLength,
		PartSize:   opts.PartSize,
		Reference:  opts.Reference,
	})
	if err != nil {
		return nil, err
	}
	dec := NewDecoder(DecoderOptions{
		WorkDir:   opts.WorkDir,
		MemLimit:  opts.MemLimit,
		MaxBytes:  opts.MaxBytes,
		Reference: opts.Reference,
	})
	return &Codec{dec: dec, enc: enc}, nil
}

// Decode runs the decoder over one input stream.
func (c *Codec) Decode(r io.Reader) (*content.Binary, error) {
	return c.dec.Decode(r)
}

// Encode frames a binary payload into ascii parts.
func (c *Codec) Encode(src *content.Binary) ([]*content.Ascii, error) {
	return c.enc.Encode(src)
}
