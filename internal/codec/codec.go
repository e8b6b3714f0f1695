// Package codec defines the interface every content codec satisfies
// and a pipeline that chains codecs explicitly. Construction goes
// through factories; a pipeline never receives a half-configured
// instance.
package codec

import (
	"errors"
	"io"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

// Codec transforms between binary payloads and their text framing.
type Codec interface {
	// Decode consumes one line-oriented stream and produces the
	// decoded payload.
	Decode(r io.Reader) (*content.Binary, error)

	// Encode frames a payload into one or more text parts.
	Encode(src *content.Binary) ([]*content.Ascii, error)
}

// Factory builds a configured Codec instance.
type Factory func() (Codec, error)

// ErrEmptyPipeline indicates a pipeline built from zero factories.
var ErrEmptyPipeline = errors.New("pipeline has no codecs")

// Pipeline composes a fixed sequence of codecs. Encoding runs the
// stages front to back, feeding each stage's text output into the next
// as payload; decoding runs them back to front.
type Pipeline struct {
	codecs []Codec
}

// NewPipeline instantiates every stage up front so configuration
// errors surface at build time.
func NewPipeline(factories ...Factory) (*Pipeline, error) {
	if len(factories) == 0 {
		return nil, ErrEmptyPipeline
	}
	p := &Pipeline{codecs: make([]Codec, 0, len(factories))}
	for _, f := range factories {
		c, err := f()
		if err != nil {
			return nil, err
		}
		p.codecs = append(p.codecs, c)
	}
	return p, nil
}

// Encode runs src through every stage. Between stages each text part
// becomes the payload of the next stage, so a two-stage pipeline
// double-wraps every part.
func (p *Pipeline) Encode(src *content.Binary) ([]*content.Ascii, error) {
	parts, err := p.codecs[0].Encode(src)
	if err != nil {
		return nil, err
	}

	for _, c := range p.codecs[1:] {
		var next []*content.Ascii
		for _, part := range parts {
			wrapped := &content.Binary{
				Buffer:   part.Buffer,
				Filename: part.Filename,
				Validity: content.ValidityOK,
			}
			out, err := c.Encode(wrapped)
			if err != nil {
				closeAscii(next)
				closeAscii(parts)
				return nil, err
			}
			next = append(next, out...)
		}
		closeAscii(parts)
		parts = next
	}
	return parts, nil
}

// Decode unwinds the stages in reverse: the stream decodes through the
// last stage first, and each intermediate payload feeds the stage
// before it.
func (p *Pipeline) Decode(r io.Reader) (*content.Binary, error) {
	out, err := p.codecs[len(p.codecs)-1].Decode(r)
	if err != nil {
		return nil, err
	}

	for i := len(p.codecs) - 2; i >= 0; i-- {
		rd, err := out.Reader()
		if err != nil {
			out.Close()
			return nil, err
		}
		inner, derr := p.codecs[i].Decode(rd)
		out.Close()
		if derr != nil {
			return nil, derr
		}
		out = inner
	}
	return out, nil
}

func closeAscii(parts []*content.Ascii) {
	for _, p := range parts {
		p.Close()
	}
}
