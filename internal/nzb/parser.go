package nzb

import (
	"encoding/xml"
	"io"
	"os"
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) ParseFile(nzbPath string) (*Model, error) {
	f, err := os.Open(nzbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.Parse(f)
}

func (p *Parser) Parse(r io.Reader) (*Model, error) {
	var model Model
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&model); err != nil {
		return nil, err
	}

	return &model, nil
}
