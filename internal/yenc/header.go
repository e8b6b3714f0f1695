package yenc

import (
	"strconv"
	"strings"
)

// Key identifies which yEnc control line a header came from.
type Key int

const (
	// KeyAny matches any control line when passed to Detect.
	KeyAny Key = iota
	KeyBegin
	KeyPart
	KeyEnd
)

func (k Key) String() string {
	switch k {
	case KeyBegin:
		return "begin"
	case KeyPart:
		return "part"
	case KeyEnd:
		return "end"
	default:
		return "any"
	}
}

// Header is the parsed form of a =ybegin, =ypart or =yend line. Only
// the fields the detected key carries are meaningful; the Has* flags
// mark the optional ones.
type Header struct {
	Key Key

	// =ybegin fields
	Line  int
	Size  int64
	Name  string
	Part  int
	Total int

	// =ypart fields: 1-based inclusive offsets into the whole file.
	Begin int64
	End   int64

	// =yend fields. CRC and PartCRC hold the parsed crc32= / pcrc32=
	// values.
	CRC        uint32
	HasCRC     bool
	PartCRC    uint32
	HasPartCRC bool

	HasPart  bool
	HasTotal bool
}

// PartSize reports the payload length a =ypart header spans.
func (h *Header) PartSize() int64 {
	return h.End - h.Begin + 1
}

// Detect parses a single yEnc control line. When strict is true the
// detected keyword must equal expect, otherwise nil is returned. A
// line that is not a control line, or a control line with missing or
// malformed fields, yields nil.
//
// The keyword may carry a trailing version tag (=ybegin2, =ypart.v1);
// the tag is ignored.
func Detect(line string, expect Key, strict bool) *Header {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "=y") {
		return nil
	}

	keyword := line[2:]
	rest := ""
	if sp := strings.IndexByte(keyword, ' '); sp >= 0 {
		rest = keyword[sp+1:]
		keyword = keyword[:sp]
	}

	var key Key
	switch {
	case strings.HasPrefix(keyword, "begin"):
		key = KeyBegin
	case strings.HasPrefix(keyword, "part"):
		key = KeyPart
	case strings.HasPrefix(keyword, "end"):
		key = KeyEnd
	default:
		return nil
	}

	if strict && expect != KeyAny && expect != key {
		return nil
	}

	h := &Header{Key: key}
	if !parseFields(h, rest) {
		return nil
	}
	if !h.complete() {
		return nil
	}
	return h
}

// parseFields walks the space-separated name=value tokens after the
// keyword. name= consumes the remainder of the line, spaces included.
func parseFields(h *Header, rest string) bool {
	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}

		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return false
		}
		field := rest[:eq]
		rest = rest[eq+1:]

		if field == "name" {
			// Everything to end of line belongs to the name.
			h.Name = strings.TrimSpace(rest)
			if h.Name == "" {
				return false
			}
			return true
		}

		value := rest
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			value = rest[:sp]
			rest = rest[sp+1:]
		} else {
			rest = ""
		}

		if !h.setField(field, value) {
			return false
		}
	}
	return true
}

func (h *Header) setField(field, value string) bool {
	switch field {
	case "line":
		n, ok := parseUint(value)
		if !ok {
			return false
		}
		h.Line = int(n)
	case "size":
		n, ok := parseUint(value)
		if !ok {
			return false
		}
		h.Size = int64(n)
	case "part":
		n, ok := parseUint(value)
		if !ok {
			return false
		}
		h.Part = int(n)
		h.HasPart = true
	case "total":
		n, ok := parseUint(value)
		if !ok {
			return false
		}
		h.Total = int(n)
		h.HasTotal = true
	case "begin":
		n, ok := parseUint(value)
		if !ok {
			return false
		}
		h.Begin = int64(n)
	case "end":
		n, ok := parseUint(value)
		if !ok {
			return false
		}
		h.End = int64(n)
	case "crc32":
		n, ok := parseCRC(value)
		if !ok {
			return false
		}
		h.CRC = n
		h.HasCRC = true
	case "pcrc32":
		n, ok := parseCRC(value)
		if !ok {
			return false
		}
		h.PartCRC = n
		h.HasPartCRC = true
	default:
		return false
	}
	return true
}

// complete checks the required-field table for the detected key. A
// =ypart that runs backwards (begin > end) or starts at offset zero is
// rejected outright.
func (h *Header) complete() bool {
	switch h.Key {
	case KeyBegin:
		return h.Line > 0 && h.Size > 0 && h.Name != ""
	case KeyPart:
		return h.Begin > 0 && h.End >= h.Begin
	case KeyEnd:
		return h.Size > 0
	}
	return false
}

// parseUint accepts unsigned decimals only; a leading '+' or '-' is
// malformed on the wire.
func parseUint(s string) (uint64, bool) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseCRC accepts exactly eight lowercase hex digits.
func parseCRC(s string) (uint32, bool) {
	if len(s) != 8 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
