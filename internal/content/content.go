package content

// Validity is the three-way verdict a codec attaches to a buffer once
// it has been finalized.
type Validity int

const (
	// ValidityUnknown is the zero value: the buffer has not been
	// finalized by a codec yet.
	ValidityUnknown Validity = iota

	// ValidityOK means the payload is complete and every declared CRC
	// matched.
	ValidityOK

	// ValidityTruncated means the stream ended early, a part was
	// missing, or an explicit read limit cut the payload short.
	ValidityTruncated

	// ValidityCorrupt means a declared CRC did not match the computed
	// one, or conflicting parts were supplied.
	ValidityCorrupt
)

func (v Validity) String() string {
	switch v {
	case ValidityOK:
		return "ok"
	case ValidityTruncated:
		return "truncated"
	case ValidityCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Binary holds decoded payload bytes: the output of a decode or the
// input of an encode. Part metadata comes from the yEnc headers that
// produced it.
type Binary struct {
	*Buffer

	// Filename is the logical file this payload belongs to.
	Filename string

	// Part is the 1-based part index; 0 when the stream was not split.
	Part int

	// TotalParts is the sender-declared part count; 0 when unknown.
	TotalParts int

	// DeclaredSize is the sender-declared payload length of this part.
	DeclaredSize int64

	// DeclaredFileSize is the whole-file length from the =ybegin
	// header; equal to DeclaredSize on a single-part stream.
	DeclaredFileSize int64

	// DeclaredCRC is the sender-declared CRC32 of this part's decoded
	// bytes (pcrc32, or crc32 on a single-part stream).
	DeclaredCRC    uint32
	HasDeclaredCRC bool

	// DeclaredFileCRC is the sender-declared CRC32 of the whole
	// assembled file; only the last part carries it.
	DeclaredFileCRC    uint32
	HasDeclaredFileCRC bool

	// ActualCRC is the CRC32 computed over the decoded bytes.
	ActualCRC uint32

	Validity Validity
}

// NewBinary creates an empty binary payload spilling to workDir.
func NewBinary(workDir string, memLimit int64) *Binary {
	return &Binary{Buffer: NewBuffer(workDir, memLimit)}
}

// IsValid reports whether the payload decoded complete and intact.
func (b *Binary) IsValid() bool {
	return b.Validity == ValidityOK
}

// Ascii holds yEnc-framed text: the output of an encode or the input
// of a decode. One Ascii buffer is one complete framed part.
type Ascii struct {
	*Buffer

	// Filename is the name advertised in the =ybegin header.
	Filename string

	// Part / TotalParts mirror the framing headers; both 0 on a
	// single-part stream.
	Part       int
	TotalParts int

	// PayloadCRC is the CRC32 of the decoded bytes this part carries,
	// as written into its trailer.
	PayloadCRC uint32

	Validity Validity
}

// NewAscii creates an empty ascii buffer spilling to workDir.
func NewAscii(workDir string, memLimit int64) *Ascii {
	return &Ascii{Buffer: NewBuffer(workDir, memLimit)}
}

// IsValid reports whether the framing was produced completely.
func (a *Ascii) IsValid() bool {
	return a.Validity == ValidityOK
}
