package yenc

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

// pattern fills n bytes with a deterministic spread that covers every
// value, including the ones that need escaping.
func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*31 + 7)
	}
	return out
}

// escapeHeavy produces payload bytes whose mapped forms land on the
// escape set and the column-one set.
func escapeHeavy(n int) []byte {
	// Mapped values 0x00, 0x0A, 0x0D, '=', '.', TAB come from these
	// payload bytes.
	specials := []byte{214, 224, 227, 19, 4, 223}
	out := make([]byte, n)
	for i := range out {
		if i%3 == 0 {
			out[i] = specials[(i/3)%len(specials)]
		} else {
			out[i] = byte(i)
		}
	}
	return out
}

func newBinary(t *testing.T, payload []byte) *content.Binary {
	t.Helper()
	bin := content.NewBinary(t.TempDir(), 0)
	_, err := bin.Write(payload)
	require.NoError(t, err)
	bin.Filename = "payload.bin"
	bin.Finalize()
	t.Cleanup(func() { bin.Close() })
	return bin
}

func encodeAll(t *testing.T, opts EncoderOptions, payload []byte) []*content.Ascii {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	enc, err := NewEncoder(opts)
	require.NoError(t, err)
	parts, err := enc.Encode(newBinary(t, payload))
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, p := range parts {
			p.Close()
		}
	})
	return parts
}

func asciiText(t *testing.T, a *content.Ascii) string {
	t.Helper()
	raw, err := a.Bytes()
	require.NoError(t, err)
	return string(raw)
}

func TestEncoder_InvalidConfiguration(t *testing.T) {
	_, err := NewEncoder(EncoderOptions{LineLength: 8})
	require.ErrorIs(t, err, ErrInvalidLineLength)

	_, err = NewEncoder(EncoderOptions{LineLength: 2048})
	require.ErrorIs(t, err, ErrInvalidLineLength)

	_, err = NewEncoder(EncoderOptions{PartSize: -1})
	require.ErrorIs(t, err, ErrInvalidPartSize)

	_, err = NewEncoder(EncoderOptions{})
	require.NoError(t, err, "zero options select the defaults")
}

func TestEncoder_SinglePartFraming(t *testing.T) {
	payload := []byte("Hello, yEnc!\n")
	parts := encodeAll(t, EncoderOptions{LineLength: 16}, payload)
	require.Len(t, parts, 1)

	part := parts[0]
	require.Equal(t, 0, part.Part, "single part carries no index")
	require.Equal(t, 0, part.TotalParts)
	require.Equal(t, crc32.ChecksumIEEE(payload), part.PayloadCRC)
	require.Equal(t, content.ValidityOK, part.Validity)

	text := asciiText(t, part)
	lines := strings.Split(strings.TrimSuffix(text, "\r\n"), "\r\n")
	require.Equal(t, fmt.Sprintf("=ybegin line=16 size=%d name=payload.bin", len(payload)), lines[0])
	require.Equal(t,
		fmt.Sprintf("=yend size=%d crc32=%08x", len(payload), crc32.ChecksumIEEE(payload)),
		lines[len(lines)-1])

	// No =ypart on a single-part stream.
	require.NotContains(t, text, "=ypart")
}

func TestEncoder_LineWrapping(t *testing.T) {
	const lineLen = 32
	payload := pattern(1000)
	parts := encodeAll(t, EncoderOptions{LineLength: lineLen}, payload)
	require.Len(t, parts, 1)

	text := asciiText(t, parts[0])
	lines := strings.Split(strings.TrimSuffix(text, "\r\n"), "\r\n")
	body := lines[1 : len(lines)-1]
	require.NotEmpty(t, body)

	for i, line := range body {
		cols := 0
		for j := 0; j < len(line); j++ {
			if line[j] == '=' {
				j++
				cols += 2
			} else {
				cols++
			}
		}
		require.LessOrEqual(t, cols, lineLen, "body line %d too wide: %q", i, line)
		if i < len(body)-1 {
			require.Greater(t, cols, 0)
		}
	}
}

func TestEncoder_EscapesControlBytes(t *testing.T) {
	payload := escapeHeavy(512)
	parts := encodeAll(t, EncoderOptions{LineLength: 64}, payload)
	text := asciiText(t, parts[0])
	lines := strings.Split(strings.TrimSuffix(text, "\r\n"), "\r\n")
	body := lines[1 : len(lines)-1]

	for _, line := range body {
		require.NotContains(t, line, "\x00")
		for j := 0; j < len(line); j++ {
			b := line[j]
			if b == '=' {
				j++ // next byte is the escaped form, anything goes
				continue
			}
			require.NotContains(t, []byte{0x00, 0x0A, 0x0D}, b)
		}
		if len(line) > 0 {
			require.NotEqual(t, byte('.'), line[0], "column-one dot must be escaped")
			require.NotEqual(t, byte('\t'), line[0], "column-one tab must be escaped")
		}
	}
}

func TestEncoder_MultiPartFraming(t *testing.T) {
	payload := pattern(1000)
	parts := encodeAll(t, EncoderOptions{LineLength: 128, PartSize: 300}, payload)
	require.Len(t, parts, 4)

	fileCRC := crc32.ChecksumIEEE(payload)
	for i, part := range parts {
		idx := i + 1
		require.Equal(t, idx, part.Part)
		require.Equal(t, 4, part.TotalParts)

		begin := i*300 + 1
		end := begin + 299
		if end > len(payload) {
			end = len(payload)
		}
		partBytes := payload[begin-1 : end]
		require.Equal(t, crc32.ChecksumIEEE(partBytes), part.PayloadCRC)

		text := asciiText(t, part)
		lines := strings.Split(strings.TrimSuffix(text, "\r\n"), "\r\n")
		require.Equal(t,
			fmt.Sprintf("=ybegin part=%d total=4 line=128 size=%d name=payload.bin", idx, len(payload)),
			lines[0])
		require.Equal(t, fmt.Sprintf("=ypart begin=%d end=%d", begin, end), lines[1])

		trailer := fmt.Sprintf("=yend size=%d part=%d pcrc32=%08x", len(partBytes), idx, part.PayloadCRC)
		if idx == 4 {
			trailer += fmt.Sprintf(" crc32=%08x", fileCRC)
		}
		require.Equal(t, trailer, lines[len(lines)-1])
	}
}

func TestEncoder_LazyIteration(t *testing.T) {
	enc, err := NewEncoder(EncoderOptions{WorkDir: t.TempDir(), PartSize: 100})
	require.NoError(t, err)

	it, err := enc.Parts(newBinary(t, pattern(250)))
	require.NoError(t, err)
	require.Equal(t, 3, it.Total())

	for want := 1; want <= 3; want++ {
		part, err := it.Next()
		require.NoError(t, err)
		require.Equal(t, want, part.Part)
		part.Close()
	}
	_, err = it.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEncoder_FromFile(t *testing.T) {
	payload := pattern(400)
	path := filepath.Join(t.TempDir(), "input.dat")
	require.NoError(t, os.WriteFile(path, payload, 0644))

	enc, err := NewEncoder(EncoderOptions{WorkDir: t.TempDir()})
	require.NoError(t, err)

	parts, err := enc.EncodeFile(path)
	require.NoError(t, err)
	defer func() {
		for _, p := range parts {
			p.Close()
		}
	}()

	require.Len(t, parts, 1)
	require.Equal(t, "input.dat", parts[0].Filename)
	require.Contains(t, asciiText(t, parts[0]), "name=input.dat")
}

func TestEncoder_EmptyInput(t *testing.T) {
	enc, err := NewEncoder(EncoderOptions{WorkDir: t.TempDir()})
	require.NoError(t, err)
	_, err = enc.Encode(newBinary(t, nil))
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestEncoder_DualPathsAgree(t *testing.T) {
	inputs := map[string][]byte{
		"pattern":      pattern(5000),
		"escape heavy": escapeHeavy(3000),
		"tiny":         []byte{0},
		"all values":   pattern(256 * 4),
	}

	for label, payload := range inputs {
		t.Run(label, func(t *testing.T) {
			for _, lineLen := range []int{16, 128, 1024} {
				fast := encodeAll(t, EncoderOptions{LineLength: lineLen, PartSize: 700}, payload)
				slow := encodeAll(t, EncoderOptions{LineLength: lineLen, PartSize: 700, Reference: true}, payload)
				require.Equal(t, len(fast), len(slow))

				for i := range fast {
					fb, err := fast[i].Bytes()
					require.NoError(t, err)
					sb, err := slow[i].Bytes()
					require.NoError(t, err)
					require.True(t, bytes.Equal(fb, sb),
						"line=%d part=%d: fast and reference output differ", lineLen, i+1)
				}
			}
		})
	}
}
