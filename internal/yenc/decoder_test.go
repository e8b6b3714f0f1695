package yenc

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tahirrasheed89/newsreap/internal/content"
)

// encodeToString frames payload as a single part and returns the
// ascii text.
func encodeToString(t *testing.T, payload []byte, lineLen int) string {
	t.Helper()
	parts := encodeAll(t, EncoderOptions{LineLength: lineLen}, payload)
	require.Len(t, parts, 1)
	return asciiText(t, parts[0])
}

func decodeString(t *testing.T, text string, opts DecoderOptions) *content.Binary {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	bin, err := NewDecoder(opts).Decode(strings.NewReader(text))
	require.NoError(t, err)
	t.Cleanup(func() { bin.Close() })
	return bin
}

func TestDecoder_SinglePartRoundTrip(t *testing.T) {
	payload := []byte("Hello, yEnc!\n")
	text := encodeToString(t, payload, 16)

	bin := decodeString(t, text, DecoderOptions{})
	require.Equal(t, content.ValidityOK, bin.Validity)
	require.True(t, bin.IsValid())
	require.Equal(t, "payload.bin", bin.Filename)
	require.Equal(t, int64(len(payload)), bin.Len())

	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.Equal(t, crc32.ChecksumIEEE(payload), bin.ActualCRC)
	require.True(t, bin.HasDeclaredCRC)
	require.Equal(t, bin.DeclaredCRC, bin.ActualCRC)
}

func TestDecoder_AllByteValues(t *testing.T) {
	payload := make([]byte, 256*3)
	for i := range payload {
		payload[i] = byte(i)
	}
	text := encodeToString(t, payload, 128)

	bin := decodeString(t, text, DecoderOptions{})
	require.Equal(t, content.ValidityOK, bin.Validity)

	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecoder_LFOnlyLines(t *testing.T) {
	payload := pattern(500)
	text := strings.ReplaceAll(encodeToString(t, payload, 64), "\r\n", "\n")

	bin := decodeString(t, text, DecoderOptions{})
	require.Equal(t, content.ValidityOK, bin.Validity)

	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecoder_SkipsLeadingNoise(t *testing.T) {
	payload := []byte("payload body")
	text := "From: someone <some@where>\r\nSubject: stuff\r\n\r\n" +
		encodeToString(t, payload, 128)

	bin := decodeString(t, text, DecoderOptions{})
	require.Equal(t, content.ValidityOK, bin.Validity)

	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecoder_NoBeginHeader(t *testing.T) {
	dec := NewDecoder(DecoderOptions{WorkDir: t.TempDir()})
	_, err := dec.Decode(strings.NewReader("just some text\r\nno framing here\r\n"))
	require.ErrorIs(t, err, ErrNoYencHeader)

	// A uuencoded stream must not be mistaken for yEnc.
	_, err = dec.Decode(strings.NewReader("begin 644 file.bin\r\nM...\r\nend\r\n"))
	require.ErrorIs(t, err, ErrNoYencHeader)
}

func TestDecoder_PartialDownload(t *testing.T) {
	payload := pattern(400)
	text := encodeToString(t, payload, 64)

	full := decodeString(t, text, DecoderOptions{})
	fullBytes, err := full.Bytes()
	require.NoError(t, err)

	bin := decodeString(t, text, DecoderOptions{MaxBytes: 10})
	require.Equal(t, content.ValidityTruncated, bin.Validity)
	require.False(t, bin.IsValid())
	require.Equal(t, int64(10), bin.Len(), "output stops exactly at the limit")

	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, fullBytes[:10], got)
}

func TestDecoder_BadCRC(t *testing.T) {
	payload := []byte("crc mismatch victim")
	text := encodeToString(t, payload, 128)

	// Flip one digit of the declared CRC, keeping it valid hex.
	actual := fmt.Sprintf("%08x", crc32.ChecksumIEEE(payload))
	flipped := []byte(actual)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	corrupted := strings.Replace(text, "crc32="+actual, "crc32="+string(flipped), 1)
	require.NotEqual(t, text, corrupted)

	bin := decodeString(t, corrupted, DecoderOptions{})
	require.Equal(t, content.ValidityCorrupt, bin.Validity)

	// The payload itself still decodes in full.
	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecoder_MissingTrailer(t *testing.T) {
	payload := pattern(300)
	text := encodeToString(t, payload, 64)

	// Drop the =yend line entirely.
	idx := strings.Index(text, "=yend")
	require.Greater(t, idx, 0)

	bin := decodeString(t, text[:idx], DecoderOptions{})
	require.Equal(t, content.ValidityTruncated, bin.Validity)

	got, err := bin.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got, "payload before the missing trailer is kept")
}

func TestDecoder_ShortPayloadIsTruncated(t *testing.T) {
	payload := pattern(300)
	text := encodeToString(t, payload, 64)

	// Remove one body line; the trailer still declares the full size.
	lines := strings.SplitAfter(text, "\r\n")
	require.Greater(t, len(lines), 4)
	cut := append([]string{}, lines[:1]...)
	cut = append(cut, lines[2:]...)

	bin := decodeString(t, strings.Join(cut, ""), DecoderOptions{})
	require.Equal(t, content.ValidityTruncated, bin.Validity)
	require.Less(t, bin.Len(), int64(len(payload)))
}

func TestDecoder_MalformedControlLine(t *testing.T) {
	dec := NewDecoder(DecoderOptions{WorkDir: t.TempDir()})
	text := "=ybegin line=128 size=10 name=x.bin\r\n=ypart begin=9 end=3\r\nrubbish\r\n"
	_, err := dec.Decode(strings.NewReader(text))
	require.ErrorIs(t, err, ErrMalformedHeader)

	text = "=ybegin line=128 size=10 name=x.bin\r\n=yend part=1\r\n"
	_, err = dec.Decode(strings.NewReader(text))
	require.ErrorIs(t, err, ErrMalformedHeader, "trailer without size is rejected")
}

func TestDecoder_TruncationIsMonotonic(t *testing.T) {
	payload := escapeHeavy(700)
	text := encodeToString(t, payload, 32)

	full := decodeString(t, text, DecoderOptions{})
	fullBytes, err := full.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, fullBytes)

	for cut := 0; cut < len(text); cut += 7 {
		dec := NewDecoder(DecoderOptions{WorkDir: t.TempDir()})
		bin, err := dec.Decode(strings.NewReader(text[:cut]))
		if err != nil {
			// No begin marker yet, or the cut split a control line.
			continue
		}
		got, rerr := bin.Bytes()
		require.NoError(t, rerr)
		require.True(t, bytes.HasPrefix(fullBytes, got),
			"decode of prefix len %d is not a prefix of the full decode", cut)
		bin.Close()
	}
}

func TestDecoder_DualPathsAgree(t *testing.T) {
	inputs := map[string][]byte{
		"pattern":      pattern(5000),
		"escape heavy": escapeHeavy(2048),
		"single byte":  {214},
	}

	for label, payload := range inputs {
		t.Run(label, func(t *testing.T) {
			text := encodeToString(t, payload, 45)

			fast := decodeString(t, text, DecoderOptions{})
			slow := decodeString(t, text, DecoderOptions{Reference: true})

			fb, err := fast.Bytes()
			require.NoError(t, err)
			sb, err := slow.Bytes()
			require.NoError(t, err)
			require.True(t, bytes.Equal(fb, sb))
			require.Equal(t, fast.ActualCRC, slow.ActualCRC)
			require.Equal(t, fast.Validity, slow.Validity)
		})
	}
}

func TestDecoder_StrayControlBytesDropped(t *testing.T) {
	// Hand-build a tiny stream: payload "AB" maps to "kl" (+42), with
	// a stray NUL jammed between the body bytes.
	body := string([]byte{'A' + 42, 0x00, 'B' + 42})
	text := "=ybegin line=128 size=2 name=tiny.bin\r\n" + body + "\r\n=yend size=2\r\n"

	for _, reference := range []bool{false, true} {
		bin := decodeString(t, text, DecoderOptions{Reference: reference})
		got, err := bin.Bytes()
		require.NoError(t, err)
		require.Equal(t, []byte("AB"), got)
		require.Equal(t, content.ValidityOK, bin.Validity)
	}
}

func TestDecoder_DanglingEscapeDropped(t *testing.T) {
	// A '=' as the last byte of a line has nothing to escape and is
	// discarded; the next line decodes normally.
	line1 := string([]byte{'A' + 42, '='})
	line2 := string([]byte{'B' + 42})
	text := "=ybegin line=128 size=2 name=tiny.bin\r\n" +
		line1 + "\r\n" + line2 + "\r\n=yend size=2\r\n"

	for _, reference := range []bool{false, true} {
		bin := decodeString(t, text, DecoderOptions{Reference: reference})
		got, err := bin.Bytes()
		require.NoError(t, err)
		require.Equal(t, []byte("AB"), got)
	}
}
