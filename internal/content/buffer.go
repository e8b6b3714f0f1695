package content

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"
)

// DefaultMemLimit is the accumulated size at which a buffer spills its
// contents from memory to a temp file backing.
const DefaultMemLimit = 1 << 20

var (
	// ErrFinalized indicates a write was attempted after Finalize.
	ErrFinalized = errors.New("content buffer is finalized")

	// ErrClosed indicates the buffer's backing has already been released.
	ErrClosed = errors.New("content buffer is closed")
)

// Buffer is a growable, append-only byte sink. Small buffers live in
// memory; once the accumulated length crosses the configured limit the
// contents move to a temp file under workDir. The switch is invisible
// to callers. Each buffer owns its backing file exclusively and removes
// it on Close.
type Buffer struct {
	workDir  string
	memLimit int64

	mem  *bytes.Buffer
	file *os.File
	path string

	size      int64
	finalized bool
	closed    bool
}

// NewBuffer creates an empty in-memory buffer that spills to a temp
// file in workDir once it grows past memLimit bytes. A memLimit <= 0
// selects DefaultMemLimit.
func NewBuffer(workDir string, memLimit int64) *Buffer {
	if memLimit <= 0 {
		memLimit = DefaultMemLimit
	}
	return &Buffer{
		workDir:  workDir,
		memLimit: memLimit,
		mem:      &bytes.Buffer{},
	}
}

// Write appends p to the buffer, spilling to disk if the new total
// crosses the memory limit. Implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if b.finalized {
		return 0, ErrFinalized
	}

	if b.file == nil && b.size+int64(len(p)) > b.memLimit {
		if err := b.spill(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if b.file != nil {
		n, err = b.file.Write(p)
	} else {
		n, err = b.mem.Write(p)
	}
	b.size += int64(n)
	return n, err
}

// spill moves the in-memory contents to a fresh temp file. The file
// name is ksuid-based so two buffers can never collide in the same
// work directory.
func (b *Buffer) spill() error {
	if err := os.MkdirAll(b.workDir, 0755); err != nil {
		return fmt.Errorf("could not create work dir: %w", err)
	}

	path := filepath.Join(b.workDir, "nr-"+ksuid.New().String()+".tmp")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("could not create backing file: %w", err)
	}

	if _, err := f.Write(b.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("could not spill to backing file: %w", err)
	}

	b.file = f
	b.path = path
	b.mem = nil
	return nil
}

// Len reports the number of bytes appended so far.
func (b *Buffer) Len() int64 {
	return b.size
}

// OnDisk reports whether the buffer has spilled to a temp file.
func (b *Buffer) OnDisk() bool {
	return b.file != nil
}

// Reader returns a reader over the full contents. The reader stays
// valid until the buffer is closed; appending while reading is a
// contract violation.
func (b *Buffer) Reader() (io.Reader, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.file != nil {
		return io.NewSectionReader(b.file, 0, b.size), nil
	}
	return bytes.NewReader(b.mem.Bytes()), nil
}

// ReadRange copies out n bytes starting at off. Requests past the end
// of the buffer fail with io.EOF semantics.
func (b *Buffer) ReadRange(off, n int64) ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off+n > b.size {
		return nil, fmt.Errorf("range [%d:%d) outside buffer of %d bytes: %w",
			off, off+n, b.size, io.EOF)
	}

	out := make([]byte, n)
	if b.file != nil {
		if _, err := b.file.ReadAt(out, off); err != nil {
			return nil, err
		}
		return out, nil
	}
	copy(out, b.mem.Bytes()[off:off+n])
	return out, nil
}

// Bytes returns a copy of the full contents.
func (b *Buffer) Bytes() ([]byte, error) {
	return b.ReadRange(0, b.size)
}

// CRC32 computes the IEEE CRC32 of the contents.
func (b *Buffer) CRC32() (uint32, error) {
	r, err := b.Reader()
	if err != nil {
		return 0, err
	}
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// MD5 computes the MD5 digest of the contents.
func (b *Buffer) MD5() ([md5.Size]byte, error) {
	var sum [md5.Size]byte
	r, err := b.Reader()
	if err != nil {
		return sum, err
	}
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// Finalize seals the buffer. Further writes fail with ErrFinalized.
func (b *Buffer) Finalize() {
	b.finalized = true
}

// Close releases the backing. The temp file, if any, is removed; the
// buffer is unusable afterwards. Safe to call more than once.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.mem = nil

	if b.file != nil {
		err := b.file.Close()
		if rmErr := os.Remove(b.path); err == nil {
			err = rmErr
		}
		b.file = nil
		return err
	}
	return nil
}

// WriteTo streams the full contents into w. Implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	r, err := b.Reader()
	if err != nil {
		return 0, err
	}
	return io.Copy(w, r)
}
