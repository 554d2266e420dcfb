package handler

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// Base implements the file lifecycle shared by file-backed handlers. Format
// handlers embed it and override DescribeStructure, and sometimes Read.
type Base struct {
	path     string
	typeName string
	length   int64
	file     *os.File
}

// NewBase creates a base for path. The file is stat'ed for its length but
// not opened until the first read. NotARealFile has length 0.
func NewBase(path, typeName string) (*Base, error) {
	b := &Base{path: path, typeName: typeName}
	if path != NotARealFile {
		st, err := os.Stat(path)
		if err != nil {
			return nil, WrapIO("stat", path, err)
		}
		b.length = st.Size()
	}
	return b, nil
}

func (b *Base) Name() string       { return b.path }
func (b *Base) TypeName() string   { return b.typeName }
func (b *Base) TotalLength() int64 { return b.length }

// DescribeStructure only makes sure a definitions table exists.
func (b *Base) DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error {
	info.EnsureHash(KeyDefinitions)
	return nil
}

// Read reads n samples of the handler's natural kind, swapping bytes when
// big_endian_input is set.
func (b *Base) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if nat := natural(info); want != nat {
		return Errorf(UnsupportedConversion, "read", b.path,
			"asked to translate %s to %s", nat, want)
	}
	size := n * want.Size()
	if err := b.ReadBytes(offset, dst[:size]); err != nil {
		return err
	}
	if info.Bool(KeyBigEndian) {
		dtype.Swap(dst, want, n)
	}
	return nil
}

// ReadBytes reads len(dst) raw bytes at offset, opening the file if needed.
func (b *Base) ReadBytes(offset int64, dst []byte) error {
	if offset < 0 || offset+int64(len(dst)) > b.length {
		return Errorf(Structural, "read", b.path,
			"read of %d bytes at %d exceeds length %d", len(dst), offset, b.length)
	}
	if len(dst) == 0 {
		return nil
	}
	if err := b.Reopen(); err != nil {
		return err
	}
	if _, err := b.file.ReadAt(dst, offset); err != nil && err != io.EOF {
		return WrapIO("read", b.path, err)
	}
	return nil
}

// File returns the open file, opening it if needed.
func (b *Base) File() (*os.File, error) {
	if err := b.Reopen(); err != nil {
		return nil, err
	}
	return b.file, nil
}

// Close releases the file. It is safe to call repeatedly.
func (b *Base) Close() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return WrapIO("close", b.path, err)
}

// Reopen opens the file if it is closed. Synthetic sources never open.
func (b *Base) Reopen() error {
	if b.file != nil || b.path == NotARealFile {
		return nil
	}
	f, err := os.Open(b.path)
	if err != nil {
		return WrapIO("open", b.path, err)
	}
	b.file = f
	return nil
}

// IsOpen reports whether the OS file is currently held.
func (b *Base) IsOpen() bool { return b.file != nil }

// Compare orders by path.
func (b *Base) Compare(other Handler) int {
	return strings.Compare(b.path, other.Name())
}

// Destroy closes the file.
func (b *Base) Destroy() error { return b.Close() }
