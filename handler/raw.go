package handler

import (
	"context"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// NewRaw returns the catch-all handler. It contributes nothing during header
// discovery, so dimension order and extents must come from overrides.
func NewRaw(path string, info *meta.Info) (Handler, error) {
	return NewBase(path, "raw")
}

// RawTest accepts every path.
func RawTest(string) bool { return true }

// UShort reads raw unsigned 16-bit samples and delivers them as int32.
type UShort struct {
	*Base
}

// NewUShort creates a raw unsigned short handler.
func NewUShort(path string, info *meta.Info) (Handler, error) {
	b, err := NewBase(path, "raw unsigned shorts")
	if err != nil {
		return nil, err
	}
	return &UShort{Base: b}, nil
}

// DescribeStructure declares int32 output.
func (u *UShort) DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error {
	info.EnsureHash(KeyDefinitions)
	SetDatatype(info, KeyHandlerOut, dtype.Int32)
	return nil
}

// Read reads n 16-bit patterns into the front of dst and widens them in
// place, working backwards.
func (u *UShort) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if want != dtype.Int32 {
		return Errorf(UnsupportedConversion, "ushort read", u.path,
			"asked for %s rather than %s", want, dtype.Int32)
	}
	if err := u.ReadBytes(offset, dst[:2*n]); err != nil {
		return err
	}
	if info.Bool(KeyBigEndian) {
		dtype.Swap(dst, dtype.Uint16, n)
	}
	for i := n - 1; i >= 0; i-- {
		bits := uint16(dst[2*i]) | uint16(dst[2*i+1])<<8
		v := uint32(dtype.Uint16AsInt32(bits))
		dst[4*i] = byte(v)
		dst[4*i+1] = byte(v >> 8)
		dst[4*i+2] = byte(v >> 16)
		dst[4*i+3] = byte(v >> 24)
	}
	return nil
}
