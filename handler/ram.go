package handler

import (
	"context"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// Ram serves samples held in memory.
type Ram struct {
	*Base
	buf []byte
	n   int
	typ dtype.Datatype
}

// NewRam wraps n little-endian samples of kind typ.
func NewRam(buf []byte, n int, typ dtype.Datatype) *Ram {
	b := &Base{path: NotARealFile, typeName: "RamDataHandler", length: int64(n * typ.Size())}
	return &Ram{Base: b, buf: buf[:n*typ.Size()], n: n, typ: typ}
}

// DescribeStructure records the buffer's sample kind.
func (r *Ram) DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error {
	info.EnsureHash(KeyDefinitions)
	SetDatatype(info, KeyDatatypeIn, r.typ)
	SetDatatype(info, KeyHandlerOut, r.typ)
	return nil
}

// Read copies samples out of the buffer. Byte order flags are ignored.
func (r *Ram) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if want != r.typ {
		return Errorf(UnsupportedConversion, "ram read", "",
			"asked for %s but holds %s", want, r.typ)
	}
	if offset < 0 {
		return Errorf(Structural, "ram read", "", "negative offset %d", offset)
	}
	size := int64(n * want.Size())
	if offset+size > int64(len(r.buf)) {
		return Errorf(Structural, "ram read", "",
			"read of %d from %d would pass the end of the buffer", n, offset)
	}
	copy(dst[:size], r.buf[offset:offset+size])
	return nil
}

// Destroy drops the buffer.
func (r *Ram) Destroy() error {
	r.buf = nil
	return nil
}
