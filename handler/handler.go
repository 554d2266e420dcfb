// Package handler defines the contract shared by every input format and the
// generic handlers built on it: the file-backed base, an in-memory source,
// raw readers, the type-converting decorator and the multi-file aggregator.
//
// A Handler describes the structure of its data into a *meta.Info during
// header discovery, then serves sample reads at byte offsets of the logical
// stream it represents. Sample buffers are always little-endian.
package handler

import (
	"context"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// NotARealFile is the path reported by synthetic sources.
const NotARealFile = "NotARealFile"

// Handler is one openable byte source.
type Handler interface {
	// Name returns the backing file path, or NotARealFile.
	Name() string

	// TypeName returns a human readable description of the format.
	TypeName() string

	// TotalLength returns the byte length of the source.
	TotalLength() int64

	// DescribeStructure parses headers into info. At minimum it leaves
	// dimstr, the d<axis> extents, datatype_in, handler_datatype_out and
	// start_offset describable. It may push further pairs onto stack.
	DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error

	// Read fills dst with n little-endian samples of kind want taken from
	// byte offset. dst must hold at least n*want.Size() bytes.
	Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error

	// Close releases the OS file. Parse state survives.
	Close() error

	// Reopen reacquires the OS file if it is not open.
	Reopen() error

	// Compare orders handlers when aggregating; negative sorts first.
	Compare(other Handler) int

	// Destroy releases every resource, including owned children.
	Destroy() error
}

// Pair is one unit of work: a handler and the metadata it describes.
type Pair struct {
	Handler Handler
	Info    *meta.Info
}

// Stack holds pending pairs. Pairs are handed out in the order they were
// pushed, so a primary chunk is transferred before the auxiliary chunks its
// header discovery adds.
type Stack struct {
	pairs []Pair
}

// Push appends a pair.
func (s *Stack) Push(h Handler, info *meta.Info) {
	s.pairs = append(s.pairs, Pair{Handler: h, Info: info})
}

// Pop removes and returns the oldest pending pair.
func (s *Stack) Pop() (Pair, bool) {
	if len(s.pairs) == 0 {
		return Pair{}, false
	}
	p := s.pairs[0]
	s.pairs[0] = Pair{}
	s.pairs = s.pairs[1:]
	return p, true
}

// Len returns the number of pending pairs.
func (s *Stack) Len() int { return len(s.pairs) }

// Well-known metadata keys.
const (
	KeyDimstr       = "dimstr"
	KeyDatatypeIn   = "datatype_in"
	KeyHandlerOut   = "handler_datatype_out"
	KeyDatatypeOut  = "datatype_out"
	KeyStartOffset  = "start_offset"
	KeyBigEndian    = "big_endian_input"
	KeyDefinitions  = "definitions"
	KeyExternalName = "external_names"
	KeyMultiHash    = "multi_hash"
)

// Datatype reads a datatype key from info.
func Datatype(info *meta.Info, key string) dtype.Datatype {
	return dtype.Datatype(info.Int(key))
}

// SetDatatype stores a datatype key in info.
func SetDatatype(info *meta.Info, key string, d dtype.Datatype) {
	info.SetInt(key, int64(d))
}

// ExtentKey returns the d<axis> key for axis c.
func ExtentKey(c byte) string { return "d" + string(c) }

// SkipKey returns the skip.<axis> key for axis c.
func SkipKey(c byte) string { return "skip." + string(c) }

// natural returns the kind a handler delivers without conversion.
func natural(info *meta.Info) dtype.Datatype {
	if info.Has(KeyHandlerOut) {
		return Datatype(info, KeyHandlerOut)
	}
	return Datatype(info, KeyDatatypeIn)
}
