package handler

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// child is one aggregated file and the metadata its own header produced.
type child struct {
	h    Handler
	info *meta.Info
}

// Multi presents an ordered set of per-file handlers as one logical stream.
//
// At most one child is open at any time: reads must arrive in increasing
// offset order, and the aggregator closes each child before opening the
// next.
type Multi struct {
	typeName string
	length   int64
	kids     []*child
	concat   bool

	// first occurrences of each slice position, sorted by displacement
	// once clustering completes
	firstVolume []*sliceEntry

	cur          int
	offsetShift  int64
	bytesThisKid int64
	skipsThisKid int64
}

// NewMulti creates an empty aggregator.
func NewMulti() *Multi {
	return &Multi{typeName: "Multi(***uninitialized***)"}
}

// AddFile appends a child whose header has not been described yet.
func (m *Multi) AddFile(h Handler) {
	if len(m.kids) == 0 {
		m.typeName = "Multi(" + h.TypeName() + "...)"
	}
	m.kids = append(m.kids, &child{h: h})
	m.length += h.TotalLength()
}

// Kids returns the children in their current order.
func (m *Multi) Kids() []Handler {
	out := make([]Handler, len(m.kids))
	for i, k := range m.kids {
		out[i] = k.h
	}
	return out
}

// ConcatMode reports whether children are concatenated along the slowest
// axis rather than stacked under a new one.
func (m *Multi) ConcatMode() bool { return m.concat }

func (m *Multi) Name() string       { return NotARealFile }
func (m *Multi) TypeName() string   { return m.typeName }
func (m *Multi) TotalLength() int64 { return m.length }

// DescribeStructure describes every child, checks that they agree, orders
// them and derives the shape of the whole collection.
func (m *Multi) DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error {
	if len(m.kids) == 0 {
		return Errorf(Structural, "multi describe", "", "no files to aggregate")
	}
	log := zerolog.Ctx(ctx)

	multi := meta.New()
	for _, k := range m.kids {
		log.Debug().Str("path", k.h.Name()).Msg("processing header")
		sub := info.Clone()
		if err := k.h.DescribeStructure(ctx, sub, stack); err != nil {
			return err
		}
		if err := k.h.Close(); err != nil {
			return err
		}
		k.info = sub
		multi.SetHash(k.h.Name(), sub)
	}
	info.SetHash(KeyMultiHash, multi)

	if err := m.scanForConsistency(info); err != nil {
		return err
	}

	sort.SliceStable(m.kids, func(i, j int) bool {
		return m.kids[i].h.Compare(m.kids[j].h) < 0
	})

	if err := m.deriveCollectiveInfo(ctx, info); err != nil {
		return err
	}
	m.offsetShift = 0
	m.seek(0)
	return nil
}

// scanForConsistency exports the first child's facts into info and fails
// unless every other child has the same datatypes and dimension string.
// Children that differ only in the slowest extent switch the aggregator to
// concatenate mode.
func (m *Multi) scanForConsistency(info *meta.Info) error {
	ref := m.kids[0].info
	info.CopyUniqueExceptHashes(ref)
	for _, key := range []string{KeyDefinitions, KeyExternalName} {
		if h := ref.Hash(key); h != nil {
			info.EnsureHash(key).CopyUniqueExceptHashes(h)
		}
	}

	dtIn := ref.Int(KeyDatatypeIn)
	dtOut := ref.Int(KeyHandlerOut)
	dimstr := ref.String(KeyDimstr)
	var lastKey string
	var lastExtent int64
	if dimstr != "" {
		lastKey = ExtentKey(dimstr[len(dimstr)-1])
		lastExtent = ref.Int(lastKey)
	}

	for _, k := range m.kids[1:] {
		sub := k.info
		if sub.Int(KeyDatatypeIn) != dtIn || sub.Int(KeyHandlerOut) != dtOut {
			return Errorf(Structural, "multi describe", k.h.Name(), "files do not have the same datatype")
		}
		if sub.String(KeyDimstr) != dimstr {
			return Errorf(Structural, "multi describe", k.h.Name(),
				"files do not have the same dim string (%q vs %q)", sub.String(KeyDimstr), dimstr)
		}
		if dimstr == "" || sub.Int(lastKey) == lastExtent {
			continue
		}
		if !canConcatenate(ref, sub) {
			return Errorf(Structural, "multi describe", k.h.Name(), "file structure does not allow concatenation")
		}
		m.concat = true
	}
	return nil
}

// canConcatenate reports whether two shapes agree on every axis but the
// slowest.
func canConcatenate(a, b *meta.Info) bool {
	d := a.String(KeyDimstr)
	if d != b.String(KeyDimstr) {
		return false
	}
	for i := 0; i < len(d)-1; i++ {
		key := ExtentKey(d[i])
		if a.Int(key) != b.Int(key) {
			return false
		}
	}
	return true
}

// usefulBytes is the number of sample bytes a child contributes.
func usefulBytes(k *child) int64 {
	dimstr := k.info.String(KeyDimstr)
	if dimstr == "" {
		return k.h.TotalLength()
	}
	n := int64(1)
	for i := 0; i < len(dimstr); i++ {
		n *= k.info.Int(ExtentKey(dimstr[i]))
	}
	return n * int64(Datatype(k.info, KeyDatatypeIn).Size())
}

// totalSkip is the number of skipped bytes inside a child, excluding its
// start offset.
func totalSkip(k *child) int64 {
	dimstr := k.info.String(KeyDimstr)
	var total int64
	for i := 0; i < len(dimstr); i++ {
		total *= k.info.Int(ExtentKey(dimstr[i]))
		total += k.info.Int(SkipKey(dimstr[i]))
	}
	return total
}

// seek positions the read cursor at child i.
func (m *Multi) seek(i int) {
	m.cur = i
	if i < len(m.kids) {
		m.bytesThisKid = usefulBytes(m.kids[i])
		m.skipsThisKid = totalSkip(m.kids[i])
	}
}

// Read serves a span of the logical stream from the child that holds it.
// A span that crosses a child boundary is a framing error.
func (m *Multi) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if m.cur >= len(m.kids) {
		return Errorf(Structural, "multi read", "", "read at %d is past end of last file", offset)
	}
	if offset < m.offsetShift {
		return Errorf(Structural, "multi read", "", "read at %d precedes the current file", offset)
	}
	k := m.kids[m.cur]
	if err := k.h.Reopen(); err != nil {
		return err
	}

	for offset >= m.offsetShift+m.bytesThisKid+m.skipsThisKid {
		m.offsetShift += m.bytesThisKid + m.skipsThisKid
		if err := k.h.Close(); err != nil {
			return err
		}
		m.seek(m.cur + 1)
		if m.cur >= len(m.kids) {
			return Errorf(Structural, "multi read", "", "read at %d is past end of last file", offset)
		}
		k = m.kids[m.cur]
		if err := k.h.Reopen(); err != nil {
			return err
		}
	}

	span := int64(n) * int64(Datatype(k.info, KeyDatatypeIn).Size())
	if offset+span > m.offsetShift+m.bytesThisKid+m.skipsThisKid {
		return Errorf(Structural, "multi read", k.h.Name(),
			"framing error reading %d %s at %d", n, want, offset)
	}
	return k.h.Read(k.info, offset-m.offsetShift+k.info.Int(KeyStartOffset), n, want, dst)
}

// Close closes the active child.
func (m *Multi) Close() error {
	if m.cur < len(m.kids) {
		return m.kids[m.cur].h.Close()
	}
	return nil
}

// Reopen is a no-op; children are opened as reads reach them.
func (m *Multi) Reopen() error { return nil }

func (m *Multi) Compare(other Handler) int {
	return strings.Compare(m.Name(), other.Name())
}

// Destroy destroys every child.
func (m *Multi) Destroy() error {
	var first error
	for _, k := range m.kids {
		if err := k.h.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	m.kids = nil
	m.firstVolume = nil
	return first
}
