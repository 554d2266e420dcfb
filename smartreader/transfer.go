package smartreader

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// MaxBlock caps the number of samples moved by one read.
const MaxBlock = 16 * 1024 * 1024

// Destination receives the transferred chunks. *pghmri.File implements it.
type Destination interface {
	CreateChunk(name string) error
	SetString(key, value string) error
	SetInt(key string, value int64) error
	SetFloat(key string, value float64) error
	WriteBulk(chunk string, n int, elemOffset int64, d dtype.Datatype, buf []byte) error
	AddHistory(entry string) error
	Close() error
}

// Transfer copies the chunk described by info from h into dst, then
// exports the remaining metadata as chunk keys.
func Transfer(ctx context.Context, h handler.Handler, info *meta.Info, dst Destination) error {
	return transfer(ctx, h, info, dst, MaxBlock)
}

// mover walks the axes of one chunk. The input cursor counts bytes, the
// output cursor counts samples.
type mover struct {
	h       handler.Handler
	info    *meta.Info
	dst     Destination
	chunk   string
	dimstr  string
	in, out dtype.Datatype
	buf     []byte
	block   int64

	inOffset  int64
	outOffset int64
	minDepth  int
	run       int64
}

func transfer(ctx context.Context, h handler.Handler, info *meta.Info, dst Destination, block int64) error {
	chunk := info.String("chunkname")
	dimstr := info.String(handler.KeyDimstr)
	out := handler.Datatype(info, handler.KeyDatatypeOut)
	if out == dtype.Uint16 || !out.Valid() {
		return handler.Errorf(handler.UnsupportedConversion, "transfer", h.Name(),
			"Pgh MRI files have no equivalent to %s", out)
	}

	// Even a zero skip ends a contiguous run, so handlers can force a
	// break in the read size.
	m := &mover{
		h: h, info: info, dst: dst, chunk: chunk, dimstr: dimstr,
		in: handler.Datatype(info, handler.KeyDatatypeIn), out: out,
		block: block, run: 1, minDepth: len(dimstr) - 1,
	}
	for i := 0; i < len(dimstr); i++ {
		m.run *= info.Int(handler.ExtentKey(dimstr[i]))
		if info.Has(handler.SkipKey(dimstr[i])) {
			m.minDepth = i
			break
		}
	}

	if err := dst.CreateChunk(chunk); err != nil {
		return destError(chunk, err)
	}
	if f := info.String("chunkfile"); f != "" {
		if err := dst.SetString(chunk+".file", f); err != nil {
			return destError(chunk, err)
		}
	}
	if err := dst.SetString(chunk+".datatype", out.String()); err != nil {
		return destError(chunk, err)
	}
	if err := dst.SetString(chunk+".dimensions", dimstr); err != nil {
		return destError(chunk, err)
	}
	for i := 0; i < len(dimstr); i++ {
		key := chunk + ".extent." + dimstr[i:i+1]
		if err := dst.SetInt(key, info.Int(handler.ExtentKey(dimstr[i]))); err != nil {
			return destError(chunk, err)
		}
	}

	zerolog.Ctx(ctx).Debug().Str("chunk", chunk).Str("dimstr", dimstr).
		Int("min_depth", m.minDepth).Int64("run", m.run).Msg("transferring chunk")

	m.inOffset = info.Int(handler.KeyStartOffset)
	m.buf = make([]byte, min(m.run, block)*int64(out.Size()))
	if err := m.walk(len(dimstr) - 1); err != nil {
		return err
	}
	return exportTags(dst, chunk, info)
}

func (m *mover) walk(depth int) error {
	c := m.dimstr[depth]
	skip := m.info.Int(handler.SkipKey(c))

	if depth > m.minDepth {
		n := m.info.Int(handler.ExtentKey(c))
		for i := int64(0); i < n; i++ {
			if err := m.walk(depth - 1); err != nil {
				return err
			}
		}
		m.inOffset += skip
		return nil
	}

	for left := m.run; left > 0; {
		n := min(left, m.block)
		if err := m.h.Read(m.info, m.inOffset, int(n), m.out, m.buf); err != nil {
			return err
		}
		if err := m.dst.WriteBulk(m.chunk, int(n), m.outOffset, m.out, m.buf); err != nil {
			return destError(m.chunk, err)
		}
		m.inOffset += n * int64(m.in.Size())
		m.outOffset += n
		left -= n
	}
	m.inOffset += skip
	return nil
}

func destError(chunk string, err error) error {
	return &handler.Error{Kind: handler.IO, Op: "write chunk " + chunk, Err: err}
}

// exportTags writes the keys of info under the chunk prefix. Extents and
// skips of the chunk's axes are already accounted for, and history entries
// are appended in numeric order.
func exportTags(dst Destination, chunk string, info *meta.Info) error {
	dimstr := info.String(handler.KeyDimstr)
	names := info.Hash(handler.KeyExternalName)
	history := make(map[int]string)

	for _, key := range info.Keys() {
		if len(key) == 2 && key[0] == 'd' && strings.IndexByte(dimstr, key[1]) >= 0 {
			continue
		}
		if len(key) == 6 && strings.HasPrefix(key, "skip.") && strings.IndexByte(dimstr, key[5]) >= 0 {
			continue
		}
		name := key
		if names != nil {
			if v, ok := names.Lookup(key); ok {
				if name = v.String(); name == "" {
					continue
				}
			}
		}
		v, _ := info.Lookup(key)
		if n, ok := strings.CutPrefix(name, "history."); ok {
			i, err := strconv.Atoi(n)
			if err == nil {
				history[i] = v.String()
			}
			continue
		}

		out := chunk + "." + name
		var err error
		switch v.Kind() {
		case meta.KindString:
			err = dst.SetString(out, v.String())
		case meta.KindInt, meta.KindBool:
			err = dst.SetInt(out, v.Int())
		case meta.KindDouble:
			err = dst.SetFloat(out, v.Double())
		}
		if err != nil {
			return destError(chunk, err)
		}
	}

	order := make([]int, 0, len(history))
	for i := range history {
		order = append(order, i)
	}
	sort.Ints(order)
	for _, i := range order {
		if err := dst.AddHistory(history[i]); err != nil {
			return destError(chunk, err)
		}
	}
	return nil
}
