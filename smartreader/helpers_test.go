package smartreader

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

func putInt16s(order binary.ByteOrder, vals ...int16) []byte {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		order.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}

func leInt16s(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return out
}

type bulkWrite struct {
	chunk  string
	n      int
	offset int64
	typ    dtype.Datatype
	data   []byte
}

// memDest records everything written to it.
type memDest struct {
	chunks  []string
	keys    map[string]any
	writes  []bulkWrite
	history []string
	closed  bool
}

func newMemDest() *memDest {
	return &memDest{keys: make(map[string]any)}
}

func (m *memDest) CreateChunk(name string) error {
	m.chunks = append(m.chunks, name)
	m.keys[name] = "[chunk]"
	return nil
}

func (m *memDest) SetString(key, value string) error {
	m.keys[key] = value
	return nil
}

func (m *memDest) SetInt(key string, value int64) error {
	m.keys[key] = value
	return nil
}

func (m *memDest) SetFloat(key string, value float64) error {
	m.keys[key] = value
	return nil
}

func (m *memDest) WriteBulk(chunk string, n int, off int64, d dtype.Datatype, buf []byte) error {
	data := append([]byte(nil), buf[:n*d.Size()]...)
	m.writes = append(m.writes, bulkWrite{chunk: chunk, n: n, offset: off, typ: d, data: data})
	return nil
}

func (m *memDest) AddHistory(entry string) error {
	m.history = append(m.history, entry)
	return nil
}

func (m *memDest) Close() error {
	m.closed = true
	return nil
}

// samples concatenates the bulk writes of chunk.
func (m *memDest) samples(chunk string) []byte {
	var out []byte
	for _, w := range m.writes {
		if w.chunk == chunk {
			out = append(out, w.data...)
		}
	}
	return out
}
