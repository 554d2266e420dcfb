package handler

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.raw")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestStackOrder(t *testing.T) {
	var s Stack
	a := NewRam(nil, 0, dtype.Int16)
	b := NewRam(nil, 0, dtype.Int16)
	s.Push(a, meta.New())
	s.Push(b, meta.New())
	require.Equal(t, 2, s.Len())

	p, ok := s.Pop()
	require.True(t, ok)
	assert.Same(t, a, p.Handler)
	p, ok = s.Pop()
	require.True(t, ok)
	assert.Same(t, b, p.Handler)
	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestRawBigEndianRead(t *testing.T) {
	// int16 samples 1, -2, 300 stored big-endian after a 4 byte preamble
	path := writeFile(t, []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0xff, 0xfe, 0x01, 0x2c})
	h, err := NewRaw(path, meta.New())
	require.NoError(t, err)
	defer h.Destroy()

	assert.Equal(t, "raw", h.TypeName())
	assert.EqualValues(t, 10, h.TotalLength())

	info := meta.New()
	require.NoError(t, h.DescribeStructure(testContext(t), info, &Stack{}))
	assert.NotNil(t, info.Hash(KeyDefinitions))

	SetDatatype(info, KeyDatatypeIn, dtype.Int16)
	SetDatatype(info, KeyHandlerOut, dtype.Int16)
	info.SetBool(KeyBigEndian, true)

	buf := make([]byte, 6)
	require.NoError(t, h.Read(info, 4, 3, dtype.Int16, buf))
	assert.Equal(t, int16Samples(1, -2, 300), buf)

	info.SetBool(KeyBigEndian, false)
	require.NoError(t, h.Read(info, 4, 1, dtype.Int16, buf))
	assert.Equal(t, []byte{0x00, 0x01}, buf[:2])

	err = h.Read(info, 4, 1, dtype.Float32, buf)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)

	err = h.Read(info, 8, 2, dtype.Int16, buf)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestBaseCloseReopen(t *testing.T) {
	path := writeFile(t, []byte{1, 2, 3, 4})
	b, err := NewBase(path, "test")
	require.NoError(t, err)

	assert.False(t, b.IsOpen())
	require.NoError(t, b.Reopen())
	require.NoError(t, b.Reopen())
	assert.True(t, b.IsOpen())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.False(t, b.IsOpen())

	buf := make([]byte, 2)
	require.NoError(t, b.ReadBytes(2, buf))
	assert.Equal(t, []byte{3, 4}, buf)
	assert.True(t, b.IsOpen())
	require.NoError(t, b.Destroy())
	assert.False(t, b.IsOpen())
}

func TestNewBaseMissingFile(t *testing.T) {
	_, err := NewBase(filepath.Join(t.TempDir(), "missing"), "raw")
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSyntheticBaseNeverOpens(t *testing.T) {
	b, err := NewBase(NotARealFile, "synthetic")
	require.NoError(t, err)
	require.NoError(t, b.Reopen())
	assert.False(t, b.IsOpen())
	assert.EqualValues(t, 0, b.TotalLength())
}

func TestUShortRead(t *testing.T) {
	path := writeFile(t, []byte{0x00, 0x05, 0x7f, 0xff, 0x80, 0x00, 0xff, 0xff})
	h, err := NewUShort(path, meta.New())
	require.NoError(t, err)
	defer h.Destroy()

	info := meta.New()
	SetDatatype(info, KeyDatatypeIn, dtype.Uint16)
	info.SetBool(KeyBigEndian, true)
	require.NoError(t, h.DescribeStructure(testContext(t), info, &Stack{}))
	assert.Equal(t, dtype.Int32, Datatype(info, KeyHandlerOut))

	buf := make([]byte, 16)
	require.NoError(t, h.Read(info, 0, 4, dtype.Int32, buf))
	want := []int32{5, 32767, 32768, 65535}
	for i, w := range want {
		assert.Equal(t, w, int32(binary.LittleEndian.Uint32(buf[4*i:])), "sample %d", i)
	}

	err = h.Read(info, 0, 4, dtype.Uint16, buf)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)
}

func TestRamRead(t *testing.T) {
	r := NewRam(int16Samples(7, 8, 9), 3, dtype.Int16)
	assert.Equal(t, NotARealFile, r.Name())
	assert.Equal(t, "RamDataHandler", r.TypeName())
	assert.EqualValues(t, 6, r.TotalLength())

	info := meta.New()
	require.NoError(t, r.DescribeStructure(testContext(t), info, &Stack{}))
	assert.Equal(t, dtype.Int16, Datatype(info, KeyDatatypeIn))

	buf := make([]byte, 4)
	require.NoError(t, r.Read(info, 2, 2, dtype.Int16, buf))
	assert.Equal(t, int16Samples(8, 9), buf)

	assert.ErrorIs(t, r.Read(info, 4, 2, dtype.Int16, buf), ErrStructural)
	assert.ErrorIs(t, r.Read(info, -2, 1, dtype.Int16, buf), ErrStructural)
	assert.ErrorIs(t, r.Read(info, 0, 1, dtype.Int32, buf), ErrUnsupportedConversion)
}

func TestConverterUint16ToInt32(t *testing.T) {
	patterns := []uint16{0x0000, 0x0001, 0x7fff, 0x8000, 0xfffe, 0xffff}
	src := make([]byte, 2*len(patterns))
	for i, p := range patterns {
		binary.LittleEndian.PutUint16(src[2*i:], p)
	}
	ram := NewRam(src, len(patterns), dtype.Uint16)
	c, err := NewConverter(ram, dtype.Uint16, dtype.Int32)
	require.NoError(t, err)

	assert.Equal(t, "Converter[int32,uint16](RamDataHandler)", c.TypeName())
	assert.Equal(t, ram.TotalLength(), c.TotalLength())
	assert.Equal(t, ram.Name(), c.Name())

	dst := make([]byte, 4*len(patterns))
	require.NoError(t, c.Read(meta.New(), 0, len(patterns), dtype.Int32, dst))
	for i, p := range patterns {
		v := int32(int16(p))
		want := v
		if v < 0 {
			want = v + 65536
		}
		assert.Equal(t, want, int32(binary.LittleEndian.Uint32(dst[4*i:])), "pattern %#04x", p)
	}

	err = c.Read(meta.New(), 0, 1, dtype.Float32, dst)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)
}

func TestConverterToFloat32(t *testing.T) {
	ram := NewRam(int16Samples(-3, 0, 12), 3, dtype.Int16)
	c, err := NewConverter(ram, dtype.Int16, dtype.Float32)
	require.NoError(t, err)

	dst := make([]byte, 12)
	// two reads reuse the scratch buffer
	require.NoError(t, c.Read(meta.New(), 0, 3, dtype.Float32, dst))
	require.NoError(t, c.Read(meta.New(), 2, 2, dtype.Float32, dst))
	assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(dst[0:])))
	assert.Equal(t, float32(12), math.Float32frombits(binary.LittleEndian.Uint32(dst[4:])))
}

func TestConverterRejectsUnsupported(t *testing.T) {
	tests := []struct {
		in, out dtype.Datatype
	}{
		{dtype.Int16, dtype.Int32},
		{dtype.Float32, dtype.Uint8},
		{dtype.Int32, dtype.Int16},
		{dtype.Uint16, dtype.Int16},
	}
	for _, tt := range tests {
		t.Run(tt.in.String()+"->"+tt.out.String(), func(t *testing.T) {
			_, err := NewConverter(NewRam(nil, 0, tt.in), tt.in, tt.out)
			assert.ErrorIs(t, err, ErrUnsupportedConversion)
		})
	}
}

func TestTableFirstMatchWins(t *testing.T) {
	path := writeFile(t, []byte("hello"))
	var created []string
	entry := func(name string, match bool) Entry {
		return Entry{
			Name: name,
			Test: func(string) bool { return match },
			Create: func(p string, info *meta.Info) (Handler, error) {
				created = append(created, name)
				return NewRaw(p, info)
			},
		}
	}
	table := Table{entry("a", false), entry("b", true), entry("c", true), {Name: "raw", Test: RawTest, Create: NewRaw}}

	e, err := table.Find(testContext(t), path)
	require.NoError(t, err)
	assert.Equal(t, "b", e.Name)

	h, err := table.Open(testContext(t), path, meta.New())
	require.NoError(t, err)
	h.Destroy()
	assert.Equal(t, []string{"b"}, created)

	_, err = Table{entry("a", false)}.Find(testContext(t), path)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestErrorFormatting(t *testing.T) {
	err := Errorf(Structural, "multi read", "/data/s1.dcm", "framing error reading %d %s at %d", 4, "int16", 64)
	assert.Equal(t, "multi read /data/s1.dcm: framing error reading 4 int16 at 64", err.Error())
	assert.ErrorIs(t, err, ErrStructural)
	assert.NotErrorIs(t, err, ErrIO)

	synthetic := Errorf(Structural, "ram read", NotARealFile, "negative offset")
	assert.Equal(t, "ram read: negative offset", synthetic.Error())

	assert.NoError(t, WrapIO("close", "x", nil))
}
