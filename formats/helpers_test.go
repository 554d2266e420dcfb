package formats

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-smartreader/handler"
	binpkg "github.com/robert-malhotra/go-smartreader/internal/binary"
	"github.com/robert-malhotra/go-smartreader/meta"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

func newInfo() *meta.Info {
	info := meta.New()
	handler.InitInfo(info)
	info.SetBool(handler.KeyBigEndian, true)
	info.SetInt(handler.KeyStartOffset, 0)
	info.SetString("chunkname", "images")
	info.SetString("chunkfile", ".dat")
	return info
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
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

// analyzeFixture describes a 348-byte ANALYZE/NIfTI header for tests.
type analyzeFixture struct {
	order         binary.ByteOrder
	magic         string
	dim           []int16 // dim[0] first
	datatype      int16
	pixdim        []float32 // pixdim[0] first
	voxOffset     float32
	sclSlope      float32
	sclInter      float32
	xyztUnits     uint8
	dimInfo       uint8
	sliceStart    int16
	sliceEnd      int16
	sliceCode     uint8
	sliceDuration float32
	qformCode     int16
	quatern       [3]float32
	qoffset       [3]float32
	sformCode     int16
	descrip       string
}

func (s analyzeFixture) bytes() []byte {
	order := s.order
	if order == nil {
		order = binary.LittleEndian
	}
	var b binpkg.Buffer
	w := binpkg.NewWriter(&b, order)
	w.At(analyzeHeaderSize - 1).WriteUint8(0)
	w.At(0).WriteInt32(analyzeHeaderSize)
	w.At(39).WriteUint8(s.dimInfo)
	dw := w.At(40)
	for _, d := range s.dim {
		dw.WriteInt16(d)
	}
	w.At(70).WriteInt16(s.datatype)
	w.At(74).WriteInt16(s.sliceStart)
	pw := w.At(76)
	for _, p := range s.pixdim {
		pw.WriteFloat32(p)
	}
	w.At(108).WriteFloat32(s.voxOffset)
	w.At(112).WriteFloat32(s.sclSlope)
	w.At(116).WriteFloat32(s.sclInter)
	w.At(120).WriteInt16(s.sliceEnd)
	w.At(122).WriteUint8(s.sliceCode)
	w.At(123).WriteUint8(s.xyztUnits)
	w.At(132).WriteFloat32(s.sliceDuration)
	w.At(148).WriteString(s.descrip, 80)
	w.At(252).WriteInt16(s.qformCode)
	w.At(254).WriteInt16(s.sformCode)
	qw := w.At(256)
	for _, q := range s.quatern {
		qw.WriteFloat32(q)
	}
	for _, q := range s.qoffset {
		qw.WriteFloat32(q)
	}
	w.At(344).WriteString(s.magic, 4)
	return b.Bytes()
}
