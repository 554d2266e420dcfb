package formats

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/internal/vec3"
)

// dicomElement encodes one explicit VR little-endian element.
func dicomElement(group, element uint16, vr string, value []byte) []byte {
	if len(value)%2 == 1 {
		pad := byte(' ')
		if vr == "UI" || vr == "OB" {
			pad = 0
		}
		value = append(value, pad)
	}
	out := binary.LittleEndian.AppendUint16(nil, group)
	out = binary.LittleEndian.AppendUint16(out, element)
	out = append(out, vr...)
	switch vr {
	case "OB", "OW", "SQ", "UN", "UT":
		out = append(out, 0, 0)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(value)))
	default:
		out = binary.LittleEndian.AppendUint16(out, uint16(len(value)))
	}
	return append(out, value...)
}

func us(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

type dicomFixture struct {
	instance string
	series   string
	pixels   []int16
}

func (s dicomFixture) bytes() []byte {
	group2 := dicomElement(0x0002, 0x0010, "UI", []byte(explicitVRLittleEndian))
	out := make([]byte, dicomMagicOffset)
	out = append(out, dicomMagic...)
	out = append(out, dicomElement(0x0002, 0x0000, "UL", binary.LittleEndian.AppendUint32(nil, uint32(len(group2))))...)
	out = append(out, group2...)

	for _, e := range [][]byte{
		dicomElement(0x0018, 0x0050, "DS", []byte("2")),
		dicomElement(0x0018, 0x0080, "DS", []byte("1500")),
		dicomElement(0x0018, 0x0081, "DS", []byte("30")),
		dicomElement(0x0020, 0x000E, "UI", []byte(s.series)),
		dicomElement(0x0020, 0x0013, "IS", []byte(s.instance)),
		dicomElement(0x0020, 0x0032, "DS", []byte(`10\20\30`)),
		dicomElement(0x0020, 0x0037, "DS", []byte(`1\0\0\0\1\0`)),
		dicomElement(0x0028, 0x0010, "US", us(2)),
		dicomElement(0x0028, 0x0011, "US", us(3)),
		dicomElement(0x0028, 0x0030, "DS", []byte(`0.5\0.75`)),
		dicomElement(0x0028, 0x0100, "US", us(16)),
		dicomElement(0x0028, 0x0103, "US", us(1)),
		dicomElement(0x7FE0, 0x0010, "OW", putInt16s(binary.LittleEndian, s.pixels...)),
	} {
		out = append(out, e...)
	}
	return out
}

func TestDICOM(t *testing.T) {
	dir := t.TempDir()
	fx := dicomFixture{instance: "7", series: "1.2.3", pixels: []int16{-1, 2, -3, 4, -5, 6}}
	path := writeFile(t, dir, "slice7.dcm", fx.bytes())
	require.True(t, DICOMTest(path))
	assert.False(t, PghTest(path))

	h, err := NewDICOM(path, nil)
	require.NoError(t, err)
	defer h.Destroy()

	info, _ := describe(t, h)
	assert.Equal(t, "xy", info.String(handler.KeyDimstr))
	assert.EqualValues(t, 3, info.Int("dx"))
	assert.EqualValues(t, 2, info.Int("dy"))
	assert.Equal(t, dtype.Int16, handler.Datatype(info, handler.KeyDatatypeIn))
	assert.False(t, info.Bool(handler.KeyBigEndian))
	assert.Equal(t, explicitVRLittleEndian, info.String("dicom_transfer_syntax"))
	assert.Equal(t, h.TotalLength()-12, info.Int(handler.KeyStartOffset))
	assert.Equal(t, 0.75, info.Double("voxel_x"))
	assert.Equal(t, 0.5, info.Double("voxel_y"))
	assert.Equal(t, 2.0, info.Double("slice_thickness"))
	assert.EqualValues(t, 1500000, info.Int("TR"))
	assert.EqualValues(t, 30000, info.Int("TE"))
	assert.EqualValues(t, 7, info.Int("dicom_instance"))
	assert.Equal(t, "1.2.3", info.String("dicom_series_uid"))

	assertVec(t, info, "slice_tlc", vec3.New(10, -20, -30))
	assertVec(t, info, "slice_trc", vec3.New(11.5, -20, -30))
	assertVec(t, info, "slice_blc", vec3.New(10, -20.5, -30))
	assertVec(t, info, "slice_brc", vec3.New(11.5, -20.5, -30))
	assertVec(t, info, "slice_norm", vec3.New(0, 0, -1))

	buf := make([]byte, 12)
	require.NoError(t, h.Read(info, info.Int(handler.KeyStartOffset), 6, dtype.Int16, buf))
	assert.Equal(t, fx.pixels, leInt16s(buf))
}

func TestDICOMCompareByInstance(t *testing.T) {
	dir := t.TempDir()
	open := func(name, instance string) handler.Handler {
		fx := dicomFixture{instance: instance, series: "1.2.3", pixels: make([]int16, 6)}
		h, err := NewDICOM(writeFile(t, dir, name, fx.bytes()), nil)
		require.NoError(t, err)
		describe(t, h)
		return h
	}
	// names sort opposite to the instance numbers
	a := open("a.dcm", "10")
	b := open("b.dcm", "2")
	assert.Equal(t, 1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(a))
}

func TestDICOMTestRejects(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, DICOMTest(writeFile(t, dir, "short", []byte("DICM"))))
	assert.False(t, DICOMTest(writeFile(t, dir, "zeros", make([]byte, 200))))
}
