package formats

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// withChunks inserts ancillary chunks right after IHDR.
func withChunks(data []byte, chunks ...[]byte) []byte {
	const afterIHDR = 8 + 4 + 4 + 13 + 4
	out := append([]byte{}, data[:afterIHDR]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, data[afterIHDR:]...)
}

func pngChunk(kind string, body []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(body)))
	out = append(out, kind...)
	out = append(out, body...)
	crc := crc32.ChecksumIEEE(append([]byte(kind), body...))
	return binary.BigEndian.AppendUint32(out, crc)
}

func TestPNGGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(10 * i)
	}
	modified := time.Date(2003, time.April, 5, 6, 7, 8, 0, time.UTC)
	tIME := binary.BigEndian.AppendUint16(nil, uint16(modified.Year()))
	tIME = append(tIME, 4, 5, 6, 7, 8)
	pHYs := binary.BigEndian.AppendUint32(nil, 2000)
	pHYs = binary.BigEndian.AppendUint32(pHYs, 500)
	pHYs = append(pHYs, 1)
	data := withChunks(encodePNG(t, img),
		pngChunk("tIME", tIME),
		pngChunk("tEXt", []byte("Comment\x00phantom scan")),
		pngChunk("pHYs", pHYs))

	path := writeFile(t, t.TempDir(), "gray.png", data)
	require.True(t, PNGTest(path))
	assert.False(t, NIfTITest(path))

	h, err := NewPNG(path, nil)
	require.NoError(t, err)
	defer h.Destroy()
	assert.Equal(t, "PngDataHandler", h.TypeName())

	info, _ := describe(t, h)
	assert.Equal(t, "xy", info.String(handler.KeyDimstr))
	assert.False(t, info.Has("dv"))
	assert.EqualValues(t, 3, info.Int("dx"))
	assert.EqualValues(t, 2, info.Int("dy"))
	assert.EqualValues(t, 8, info.Int("png_bit_depth"))
	assert.Equal(t, dtype.Uint8, handler.Datatype(info, handler.KeyDatatypeIn))
	assert.Equal(t, "04/05/2003", info.String("date"))
	assert.Equal(t, "06:07:08", info.String("time"))
	assert.Equal(t, "phantom scan", info.String("png_txt_Comment"))
	assert.Equal(t, 0.5, info.Double("voxel_x"))
	assert.Equal(t, 2.0, info.Double("voxel_y"))
	assert.False(t, info.Bool(handler.KeyBigEndian))

	buf := make([]byte, 4)
	require.NoError(t, h.Read(info, 2, 4, dtype.Uint8, buf))
	assert.Equal(t, []byte{20, 30, 40, 50}, buf)

	assert.ErrorIs(t, h.Read(info, 4, 4, dtype.Uint8, buf), handler.ErrStructural)
	assert.ErrorIs(t, h.Read(info, 0, 1, dtype.Int16, buf), handler.ErrUnsupportedConversion)
}

func TestPNGColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 255})
	path := writeFile(t, t.TempDir(), "rgb.png", encodePNG(t, img))

	h, err := NewPNG(path, nil)
	require.NoError(t, err)
	info, _ := describe(t, h)
	assert.Equal(t, "vxy", info.String(handler.KeyDimstr))
	assert.EqualValues(t, 3, info.Int("dv"))
	assert.EqualValues(t, pngRGB, info.Int("png_color_type"))
	assert.False(t, info.Has("date"))

	buf := make([]byte, 6)
	require.NoError(t, h.Read(info, 0, 6, dtype.Uint8, buf))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf)
}

func TestPNGSixteenBit(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 2))
	for i, v := range []uint16{1, 300, 65535, 4096} {
		img.SetGray16(i%2, i/2, color.Gray16{Y: v})
	}
	path := writeFile(t, t.TempDir(), "deep.png", encodePNG(t, img))

	h, err := NewPNG(path, nil)
	require.NoError(t, err)
	info, _ := describe(t, h)
	assert.Equal(t, dtype.Uint16, handler.Datatype(info, handler.KeyDatatypeIn))
	assert.Equal(t, dtype.Uint16, handler.Datatype(info, handler.KeyHandlerOut))

	buf := make([]byte, 8)
	require.NoError(t, h.Read(info, 0, 4, dtype.Uint16, buf))
	for i, want := range []uint16{1, 300, 65535, 4096} {
		assert.Equal(t, want, binary.LittleEndian.Uint16(buf[2*i:]))
	}
}
