package formats

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCompressedNIfTI(t *testing.T) {
	fx := analyzeFixture{dim: []int16{2, 2, 2}, datatype: 4, pixdim: []float32{1, 1, 1}}
	plain := singleFileNIfTI(fx, putInt16s(binary.LittleEndian, 5, 6, 7, 8))
	path := writeFile(t, t.TempDir(), "vol.nii.gz", gzipBytes(t, plain))

	require.True(t, CompressedTest(path))
	ctx := testContext(t)
	entry, err := Default().Find(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "compressed", entry.Name)

	h, err := Default().Open(ctx, path, nil)
	require.NoError(t, err)
	c, ok := h.(*Compressed)
	require.True(t, ok)
	assert.Equal(t, "gzip(NIFTI Image)", c.TypeName())
	assert.Equal(t, path, c.Name())

	copyPath := c.Inner().Name()
	assert.Equal(t, "vol.nii", filepath.Base(copyPath))

	info, _ := describe(t, c)
	buf := make([]byte, 8)
	require.NoError(t, c.Read(info, info.Int(handler.KeyStartOffset), 4, dtype.Int16, buf))
	assert.Equal(t, []int16{5, 6, 7, 8}, leInt16s(buf))

	require.NoError(t, c.Destroy())
	_, err = os.Stat(filepath.Dir(copyPath))
	assert.True(t, os.IsNotExist(err), "decompressed copy should be removed")
}

func TestCompressedRaw(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(putInt16s(binary.BigEndian, 1, 2, 3))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	path := writeFile(t, t.TempDir(), "slab.zst", buf.Bytes())

	h, err := NewCompressed(testContext(t), handler.Table{RawEntry}, path, nil)
	require.NoError(t, err)
	defer h.Destroy()
	assert.Equal(t, "zstd(raw)", h.TypeName())
	assert.EqualValues(t, 6, h.TotalLength())

	info, _ := describe(t, h)
	handler.SetDatatype(info, handler.KeyDatatypeIn, dtype.Int16)
	out := make([]byte, 6)
	require.NoError(t, h.Read(info, 0, 3, dtype.Int16, out))
	assert.Equal(t, []int16{1, 2, 3}, leInt16s(out))
}

func TestCompressedRejectsPlain(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plain.dat", []byte("!format = pgh\n"))
	assert.False(t, CompressedTest(path))
	_, err := NewCompressed(testContext(t), Default(), path, nil)
	assert.ErrorIs(t, err, handler.ErrStructural)
}
