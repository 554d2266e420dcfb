package formats

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	var names []string
	for _, e := range Default() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Pittsburgh MRI", "compressed", "DICOM", "NIfTI-1", "ANALYZE", "PNG", "raw"}, names)
}

func TestDefaultTableDispatch(t *testing.T) {
	dir := t.TempDir()
	nifti := analyzeFixture{magic: niftiPairMagic, dim: []int16{1, 2}, datatype: 4}
	writeFile(t, dir, "pair.img", make([]byte, 4))
	analyze := analyzeFixture{dim: []int16{1, 2}, datatype: 4}
	writeFile(t, dir, "old.img", make([]byte, 4))

	tests := []struct {
		path string
		want string
	}{
		{writeFile(t, dir, "h.mri", []byte("!format = pgh\n")), "Pittsburgh MRI"},
		{writeFile(t, dir, "pair.hdr", nifti.bytes()), "NIfTI-1"},
		{writeFile(t, dir, "old.hdr", analyze.bytes()), "ANALYZE"},
		{writeFile(t, dir, "s.dcm", dicomFixture{instance: "1", series: "1", pixels: []int16{0}}.bytes()), "DICOM"},
		{writeFile(t, dir, "slab.raw", putInt16s(binary.BigEndian, 123, 456)), "raw"},
	}
	ctx := testContext(t)
	for _, tt := range tests {
		e, err := Default().Find(ctx, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, e.Name, tt.path)
	}
}
