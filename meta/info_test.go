package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedAccess(t *testing.T) {
	in := New()
	in.SetString("dimstr", "xyz")
	in.SetInt("dx", 64)
	in.SetDouble("voxel_x", 0.75)
	in.SetBool("reorder", true)

	assert.Equal(t, "xyz", in.String("dimstr"))
	assert.EqualValues(t, 64, in.Int("dx"))
	assert.Equal(t, 64.0, in.Double("dx"))
	assert.Equal(t, "0.75", in.String("voxel_x"))
	assert.EqualValues(t, 0, in.Int("voxel_x"))
	assert.Equal(t, "TRUE", in.String("reorder"))
	assert.EqualValues(t, 1, in.Int("reorder"))

	assert.False(t, in.Has("dy"))
	assert.Equal(t, "", in.String("dy"))
	assert.EqualValues(t, 0, in.Int("dy"))

	v, ok := in.Lookup("dx")
	require.True(t, ok)
	assert.Equal(t, KindInt, v.Kind())

	in.Delete("dx")
	assert.False(t, in.Has("dx"))
	assert.Equal(t, []string{"dimstr", "reorder", "voxel_x"}, in.Keys())
}

func TestStringNumbers(t *testing.T) {
	in := New()
	in.SetString("dz", "12")
	in.SetString("voxel_z", "2.5")
	assert.EqualValues(t, 12, in.Int("dz"))
	assert.Equal(t, 2.5, in.Double("voxel_z"))
	assert.False(t, in.Bool("dz"))
}

func TestHashes(t *testing.T) {
	in := New()
	defs := in.EnsureHash("definitions")
	defs.SetString("dx", "x extent")
	assert.Same(t, defs, in.EnsureHash("definitions"))
	assert.Equal(t, "**hash**", in.String("definitions"))
	assert.Nil(t, in.Hash("dimstr"))

	clone := in.Clone()
	clone.Hash("definitions").SetString("dy", "y extent")
	assert.False(t, defs.Has("dy"))
}

func TestCopyUniqueExceptHashes(t *testing.T) {
	src := New()
	src.SetInt("dx", 8)
	src.SetString("dimstr", "xy")
	src.EnsureHash("definitions")

	dst := New()
	dst.SetInt("dx", 4)
	dst.CopyUniqueExceptHashes(src)
	assert.EqualValues(t, 8, dst.Int("dx"))
	assert.Equal(t, "xy", dst.String("dimstr"))
	assert.False(t, dst.Has("definitions"))

	dst.CopyUniqueExceptHashes(nil)
	assert.Equal(t, 2, dst.Len())
}
