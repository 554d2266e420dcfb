package handler

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/internal/vec3"
	"github.com/robert-malhotra/go-smartreader/meta"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

// openTracker counts how many fake slices hold an open file.
type openTracker struct {
	open    int
	maxOpen int
}

// fakeSlice is an in-memory int16 slice with a name and header facts.
type fakeSlice struct {
	name      string
	data      []byte
	fill      func(info *meta.Info)
	tracker   *openTracker
	isOpen    bool
	destroyed bool
}

func int16Samples(vals ...int16) []byte {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}

func sliceData(base int16, n int) []byte {
	vals := make([]int16, n)
	for i := range vals {
		vals[i] = base + int16(i)
	}
	return int16Samples(vals...)
}

func (f *fakeSlice) Name() string       { return f.name }
func (f *fakeSlice) TypeName() string   { return "fake slice" }
func (f *fakeSlice) TotalLength() int64 { return int64(len(f.data)) }

func (f *fakeSlice) DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error {
	info.EnsureHash(KeyDefinitions)
	SetDatatype(info, KeyDatatypeIn, dtype.Int16)
	SetDatatype(info, KeyHandlerOut, dtype.Int16)
	info.SetInt(KeyStartOffset, 0)
	if f.fill != nil {
		f.fill(info)
	}
	return nil
}

func (f *fakeSlice) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if !f.isOpen {
		return Errorf(IO, "fake read", f.name, "read while closed")
	}
	if want != dtype.Int16 {
		return Errorf(UnsupportedConversion, "fake read", f.name, "want %s", want)
	}
	end := offset + int64(2*n)
	if offset < 0 || end > int64(len(f.data)) {
		return Errorf(Structural, "fake read", f.name, "out of range")
	}
	copy(dst, f.data[offset:end])
	return nil
}

func (f *fakeSlice) Close() error {
	if f.isOpen {
		f.isOpen = false
		f.tracker.open--
	}
	return nil
}

func (f *fakeSlice) Reopen() error {
	if !f.isOpen {
		f.isOpen = true
		f.tracker.open++
		if f.tracker.open > f.tracker.maxOpen {
			f.tracker.maxOpen = f.tracker.open
		}
	}
	return nil
}

func (f *fakeSlice) Compare(other Handler) int { return strings.Compare(f.name, other.Name()) }

func (f *fakeSlice) Destroy() error {
	f.destroyed = true
	return f.Close()
}

// taggedSlice is a 4x4x1 slice carrying an integer z position tag.
func taggedSlice(tr *openTracker, name string, z int64, base int16) *fakeSlice {
	return &fakeSlice{
		name:    name,
		data:    sliceData(base, 16),
		tracker: tr,
		fill: func(info *meta.Info) {
			info.SetString(KeyDimstr, "xyz")
			info.SetInt("dx", 4)
			info.SetInt("dy", 4)
			info.SetInt("dz", 1)
			info.SetInt("z", z)
		},
	}
}

// cornerSlice is a 4x4x1 axial slice with unit voxels at height pos.
func cornerSlice(tr *openTracker, name string, pos float64, base int16) *fakeSlice {
	return &fakeSlice{
		name:    name,
		data:    sliceData(base, 16),
		tracker: tr,
		fill: func(info *meta.Info) {
			info.SetString(KeyDimstr, "xyz")
			info.SetInt("dx", 4)
			info.SetInt("dy", 4)
			info.SetInt("dz", 1)
			info.SetDouble("voxel_x", 1)
			info.SetDouble("voxel_y", 1)
			info.SetDouble("voxel_z", 1)
			vec3.Set(info, "slice_tlc", vec3.New(0, 0, pos))
			vec3.Set(info, "slice_trc", vec3.New(4, 0, pos))
			vec3.Set(info, "slice_brc", vec3.New(4, -4, pos))
		},
	}
}

// tiltedSlice is a cornerSlice rotated about y so that its x and z axes
// make an angle with cosine cos against an untilted slice. It sits pos
// along its own normal from the origin.
func tiltedSlice(tr *openTracker, name string, pos, cos float64, base int16) *fakeSlice {
	v := cornerSlice(tr, name, pos, base)
	sin := math.Sqrt(1 - cos*cos)
	slice := v.fill
	v.fill = func(info *meta.Info) {
		slice(info)
		tlc := vec3.New(pos*sin, 0, pos*cos)
		trc := vec3.Add(tlc, vec3.New(4*cos, 0, -4*sin))
		vec3.Set(info, "slice_tlc", tlc)
		vec3.Set(info, "slice_trc", trc)
		vec3.Set(info, "slice_brc", vec3.Add(trc, vec3.New(0, -4, 0)))
	}
	return v
}

// cornerVolume is a 4x4xdz axial stack with unit voxels whose first
// slice sits at height pos.
func cornerVolume(tr *openTracker, name string, dz int64, pos float64, base int16) *fakeSlice {
	v := cornerSlice(tr, name, pos, base)
	v.data = sliceData(base, int(16*dz))
	slice := v.fill
	v.fill = func(info *meta.Info) {
		slice(info)
		info.SetInt("dz", dz)
	}
	return v
}

// shapedSlice has an arbitrary shape and no position information.
func shapedSlice(tr *openTracker, name, dimstr string, extents ...int64) *fakeSlice {
	n := int64(1)
	for _, e := range extents {
		n *= e
	}
	return &fakeSlice{
		name:    name,
		data:    sliceData(0, int(n)),
		tracker: tr,
		fill: func(info *meta.Info) {
			info.SetString(KeyDimstr, dimstr)
			for i := 0; i < len(dimstr); i++ {
				info.SetInt(ExtentKey(dimstr[i]), extents[i])
			}
		},
	}
}

func names(hs []Handler) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name()
	}
	return out
}
