package handler

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/internal/vec3"
	"github.com/robert-malhotra/go-smartreader/meta"
)

const (
	// Two unit vectors align when their dot product is at least this.
	alignedDotLimit = 0.99999
	// Largest in-plane drift tolerated between stacked slices.
	stepSizeMargin = 0.00005
	// Slices closer than this along the normal share a position.
	sameSlicePosition = 0.0005
)

// frame is a slice's top-left corner and unit axes.
type frame struct {
	tlc     vec3.Vec
	x, y, z vec3.Vec
}

// sliceFrame derives the orientation of a slice from its slice_tlc,
// slice_trc and slice_brc corners.
func sliceFrame(info *meta.Info) (frame, bool) {
	tlc, ok1 := vec3.Get(info, "slice_tlc")
	trc, ok2 := vec3.Get(info, "slice_trc")
	brc, ok3 := vec3.Get(info, "slice_brc")
	if !ok1 || !ok2 || !ok3 {
		return frame{}, false
	}
	x, ok := vec3.Normalize(vec3.Sub(trc, tlc))
	if !ok {
		return frame{}, false
	}
	y, ok := vec3.Normalize(vec3.Sub(trc, brc))
	if !ok {
		return frame{}, false
	}
	return frame{tlc: tlc, x: x, y: y, z: vec3.Cross(x, y)}, true
}

func aligned(a, b vec3.Vec) bool {
	return vec3.Dot(a, b) >= alignedDotLimit
}

// displacement checks that the slice described by info is parallel to ref
// and stacked straight along its normal, and returns its distance from ref
// along that normal.
func (ref frame) displacement(info *meta.Info) (float64, bool) {
	f, ok := sliceFrame(info)
	if !ok {
		return 0, false
	}
	if !aligned(f.x, ref.x) || !aligned(f.y, ref.y) || !aligned(f.z, ref.z) {
		return 0, false
	}
	delta := vec3.Sub(f.tlc, ref.tlc)
	disp := vec3.Dot(delta, f.z)
	if disp < stepSizeMargin {
		// back around to another copy of the first slice
		return disp, true
	}
	dn, _ := vec3.Normalize(delta)
	if vec3.Dot(dn, f.x) > stepSizeMargin || vec3.Dot(dn, f.y) > stepSizeMargin {
		return disp, false
	}
	return disp, true
}

// sliceEntry is the first occurrence of a slice position.
type sliceEntry struct {
	disp  float64
	index int // arrival index of the first occurrence
	seen  int
}

// positions keeps entries sorted by displacement. Displacements within
// sameSlicePosition of each other are the same position.
type positions []*sliceEntry

func (p positions) find(disp float64) (int, bool) {
	i := sort.Search(len(p), func(i int) bool { return p[i].disp >= disp-sameSlicePosition })
	return i, i < len(p) && math.Abs(p[i].disp-disp) <= sameSlicePosition
}

func (p *positions) insertAt(i int, e *sliceEntry) {
	*p = append(*p, nil)
	copy((*p)[i+1:], (*p)[i:])
	(*p)[i] = e
}

const (
	positionNone = iota
	positionTag
	positionCorners
)

// isOrderlyVolume clusters the children by slice position. It returns
// whether the positions repeat with a consistent period, the number of
// distinct positions and the number of repeats.
//
// Positions come from slice corners when the merged info has them, or
// else from an integer tag named after the slowest axis.
func (m *Multi) isOrderlyVolume(ctx context.Context, info *meta.Info) (valid bool, sliceRange, reps int, err error) {
	log := zerolog.Ctx(ctx)
	dimstr := info.String(KeyDimstr)
	if dimstr == "" {
		return false, 0, 0, nil
	}
	tag := dimstr[len(dimstr)-1:]

	mode := positionNone
	switch {
	case vec3.Has(info, "slice_tlc") && vec3.Has(info, "slice_trc") && vec3.Has(info, "slice_brc"):
		mode = positionCorners
	case info.Has(tag):
		mode = positionTag
		// the first child's copy means nothing for the whole collection
		info.Delete(tag)
	default:
		return false, 0, 0, nil
	}

	var (
		ref        frame
		firstTag   int64
		sorted     positions
		repeats    bool
		highest    int
		misaligned bool
	)
	valid = true
	m.firstVolume = nil

	for count, k := range m.kids {
		var disp float64
		switch {
		case count == 0 && mode == positionTag:
			firstTag = k.info.Int(tag)
		case count == 0:
			var ok bool
			if ref, ok = sliceFrame(k.info); !ok {
				return false, 0, 0, Errorf(Structural, "multi describe", k.h.Name(),
					"unexpectedly failed to find orientation of first slice")
			}
		case mode == positionTag:
			disp = float64(k.info.Int(tag) - firstTag)
		default:
			var ok bool
			disp, ok = ref.displacement(k.info)
			if !ok {
				if !misaligned {
					log.Warn().Str("path", k.h.Name()).Msg("slice is not aligned with the first slice")
					misaligned = true
				}
				valid = false
			}
		}

		i, found := sorted.find(disp)
		if !found {
			if repeats {
				if valid {
					log.Warn().Str("path", k.h.Name()).Msg("irregular slice pattern")
				}
				valid = false
			}
			e := &sliceEntry{disp: disp, index: count, seen: 1}
			sorted.insertAt(i, e)
			m.firstVolume = append(m.firstVolume, e)
			continue
		}

		match := sorted[i]
		match.seen++
		if !repeats {
			sliceRange = len(m.firstVolume)
			repeats = true
		}
		if count%sliceRange != match.index || match.seen < highest {
			if valid {
				log.Warn().Str("path", k.h.Name()).Msg("slice sequence is inconsistent")
			}
			valid = false
		}
		if match.seen > highest {
			highest = match.seen
		}
	}
	if !repeats {
		sliceRange = len(m.firstVolume)
	}

	shown := false
	for _, e := range m.firstVolume {
		if reps == 0 {
			reps = e.seen
			continue
		}
		if e.seen != reps {
			if !shown {
				log.Warn().Msg("different counts for different slices")
				shown = true
			}
			valid = false
		}
	}

	sort.SliceStable(m.firstVolume, func(i, j int) bool {
		return m.firstVolume[i].disp < m.firstVolume[j].disp
	})

	log.Debug().Bool("valid", valid).Int("slice_range", sliceRange).Int("reps", reps).
		Int("count", len(m.kids)).Msg("slice fold")
	return valid, sliceRange, reps, nil
}

// locateVolumeCorners computes the eight corners of the volume from the
// first two children. It reports false when the children carry no corner
// information.
func (m *Multi) locateVolumeCorners(info *meta.Info) (bool, error) {
	if len(m.kids) < 2 {
		return false, nil
	}
	s1, s2 := m.kids[0].info, m.kids[1].info
	if !s1.Has("slice_tlc.0") || !s2.Has("slice_tlc.0") {
		return false, nil
	}
	ref, ok := sliceFrame(s1)
	if !ok {
		return false, nil
	}
	sep, ok := ref.displacement(s2)
	if !ok {
		return false, nil
	}
	if sep <= 0 {
		return false, Errorf(Structural, "multi describe", m.kids[1].h.Name(),
			"unexpectedly found inverted or coplanar slices")
	}

	info.SetDouble("slice_thickness", info.Double("voxel_z"))
	info.SetDouble("slice_gap", sep-info.Double("voxel_z"))
	info.SetDouble("voxel_z", sep)

	ex := float64(info.Int("dx")) * info.Double("voxel_x")
	ey := float64(info.Int("dy")) * info.Double("voxel_y")
	ez := float64(info.Int("dz")) * info.Double("voxel_z")

	blb := ref.tlc
	blf := vec3.XPlusBY(blb, -ey, ref.y)
	brb := vec3.XPlusBY(blb, ex, ref.x)
	brf := vec3.XPlusBY(blf, ex, ref.x)

	corners := []struct {
		name string
		v    vec3.Vec
	}{
		{"tlf", vec3.XPlusBY(blf, ez, ref.z)},
		{"trf", vec3.XPlusBY(brf, ez, ref.z)},
		{"tlb", vec3.XPlusBY(blb, ez, ref.z)},
		{"trb", vec3.XPlusBY(brb, ez, ref.z)},
		{"blf", blf},
		{"brf", brf},
		{"blb", blb},
		{"brb", brb},
	}
	for _, c := range corners {
		vec3.Set(info, c.name, c.v)
	}
	return true, nil
}
