package handler

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/meta"
)

// pickDim chooses the letter for a new slowest axis.
func pickDim(info *meta.Info) (byte, error) {
	dimstr := info.String(KeyDimstr)
	switch dimstr {
	case "", "xyz", "vxyz":
		return 't', nil
	case "xy", "vxy":
		return 'z', nil
	case "x", "vx":
		return 'y', nil
	}
	for c := byte('a'); c <= 'z'; c++ {
		if strings.IndexByte(dimstr, c) < 0 {
			return c, nil
		}
	}
	return 0, Errorf(Structural, "multi describe", "", "can't find an unused dimension index for %q", dimstr)
}

// useLastDim reports whether the slowest existing axis can absorb the
// children instead of a new axis being appended.
func (m *Multi) useLastDim(info *meta.Info) bool {
	if m.concat {
		return true
	}
	dimstr := info.String(KeyDimstr)
	if dimstr == "" {
		return false
	}
	return info.Int(ExtentKey(dimstr[len(dimstr)-1])) == 1
}

// deriveCollectiveInfo describes the whole collection in info.
func (m *Multi) deriveCollectiveInfo(ctx context.Context, info *meta.Info) error {
	info.SetInt(KeyStartOffset, 0)

	buf := info.String(KeyDimstr)
	var lastDim, appendDim byte
	if buf != "" {
		lastDim = buf[len(buf)-1]
	}
	var lastExtent, appendExtent int
	needsVolume := false
	count := len(m.kids)

	appendLast := func() error {
		c, err := pickDim(info)
		if err != nil {
			return err
		}
		lastDim = c
		buf += string(c)
		info.SetString(KeyDimstr, buf)
		return nil
	}
	pickAppend := func() error {
		c, err := pickDim(info)
		appendDim = c
		return err
	}

	// Concatenated children keep their own slowest extents, so they are
	// never folded by position.
	var orderly bool
	var sliceRange, reps int
	if !m.concat {
		var err error
		orderly, sliceRange, reps, err = m.isOrderlyVolume(ctx, info)
		if err != nil {
			return err
		}
	}

	switch {
	case orderly && (lastDim == 'x' || lastDim == 'y' || lastDim == 'z'):
		needsVolume = true
		lastExtent, appendExtent = sliceRange, reps
		switch {
		case m.useLastDim(info):
			if appendExtent > 1 {
				if err := pickAppend(); err != nil {
					return err
				}
			} else {
				appendExtent = 0
			}
		case appendExtent > 1:
			// a slice axis and a time axis
			if err := appendLast(); err != nil {
				return err
			}
			if err := pickAppend(); err != nil {
				return err
			}
		default:
			// only a slice axis; the existing slowest axis keeps its extent
			if err := pickAppend(); err != nil {
				return err
			}
			appendExtent = lastExtent
			lastExtent = 0
		}

	case orderly:
		// orderly, but not made of slices
		lastExtent = count
		if !m.useLastDim(info) {
			if err := appendLast(); err != nil {
				return err
			}
		}

	case m.useLastDim(info):
		if m.concat {
			for _, k := range m.kids {
				lastExtent += int(k.info.Int(ExtentKey(lastDim)))
			}
		} else {
			lastExtent = count
		}

	default:
		if err := pickAppend(); err != nil {
			return err
		}
		appendExtent = count
	}

	// break reads at child boundaries
	var skipDim byte
	if len(buf) > 1 {
		if i := strings.IndexByte(buf, lastDim); i > 0 {
			skipDim = buf[i-1]
		}
	}

	if appendExtent != 0 {
		buf += string(appendDim)
		info.SetString(KeyDimstr, buf)
		info.SetInt(ExtentKey(appendDim), int64(appendExtent))
	}
	if lastExtent != 0 {
		info.SetString(KeyDimstr, buf)
		info.SetInt(ExtentKey(lastDim), int64(lastExtent))
	}
	if skipDim != 0 && !info.Has(SkipKey(skipDim)) {
		info.SetInt(SkipKey(skipDim), 0)
	}

	dimstr := info.String(KeyDimstr)
	if !needsVolume || !strings.Contains(dimstr, "x") || !strings.Contains(dimstr, "y") || !strings.Contains(dimstr, "z") {
		return nil
	}
	if !m.reorderSlicesToFormVolume(ctx, info) {
		return nil
	}
	ok, err := m.locateVolumeCorners(info)
	if err != nil || !ok {
		return err
	}
	info.SetString("description."+string(lastDim), "gridded image-space")
	info.SetBool("reorder", false)
	m.setReorderPattern(info)
	return nil
}

// reorderSlicesToFormVolume puts the children of each repeat into spatial
// order. Repeats stay in arrival order.
func (m *Multi) reorderSlicesToFormVolume(ctx context.Context, info *meta.Info) bool {
	log := zerolog.Ctx(ctx)
	dimstr := info.String(KeyDimstr)
	count := len(m.kids)

	dt := int(info.Int(ExtentKey(dimstr[len(dimstr)-1])))
	var dz int
	if dt == count {
		dz, dt = dt, 1
	} else {
		dz = int(info.Int(ExtentKey(dimstr[len(dimstr)-2])))
	}
	if dz*dt != count || len(m.firstVolume) != dz {
		log.Warn().Int("dz", dz).Int("dt", dt).Int("files", count).
			Msg("cannot verify slice order; files are not one slice each")
		return false
	}

	table := make([]*child, count)
	copy(table, m.kids)
	out := m.kids[:0]
	for t := 0; t < dt; t++ {
		for _, e := range m.firstVolume {
			out = append(out, table[t*dz+e.index])
		}
	}
	m.kids = out
	return true
}

// setReorderPattern records the acquisition interleave of the first volume.
func (m *Multi) setReorderPattern(info *meta.Info) {
	order := make([]int, len(m.firstVolume))
	for rank, e := range m.firstVolume {
		order[rank] = e.index
	}
	info.SetString("reorder_pattern", formatSlicePattern(InvertSlicePattern(order)))
}
