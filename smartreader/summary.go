package smartreader

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// WriteSummary prints the "#" prefixed description of the first chunk.
func WriteSummary(w io.Writer, info *meta.Info, h handler.Handler) {
	p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) }

	if tag := info.String("tag"); tag != "" {
		p("#      This data has the scan id <%s>\n", tag)
	}
	p("#      This data is being read from a %s\n", h.TypeName())
	p("#      Input Data-type: %s, Output Data-type: %s\n",
		handler.Datatype(info, handler.KeyDatatypeIn), handler.Datatype(info, handler.KeyDatatypeOut))
	if info.Has("pulse_seq") {
		p("#      Scan was acquired with pulse sequence <%s>\n", info.String("pulse_seq"))
	}
	if info.Has("plane") {
		p("#      Scan plane believed to be %s\n", info.String("plane"))
	}
	if dimstr := info.String(handler.KeyDimstr); dimstr != "" {
		p("#      Dataset dimensions are <%s>\n", dimstr)
		extents := make([]string, len(dimstr))
		for i := range extents {
			extents[i] = strconv.FormatInt(info.Int(handler.ExtentKey(dimstr[i])), 10)
		}
		p("#      extents in order are %s\n", strings.Join(extents, ":"))
	}
	if info.Has("dx_resampled") {
		p("#      Expected resampled X resolution: %d\n", info.Int("dx_resampled"))
	}
	if info.Has("TR") && info.Has("TE") {
		p("#      TR= %d us, TE= %d us\n", info.Int("TR"), info.Int("TE"))
	}
	if info.Has("fov_x") && info.Has("fov_y") {
		p("#      Field of View X= %g mm, Y= %g mm\n", info.Double("fov_x"), info.Double("fov_y"))
	}
	if info.Has("image_x") && info.Has("image_y") {
		p("#      Image X= %g voxels, Y= %g voxels\n", info.Double("image_x"), info.Double("image_y"))
	}
	if info.Has("overscan") {
		p("#      Scan includes %d lines past Ky=0\n", info.Int("overscan"))
	}

	voxels := info.Has("voxel_x") && info.Has("voxel_y")
	if voxels {
		p("#      Voxel X= %g mm, Y= %g mm", info.Double("voxel_x"), info.Double("voxel_y"))
	}
	switch {
	case info.Has("slice_thickness") && info.Has("slice_gap"):
		if voxels {
			p("\n")
		}
		p("#      Slice thickness %g mm, gap %g mm\n", info.Double("slice_thickness"), info.Double("slice_gap"))
	case voxels && info.Has("voxel_z"):
		p(", Z= %g mm\n", info.Double("voxel_z"))
	case voxels:
		p("\n")
	}

	if info.Has("date") && info.Has("time") {
		p("#      Scan acquired %s %s\n", info.String("date"), info.String("time"))
	}
	if info.Bool("xchop") {
		p("#      Data should be phase chopped in X\n")
	}
	if info.Bool("ychop") {
		p("#      Data should be phase chopped in Y\n")
	}
	if info.Bool("autoscale") {
		p("#      Will autoscale to approximate range %g\n", info.Double("autoscale_range"))
	}
}

// Dump lists every key of info in sorted order with its definition.
func Dump(w io.Writer, info *meta.Info) {
	defs := info.Hash(handler.KeyDefinitions)
	if defs == nil {
		defs = meta.New()
	}

	fmt.Fprintf(w, "Available information is:\n")
	for _, key := range info.Keys() {
		v, _ := info.Lookup(key)
		def := defs.String(key)
		if def == "" && strings.Contains(key, "datatype_") {
			def = fmt.Sprintf("%d means %s", v.Int(), handler.Datatype(info, key))
		}
		switch v.Kind() {
		case meta.KindHash:
			fmt.Fprintf(w, "%21s: **hash**\n", key)
		case meta.KindInt:
			fmt.Fprintf(w, "%21s: %-9d\t%s\n", key, v.Int(), def)
		case meta.KindDouble:
			fmt.Fprintf(w, "%21s: %-9g\t%s\n", key, v.Double(), def)
		default:
			fmt.Fprintf(w, "%21s: %-9s\t%s\n", key, v.String(), def)
		}
	}
	fmt.Fprintf(w, "\n")
}
