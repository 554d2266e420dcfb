package smartreader

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

const lengthDelimiters = ",:;*x- \t"

// parseLengths assigns the integers of a delimited list to prefix+axis
// for each axis of dimstr in turn. With allowElided an empty field leaves
// its axis alone; otherwise it fails the parse.
func parseLengths(info *meta.Info, dimstr, prefix, s string, allowElided bool) bool {
	rest := s
	for i := 0; i < len(dimstr); i++ {
		var field string
		if j := strings.IndexAny(rest, lengthDelimiters); j >= 0 {
			field, rest = rest[:j], rest[j+1:]
		} else {
			field, rest = rest, ""
		}
		if field == "" {
			if allowElided {
				continue
			}
			return false
		}
		n, ok := scanInt(field)
		if !ok {
			return false
		}
		info.SetInt(prefix+dimstr[i:i+1], n)
	}
	return true
}

// scanInt reads a leading decimal integer the way %d does, skipping
// leading blanks and ignoring trailing text.
func scanInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	if end < len(s) && (s[0] == '+' || s[0] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	return n, err == nil
}

// assignSkips turns every skip source into skip.<axis> keys. Axes that
// need no skip get no key, since a skip of 0 forces a break in reading.
func assignSkips(info *meta.Info) {
	dimstr := info.String(handler.KeyDimstr)
	if dimstr == "" {
		return
	}

	if len(dimstr) >= 2 {
		c := dimstr[len(dimstr)-2]
		key := handler.SkipKey(c)
		if !info.Has(key) && info.Int("skip") != 0 {
			info.SetInt(key, info.Int("skip"))
		}
		if info.Int("cl_skip") != 0 {
			info.SetInt(key, info.Int("cl_skip"))
		}

		if len(dimstr) >= 3 {
			key := handler.SkipKey(dimstr[len(dimstr)-3])
			if !info.Has(key) && info.Int("sliceskip") != 0 {
				info.SetInt(key, info.Int("sliceskip"))
			}
			if info.Int("cl_sliceskip") != 0 {
				info.SetInt(key, info.Int("cl_sliceskip"))
			}
		}
	}

	// The command line string has the final say.
	for _, k := range []string{"skipstr", "cl_skipstr"} {
		if info.Has(k) {
			parseLengths(info, dimstr, "skip.", info.String(k), true)
		}
	}
}

// Reconcile resolves keys that share a meaning, letting the overrides win
// over what the handler found.
func Reconcile(ctx context.Context, info *meta.Info) error {
	if info.Has("cl_dim_string") {
		info.SetString(handler.KeyDimstr, info.String("cl_dim_string"))
	}

	if info.Has(handler.KeyDimstr) && info.Has("cl_extent_string") {
		dimstr, extents := info.String(handler.KeyDimstr), info.String("cl_extent_string")
		if !parseLengths(info, dimstr, "d", extents, false) {
			return handler.Errorf(handler.Structural, "reconcile", "",
				"the dimension order <%s> is not consistent with the extents <%s>", dimstr, extents)
		}
	}

	assignSkips(info)

	if v, ok := info.Lookup("cl_autoscale"); ok {
		info.SetBool("autoscale", v.Bool())
	}
	if v, ok := info.Lookup("cl_autoscale_range"); ok {
		info.SetDouble("autoscale_range", v.Double())
	}
	if v, ok := info.Lookup("cl_big_endian_input"); ok {
		info.SetBool(handler.KeyBigEndian, v.Bool())
	}
	if v, ok := info.Lookup("cl_reorder"); ok {
		info.SetBool("reorder", v.Bool())
	}

	if !info.Has(handler.KeyDatatypeOut) {
		out := handler.Datatype(info, handler.KeyHandlerOut)
		if out == dtype.Uint16 {
			out = dtype.Int32
		}
		handler.SetDatatype(info, handler.KeyDatatypeOut, out)
		zerolog.Ctx(ctx).Debug().Str("chunk", info.String("chunkname")).
			Stringer("type", out).Msg("reconciling chunk output type")
	}
	return nil
}

// Check verifies that info describes a transferable chunk.
func Check(info *meta.Info) error {
	fail := func(format string, args ...any) error {
		return handler.Errorf(handler.Structural, "consistency check", "", format, args...)
	}

	if !info.Has(handler.KeyDimstr) {
		return fail("no information available on data dimension order")
	}
	dimstr := info.String(handler.KeyDimstr)
	if !ValidDimString(dimstr) {
		return fail("the dimension string <%s> is inconsistent", dimstr)
	}
	for i := 0; i < len(dimstr); i++ {
		c := dimstr[i]
		v, ok := info.Lookup(handler.ExtentKey(c))
		if !ok {
			return fail("missing extent for dimension %c", c)
		}
		if v.Int() < 1 {
			return fail("extent of dimension %c is not positive", c)
		}
		if v, ok := info.Lookup(handler.SkipKey(c)); ok && v.Int() < 0 {
			return fail("skip of dimension %c is negative", c)
		}
	}

	v, ok := info.Lookup(handler.KeyStartOffset)
	if !ok {
		return fail("initial offset in data is not defined")
	}
	if v.Int() < 0 {
		return fail("start_offset (%d) must be non-negative", v.Int())
	}
	if !info.Has("chunkname") {
		return fail("chunk name for output dataset is unknown")
	}
	if !info.Has("chunkfile") {
		return fail("chunk file for output dataset is unknown")
	}
	return nil
}
