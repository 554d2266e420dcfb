package formats

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// pairedBase reads samples from a data file while answering to the name of
// the header file that described it.
type pairedBase struct {
	*handler.Base
	header string
}

func newPairedBase(header, data, typeName string) (*pairedBase, error) {
	b, err := handler.NewBase(data, typeName)
	if err != nil {
		return nil, err
	}
	return &pairedBase{Base: b, header: header}, nil
}

func (p *pairedBase) Name() string { return p.header }

func (p *pairedBase) Compare(other handler.Handler) int {
	return strings.Compare(p.header, other.Name())
}

// imageCompanion returns the .img file paired with a .hdr header.
func imageCompanion(header string) string {
	return strings.TrimSuffix(header, filepath.Ext(header)) + ".img"
}

// Analyze reads ANALYZE 7.5 .hdr/.img pairs.
type Analyze struct {
	*pairedBase
}

// NewAnalyze creates a handler for the .hdr file at path.
func NewAnalyze(path string, info *meta.Info) (handler.Handler, error) {
	if filepath.Ext(path) != ".hdr" {
		return nil, handler.Errorf(handler.Structural, "analyze open", path,
			"extension of an ANALYZE header is not .hdr")
	}
	p, err := newPairedBase(path, imageCompanion(path), "ANALYZE Image")
	if err != nil {
		return nil, err
	}
	return &Analyze{pairedBase: p}, nil
}

// AnalyzeTest accepts a header file of exactly 348 bytes with a matching
// sizeof_hdr and an .img companion.
func AnalyzeTest(path string) bool {
	st, err := os.Stat(path)
	if err != nil || st.Size() != analyzeHeaderSize {
		return false
	}
	if _, ok := sniffAnalyzeHeader(path); !ok {
		return false
	}
	_, err = os.Stat(imageCompanion(path))
	return err == nil
}

var analyzeTypes = map[int16]struct {
	d  dtype.Datatype
	dv int64
}{
	2:   {dtype.Uint8, 0},
	4:   {dtype.Int16, 0},
	8:   {dtype.Int32, 0},
	16:  {dtype.Float32, 0},
	32:  {dtype.Float32, 2}, // complex
	64:  {dtype.Float64, 0},
	128: {dtype.Uint8, 3}, // RGB
}

// DescribeStructure parses the header.
func (a *Analyze) DescribeStructure(ctx context.Context, info *meta.Info, stack *handler.Stack) error {
	if err := a.Base.DescribeStructure(ctx, info, stack); err != nil {
		return err
	}
	defs := info.EnsureHash(handler.KeyDefinitions)
	log := zerolog.Ctx(ctx)

	h, err := readAnalyzeHeader(a.header)
	if err != nil {
		return &handler.Error{Kind: handler.Structural, Op: "analyze header", Path: a.header, Err: err}
	}
	info.SetBool(handler.KeyBigEndian, h.bigEndian())
	if h.compressed != 0 {
		log.Warn().Str("path", a.header).Msg("header indicates compressed image data")
	}

	for _, s := range []struct{ key, value string }{
		{"ANALYZE_vox_units", h.voxUnits},
		{"ANALYZE_cal_units", h.calUnits},
		{"ANALYZE_description", h.descrip},
		{"ANALYZE_db_name", h.dbName},
		{"ANALYZE_nifti_magic", h.magic},
	} {
		if s.value != "" {
			info.SetString(s.key, s.value)
		}
	}

	t, ok := analyzeTypes[h.datatype]
	if !ok {
		return handler.Errorf(handler.Structural, "analyze header", a.header,
			"unsupported or missing datatype code %d", h.datatype)
	}
	handler.SetDatatype(info, handler.KeyDatatypeIn, t.d)
	handler.SetDatatype(info, handler.KeyHandlerOut, t.d)

	ndim := int(h.dim[0])
	if ndim > 7 {
		ndim = 7
	}
	if ndim < 1 {
		return handler.Errorf(handler.Structural, "analyze header", a.header,
			"dim[0] is %d", h.dim[0])
	}
	if t.dv != 0 {
		info.SetInt("dv", t.dv)
		info.SetString(handler.KeyDimstr, "vxyztabc"[:ndim+1])
	} else {
		info.SetString(handler.KeyDimstr, "xyztabc"[:ndim])
	}
	for i := 1; i <= ndim; i++ {
		axis := "xyztabc"[i-1]
		info.SetInt(handler.ExtentKey(axis), int64(h.dim[i]))
		if i <= 4 {
			info.SetString("description."+string(axis), "gridded image-space")
		}
	}

	for i, v := range []struct{ key, def string }{
		{"voxel_x", "X voxel size (mm)"},
		{"voxel_y", "Y voxel size (mm)"},
		{"voxel_z", "Z voxel size including gap (mm)"},
		{"voxel_t", "t voxel size"},
	} {
		if d := h.pixdim[i+1]; d != 0 {
			info.SetDouble(v.key, float64(d))
			defs.SetString(v.key, v.def)
		}
	}

	switch {
	case h.voxOffset > 0:
		info.SetInt(handler.KeyStartOffset, rint(h.voxOffset))
	case h.voxOffset < 0:
		info.SetInt("sliceskip", rint(-h.voxOffset))
	}
	return nil
}
