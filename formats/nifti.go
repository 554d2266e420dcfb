package formats

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/internal/vec3"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// NIfTI-1 magic strings.
const (
	niftiPairMagic   = "ni1" // header and data in separate files
	niftiSingleMagic = "n+1"
)

// NIfTI-1 unit codes, packed into xyzt_units.
const (
	niftiUnitsMeter  = 1
	niftiUnitsMM     = 2
	niftiUnitsMicron = 3
	niftiUnitsSec    = 8
	niftiUnitsMsec   = 16
	niftiUnitsUsec   = 24
	niftiUnitsHz     = 32
	niftiUnitsPPM    = 40
	niftiUnitsRads   = 48
)

// NIfTI-1 slice order codes.
const (
	niftiSliceSeqInc  = 1
	niftiSliceSeqDec  = 2
	niftiSliceAltInc  = 3
	niftiSliceAltDec  = 4
	niftiSliceAltInc2 = 5
	niftiSliceAltDec2 = 6
)

var niftiReorderPatterns = map[uint8]string{
	niftiSliceSeqInc:  "reversed_sequential",
	niftiSliceSeqDec:  "sequential",
	niftiSliceAltInc:  "reversed_even/odd",
	niftiSliceAltDec:  "even/odd",
	niftiSliceAltInc2: "reversed_odd/even",
	niftiSliceAltDec2: "odd/even",
}

type niftiType struct {
	d  dtype.Datatype
	dv int64
}

var niftiTypes = map[int16]niftiType{
	2:    {dtype.Uint8, 0},
	4:    {dtype.Int16, 0},
	8:    {dtype.Int32, 0},
	16:   {dtype.Float32, 0},
	32:   {dtype.Float32, 2}, // complex64
	64:   {dtype.Float64, 0},
	128:  {dtype.Uint8, 3}, // rgb24
	256:  {dtype.Uint8, 0}, // int8
	512:  {dtype.Uint16, 0},
	1024: {dtype.Int64, 0},
	1792: {dtype.Float64, 2}, // complex128
}

var niftiUnsupported = map[int16]string{
	768:  "UINT32",
	1280: "UINT64",
	1536: "FLOAT128",
	2048: "COMPLEX256",
}

// NIfTI reads NIfTI-1 images, either single-file (.nii) or as a .hdr/.img
// pair. Scaled images are delivered as floats with scl_slope and scl_inter
// applied.
type NIfTI struct {
	*pairedBase
	hdr *analyzeHeader
}

// NewNIfTI creates a handler for the header file at path.
func NewNIfTI(path string, info *meta.Info) (handler.Handler, error) {
	hdr, err := readAnalyzeHeader(path)
	if err != nil {
		return nil, &handler.Error{Kind: handler.Structural, Op: "nifti open", Path: path, Err: err}
	}
	data := path
	if hdr.magic == niftiPairMagic {
		data = imageCompanion(path)
	}
	p, err := newPairedBase(path, data, "NIFTI Image")
	if err != nil {
		return nil, err
	}
	return &NIfTI{pairedBase: p, hdr: hdr}, nil
}

// NIfTITest accepts files with a 348-byte header and a NIfTI-1 magic.
func NIfTITest(path string) bool {
	magic, ok := sniffAnalyzeHeader(path)
	return ok && (magic == niftiPairMagic || magic == niftiSingleMagic)
}

func (n *NIfTI) scaled() bool { return n.hdr.sclSlope != 0 }

func scaleDistToMM(v float32, units uint8) float64 {
	switch units & 0x07 {
	case niftiUnitsMeter:
		return 1000 * float64(v)
	case niftiUnitsMicron:
		return 0.001 * float64(v)
	}
	return float64(v)
}

func scaleTimeToUSec(log *zerolog.Logger, v float32, units uint8) float64 {
	t := float64(v)
	switch units & 0x38 {
	case niftiUnitsMsec:
		return 1e3 * t
	case niftiUnitsUsec:
		return t
	case niftiUnitsHz:
		log.Warn().Msg("data is supposedly in frequency space, in Hz")
	case niftiUnitsPPM:
		log.Warn().Msg("data is supposedly in frequency space, in PPM")
		return 60 * 1e6 * t
	case niftiUnitsRads:
		log.Warn().Msg("data is supposedly in frequency space, in rad/sec")
		return 1e6 * t / (2 * math.Pi)
	}
	return 1e6 * t
}

// DescribeStructure parses the header into info.
func (n *NIfTI) DescribeStructure(ctx context.Context, info *meta.Info, stack *handler.Stack) error {
	if err := n.Base.DescribeStructure(ctx, info, stack); err != nil {
		return err
	}
	defs := info.EnsureHash(handler.KeyDefinitions)
	log := zerolog.Ctx(ctx)
	h := n.hdr

	info.SetBool(handler.KeyBigEndian, h.order == binary.BigEndian)
	info.SetString("datafile", n.Base.Name())
	info.SetInt(handler.KeyStartOffset, rint(h.voxOffset))
	if h.descrip != "" {
		info.SetString("nifti_descrip", h.descrip)
	}
	if h.auxFile != "" {
		info.SetString("nifti_aux_file", h.auxFile)
	}

	ndim := int(h.dim[0])
	if ndim < 1 || ndim > 7 {
		return handler.Errorf(handler.Structural, "nifti header", n.header,
			"dim[0] is an un-allowed value (%d)", h.dim[0])
	}
	info.SetString(handler.KeyDimstr, "xyztabc"[:ndim])
	for i := ndim; i >= 1; i-- {
		axis := "xyztabc"[i-1]
		info.SetInt(handler.ExtentKey(axis), int64(h.dim[i]))
		switch axis {
		case 't':
			info.SetInt("TR", int64(scaleTimeToUSec(log, h.pixdim[4], h.xyztUnits)*float64(h.dim[3])))
			defs.SetString("TR", "TR (us)")
		case 'x', 'y', 'z':
			info.SetDouble("voxel_"+string(axis), scaleDistToMM(h.pixdim[i], h.xyztUnits))
		}
	}

	t, ok := niftiTypes[h.datatype]
	if !ok {
		if name, ok := niftiUnsupported[h.datatype]; ok {
			return handler.Errorf(handler.Structural, "nifti header", n.header,
				"input data type %s is not supported", name)
		}
		return handler.Errorf(handler.Structural, "nifti header", n.header,
			"unrecognized data type code %d", h.datatype)
	}
	if t.dv != 0 {
		info.SetString(handler.KeyDimstr, "v"+info.String(handler.KeyDimstr))
		info.SetInt("dv", t.dv)
	}
	handler.SetDatatype(info, handler.KeyDatatypeIn, t.d)
	handler.SetDatatype(info, handler.KeyHandlerOut, t.d)
	if n.scaled() {
		out := dtype.Float32
		if t.d == dtype.Float64 || t.d == dtype.Int64 {
			out = dtype.Float64
		}
		handler.SetDatatype(info, handler.KeyHandlerOut, out)
	}

	if h.intentCode != 0 {
		info.SetString("nifti_intent_name", h.intentName)
		info.SetInt("nifti_intent_code", int64(h.intentCode))
		for i, p := range h.intentP {
			info.SetDouble("nifti_intent_p"+strconv.Itoa(i+1), float64(p))
		}
	}

	n.describeSliceOrder(log, info)

	if h.sformCode != 0 {
		info.SetInt("nifti_sform_code", int64(h.sformCode))
		for row, axis := range []string{"x", "y", "z"} {
			for i, v := range h.srow[row] {
				info.SetDouble("nifti_srow_"+axis+"_"+strconv.Itoa(i), float64(v))
			}
		}
	}

	if h.qformCode > 0 {
		n.orientByQuaternion(info)
	} else {
		n.orientByLegacy(info)
	}
	return nil
}

// describeSliceOrder translates the acquisition order into a reorder
// pattern. NIfTI slices run inferior to superior, Pgh MRI slices the
// other way, so increasing codes map to reversed patterns.
func (n *NIfTI) describeSliceOrder(log *zerolog.Logger, info *meta.Info) {
	h := n.hdr
	sliceDim := (h.dimInfo >> 4) & 0x03
	if h.sliceCode == 0 || h.sliceDuration <= 0 || sliceDim == 0 {
		return
	}
	if sliceDim != 3 {
		log.Warn().Str("path", n.header).Msg("can't translate slice order info for non-axial slices")
		return
	}
	if h.sliceStart != 0 || (h.sliceEnd != 0 && int64(h.sliceEnd) != info.Int("dz")-1) {
		log.Warn().Str("path", n.header).Msg("lost slice order info; padded slice sequences are untranslatable")
		return
	}
	pattern, ok := niftiReorderPatterns[h.sliceCode]
	if !ok {
		log.Warn().Str("path", n.header).Uint8("slice_code", h.sliceCode).Msg("unknown slice sequence code")
		return
	}
	info.SetBool("reorder", true)
	info.SetString("reorder_pattern", pattern)
}

// voxelTransform maps voxel indices to Pgh MRI coordinates.
type voxelTransform func(i, j, k float64) vec3.Vec

// toPgh flips NIfTI's left-to-right and inferior-to-superior axes.
func toPgh(v vec3.Vec) vec3.Vec {
	return vec3.New(-v.X, v.Y, -v.Z)
}

func (n *NIfTI) orientByLegacy(info *meta.Info) {
	info.SetString("nifti_orient_mode", "legacy")
	p := n.hdr.pixdim
	scale := func(i, j, k float64) vec3.Vec {
		return toPgh(vec3.New(float64(p[1])*i, float64(p[2])*j, float64(p[3])*k))
	}
	// centre the volume on the origin
	far := scale(float64(info.Int("dx")-1), float64(info.Int("dy")-1), float64(info.Int("dz")-1))
	shift := vec3.Scale(-0.5, far)
	n.setGeometry(info, func(i, j, k float64) vec3.Vec {
		return vec3.Add(scale(i, j, k), shift)
	})
}

func (n *NIfTI) orientByQuaternion(info *meta.Info) {
	h := n.hdr
	info.SetString("nifti_orient_mode", "quaternion")
	info.SetInt("nifti_qform_code", int64(h.qformCode))

	qfac := 1.0
	if h.pixdim[0] < 0 {
		qfac = -1
	}
	b, c, d := float64(h.quatern[0]), float64(h.quatern[1]), float64(h.quatern[2])
	offset := vec3.New(float64(h.qoffset[0]), float64(h.qoffset[1]), float64(h.qoffset[2]))
	p := h.pixdim
	n.setGeometry(info, func(i, j, k float64) vec3.Vec {
		v := vec3.New(float64(p[1])*i, float64(p[2])*j, qfac*float64(p[3])*k)
		return toPgh(vec3.Add(vec3.Rotate(b, c, d, v), offset))
	})
}

// setGeometry records slice_norm and either the eight volume corners or,
// for single slices, the four slice corners.
func (n *NIfTI) setGeometry(info *meta.Info, t voxelTransform) {
	if norm, ok := vec3.Normalize(vec3.Sub(t(0, 0, 1), t(0, 0, 0))); ok {
		vec3.Set(info, "slice_norm", norm)
	}
	x := float64(info.Int("dx") - 1)
	y := float64(info.Int("dy") - 1)
	if info.Has("dz") {
		z := float64(info.Int("dz") - 1)
		corners := map[string][3]float64{
			"blf": {0, y, 0}, "blb": {0, 0, 0}, "brf": {x, y, 0}, "brb": {x, 0, 0},
			"tlf": {0, y, z}, "tlb": {0, 0, z}, "trf": {x, y, z}, "trb": {x, 0, z},
		}
		for _, name := range handler.CornerNames {
			c := corners[name]
			vec3.Set(info, name, t(c[0], c[1], c[2]))
		}
		return
	}
	vec3.Set(info, "slice_tlc", t(0, 0, 0))
	vec3.Set(info, "slice_trc", t(x, 0, 0))
	vec3.Set(info, "slice_blc", t(0, y, 0))
	vec3.Set(info, "slice_brc", t(x, y, 0))
}

// Read delivers raw samples, or scaled floats when the header carries a
// non-zero scl_slope.
func (n *NIfTI) Read(info *meta.Info, offset int64, count int, want dtype.Datatype, dst []byte) error {
	if !n.scaled() {
		return n.Base.Read(info, offset, count, want, dst)
	}
	in := handler.Datatype(info, handler.KeyDatatypeIn)
	out := handler.Datatype(info, handler.KeyHandlerOut)
	if want != out {
		return handler.Errorf(handler.UnsupportedConversion, "nifti read", n.header,
			"asked to translate scaled %s to %s", out, want)
	}
	if err := n.ReadBytes(offset, dst[:count*in.Size()]); err != nil {
		return err
	}
	if info.Bool(handler.KeyBigEndian) {
		dtype.Swap(dst, in, count)
	}
	slope, inter := float64(n.hdr.sclSlope), float64(n.hdr.sclInter)
	le := binary.LittleEndian
	// out is never narrower than in, so converting from the end keeps
	// unread input intact.
	for i := count - 1; i >= 0; i-- {
		v := slope*dtype.Float(dst, in, i) + inter
		if out == dtype.Float64 {
			le.PutUint64(dst[8*i:], math.Float64bits(v))
		} else {
			le.PutUint32(dst[4*i:], math.Float32bits(float32(v)))
		}
	}
	return nil
}
