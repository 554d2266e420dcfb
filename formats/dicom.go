package formats

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/internal/vec3"
	"github.com/robert-malhotra/go-smartreader/meta"
)

const (
	dicomMagicOffset = 128
	dicomMagic       = "DICM"
)

// Uncompressed transfer syntaxes.
const (
	implicitVRLittleEndian = "1.2.840.10008.1.2"
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	explicitVRBigEndian    = "1.2.840.10008.1.2.2"
)

// DICOM reads single-frame and multi-frame uncompressed DICOM images.
// The pixel data element is the last element of the file, so samples are
// read from the end of the file backwards by the image size.
type DICOM struct {
	*handler.Base
	instance int64
	series   string
}

// NewDICOM creates a DICOM handler.
func NewDICOM(path string, info *meta.Info) (handler.Handler, error) {
	b, err := handler.NewBase(path, "DICOM")
	if err != nil {
		return nil, err
	}
	return &DICOM{Base: b}, nil
}

// DICOMTest accepts files carrying the DICM marker after the preamble.
func DICOMTest(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, len(dicomMagic))
	if _, err := f.ReadAt(buf, dicomMagicOffset); err != nil {
		return false
	}
	return bytes.Equal(buf, []byte(dicomMagic))
}

// dicomValues reads typed element values out of a parsed dataset.
type dicomValues struct {
	ds dicom.Dataset
}

func (v dicomValues) strings(t tag.Tag) []string {
	e, err := v.ds.FindElementByTag(t)
	if err != nil || e.Value == nil {
		return nil
	}
	switch raw := e.Value.GetValue().(type) {
	case []string:
		out := make([]string, len(raw))
		for i, s := range raw {
			out[i] = strings.TrimRight(strings.TrimSpace(s), "\x00")
		}
		return out
	case []int:
		out := make([]string, len(raw))
		for i, n := range raw {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []float64:
		out := make([]string, len(raw))
		for i, f := range raw {
			out[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return out
	}
	return nil
}

func (v dicomValues) str(t tag.Tag) (string, bool) {
	s := v.strings(t)
	if len(s) == 0 {
		return "", false
	}
	return s[0], true
}

func (v dicomValues) floats(t tag.Tag) []float64 {
	s := v.strings(t)
	out := make([]float64, 0, len(s))
	for _, x := range s {
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func (v dicomValues) float(t tag.Tag) (float64, bool) {
	f := v.floats(t)
	if len(f) == 0 {
		return 0, false
	}
	return f[0], true
}

func (v dicomValues) int(t tag.Tag) (int64, bool) {
	f, ok := v.float(t)
	return int64(f), ok
}

// DescribeStructure parses the DICOM metadata, skipping the pixel data.
func (d *DICOM) DescribeStructure(ctx context.Context, info *meta.Info, stack *handler.Stack) error {
	if err := d.Base.DescribeStructure(ctx, info, stack); err != nil {
		return err
	}
	defs := info.EnsureHash(handler.KeyDefinitions)
	log := zerolog.Ctx(ctx)

	ds, err := dicom.ParseFile(d.Name(), nil, dicom.SkipPixelData())
	if err != nil {
		return &handler.Error{Kind: handler.Structural, Op: "dicom parse", Path: d.Name(), Err: err}
	}
	v := dicomValues{ds: ds}

	syntax, _ := v.str(tag.TransferSyntaxUID)
	switch syntax {
	case implicitVRLittleEndian, explicitVRLittleEndian, "":
		info.SetBool(handler.KeyBigEndian, false)
	case explicitVRBigEndian:
		info.SetBool(handler.KeyBigEndian, true)
	default:
		return handler.Errorf(handler.Structural, "dicom parse", d.Name(),
			"compressed transfer syntax %s is not supported", syntax)
	}
	info.SetString("dicom_transfer_syntax", syntax)

	rows, ok1 := v.int(tag.Rows)
	cols, ok2 := v.int(tag.Columns)
	bits, ok3 := v.int(tag.BitsAllocated)
	if !ok1 || !ok2 || !ok3 {
		return handler.Errorf(handler.Structural, "dicom parse", d.Name(), "missing image size")
	}
	signed, _ := v.int(tag.PixelRepresentation)
	var typ dtype.Datatype
	switch {
	case bits == 8:
		typ = dtype.Uint8
	case bits == 16 && signed == 1:
		typ = dtype.Int16
	case bits == 16:
		typ = dtype.Uint16
	case bits == 32:
		typ = dtype.Int32
	default:
		return handler.Errorf(handler.Structural, "dicom parse", d.Name(),
			"%d bits allocated is not supported", bits)
	}
	handler.SetDatatype(info, handler.KeyDatatypeIn, typ)
	handler.SetDatatype(info, handler.KeyHandlerOut, typ)

	samples, ok := v.int(tag.SamplesPerPixel)
	if !ok || samples < 1 {
		samples = 1
	}
	frames, ok := v.int(tag.NumberOfFrames)
	if !ok || frames < 1 {
		frames = 1
	}
	dimstr := "xy"
	if frames > 1 {
		dimstr = "xyz"
		info.SetInt("dz", frames)
	}
	if samples > 1 {
		dimstr = "v" + dimstr
		info.SetInt("dv", samples)
	}
	info.SetString(handler.KeyDimstr, dimstr)
	info.SetInt("dx", cols)
	info.SetInt("dy", rows)

	image := samples * cols * rows * frames * int64(typ.Size())
	start := d.TotalLength() - image
	if start < 0 {
		return handler.Errorf(handler.Structural, "dicom parse", d.Name(),
			"file holds %d bytes, shorter than its %d byte image", d.TotalLength(), image)
	}
	info.SetInt(handler.KeyStartOffset, start)

	spacing := v.floats(tag.PixelSpacing)
	if len(spacing) == 2 {
		info.SetDouble("voxel_y", spacing[0])
		info.SetDouble("voxel_x", spacing[1])
	}
	if f, ok := v.float(tag.SliceThickness); ok {
		info.SetDouble("slice_thickness", f)
		if gap, ok := v.float(tag.SpacingBetweenSlices); ok {
			info.SetDouble("voxel_z", gap)
			info.SetDouble("slice_gap", gap-f)
		}
	}
	if f, ok := v.float(tag.RepetitionTime); ok {
		info.SetInt("TR", int64(1000*f))
	}
	if f, ok := v.float(tag.EchoTime); ok {
		info.SetInt("TE", int64(1000*f))
	}
	if f, ok := v.float(tag.FlipAngle); ok {
		info.SetDouble("flip", f)
	}
	if s, ok := v.str(tag.AcquisitionDate); ok {
		info.SetString("date", s)
	}
	if s, ok := v.str(tag.AcquisitionTime); ok {
		info.SetString("time", s)
	}
	if s, ok := v.str(tag.SeriesInstanceUID); ok {
		d.series = s
		info.SetString("dicom_series_uid", s)
		defs.SetString("dicom_series_uid", "DICOM series instance UID")
	}
	if n, ok := v.int(tag.InstanceNumber); ok {
		d.instance = n
		info.SetInt("dicom_instance", n)
		defs.SetString("dicom_instance", "DICOM instance number")
	}

	pos := v.floats(tag.ImagePositionPatient)
	orient := v.floats(tag.ImageOrientationPatient)
	if len(pos) == 3 && len(orient) == 6 && info.Has("voxel_x") {
		d.describeCorners(info, pos, orient, cols, rows)
	} else {
		log.Debug().Str("path", d.Name()).Msg("no patient geometry")
	}
	return nil
}

// fromDICOM maps patient LPS coordinates into Pgh MRI coordinates.
func fromDICOM(v vec3.Vec) vec3.Vec {
	return vec3.New(v.X, -v.Y, -v.Z)
}

// describeCorners places the slice corners from the position of the first
// voxel and the row and column directions.
func (d *DICOM) describeCorners(info *meta.Info, pos, orient []float64, cols, rows int64) {
	tlc := vec3.New(pos[0], pos[1], pos[2])
	across := vec3.Scale(info.Double("voxel_x")*float64(cols-1), vec3.New(orient[0], orient[1], orient[2]))
	down := vec3.Scale(info.Double("voxel_y")*float64(rows-1), vec3.New(orient[3], orient[4], orient[5]))

	vec3.Set(info, "slice_tlc", fromDICOM(tlc))
	vec3.Set(info, "slice_trc", fromDICOM(vec3.Add(tlc, across)))
	vec3.Set(info, "slice_blc", fromDICOM(vec3.Add(tlc, down)))
	vec3.Set(info, "slice_brc", fromDICOM(vec3.Add(vec3.Add(tlc, across), down)))
	if n, ok := vec3.Normalize(vec3.Cross(across, down)); ok {
		vec3.Set(info, "slice_norm", fromDICOM(n))
	}
}

// Compare orders slices of the same series by instance number.
func (d *DICOM) Compare(other handler.Handler) int {
	if o, ok := other.(*DICOM); ok && d.series == o.series && d.instance != o.instance {
		if d.instance < o.instance {
			return -1
		}
		return 1
	}
	return d.Base.Compare(other)
}
