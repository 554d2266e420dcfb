package formats

import (
	"encoding/binary"
	"math"
	"os"

	"gitlab.com/tozd/go/errors"

	binpkg "github.com/robert-malhotra/go-smartreader/internal/binary"
)

// analyzeHeaderSize is sizeof_hdr for both ANALYZE 7.5 and NIfTI-1.
const analyzeHeaderSize = 348

// analyzeHeader holds the fields of the 348-byte header shared by ANALYZE
// 7.5 and NIfTI-1. ANALYZE reads a few of the same bytes under older names.
type analyzeHeader struct {
	order binary.ByteOrder

	dbName   string
	dimInfo  uint8
	dim      [8]int16
	voxUnits string // ANALYZE
	calUnits string // ANALYZE

	intentP    [3]float32
	intentCode int16
	datatype   int16
	bitpix     int16
	sliceStart int16
	pixdim     [8]float32
	voxOffset  float32
	sclSlope   float32
	sclInter   float32
	sliceEnd   int16
	sliceCode  uint8
	xyztUnits  uint8

	sliceDuration float32
	compressed    int32 // ANALYZE view of the slice_duration bytes

	descrip    string
	auxFile    string
	qformCode  int16
	sformCode  int16
	quatern    [3]float32
	qoffset    [3]float32
	srow       [3][4]float32
	intentName string
	magic      string
}

func (h *analyzeHeader) bigEndian() bool {
	return h.order == binary.BigEndian
}

// fieldReader reads fixed offsets and keeps the first error.
type fieldReader struct {
	r   *binpkg.Reader
	err error
}

func (f *fieldReader) i16(off int64) int16 {
	v, err := f.r.At(off).ReadInt16()
	f.keep(err)
	return v
}

func (f *fieldReader) i32(off int64) int32 {
	v, err := f.r.At(off).ReadInt32()
	f.keep(err)
	return v
}

func (f *fieldReader) u8(off int64) uint8 {
	v, err := f.r.At(off).ReadUint8()
	f.keep(err)
	return v
}

func (f *fieldReader) f32(off int64) float32 {
	v, err := f.r.At(off).ReadFloat32()
	f.keep(err)
	return v
}

func (f *fieldReader) str(off int64, n int) string {
	v, err := f.r.At(off).ReadString(n)
	f.keep(err)
	return v
}

func (f *fieldReader) keep(err error) {
	if f.err == nil {
		f.err = err
	}
}

// detectOrder returns the byte order in which sizeof_hdr reads 348.
func detectOrder(r *binpkg.Reader) (binary.ByteOrder, bool) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		v, err := r.WithOrder(order).At(0).ReadInt32()
		if err == nil && v == analyzeHeaderSize {
			return order, true
		}
	}
	return nil, false
}

// readAnalyzeHeader parses the header at the start of path.
func readAnalyzeHeader(path string) (*analyzeHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening header: %w", err)
	}
	defer f.Close()

	raw := binpkg.NewReader(f, binary.LittleEndian)
	order, ok := detectOrder(raw)
	if !ok {
		return nil, errors.New("sizeof_hdr is not 348 in either byte order")
	}

	fr := &fieldReader{r: raw.WithOrder(order)}
	h := &analyzeHeader{order: order}
	h.dbName = fr.str(14, 18)
	h.dimInfo = fr.u8(39)
	for i := range h.dim {
		h.dim[i] = fr.i16(40 + 2*int64(i))
	}
	h.voxUnits = fr.str(56, 4)
	h.calUnits = fr.str(60, 8)
	for i := range h.intentP {
		h.intentP[i] = fr.f32(56 + 4*int64(i))
	}
	h.intentCode = fr.i16(68)
	h.datatype = fr.i16(70)
	h.bitpix = fr.i16(72)
	h.sliceStart = fr.i16(74)
	for i := range h.pixdim {
		h.pixdim[i] = fr.f32(76 + 4*int64(i))
	}
	h.voxOffset = fr.f32(108)
	h.sclSlope = fr.f32(112)
	h.sclInter = fr.f32(116)
	h.sliceEnd = fr.i16(120)
	h.sliceCode = fr.u8(122)
	h.xyztUnits = fr.u8(123)
	h.sliceDuration = fr.f32(132)
	h.compressed = fr.i32(132)
	h.descrip = fr.str(148, 80)
	h.auxFile = fr.str(228, 24)
	h.qformCode = fr.i16(252)
	h.sformCode = fr.i16(254)
	for i := range h.quatern {
		h.quatern[i] = fr.f32(256 + 4*int64(i))
		h.qoffset[i] = fr.f32(268 + 4*int64(i))
	}
	for row := range h.srow {
		for i := range h.srow[row] {
			h.srow[row][i] = fr.f32(280 + 16*int64(row) + 4*int64(i))
		}
	}
	h.intentName = fr.str(328, 16)
	h.magic = fr.str(344, 4)
	if fr.err != nil {
		return nil, errors.Errorf("reading header: %w", fr.err)
	}
	return h, nil
}

// sniffAnalyzeHeader reports whether path starts with a 348-byte header in
// either byte order, and returns its magic field.
func sniffAnalyzeHeader(path string) (magic string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	r := binpkg.NewReader(f, binary.LittleEndian)
	if _, ok := detectOrder(r); !ok {
		return "", false
	}
	magic, err = r.At(344).ReadString(4)
	if err != nil {
		return "", false
	}
	return magic, true
}

func rint(v float32) int64 {
	return int64(math.RoundToEven(float64(v)))
}
