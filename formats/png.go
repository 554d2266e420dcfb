package formats

import (
	"bytes"
	"context"
	"encoding/binary"
	"image/color"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/robert-malhotra/go-smartreader/handler"
	binpkg "github.com/robert-malhotra/go-smartreader/internal/binary"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// PNG color types.
const (
	pngGray      = 0
	pngRGB       = 2
	pngPalette   = 3
	pngGrayAlpha = 4
	pngRGBA      = 6
)

// pngInfo is what the ancillary chunks say about an image.
type pngInfo struct {
	width, height uint32
	bitDepth      uint8
	colorType     uint8
	compression   uint8
	filterMethod  uint8
	interlace     uint8
	modTime       time.Time
	text          map[string]string
	resX, resY    uint32 // pixels per metre, 0 when unknown
}

func (p *pngInfo) channels() int {
	switch p.colorType {
	case pngGrayAlpha:
		return 2
	case pngRGB, pngPalette:
		return 3
	case pngRGBA:
		return 4
	}
	return 1
}

// readPNGInfo walks the chunk list up to IDAT.
func readPNGInfo(path string) (*pngInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := binpkg.NewReader(f, binary.BigEndian)
	sig, err := r.ReadBytes(len(pngSignature))
	if err != nil || !bytes.Equal(sig, pngSignature) {
		return nil, errors.New("missing PNG signature")
	}
	info := &pngInfo{text: make(map[string]string)}
	for {
		length, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadString(4)
		if err != nil {
			return nil, err
		}
		data, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		r.Skip(4) // CRC

		switch kind {
		case "IHDR":
			if len(data) < 13 {
				return nil, errors.New("short IHDR chunk")
			}
			info.width = binary.BigEndian.Uint32(data)
			info.height = binary.BigEndian.Uint32(data[4:])
			info.bitDepth, info.colorType = data[8], data[9]
			info.compression, info.filterMethod, info.interlace = data[10], data[11], data[12]
		case "tIME":
			if len(data) >= 7 {
				info.modTime = time.Date(int(binary.BigEndian.Uint16(data)), time.Month(data[2]),
					int(data[3]), int(data[4]), int(data[5]), int(data[6]), 0, time.UTC)
			}
		case "tEXt":
			if k, v, ok := bytes.Cut(data, []byte{0}); ok {
				info.text[string(k)] = strings.TrimRight(string(v), " \t\r\n")
			}
		case "pHYs":
			if len(data) >= 9 && data[8] == 1 {
				info.resX = binary.BigEndian.Uint32(data)
				info.resY = binary.BigEndian.Uint32(data[4:])
			}
		case "IDAT", "IEND":
			return info, nil
		}
	}
}

// PNG reads single images; pixel data is decoded on the first read.
type PNG struct {
	*handler.Base
	meta *pngInfo
	pix  []byte
}

// NewPNG creates a PNG handler.
func NewPNG(path string, info *meta.Info) (handler.Handler, error) {
	b, err := handler.NewBase(path, "PngDataHandler")
	if err != nil {
		return nil, err
	}
	return &PNG{Base: b}, nil
}

// PNGTest accepts files with the PNG signature.
func PNGTest(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	sig, err := binpkg.NewReader(f, binary.BigEndian).ReadBytes(len(pngSignature))
	return err == nil && bytes.Equal(sig, pngSignature)
}

// DescribeStructure records image size, channels and the ancillary chunks.
func (p *PNG) DescribeStructure(ctx context.Context, info *meta.Info, stack *handler.Stack) error {
	if err := p.Base.DescribeStructure(ctx, info, stack); err != nil {
		return err
	}
	defs := info.EnsureHash(handler.KeyDefinitions)
	log := zerolog.Ctx(ctx)

	m, err := readPNGInfo(p.Name())
	if err != nil {
		return &handler.Error{Kind: handler.Structural, Op: "png header", Path: p.Name(), Err: err}
	}
	p.meta = m

	if !m.modTime.IsZero() {
		info.SetString("date", m.modTime.Format("01/02/2006"))
		defs.SetString("date", "date modified")
		info.SetString("time", m.modTime.Format("15:04:05"))
		defs.SetString("time", "time modified")
	} else {
		log.Debug().Str("path", p.Name()).Msg("time info is not valid")
	}

	if n := m.channels(); n == 1 {
		info.SetString(handler.KeyDimstr, "xy")
	} else {
		info.SetString(handler.KeyDimstr, "vxy")
		info.SetInt("dv", int64(n))
	}
	info.SetInt("dx", int64(m.width))
	info.SetInt("dy", int64(m.height))
	info.SetInt("png_color_type", int64(m.colorType))
	info.SetInt("png_bit_depth", int64(m.bitDepth))
	info.SetInt("png_interlace_type", int64(m.interlace))
	info.SetInt("png_compression_type", int64(m.compression))
	info.SetInt("png_filter_method", int64(m.filterMethod))

	d := dtype.Uint8
	if m.bitDepth == 16 {
		d = dtype.Uint16
		log.Warn().Str("path", p.Name()).Msg("PNG image pixel data is unsigned shorts; this format is not completely supported")
	}
	handler.SetDatatype(info, handler.KeyDatatypeIn, d)
	handler.SetDatatype(info, handler.KeyHandlerOut, d)

	for k, v := range m.text {
		info.SetString("png_txt_"+k, v)
	}
	if m.resX != 0 {
		info.SetDouble("voxel_x", 1000/float64(m.resX))
		defs.SetString("voxel_x", "X voxel size including gap (mm)")
	}
	if m.resY != 0 {
		info.SetDouble("voxel_y", 1000/float64(m.resY))
		defs.SetString("voxel_y", "Y voxel size including gap (mm)")
	}
	info.SetBool(handler.KeyBigEndian, false)
	return nil
}

// decode expands the image into interleaved little-endian samples, one
// row after another.
func (p *PNG) decode() error {
	raw, err := os.ReadFile(p.Name())
	if err != nil {
		return handler.WrapIO("png read", p.Name(), err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return &handler.Error{Kind: handler.Structural, Op: "png decode", Path: p.Name(), Err: err}
	}
	if p.meta == nil {
		if p.meta, err = readPNGInfo(p.Name()); err != nil {
			return &handler.Error{Kind: handler.Structural, Op: "png header", Path: p.Name(), Err: err}
		}
	}

	bounds := img.Bounds()
	nc := p.meta.channels()
	wide := p.meta.bitDepth == 16
	size := 1
	if wide {
		size = 2
	}
	pix := make([]byte, 0, bounds.Dx()*bounds.Dy()*nc*size)
	put := func(v uint16) {
		if wide {
			pix = binary.LittleEndian.AppendUint16(pix, v)
		} else {
			pix = append(pix, byte(v>>8))
		}
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			switch nc {
			case 1:
				put(c.R)
			case 2:
				put(c.R)
				put(c.A)
			default:
				put(c.R)
				put(c.G)
				put(c.B)
				if nc == 4 {
					put(c.A)
				}
			}
		}
	}
	p.pix = pix
	return nil
}

// Read copies decoded samples starting at byte offset.
func (p *PNG) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if nat := handler.Datatype(info, handler.KeyDatatypeIn); want != nat {
		return handler.Errorf(handler.UnsupportedConversion, "png read", p.Name(),
			"a datatype translation is needed (%s to %s)", nat, want)
	}
	if p.pix == nil {
		if err := p.decode(); err != nil {
			return err
		}
	}
	size := int64(n * want.Size())
	if offset < 0 || offset+size > int64(len(p.pix)) {
		return handler.Errorf(handler.Structural, "png read", p.Name(),
			"read of %d bytes at %d exceeds %d decoded bytes", size, offset, len(p.pix))
	}
	copy(dst[:size], p.pix[offset:offset+size])
	return nil
}

// Compare orders images by modification time, then by name.
func (p *PNG) Compare(other handler.Handler) int {
	if o, ok := other.(*PNG); ok && p.meta != nil && o.meta != nil {
		if c := p.meta.modTime.Compare(o.meta.modTime); c != 0 {
			return c
		}
	}
	return p.Base.Compare(other)
}

// Destroy drops the decoded pixels and closes the file.
func (p *PNG) Destroy() error {
	p.pix = nil
	return p.Base.Destroy()
}
