package filter

import (
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"gitlab.com/tozd/go/errors"
)

// MagicLen is the number of leading bytes needed to recognize any filter.
const MagicLen = 10

// Filter is implemented by every supported compression scheme.
type Filter interface {
	// Name returns a short identifier such as "gzip".
	Name() string

	// Match reports whether prefix looks like the start of an encoded stream.
	Match(prefix []byte) bool

	// NewReader wraps r with a decoder.
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Registry lists the known filters in detection order.
var Registry = []Filter{Gzip{}, Zstd{}, Zlib{}, S2{}}

// Detect returns the first filter that recognizes prefix, or nil.
func Detect(prefix []byte) Filter {
	for _, f := range Registry {
		if f.Match(prefix) {
			return f
		}
	}
	return nil
}

// DetectFile sniffs the start of the named file. It returns nil, nil for
// files no filter recognizes.
func DetectFile(path string) (Filter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	prefix := make([]byte, MagicLen)
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Errorf("sniffing %s: %w", path, err)
	}
	return Detect(prefix[:n]), nil
}

// Decode copies the decoded form of src into dst.
func Decode(dst io.Writer, src io.Reader, f Filter) (int64, error) {
	r, err := f.NewReader(src)
	if err != nil {
		return 0, errors.Errorf("%s reader: %w", f.Name(), err)
	}
	defer r.Close()

	n, err := io.Copy(dst, r)
	if err != nil {
		return n, errors.Errorf("%s decompress: %w", f.Name(), err)
	}
	return n, nil
}

// Gzip decodes RFC 1952 streams.
type Gzip struct{}

func (Gzip) Name() string { return "gzip" }

func (Gzip) Match(p []byte) bool {
	return len(p) >= 2 && p[0] == 0x1f && p[1] == 0x8b
}

func (Gzip) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Zstd decodes Zstandard frames.
type Zstd struct{}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func (Zstd) Name() string { return "zstd" }

func (Zstd) Match(p []byte) bool {
	return bytes.HasPrefix(p, zstdMagic)
}

func (Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

// Zlib decodes RFC 1950 streams.
type Zlib struct{}

func (Zlib) Name() string { return "zlib" }

// Match accepts a deflate CMF byte with a 32K window and a valid check value.
func (Zlib) Match(p []byte) bool {
	if len(p) < 2 || p[0] != 0x78 {
		return false
	}
	return (uint16(p[0])<<8|uint16(p[1]))%31 == 0
}

func (Zlib) NewReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

// S2 decodes S2 and snappy framed streams.
type S2 struct{}

var (
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
	s2Magic     = []byte("\xff\x06\x00\x00S2sTwO")
)

func (S2) Name() string { return "s2" }

func (S2) Match(p []byte) bool {
	return bytes.HasPrefix(p, snappyMagic) || bytes.HasPrefix(p, s2Magic)
}

func (S2) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}
