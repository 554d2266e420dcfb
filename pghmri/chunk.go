package pghmri

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
)

// Chunk describes the layout of one named chunk.
type Chunk struct {
	Name         string
	Datatype     dtype.Datatype
	Dimensions   string  // axis letters, fastest first
	Extents      []int64 // one per dimension
	File         string  // resolved data file path
	Offset       int64   // byte offset of the first sample in File
	LittleEndian bool
}

// Elements returns the number of samples in the chunk.
func (c Chunk) Elements() int64 {
	n := int64(1)
	for _, e := range c.Extents {
		n *= e
	}
	return n
}

// Size returns the chunk size in bytes.
func (c Chunk) Size() int64 {
	return c.Elements() * int64(c.Datatype.Size())
}

// Extent returns the extent of axis, or 0 when the chunk has no such axis.
func (c Chunk) Extent(axis byte) int64 {
	if i := strings.IndexByte(c.Dimensions, axis); i >= 0 {
		return c.Extents[i]
	}
	return 0
}

type chunk struct {
	Chunk
	resolved bool
	inHeader bool
	stage    *os.File // in-header data, held until Close
}

// chunkPath resolves a chunk file name against the header path. An empty
// name places the data in the header file and a leading '.' replaces the
// header's extension.
func chunkPath(header, file string) string {
	switch {
	case file == "":
		return header
	case file[0] == '.':
		return strings.TrimSuffix(header, filepath.Ext(header)) + file
	case !strings.ContainsRune(file, '/') && strings.ContainsRune(header, '/'):
		return filepath.Join(filepath.Dir(header), file)
	}
	return file
}

// parseChunk reads the layout keys of chunk name.
func (f *File) parseChunk(name string) (*chunk, error) {
	c := &chunk{Chunk: Chunk{Name: name, Datatype: dtype.Int16, Dimensions: "xyzt"}}
	key := func(tail string) string { return name + "." + tail }

	if f.Has(key("datatype")) {
		d, err := dtype.FromName(f.Get(key("datatype")))
		if err != nil || d == dtype.Uint16 {
			return nil, errors.Errorf("%w: %q", ErrDatatype, f.Get(key("datatype")))
		}
		c.Datatype = d
	}
	if f.Has(key("dimensions")) {
		c.Dimensions = f.Get(key("dimensions"))
	}
	c.Extents = make([]int64, len(c.Dimensions))
	for i := range c.Dimensions {
		c.Extents[i] = 1
		if k := key("extent." + c.Dimensions[i:i+1]); f.Has(k) {
			c.Extents[i] = f.GetInt(k)
			if c.Extents[i] < 0 {
				return nil, errors.Errorf("%w: negative extent %s", ErrSyntax, k)
			}
		}
	}
	c.LittleEndian = f.GetInt(key("little_endian")) == 1
	c.File = chunkPath(f.path, f.Get(key("file")))
	c.inHeader = c.File == f.path
	c.Offset = f.GetInt(key("offset"))
	return c, nil
}

// Chunks returns the chunk names in sorted order.
func (f *File) Chunks() []string {
	names := make([]string, 0, len(f.chunks))
	for name := range f.chunks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chunk returns the layout of chunk name. For a writable dataset the
// layout reflects the keys set so far.
func (f *File) Chunk(name string) (Chunk, error) {
	c, ok := f.chunks[name]
	if !ok {
		return Chunk{}, errors.Errorf("%w: %s", ErrNoChunk, name)
	}
	if f.writable && !c.resolved {
		parsed, err := f.parseChunk(name)
		if err != nil {
			return Chunk{}, err
		}
		return parsed.Chunk, nil
	}
	return c.Chunk, nil
}

// CreateChunk declares chunk name. Its layout keys (datatype, dimensions,
// extent.<axis>, file) are read on the first write.
func (f *File) CreateChunk(name string) error {
	return f.SetString(name, ChunkMarker)
}

// resolve fixes the layout of a chunk being written and prepares its data
// file.
func (f *File) resolve(c *chunk) error {
	if c.resolved {
		return nil
	}
	parsed, err := f.parseChunk(c.Name)
	if err != nil {
		return err
	}
	c.Chunk = parsed.Chunk
	c.inHeader = parsed.inHeader
	c.LittleEndian = true

	if c.inHeader {
		stage, err := os.CreateTemp(filepath.Dir(f.path), ".pghmri-*")
		if err != nil {
			return errors.Errorf("staging chunk %s: %w", c.Name, err)
		}
		c.stage = stage
		c.Offset = 0
	} else {
		if _, ok := f.files[c.File]; !ok {
			osFile, err := os.OpenFile(c.File, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return errors.Errorf("creating chunk file: %w", err)
			}
			f.files[c.File] = osFile
		}
		c.Offset = f.nextOffset[c.File]
		f.nextOffset[c.File] += c.Size()
	}
	c.resolved = true
	return nil
}

func (f *File) lookup(name string) (*chunk, error) {
	if f.closed {
		return nil, ErrClosed
	}
	c, ok := f.chunks[name]
	if !ok {
		return nil, errors.Errorf("%w: %s", ErrNoChunk, name)
	}
	return c, nil
}

func checkSpan(c *chunk, n int, elemOffset int64) error {
	if n < 0 || elemOffset < 0 || elemOffset+int64(n) > c.Elements() {
		return errors.Errorf("%w: %d samples at %d in %s of %d",
			ErrOutOfRange, n, elemOffset, c.Name, c.Elements())
	}
	return nil
}

// WriteBulk writes n little-endian samples of kind d from buf to chunk
// name, starting at sample elemOffset.
func (f *File) WriteBulk(name string, n int, elemOffset int64, d dtype.Datatype, buf []byte) error {
	if !f.writable {
		return ErrReadOnly
	}
	c, err := f.lookup(name)
	if err != nil {
		return err
	}
	if err := f.resolve(c); err != nil {
		return err
	}
	if d != c.Datatype {
		return errors.Errorf("%w: chunk %s holds %s, got %s", ErrDatatype, name, c.Datatype, d)
	}
	if err := checkSpan(c, n, elemOffset); err != nil {
		return err
	}

	size := d.Size()
	var w io.WriterAt = f.files[c.File]
	if c.inHeader {
		w = c.stage
	}
	if _, err := w.WriteAt(buf[:n*size], c.Offset+elemOffset*int64(size)); err != nil {
		return errors.Errorf("writing chunk %s: %w", name, err)
	}
	return nil
}

// ReadChunk reads n samples of kind want from chunk name, starting at
// sample elemOffset, into dst as little-endian values.
func (f *File) ReadChunk(name string, n int, elemOffset int64, want dtype.Datatype, dst []byte) error {
	if f.writable {
		return errors.Errorf("%w: reading a dataset open for writing", ErrReadOnly)
	}
	c, err := f.lookup(name)
	if err != nil {
		return err
	}
	if want != c.Datatype {
		return errors.Errorf("%w: chunk %s holds %s, asked for %s", ErrDatatype, name, c.Datatype, want)
	}
	if err := checkSpan(c, n, elemOffset); err != nil {
		return err
	}

	osFile, ok := f.files[c.File]
	if !ok {
		osFile, err = os.Open(c.File)
		if err != nil {
			return errors.Errorf("opening chunk file: %w", err)
		}
		f.files[c.File] = osFile
	}
	size := want.Size()
	out := dst[:n*size]
	if _, err := osFile.ReadAt(out, c.Offset+elemOffset*int64(size)); err != nil {
		return errors.Errorf("reading chunk %s: %w", name, err)
	}
	if !c.LittleEndian {
		dtype.Swap(out, want, n)
	}
	return nil
}

// closeWritable records the final chunk layout, writes the header and
// moves staged chunk data behind it.
func (f *File) closeWritable() error {
	var inHeader []*chunk
	for _, name := range f.Chunks() {
		c := f.chunks[name]
		if err := f.resolve(c); err != nil {
			return err
		}
		f.keys[name+".size"] = strconv.FormatInt(c.Size(), 10)
		f.keys[name+".little_endian"] = "1"
		if c.inHeader {
			inHeader = append(inHeader, c)
			continue
		}
		f.keys[name+".offset"] = strconv.FormatInt(c.Offset, 10)
		if err := extend(f.files[c.File], c.Offset+c.Size()); err != nil {
			return err
		}
	}

	var hdr []byte
	if len(inHeader) == 0 {
		hdr = renderHeader(f.keys, false)
	} else {
		reserve := f.opts.headerSize
		for {
			off := reserve
			for _, c := range inHeader {
				c.Offset = off
				f.keys[c.Name+".offset"] = strconv.FormatInt(off, 10)
				off += c.Size()
			}
			hdr = renderHeader(f.keys, true)
			if int64(len(hdr)) <= reserve {
				break
			}
			reserve *= 2
		}
	}

	hf := f.files[f.path]
	if err := hf.Truncate(0); err != nil {
		return errors.Errorf("truncating header: %w", err)
	}
	if _, err := hf.WriteAt(hdr, 0); err != nil {
		return errors.Errorf("writing header: %w", err)
	}
	for _, c := range inHeader {
		src := io.NewSectionReader(c.stage, 0, c.Size())
		if _, err := io.Copy(io.NewOffsetWriter(hf, c.Offset), src); err != nil {
			return errors.Errorf("copying chunk %s: %w", c.Name, err)
		}
		if err := extend(hf, c.Offset+c.Size()); err != nil {
			return err
		}
		c.stage.Close()
		os.Remove(c.stage.Name())
	}
	return nil
}

// extend grows osFile to at least n bytes; the gap reads as zeros.
func extend(osFile *os.File, n int64) error {
	st, err := osFile.Stat()
	if err != nil {
		return errors.Errorf("stat %s: %w", osFile.Name(), err)
	}
	if st.Size() < n {
		if err := osFile.Truncate(n); err != nil {
			return errors.Errorf("extending %s: %w", osFile.Name(), err)
		}
	}
	return nil
}
