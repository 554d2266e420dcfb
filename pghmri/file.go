package pghmri

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// File is an open Pgh MRI dataset.
type File struct {
	path     string
	keys     map[string]string
	chunks   map[string]*chunk
	files    map[string]*os.File
	writable bool
	closed   bool
	opts     *fileOptions

	headerSize int64
	nextOffset map[string]int64 // per data file, while writing
}

// HeaderPath returns name with the .mri extension added when missing.
func HeaderPath(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return name + Extension
}

// Open opens a dataset for reading.
func Open(name string) (*File, error) {
	path := HeaderPath(name)
	osFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening dataset: %w", err)
	}
	defer osFile.Close()

	keys, size, err := readHeader(osFile)
	if err != nil {
		return nil, errors.Errorf("reading header of %s: %w", path, err)
	}
	if len(keys) == 0 {
		return nil, errors.Errorf("%w: %s is unexpectedly empty", ErrNotPgh, path)
	}
	if f, ok := keys["!format"]; ok && f != "pgh" {
		return nil, errors.Errorf("%w: format is %q", ErrNotPgh, f)
	}

	f := &File{
		path:       path,
		keys:       keys,
		chunks:     make(map[string]*chunk),
		files:      make(map[string]*os.File),
		opts:       defaultFileOptions(),
		headerSize: size,
	}
	for k, v := range keys {
		if v != ChunkMarker {
			continue
		}
		c, err := f.parseChunk(k)
		if err != nil {
			return nil, errors.Errorf("chunk %s: %w", k, err)
		}
		f.chunks[k] = c
	}
	return f, nil
}

// Create creates a new dataset, replacing any existing header. Chunk data
// files are created on the first write to each chunk.
func Create(name string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	path := HeaderPath(name)
	osFile, err := os.Create(path)
	if err != nil {
		return nil, errors.Errorf("creating dataset: %w", err)
	}

	f := &File{
		path:       path,
		keys:       map[string]string{"!format": "pgh", "!version": "1.0"},
		chunks:     make(map[string]*chunk),
		files:      map[string]*os.File{path: osFile},
		writable:   true,
		opts:       options,
		nextOffset: make(map[string]int64),
	}
	return f, nil
}

// Path returns the header path.
func (f *File) Path() string {
	return f.path
}

// Keys returns every header key in sorted order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.keys))
	for k := range f.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present.
func (f *File) Has(key string) bool {
	_, ok := f.keys[key]
	return ok
}

// Get returns the text value of key, or "".
func (f *File) Get(key string) string {
	return f.keys[key]
}

// GetInt parses key as an integer. Missing or malformed values yield 0.
func (f *File) GetInt(key string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(f.keys[key]), 0, 64)
	return n
}

// GetFloat parses key as a float. Missing or malformed values yield 0.
func (f *File) GetFloat(key string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(f.keys[key]), 64)
	return v
}

func (f *File) set(key, value string) error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	for _, c := range f.chunks {
		if c.resolved && isLayoutKey(c.Name, key) {
			return errors.Errorf("%w: %s cannot change after data is written", ErrReadOnly, key)
		}
	}
	if value == ChunkMarker && f.chunks[key] == nil {
		f.chunks[key] = &chunk{Chunk: Chunk{Name: key}}
	}
	f.keys[key] = value
	return nil
}

func isLayoutKey(chunk, key string) bool {
	tail, ok := strings.CutPrefix(key, chunk+".")
	if !ok {
		return false
	}
	switch tail {
	case "datatype", "dimensions", "file":
		return true
	}
	return strings.HasPrefix(tail, "extent.")
}

// SetString sets a string value.
func (f *File) SetString(key, value string) error {
	return f.set(key, value)
}

// SetInt sets an integer value.
func (f *File) SetInt(key string, value int64) error {
	return f.set(key, strconv.FormatInt(value, 10))
}

// SetFloat sets a floating point value. Values are stored with single
// precision.
func (f *File) SetFloat(key string, value float64) error {
	return f.set(key, strconv.FormatFloat(float64(float32(value)), 'g', -1, 32))
}

// Remove deletes key.
func (f *File) Remove(key string) error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	delete(f.keys, key)
	return nil
}

// Close finalizes a writable dataset and releases all files.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.writable {
		err = f.closeWritable()
	}
	for path, osFile := range f.files {
		if cerr := osFile.Close(); cerr != nil && err == nil {
			err = errors.Errorf("closing %s: %w", path, cerr)
		}
	}
	f.files = nil
	return err
}
