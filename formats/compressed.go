package formats

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/filter"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// compressedSuffixes are stripped from the decompressed copy's name so
// that extension-sensitive testers still recognize it.
var compressedSuffixes = []string{".gz", ".zst", ".zstd", ".z", ".Z", ".zlib", ".sz", ".s2", ".snappy"}

// Compressed serves a compressed input through the handler that recognizes
// its decompressed content. The decompressed copy lives in a private
// temporary directory until Destroy.
type Compressed struct {
	handler.Handler
	path   string
	filter string
	dir    string
}

// CompressedTest accepts files starting with a known compression magic.
func CompressedTest(path string) bool {
	f, err := filter.DetectFile(path)
	return err == nil && f != nil
}

// compressedEntry returns the dispatch entry that unwraps compressed files
// and dispatches the result through inner.
func compressedEntry(inner handler.Table) handler.Entry {
	return handler.Entry{
		Name: "compressed",
		Test: CompressedTest,
		Create: func(path string, info *meta.Info) (handler.Handler, error) {
			return NewCompressed(context.Background(), inner, path, info)
		},
	}
}

// NewCompressed decompresses path and opens the copy with the first entry
// of inner that recognizes it.
func NewCompressed(ctx context.Context, inner handler.Table, path string, info *meta.Info) (*Compressed, error) {
	f, err := filter.DetectFile(path)
	if err != nil {
		return nil, handler.WrapIO("decompress", path, err)
	}
	if f == nil {
		return nil, handler.Errorf(handler.Structural, "decompress", path, "no compression scheme recognized")
	}

	dir, err := os.MkdirTemp("", "smartreader-")
	if err != nil {
		return nil, handler.WrapIO("decompress", path, err)
	}
	c := &Compressed{path: path, filter: f.Name(), dir: dir}
	plain, err := c.expand(f)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Str("filter", f.Name()).Str("copy", plain).Msg("decompressed input")

	h, err := inner.Open(ctx, plain, info)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	c.Handler = h
	return c, nil
}

func (c *Compressed) expand(f filter.Filter) (string, error) {
	base := filepath.Base(c.path)
	for _, s := range compressedSuffixes {
		if trimmed := strings.TrimSuffix(base, s); trimmed != base && trimmed != "" {
			base = trimmed
			break
		}
	}
	plain := filepath.Join(c.dir, base)

	src, err := os.Open(c.path)
	if err != nil {
		return "", handler.WrapIO("decompress", c.path, err)
	}
	defer src.Close()
	dst, err := os.Create(plain)
	if err != nil {
		return "", handler.WrapIO("decompress", c.path, err)
	}
	if _, err := filter.Decode(dst, src, f); err != nil {
		dst.Close()
		return "", &handler.Error{Kind: handler.Structural, Op: "decompress", Path: c.path, Err: err}
	}
	if err := dst.Close(); err != nil {
		return "", handler.WrapIO("decompress", c.path, errors.Errorf("closing copy: %w", err))
	}
	return plain, nil
}

func (c *Compressed) Name() string { return c.path }

func (c *Compressed) TypeName() string {
	return c.filter + "(" + c.Handler.TypeName() + ")"
}

// Inner returns the handler reading the decompressed copy.
func (c *Compressed) Inner() handler.Handler { return c.Handler }

func (c *Compressed) Compare(other handler.Handler) int {
	return strings.Compare(c.path, other.Name())
}

// Destroy destroys the inner handler and removes the decompressed copy.
func (c *Compressed) Destroy() error {
	err := c.Handler.Destroy()
	if rmErr := os.RemoveAll(c.dir); err == nil {
		err = handler.WrapIO("remove copy", c.dir, rmErr)
	}
	return err
}
