package handler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/meta"
)

// Entry is one row of a format dispatch table.
type Entry struct {
	Name   string
	Test   func(path string) bool
	Create func(path string, info *meta.Info) (Handler, error)
}

// Table is an ordered dispatch table; the first entry whose Test accepts a
// path wins.
type Table []Entry

// Find returns the first entry that recognizes path.
func (t Table) Find(ctx context.Context, path string) (Entry, error) {
	log := zerolog.Ctx(ctx)
	for _, e := range t {
		if e.Test(path) {
			log.Debug().Str("format", e.Name).Str("path", path).Msg("format recognized")
			return e, nil
		}
		log.Trace().Str("format", e.Name).Str("path", path).Msg("format rejected")
	}
	return Entry{}, Errorf(Structural, "dispatch", path, "could not find a handler type that recognized the file")
}

// Open finds the matching entry and creates its handler.
func (t Table) Open(ctx context.Context, path string, info *meta.Info) (Handler, error) {
	e, err := t.Find(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.Create(path, info)
}
