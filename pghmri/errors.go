// Package pghmri reads and writes Pittsburgh MRI datasets: a text header of
// sorted key = value lines describing named chunks, with the chunk samples
// stored in companion files or after the header.
package pghmri

import "gitlab.com/tozd/go/errors"

// Common errors
var (
	ErrNotPgh     = errors.New("not a Pgh MRI dataset")
	ErrSyntax     = errors.New("malformed header")
	ErrNoChunk    = errors.New("no such chunk")
	ErrDatatype   = errors.New("unsupported chunk datatype")
	ErrOutOfRange = errors.New("access outside chunk")
	ErrReadOnly   = errors.New("dataset is read-only")
	ErrClosed     = errors.New("dataset is closed")
)

// ChunkMarker is the header value that declares a chunk.
const ChunkMarker = "[chunk]"

// Extension is appended to dataset names that lack it.
const Extension = ".mri"
