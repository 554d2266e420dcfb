// Package filter recognizes and decodes compressed input streams.
//
// Scanner exports are frequently shipped compressed. Rather than teaching
// every format handler about compression, the ingestion pipeline sniffs the
// first bytes of an input with [Detect] and, when a filter claims them,
// decodes the whole stream before dispatching on the decoded content.
//
// # Supported Filters
//
//   - gzip (magic 1f 8b) via klauspost/compress/gzip
//   - zstd (magic 28 b5 2f fd) via klauspost/compress/zstd
//   - zlib (0x78 header with a valid FCHECK) via klauspost/compress/zlib
//   - snappy and S2 framed streams via klauspost/compress/s2
//
// Filters are tried in [Registry] order; the first one whose Match accepts
// the prefix wins.
package filter
