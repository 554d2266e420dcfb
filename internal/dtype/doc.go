// Package dtype describes the numeric sample kinds that flow through the
// ingestion pipeline and converts between them.
//
// # Sample Kinds
//
// Every chunk records its element kind at three stages: the kind stored in
// the input file (datatype_in), the kind its handler naturally produces
// (handler_datatype_out) and the kind written to the output container
// (datatype_out). The kinds and their on-disk sizes are:
//
//	Kind     | Code | Size
//	---------|------|-----
//	uint8    | 0    | 1
//	int16    | 1    | 2
//	uint16   | 2    | 2
//	int32    | 3    | 4
//	float32  | 4    | 4
//	float64  | 5    | 8
//	int64    | 6    | 8
//
// The codes are stored as integers in [meta.Info] and must stay stable.
//
// # Buffers
//
// Sample buffers handed between handlers are plain byte slices in
// little-endian order. Input handlers normalize file byte order once with
// [Swap]; converters decode and re-encode with [ConvertTo].
//
// # Conversions
//
// Only a small whitelist is supported; see [CanConvert]. The uint16 to int32
// path reinterprets each stored 16-bit pattern rather than casting a value.
package dtype
