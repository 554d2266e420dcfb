package dtype

import (
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Datatype identifies a sample kind.
type Datatype int

// Sample kinds, in code order.
const (
	Uint8 Datatype = iota
	Int16
	Uint16
	Int32
	Float32
	Float64
	Int64
)

var sizes = [...]int{1, 2, 2, 4, 4, 8, 8}

var names = [...]string{"uint8", "int16", "uint16", "int32", "float32", "float64", "int64"}

// Valid reports whether d is a known kind.
func (d Datatype) Valid() bool {
	return d >= Uint8 && d <= Int64
}

// Size returns the element size in bytes, or 0 for unknown kinds.
func (d Datatype) Size() int {
	if !d.Valid() {
		return 0
	}
	return sizes[d]
}

// String returns the canonical name, e.g. "int16".
func (d Datatype) String() string {
	if !d.Valid() {
		return fmt.Sprintf("datatype(%d)", int(d))
	}
	return names[d]
}

// FromName parses a canonical name as written in Pgh MRI headers.
func FromName(name string) (Datatype, error) {
	for i, n := range names {
		if n == name {
			return Datatype(i), nil
		}
	}
	return 0, errors.Errorf("unknown datatype %q", name)
}

// ParseOption parses the user-facing type names accepted on the command line.
func ParseOption(s string) (Datatype, error) {
	switch strings.ToLower(s) {
	case "short", "s", "mri_short", "srdr_int16", "int16":
		return Int16, nil
	case "ushort", "us", "srdr_uint16", "uint16":
		return Uint16, nil
	case "float", "f", "mri_float", "srdr_float32", "float32":
		return Float32, nil
	case "uchar", "u", "c", "mri_unsigned_char", "srdr_uint8", "uint8":
		return Uint8, nil
	case "int", "long", "l", "i", "mri_int", "srdr_int32", "int32":
		return Int32, nil
	case "double", "d", "mri_double", "srdr_float64", "float64":
		return Float64, nil
	case "longlong", "srdr_int64", "int64":
		return Int64, nil
	}
	return 0, errors.Errorf("unrecognized data type %q", s)
}
