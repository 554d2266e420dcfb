package dtype

import (
	"encoding/binary"
	"math"

	"gitlab.com/tozd/go/errors"
)

// Swap reverses the byte order of each of the n elements of kind d held in
// buf. Single-byte kinds are left untouched.
func Swap(buf []byte, d Datatype, n int) {
	size := d.Size()
	if size <= 1 {
		return
	}
	for e := 0; e < n; e++ {
		el := buf[e*size : (e+1)*size]
		for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
			el[i], el[j] = el[j], el[i]
		}
	}
}

// CanConvert reports whether samples of kind in may be delivered as kind out.
func CanConvert(in, out Datatype) bool {
	if in == out {
		return true
	}
	if out == Float32 {
		switch in {
		case Uint8, Int16, Int32, Float32, Float64:
			return true
		}
		return false
	}
	return in == Uint16 && out == Int32
}

// ConvertTo converts n little-endian samples of kind in from src to kind out
// in dst. dst must hold n*out.Size() bytes.
func ConvertTo(dst []byte, out Datatype, src []byte, in Datatype, n int) error {
	if !CanConvert(in, out) {
		return errors.Errorf("cannot convert %s to %s", in, out)
	}
	if in == out {
		copy(dst[:n*in.Size()], src[:n*in.Size()])
		return nil
	}
	le := binary.LittleEndian
	switch out {
	case Float32:
		for i := 0; i < n; i++ {
			le.PutUint32(dst[4*i:], math.Float32bits(float32(Float(src, in, i))))
		}
	case Int32:
		for i := 0; i < n; i++ {
			le.PutUint32(dst[4*i:], uint32(Uint16AsInt32(le.Uint16(src[2*i:]))))
		}
	}
	return nil
}

// Uint16AsInt32 widens a stored 16-bit pattern. Patterns that are
// non-negative as int16 are kept; negative ones become v + 65536.
func Uint16AsInt32(bits uint16) int32 {
	v := int32(int16(bits))
	if v >= 0 {
		return v
	}
	return 65536 + v
}

// Float returns element i of a little-endian buffer of kind d as a float64.
func Float(buf []byte, d Datatype, i int) float64 {
	le := binary.LittleEndian
	switch d {
	case Uint8:
		return float64(buf[i])
	case Int16:
		return float64(int16(le.Uint16(buf[2*i:])))
	case Uint16:
		return float64(le.Uint16(buf[2*i:]))
	case Int32:
		return float64(int32(le.Uint32(buf[4*i:])))
	case Float32:
		return float64(math.Float32frombits(le.Uint32(buf[4*i:])))
	case Float64:
		return math.Float64frombits(le.Uint64(buf[8*i:]))
	case Int64:
		return float64(int64(le.Uint64(buf[8*i:])))
	}
	return 0
}
