package vec3

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-smartreader/meta"
)

// Vec is a point or direction in scanner space.
type Vec = r3.Vec

// New returns the vector (x, y, z).
func New(x, y, z float64) Vec { return Vec{X: x, Y: y, Z: z} }

// Sub returns a - b.
func Sub(a, b Vec) Vec { return r3.Sub(a, b) }

// Add returns a + b.
func Add(a, b Vec) Vec { return r3.Add(a, b) }

// Scale returns f*v.
func Scale(f float64, v Vec) Vec { return r3.Scale(f, v) }

// Dot returns the dot product of a and b.
func Dot(a, b Vec) float64 { return r3.Dot(a, b) }

// Cross returns a × b.
func Cross(a, b Vec) Vec { return r3.Cross(a, b) }

// Norm returns the Euclidean length of v.
func Norm(v Vec) float64 { return r3.Norm(v) }

// Normalize returns v scaled to unit length. ok is false for the zero vector.
func Normalize(v Vec) (u Vec, ok bool) {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) {
		return Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

// XPlusBY returns x + b*y.
func XPlusBY(x Vec, b float64, y Vec) Vec {
	return r3.Add(x, r3.Scale(b, y))
}

// Rotate applies the unit quaternion with vector part (b, c, d) to p. The
// scalar part is derived so the quaternion has unit length.
func Rotate(b, c, d float64, p Vec) Vec {
	w := 1 - (b*b + c*c + d*d)
	if w < 0 {
		w = 0
	}
	q := quat.Number{Real: math.Sqrt(w), Imag: b, Jmag: c, Kmag: d}
	return r3.Rotation(q).Rotate(p)
}

// Has reports whether all three components of prefix are present in info.
func Has(info *meta.Info, prefix string) bool {
	return info.Has(prefix+".0") && info.Has(prefix+".1") && info.Has(prefix+".2")
}

// Get reads the vector stored under prefix.0, prefix.1 and prefix.2.
func Get(info *meta.Info, prefix string) (Vec, bool) {
	if !Has(info, prefix) {
		return Vec{}, false
	}
	return New(info.Double(prefix+".0"), info.Double(prefix+".1"), info.Double(prefix+".2")), true
}

// Set stores v under prefix.0, prefix.1 and prefix.2.
func Set(info *meta.Info, prefix string, v Vec) {
	info.SetDouble(prefix+".0", v.X)
	info.SetDouble(prefix+".1", v.Y)
	info.SetDouble(prefix+".2", v.Z)
}
