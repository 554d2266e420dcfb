// Package vec3 provides the small amount of 3-vector arithmetic needed to
// orient image slices in scanner space.
//
// Vectors are gonum [r3.Vec] values. The helpers here add the operations the
// slice geometry code needs on top of gonum (normalization that reports
// degenerate input, affine combination) and the mapping between vectors and
// the three-key ".0/.1/.2" convention used in [meta.Info].
//
// [r3.Vec]: https://pkg.go.dev/gonum.org/v1/gonum/spatial/r3#Vec
package vec3
