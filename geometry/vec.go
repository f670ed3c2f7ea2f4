// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import "math"

// Vec3 is a point or direction in 3D space.
// Flat geometries use X and Y only.
type Vec3 struct {
	X, Y, Z float64
}

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Scale returns v multiplied by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// RotateX rotates v around the X axis by rad radians.
func (v Vec3) RotateX(rad float64) Vec3 {
	if rad == 0 {
		return v
	}
	s, c := math.Sincos(rad)
	return Vec3{v.X, v.Y*c - v.Z*s, v.Y*s + v.Z*c}
}

// RotateY rotates v around the Y axis by rad radians.
func (v Vec3) RotateY(rad float64) Vec3 {
	if rad == 0 {
		return v
	}
	s, c := math.Sincos(rad)
	return Vec3{v.Z*s + v.X*c, v.Y, v.Z*c - v.X*s}
}

// RotateZ rotates v around the Z axis by rad radians.
func (v Vec3) RotateZ(rad float64) Vec3 {
	if rad == 0 {
		return v
	}
	s, c := math.Sincos(rad)
	return Vec3{v.X*c - v.Y*s, v.X*s + v.Y*c, v.Z}
}
