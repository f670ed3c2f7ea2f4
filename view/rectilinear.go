// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package view

import (
	"math"

	"github.com/gogpu/pano/geometry"
)

// Field of view limits in radians.
const (
	DefaultFov = math.Pi / 4
	MinFov     = 1e-6
	MaxFov     = math.Pi - 1e-6
)

// RectilinearOption configures a Rectilinear view.
type RectilinearOption func(*Rectilinear)

// WithYaw sets the initial yaw in radians. Positive yaw turns right.
func WithYaw(yaw float64) RectilinearOption {
	return func(v *Rectilinear) { v.yaw = yaw }
}

// WithPitch sets the initial pitch in radians. Positive pitch looks up.
func WithPitch(pitch float64) RectilinearOption {
	return func(v *Rectilinear) { v.pitch = pitch }
}

// WithRoll sets the initial roll in radians.
func WithRoll(roll float64) RectilinearOption {
	return func(v *Rectilinear) { v.roll = roll }
}

// WithFov sets the initial vertical field of view in radians.
func WithFov(fov float64) RectilinearOption {
	return func(v *Rectilinear) { v.fov = fov }
}

// Rectilinear is a pinhole camera at the centre of the unit sphere.
//
// At zero yaw, pitch and roll it looks down -Z with Y up.
type Rectilinear struct {
	yaw, pitch, roll float64
	fov              float64
	width, height    int

	// World-space frustum plane normals and central ray, rebuilt lazily.
	planes [5]geometry.Vec3
	ray    geometry.Vec3
	dirty  bool
}

var _ geometry.RayView = (*Rectilinear)(nil)

// NewRectilinear returns a view of the given viewport size in pixels.
func NewRectilinear(width, height int, opts ...RectilinearOption) *Rectilinear {
	v := &Rectilinear{fov: DefaultFov}
	for _, opt := range opts {
		opt(v)
	}
	v.fov = clampFov(v.fov)
	v.SetSize(width, height)
	v.dirty = true
	return v
}

func clampFov(fov float64) float64 {
	if math.IsNaN(fov) {
		return DefaultFov
	}
	return min(max(fov, MinFov), MaxFov)
}

// Size returns the viewport size in pixels.
func (v *Rectilinear) Size() (width, height int) {
	return v.width, v.height
}

// SetSize changes the viewport size. Non-positive sizes become 1.
func (v *Rectilinear) SetSize(width, height int) {
	v.width, v.height = max(width, 1), max(height, 1)
	v.dirty = true
}

// Yaw returns the yaw in radians.
func (v *Rectilinear) Yaw() float64 { return v.yaw }

// Pitch returns the pitch in radians.
func (v *Rectilinear) Pitch() float64 { return v.pitch }

// Roll returns the roll in radians.
func (v *Rectilinear) Roll() float64 { return v.roll }

// Fov returns the vertical field of view in radians.
func (v *Rectilinear) Fov() float64 { return v.fov }

// SetYaw sets the yaw in radians.
func (v *Rectilinear) SetYaw(yaw float64) {
	v.yaw = yaw
	v.dirty = true
}

// SetPitch sets the pitch in radians.
func (v *Rectilinear) SetPitch(pitch float64) {
	v.pitch = pitch
	v.dirty = true
}

// SetRoll sets the roll in radians.
func (v *Rectilinear) SetRoll(roll float64) {
	v.roll = roll
	v.dirty = true
}

// SetFov sets the vertical field of view, clamped to (0, π).
func (v *Rectilinear) SetFov(fov float64) {
	v.fov = clampFov(fov)
	v.dirty = true
}

// HorizontalFov returns the horizontal field of view implied by the
// vertical one and the viewport aspect ratio.
func (v *Rectilinear) HorizontalFov() float64 {
	aspect := float64(v.width) / float64(v.height)
	return 2 * math.Atan(math.Tan(v.fov/2)*aspect)
}

// toWorld rotates a camera-space vector into world space.
func (v *Rectilinear) toWorld(p geometry.Vec3) geometry.Vec3 {
	return p.RotateZ(v.roll).RotateX(v.pitch).RotateY(-v.yaw)
}

func (v *Rectilinear) update() {
	if !v.dirty {
		return
	}
	hv := v.fov / 2
	hh := v.HorizontalFov() / 2
	sh, ch := math.Sincos(hh)
	sv, cv := math.Sincos(hv)

	camera := [5]geometry.Vec3{
		{X: ch, Z: -sh},  // left
		{X: -ch, Z: -sh}, // right
		{Y: cv, Z: -sv},  // bottom
		{Y: -cv, Z: -sv}, // top
		{Z: -1},          // near
	}
	for i, n := range camera {
		v.planes[i] = v.toWorld(n)
	}
	v.ray = v.toWorld(geometry.Vec3{Z: -1})
	v.dirty = false
}

// CenterRay returns the world-space direction the camera looks at.
func (v *Rectilinear) CenterRay() geometry.Vec3 {
	v.update()
	return v.ray
}

// Intersects reports whether the polygon may be visible: for every
// frustum plane at least one vertex lies on its inner side.
func (v *Rectilinear) Intersects(vertices []geometry.Vec3) bool {
	v.update()
	for _, n := range v.planes {
		inside := false
		for _, p := range vertices {
			if n.Dot(p) >= 0 {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

// SelectLevel returns the first level whose pixels cover the viewport
// height at the current field of view, or the largest level.
func (v *Rectilinear) SelectLevel(levels []geometry.Level) (geometry.Level, error) {
	if len(levels) == 0 {
		return geometry.Level{}, ErrNoLevels
	}
	cover := math.Tan(v.fov / 2)
	for _, l := range levels {
		if cover*float64(l.Height) >= float64(v.height) {
			return l, nil
		}
	}
	return levels[len(levels)-1], nil
}
