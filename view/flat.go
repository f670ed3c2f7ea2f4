// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package view

import (
	"math"

	"github.com/gogpu/pano/geometry"
)

// FlatOption configures a Flat view.
type FlatOption func(*Flat)

// WithCenter sets the image point under the viewport centre, in [0, 1]
// from the top left corner.
func WithCenter(x, y float64) FlatOption {
	return func(v *Flat) { v.x, v.y = x, y }
}

// WithZoom sets the visible fraction of the image width.
func WithZoom(zoom float64) FlatOption {
	return func(v *Flat) { v.zoom = zoom }
}

// WithMediaAspectRatio sets the image width divided by its height.
func WithMediaAspectRatio(ratio float64) FlatOption {
	return func(v *Flat) { v.mediaAspect = ratio }
}

// Flat is an orthographic camera over an image plane.
type Flat struct {
	x, y          float64
	zoom          float64
	mediaAspect   float64
	width, height int
}

var _ geometry.PlanarView = (*Flat)(nil)

// NewFlat returns a view of the given viewport size showing the whole
// width of a square image.
func NewFlat(width, height int, opts ...FlatOption) *Flat {
	v := &Flat{x: 0.5, y: 0.5, zoom: 1, mediaAspect: 1}
	for _, opt := range opts {
		opt(v)
	}
	v.zoom = clampPositive(v.zoom, 1)
	v.mediaAspect = clampPositive(v.mediaAspect, 1)
	v.SetSize(width, height)
	return v
}

func clampPositive(x, fallback float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return fallback
	}
	return x
}

// Size returns the viewport size in pixels.
func (v *Flat) Size() (width, height int) {
	return v.width, v.height
}

// SetSize changes the viewport size. Non-positive sizes become 1.
func (v *Flat) SetSize(width, height int) {
	v.width, v.height = max(width, 1), max(height, 1)
}

// Center returns the image point under the viewport centre.
func (v *Flat) Center() (x, y float64) {
	return v.x, v.y
}

// SetCenter moves the viewport centre to the image point (x, y).
func (v *Flat) SetCenter(x, y float64) {
	v.x, v.y = x, y
}

// Zoom returns the visible fraction of the image width.
func (v *Flat) Zoom() float64 { return v.zoom }

// SetZoom sets the visible fraction of the image width. Non-positive
// values are ignored.
func (v *Flat) SetZoom(zoom float64) {
	v.zoom = clampPositive(zoom, v.zoom)
}

// MediaAspectRatio returns the image width divided by its height.
func (v *Flat) MediaAspectRatio() float64 { return v.mediaAspect }

// SetMediaAspectRatio sets the image width divided by its height.
func (v *Flat) SetMediaAspectRatio(ratio float64) {
	v.mediaAspect = clampPositive(ratio, v.mediaAspect)
}

// Rect returns the visible region in normalized image coordinates:
// [-0.5, 0.5] on both axes with Y up.
func (v *Flat) Rect() (left, right, bottom, top float64) {
	cx, cy := v.x-0.5, 0.5-v.y
	hw := v.zoom / 2
	hh := v.zoom * float64(v.height) / float64(v.width) * v.mediaAspect / 2
	return cx - hw, cx + hw, cy - hh, cy + hh
}

// Intersects reports whether the polygon may be visible: for every edge
// of the visible rectangle at least one vertex lies on its inner side.
func (v *Flat) Intersects(vertices []geometry.Vec3) bool {
	left, right, bottom, top := v.Rect()
	var inLeft, inRight, inBottom, inTop bool
	for _, p := range vertices {
		inLeft = inLeft || p.X >= left
		inRight = inRight || p.X <= right
		inBottom = inBottom || p.Y >= bottom
		inTop = inTop || p.Y <= top
	}
	return inLeft && inRight && inBottom && inTop
}

// SelectLevel returns the first level at least as wide as the image
// width the viewport needs at the current zoom, or the largest level.
func (v *Flat) SelectLevel(levels []geometry.Level) (geometry.Level, error) {
	if len(levels) == 0 {
		return geometry.Level{}, ErrNoLevels
	}
	required := float64(v.width) / v.zoom
	for _, l := range levels {
		if float64(l.Width) >= required {
			return l, nil
		}
	}
	return levels[len(levels)-1], nil
}
