// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

// Geometry owns a level list and produces the tiles of each level.
//
// Implementations: [CubeGeometry], [FlatGeometry], [EquirectGeometry].
type Geometry interface {
	// Levels returns every level sorted by ascending size.
	Levels() []Level

	// SelectableLevels returns the levels eligible for view-driven
	// selection. It is never empty.
	SelectableLevels() []Level

	// LevelIndex returns the index of level in Levels.
	LevelIndex(level Level) (int, error)

	// MaxTileSize returns the largest tile edge in pixels.
	MaxTileSize() int

	// VisibleTiles appends the tiles of level that v can see to dst.
	VisibleTiles(v View, level Level, dst []Tile) ([]Tile, error)

	// LevelTiles appends every tile of level z to dst.
	LevelTiles(z int, dst []Tile) ([]Tile, error)
}

var (
	_ Geometry = (*CubeGeometry)(nil)
	_ Geometry = (*FlatGeometry)(nil)
	_ Geometry = (*EquirectGeometry)(nil)
)

// View is the camera contract consumed by geometries.
type View interface {
	// Size returns the viewport size in pixels.
	Size() (width, height int)

	// Intersects reports whether the polygon given by vertices may be
	// visible. False positives are allowed, false negatives are not.
	Intersects(vertices []Vec3) bool

	// SelectLevel picks the level to display from levels, which are sorted
	// by ascending size.
	SelectLevel(levels []Level) (Level, error)
}

// RayView is a View looking out from the centre of a sphere.
type RayView interface {
	View

	// CenterRay returns the world-space direction of the ray through the
	// centre of the viewport.
	CenterRay() Vec3
}

// PlanarView is a View looking at an image plane.
type PlanarView interface {
	View

	// Center returns the image point under the centre of the viewport,
	// in [0, 1] from the top left corner.
	Center() (x, y float64)
}
