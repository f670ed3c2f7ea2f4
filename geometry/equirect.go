// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import "fmt"

// EquirectGeometry maps a whole equirectangular image onto the sphere.
// Every level is a single tile, so every tile has at most one child.
type EquirectGeometry struct {
	levelList
}

// NewEquirectGeometry validates levels and returns an equirect geometry.
func NewEquirectGeometry(levels []Level) (*EquirectGeometry, error) {
	ll, err := newLevelList(levels, func(parent, child Level) error { return nil })
	if err != nil {
		return nil, err
	}
	return &EquirectGeometry{levelList: ll}, nil
}

// Tile returns the tile of level z.
func (g *EquirectGeometry) Tile(z int) (EquirectTile, error) {
	if _, err := g.level(z); err != nil {
		return EquirectTile{}, err
	}
	return EquirectTile{Level: z, geometry: g}, nil
}

// LevelTiles appends the single tile of level z to dst.
func (g *EquirectGeometry) LevelTiles(z int, dst []Tile) ([]Tile, error) {
	if _, err := g.level(z); err != nil {
		return dst, err
	}
	return append(dst, EquirectTile{Level: z, geometry: g}), nil
}

// VisibleTiles appends the tile of level to dst. The sphere is always
// partly visible, so the view is not consulted.
func (g *EquirectGeometry) VisibleTiles(_ View, level Level, dst []Tile) ([]Tile, error) {
	z, err := g.LevelIndex(level)
	if err != nil {
		return dst, err
	}
	return append(dst, EquirectTile{Level: z, geometry: g}), nil
}

// EquirectTile is the tile of one [EquirectGeometry] level.
type EquirectTile struct {
	Level int

	geometry *EquirectGeometry
}

var _ Tile = EquirectTile{}

func (EquirectTile) isTile() {}

// Z returns the level index.
func (t EquirectTile) Z() int { return t.Level }

// Geometry returns the owning geometry.
func (t EquirectTile) Geometry() Geometry { return t.geometry }

// Parent returns the tile of the previous level.
func (t EquirectTile) Parent() (Tile, bool) {
	if t.Level == 0 {
		return nil, false
	}
	return EquirectTile{Level: t.Level - 1, geometry: t.geometry}, true
}

// Children appends the tile of the next level.
func (t EquirectTile) Children(dst []Tile) ([]Tile, bool) {
	if t.Level == len(t.geometry.levels)-1 {
		return dst, false
	}
	return append(dst, EquirectTile{Level: t.Level + 1, geometry: t.geometry}), true
}

// Neighbors returns nil; a level has a single tile.
func (t EquirectTile) Neighbors() []Tile {
	return nil
}

// Vertices returns dst unchanged; the tile wraps the whole sphere.
func (t EquirectTile) Vertices(dst []Vec3) []Vec3 {
	return dst
}

// Center returns the origin.
func (EquirectTile) Center() (x, y float64) { return 0, 0 }

// Scale returns 1 on both axes.
func (EquirectTile) Scale() (x, y float64) { return 1, 1 }

// Hash returns a hash of the level index.
func (t EquirectTile) Hash() uint64 {
	return hashInts(t.Level)
}

// Equal reports whether other is the same equirect tile.
func (t EquirectTile) Equal(other Tile) bool {
	o, ok := other.(EquirectTile)
	return ok && o == t
}

// Cmp orders by level.
func (t EquirectTile) Cmp(other Tile) int {
	return compareKeys(keyOf(t), keyOf(other))
}

func (t EquirectTile) String() string {
	return fmt.Sprintf("EquirectTile(%d)", t.Level)
}
