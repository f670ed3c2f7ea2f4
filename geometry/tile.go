// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import "cmp"

// Tile addresses one tile of one level of a geometry.
//
// Tile is a closed set: [CubeTile], [FlatTile] and [EquirectTile]. All of
// them are comparable values, so == and map keys work, and a tile rebuilt
// from the same coordinates is equal to the original.
type Tile interface {
	// Z returns the level index of the tile.
	Z() int

	// Geometry returns the geometry the tile belongs to.
	Geometry() Geometry

	// Parent returns the tile one level up covering this tile.
	// It returns false on the first level.
	Parent() (Tile, bool)

	// Children appends the tiles one level down covering this tile to dst.
	// It returns false, and dst unchanged, on the last level.
	Children(dst []Tile) ([]Tile, bool)

	// Neighbors returns the adjacent tiles on the same level.
	// The returned slice is shared and must not be modified.
	Neighbors() []Tile

	// Vertices appends the four corners of the tile to dst, clockwise from
	// the top left.
	Vertices(dst []Vec3) []Vec3

	// Center returns the tile centre in normalized face or image
	// coordinates, in [-0.5, 0.5] with Y up.
	Center() (x, y float64)

	// Scale returns the tile size as a fraction of the face or image.
	Scale() (x, y float64)

	// Hash returns a hash consistent with Equal.
	Hash() uint64

	// Equal reports whether other addresses the same tile.
	Equal(other Tile) bool

	// Cmp orders tiles by level, then face, row and column.
	Cmp(other Tile) int

	// String returns a debug representation.
	String() string

	isTile()
}

// Face identifies one face of a cube.
type Face uint8

// Cube faces. The front face looks down -Z.
const (
	FaceFront Face = iota
	FaceRight
	FaceBack
	FaceLeft
	FaceUp
	FaceDown

	numFaces = 6
)

// Faces lists every cube face in order.
var Faces = [numFaces]Face{FaceFront, FaceRight, FaceBack, FaceLeft, FaceUp, FaceDown}

// String returns the single-letter face name.
func (f Face) String() string {
	switch f {
	case FaceFront:
		return "f"
	case FaceRight:
		return "r"
	case FaceBack:
		return "b"
	case FaceLeft:
		return "l"
	case FaceUp:
		return "u"
	case FaceDown:
		return "d"
	default:
		return "?"
	}
}

// tileKey is the common ordering key of every tile kind.
type tileKey struct {
	kind    int
	z, face int
	y, x    int
}

func compareKeys(a, b tileKey) int {
	if c := cmp.Compare(a.z, b.z); c != 0 {
		return c
	}
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.face, b.face); c != 0 {
		return c
	}
	if c := cmp.Compare(a.y, b.y); c != 0 {
		return c
	}
	return cmp.Compare(a.x, b.x)
}

func keyOf(t Tile) tileKey {
	switch t := t.(type) {
	case CubeTile:
		return tileKey{kind: 0, z: t.Level, face: int(t.Face), y: t.Y, x: t.X}
	case FlatTile:
		return tileKey{kind: 1, z: t.Level, y: t.Y, x: t.X}
	case EquirectTile:
		return tileKey{kind: 2, z: t.Level}
	default:
		return tileKey{kind: -1, z: t.Z()}
	}
}

// CompareTiles orders a before b by ascending resolution.
// It is suitable for slices.SortFunc.
func CompareTiles(a, b Tile) int {
	return a.Cmp(b)
}
