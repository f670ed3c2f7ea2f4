// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import (
	"cmp"
	"fmt"
	"slices"
)

// Level is one resolution step of a geometry.
// Levels are plain values; two levels are the same if all fields match.
type Level struct {
	// Width and Height are the level dimensions in pixels. For cube levels
	// they are the size of one face.
	Width, Height int

	// TileWidth and TileHeight are the tile dimensions in pixels. Tiles in
	// the last row or column may be smaller.
	TileWidth, TileHeight int

	// FallbackOnly excludes the level from view-driven selection. It can
	// still be pinned as a last-resort fallback.
	FallbackOnly bool
}

// CubeLevel returns a cube level with faces of size pixels cut into
// square tiles of tileSize pixels.
func CubeLevel(size, tileSize int) Level {
	return Level{Width: size, Height: size, TileWidth: tileSize, TileHeight: tileSize}
}

// FlatLevel returns a flat level of width×height pixels cut into
// tileWidth×tileHeight tiles.
func FlatLevel(width, height, tileWidth, tileHeight int) Level {
	return Level{Width: width, Height: height, TileWidth: tileWidth, TileHeight: tileHeight}
}

// EquirectLevel returns an equirectangular level of the given width. The
// whole image is a single tile.
func EquirectLevel(width int) Level {
	return Level{Width: width, Height: width / 2, TileWidth: width, TileHeight: width / 2}
}

// AsFallback returns a copy of l marked fallback-only.
func (l Level) AsFallback() Level {
	l.FallbackOnly = true
	return l
}

// NumHorizontalTiles returns the number of tile columns.
func (l Level) NumHorizontalTiles() int {
	return ceilDiv(l.Width, l.TileWidth)
}

// NumVerticalTiles returns the number of tile rows.
func (l Level) NumVerticalTiles() int {
	return ceilDiv(l.Height, l.TileHeight)
}

// String returns a compact description like "1024x512/256x256".
func (l Level) String() string {
	s := fmt.Sprintf("%dx%d/%dx%d", l.Width, l.Height, l.TileWidth, l.TileHeight)
	if l.FallbackOnly {
		s += " (fallback)"
	}
	return s
}

func (l Level) validate() error {
	if l.Width <= 0 || l.Height <= 0 || l.TileWidth <= 0 || l.TileHeight <= 0 {
		return fmt.Errorf("%w: level %v has non-positive dimensions", ErrInvalidLevels, l)
	}
	return nil
}

// levelList is the shared level bookkeeping of every geometry kind.
type levelList struct {
	levels     []Level
	selectable []Level
}

// newLevelList sorts levels ascending, validates each against its parent
// with checkParent and splits out the selectable levels.
func newLevelList(levels []Level, checkParent func(parent, child Level) error) (levelList, error) {
	if len(levels) == 0 {
		return levelList{}, fmt.Errorf("%w: empty", ErrInvalidLevels)
	}

	sorted := slices.Clone(levels)
	slices.SortStableFunc(sorted, func(a, b Level) int {
		if c := cmp.Compare(a.Width, b.Width); c != 0 {
			return c
		}
		return cmp.Compare(a.Height, b.Height)
	})

	for i, l := range sorted {
		if err := l.validate(); err != nil {
			return levelList{}, err
		}
		if i == 0 {
			continue
		}
		parent := sorted[i-1]
		if l.Width <= parent.Width || l.Height < parent.Height {
			return levelList{}, fmt.Errorf("%w: level %v does not grow past %v", ErrInvalidLevels, l, parent)
		}
		if err := checkParent(parent, l); err != nil {
			return levelList{}, err
		}
	}

	var selectable []Level
	for _, l := range sorted {
		if !l.FallbackOnly {
			selectable = append(selectable, l)
		}
	}
	if len(selectable) == 0 {
		return levelList{}, ErrNoSelectableLevels
	}

	return levelList{levels: sorted, selectable: selectable}, nil
}

// checkGridParent enforces that a child level is an integer multiple of
// its parent in size and tile count on both axes.
func checkGridParent(parent, child Level) error {
	if child.Width%parent.Width != 0 || child.Height%parent.Height != 0 {
		return fmt.Errorf("%w: level %v is not a multiple of parent %v", ErrInvalidLevels, child, parent)
	}
	if child.NumHorizontalTiles()%parent.NumHorizontalTiles() != 0 ||
		child.NumVerticalTiles()%parent.NumVerticalTiles() != 0 {
		return fmt.Errorf("%w: tile count of %v is not a multiple of parent %v", ErrInvalidLevels, child, parent)
	}
	return nil
}

// Levels returns all levels, sorted ascending by size. The slice must not
// be modified.
func (ll *levelList) Levels() []Level {
	return ll.levels
}

// SelectableLevels returns the levels that are not fallback-only.
// The slice must not be modified.
func (ll *levelList) SelectableLevels() []Level {
	return ll.selectable
}

// LevelIndex returns the index of level in Levels.
func (ll *levelList) LevelIndex(level Level) (int, error) {
	for i, l := range ll.levels {
		if l == level {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %v", ErrLevelNotFound, level)
}

// MaxTileSize returns the largest tile edge over all levels.
func (ll *levelList) MaxTileSize() int {
	size := 0
	for _, l := range ll.levels {
		size = max(size, l.TileWidth, l.TileHeight)
	}
	return size
}

func (ll *levelList) level(z int) (Level, error) {
	if z < 0 || z >= len(ll.levels) {
		return Level{}, fmt.Errorf("%w: %d", ErrInvalidLevelIndex, z)
	}
	return ll.levels[z], nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// childSpan returns the inclusive range of child indices along one axis
// covering the pixels of tile idx. Levels are validated so that scale is
// an integer.
func childSpan(idx int, level, next Level, horizontal bool) (lo, hi int) {
	size, tile, nextSize, nextTile, nextNum := level.Height, level.TileHeight, next.Height, next.TileHeight, next.NumVerticalTiles()
	if horizontal {
		size, tile, nextSize, nextTile, nextNum = level.Width, level.TileWidth, next.Width, next.TileWidth, next.NumHorizontalTiles()
	}
	scale := nextSize / size
	start := idx * tile * scale
	end := min((idx+1)*tile, size) * scale
	lo = start / nextTile
	hi = min(ceilDiv(end, nextTile), nextNum) - 1
	return lo, hi
}

// parentIndex returns the index along one axis of the parent tile
// containing tile idx.
func parentIndex(idx int, level, parent Level, horizontal bool) int {
	size, tile, parentSize, parentTile := level.Height, level.TileHeight, parent.Height, parent.TileHeight
	if horizontal {
		size, tile, parentSize, parentTile = level.Width, level.TileWidth, parent.Width, parent.TileWidth
	}
	scale := size / parentSize
	return idx * tile / scale / parentTile
}

// tileBounds returns the normalized [-0.5, 0.5] extent of tile idx along
// one axis, measured from the low edge of the level.
func tileBounds(idx int, level Level, horizontal bool) (lo, hi float64) {
	size, tile := level.Height, level.TileHeight
	if horizontal {
		size, tile = level.Width, level.TileWidth
	}
	start := idx * tile
	end := min(start+tile, size)
	return float64(start)/float64(size) - 0.5, float64(end)/float64(size) - 0.5
}
