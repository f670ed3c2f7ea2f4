// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/pano/internal/cache"
)

// FlatGeometry is a single image plane. Normalized image coordinates run
// from -0.5 to 0.5 on both axes with Y pointing up.
type FlatGeometry struct {
	levelList

	neighbors *cache.LRU[Tile, []Tile]

	searchMu sync.Mutex
	searcher *Searcher
}

// NewFlatGeometry validates levels and returns a flat geometry.
// Each level's size and tile counts must be integer multiples of the
// previous level's on both axes.
func NewFlatGeometry(levels []Level) (*FlatGeometry, error) {
	ll, err := newLevelList(levels, checkGridParent)
	if err != nil {
		return nil, err
	}
	return &FlatGeometry{
		levelList: ll,
		neighbors: cache.New[Tile, []Tile](neighborCacheSize),
		searcher:  NewSearcher(),
	}, nil
}

// Tile returns the tile at the given coordinates.
func (g *FlatGeometry) Tile(x, y, z int) (FlatTile, error) {
	level, err := g.level(z)
	if err != nil {
		return FlatTile{}, err
	}
	if x < 0 || y < 0 || x >= level.NumHorizontalTiles() || y >= level.NumVerticalTiles() {
		return FlatTile{}, fmt.Errorf("%w: %d,%d@%d", ErrInvalidTile, x, y, z)
	}
	return FlatTile{X: x, Y: y, Level: z, geometry: g}, nil
}

// LevelTiles appends every tile of level z to dst.
func (g *FlatGeometry) LevelTiles(z int, dst []Tile) ([]Tile, error) {
	level, err := g.level(z)
	if err != nil {
		return dst, err
	}
	for y := range level.NumVerticalTiles() {
		for x := range level.NumHorizontalTiles() {
			dst = append(dst, FlatTile{X: x, Y: y, Level: z, geometry: g})
		}
	}
	return dst, nil
}

// VisibleTiles appends the tiles of level visible in v to dst.
// v must implement [PlanarView].
func (g *FlatGeometry) VisibleTiles(v View, level Level, dst []Tile) ([]Tile, error) {
	z, err := g.LevelIndex(level)
	if err != nil {
		return dst, err
	}
	pv, ok := v.(PlanarView)
	if !ok {
		return dst, fmt.Errorf("%w: flat geometry needs a PlanarView, got %T", ErrIncompatibleView, v)
	}

	cx, cy := pv.Center()
	start := g.closestTile(cx, cy, z)

	g.searchMu.Lock()
	dst, n := g.searcher.Search(v, start, dst)
	g.searchMu.Unlock()

	if n == 0 {
		return dst, fmt.Errorf("%w: %v", ErrStartingTileNotVisible, start)
	}
	return dst, nil
}

// closestTile returns the tile of level z under the image point (x, y),
// given in [0, 1] from the top left corner.
func (g *FlatGeometry) closestTile(x, y float64, z int) FlatTile {
	level := g.levels[z]
	tx := int(math.Floor(x * float64(level.Width) / float64(level.TileWidth)))
	ty := int(math.Floor(y * float64(level.Height) / float64(level.TileHeight)))
	tx = min(max(tx, 0), level.NumHorizontalTiles()-1)
	ty = min(max(ty, 0), level.NumVerticalTiles()-1)
	return FlatTile{X: tx, Y: ty, Level: z, geometry: g}
}

// FlatTile is a tile of a [FlatGeometry].
type FlatTile struct {
	X, Y  int
	Level int

	geometry *FlatGeometry
}

var _ Tile = FlatTile{}

func (FlatTile) isTile() {}

// Z returns the level index.
func (t FlatTile) Z() int { return t.Level }

// Geometry returns the owning geometry.
func (t FlatTile) Geometry() Geometry { return t.geometry }

func (t FlatTile) level() Level { return t.geometry.levels[t.Level] }

// Parent returns the tile covering t one level up.
func (t FlatTile) Parent() (Tile, bool) {
	if t.Level == 0 {
		return nil, false
	}
	level, parent := t.level(), t.geometry.levels[t.Level-1]
	return FlatTile{
		X:        parentIndex(t.X, level, parent, true),
		Y:        parentIndex(t.Y, level, parent, false),
		Level:    t.Level - 1,
		geometry: t.geometry,
	}, true
}

// Children appends the tiles covering t one level down.
func (t FlatTile) Children(dst []Tile) ([]Tile, bool) {
	if t.Level == len(t.geometry.levels)-1 {
		return dst, false
	}
	level, next := t.level(), t.geometry.levels[t.Level+1]
	x0, x1 := childSpan(t.X, level, next, true)
	y0, y1 := childSpan(t.Y, level, next, false)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dst = append(dst, FlatTile{X: x, Y: y, Level: t.Level + 1, geometry: t.geometry})
		}
	}
	return dst, true
}

// Neighbors returns the edge-adjacent tiles inside the image.
func (t FlatTile) Neighbors() []Tile {
	if cached, ok := t.geometry.neighbors.Get(t); ok {
		return cached
	}

	level := t.level()
	numX, numY := level.NumHorizontalTiles(), level.NumVerticalTiles()
	result := make([]Tile, 0, len(neighborOffsets))
	for _, off := range neighborOffsets {
		x, y := t.X+off[0], t.Y+off[1]
		if x >= 0 && x < numX && y >= 0 && y < numY {
			result = append(result, FlatTile{X: x, Y: y, Level: t.Level, geometry: t.geometry})
		}
	}

	t.geometry.neighbors.Add(t, result)
	return result
}

// Bounds returns the tile extent in normalized image coordinates, Y up.
func (t FlatTile) Bounds() (left, right, bottom, top float64) {
	level := t.level()
	left, right = tileBounds(t.X, level, true)
	y0, y1 := tileBounds(t.Y, level, false)
	return left, right, -y1, -y0
}

// Vertices appends the tile corners in the image plane (Z = 0).
func (t FlatTile) Vertices(dst []Vec3) []Vec3 {
	left, right, bottom, top := t.Bounds()
	return append(dst,
		Vec3{X: left, Y: top},
		Vec3{X: right, Y: top},
		Vec3{X: right, Y: bottom},
		Vec3{X: left, Y: bottom},
	)
}

// Center returns the tile centre in normalized image coordinates.
func (t FlatTile) Center() (x, y float64) {
	left, right, bottom, top := t.Bounds()
	return (left + right) / 2, (bottom + top) / 2
}

// Scale returns the tile size as a fraction of the image.
func (t FlatTile) Scale() (x, y float64) {
	left, right, bottom, top := t.Bounds()
	return right - left, top - bottom
}

// PixelRect returns the tile rectangle in level pixels: origin, width and
// height. Edge tiles may be smaller than the nominal tile size.
func (t FlatTile) PixelRect() (x, y, width, height int) {
	level := t.level()
	x, y = t.X*level.TileWidth, t.Y*level.TileHeight
	width = min(level.TileWidth, level.Width-x)
	height = min(level.TileHeight, level.Height-y)
	return x, y, width, height
}

// Hash returns a hash of the tile coordinates.
func (t FlatTile) Hash() uint64 {
	return hashInts(t.Level, t.Y, t.X)
}

// Equal reports whether other is the same flat tile.
func (t FlatTile) Equal(other Tile) bool {
	o, ok := other.(FlatTile)
	return ok && o == t
}

// Cmp orders by level, row and column.
func (t FlatTile) Cmp(other Tile) int {
	return compareKeys(keyOf(t), keyOf(other))
}

func (t FlatTile) String() string {
	return fmt.Sprintf("FlatTile(%d, %d, %d)", t.X, t.Y, t.Level)
}
