// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/pano/internal/cache"
)

// neighborCacheSize bounds the per-geometry neighbor cache.
const neighborCacheSize = 64

// faceRotation is the rotation taking the front face onto each face,
// applied as X then Y.
var faceRotation = [numFaces]struct{ x, y float64 }{
	FaceFront: {0, 0},
	FaceRight: {0, -math.Pi / 2},
	FaceBack:  {0, math.Pi},
	FaceLeft:  {0, math.Pi / 2},
	FaceUp:    {math.Pi / 2, 0},
	FaceDown:  {-math.Pi / 2, 0},
}

// faceNormals are the outward unit normals of the faces.
var faceNormals = func() [numFaces]Vec3 {
	var n [numFaces]Vec3
	for _, f := range Faces {
		n[f] = rotateToWorld(Vec3{0, 0, -1}, f)
	}
	return n
}()

// neighborOffsets are the 4-neighborhood steps in (x, y) tile units.
var neighborOffsets = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

func rotateToWorld(v Vec3, f Face) Vec3 {
	r := faceRotation[f]
	return v.RotateX(r.x).RotateY(r.y)
}

func rotateFromWorld(v Vec3, f Face) Vec3 {
	r := faceRotation[f]
	return v.RotateY(-r.y).RotateX(-r.x)
}

// closestFace returns the face whose normal is best aligned with v.
func closestFace(v Vec3) Face {
	best, bestDot := FaceFront, math.Inf(-1)
	for _, f := range Faces {
		if d := faceNormals[f].Dot(v); d > bestDot {
			best, bestDot = f, d
		}
	}
	return best
}

// CubeGeometry is a cube map: six square faces sharing one level list.
//
// The cube is centred on the origin with unit edge length; the front face
// lies on the plane z = -0.5.
type CubeGeometry struct {
	levelList

	neighbors *cache.LRU[Tile, []Tile]

	searchMu sync.Mutex
	searcher *Searcher
}

// NewCubeGeometry validates levels and returns a cube geometry.
// Each level's face size and tile count must be an integer multiple of
// the previous level's.
func NewCubeGeometry(levels []Level) (*CubeGeometry, error) {
	for _, l := range levels {
		if l.Width != l.Height {
			return nil, fmt.Errorf("%w: cube level %v is not square", ErrInvalidLevels, l)
		}
	}
	ll, err := newLevelList(levels, checkGridParent)
	if err != nil {
		return nil, err
	}
	return &CubeGeometry{
		levelList: ll,
		neighbors: cache.New[Tile, []Tile](neighborCacheSize),
		searcher:  NewSearcher(),
	}, nil
}

// Tile returns the tile at the given coordinates.
func (g *CubeGeometry) Tile(face Face, x, y, z int) (CubeTile, error) {
	level, err := g.level(z)
	if err != nil {
		return CubeTile{}, err
	}
	if face >= numFaces || x < 0 || y < 0 || x >= level.NumHorizontalTiles() || y >= level.NumVerticalTiles() {
		return CubeTile{}, fmt.Errorf("%w: %v%d,%d@%d", ErrInvalidTile, face, x, y, z)
	}
	return CubeTile{Face: face, X: x, Y: y, Level: z, geometry: g}, nil
}

// LevelTiles appends every tile of level z to dst.
func (g *CubeGeometry) LevelTiles(z int, dst []Tile) ([]Tile, error) {
	level, err := g.level(z)
	if err != nil {
		return dst, err
	}
	for _, f := range Faces {
		for y := range level.NumVerticalTiles() {
			for x := range level.NumHorizontalTiles() {
				dst = append(dst, CubeTile{Face: f, X: x, Y: y, Level: z, geometry: g})
			}
		}
	}
	return dst, nil
}

// VisibleTiles appends the tiles of level visible in v to dst.
// v must implement [RayView].
func (g *CubeGeometry) VisibleTiles(v View, level Level, dst []Tile) ([]Tile, error) {
	z, err := g.LevelIndex(level)
	if err != nil {
		return dst, err
	}
	rv, ok := v.(RayView)
	if !ok {
		return dst, fmt.Errorf("%w: cube geometry needs a RayView, got %T", ErrIncompatibleView, v)
	}

	start := g.closestTile(rv.CenterRay(), z)

	g.searchMu.Lock()
	dst, n := g.searcher.Search(v, start, dst)
	g.searchMu.Unlock()

	if n == 0 {
		return dst, fmt.Errorf("%w: %v", ErrStartingTileNotVisible, start)
	}
	return dst, nil
}

// closestTile returns the tile of level z hit by the ray.
func (g *CubeGeometry) closestTile(ray Vec3, z int) CubeTile {
	face := closestFace(ray)
	local := rotateFromWorld(ray, face)
	// Project onto the face plane z = -0.5.
	local = local.Scale(-0.5 / local.Z)
	return g.clampTile(face, local, z)
}

// clampTile returns the tile of face and level z containing the point p,
// given in the face's own frame, clamping p into the face.
func (g *CubeGeometry) clampTile(face Face, p Vec3, z int) CubeTile {
	level := g.levels[z]
	x := int(math.Floor((0.5 + p.X) * float64(level.Width) / float64(level.TileWidth)))
	y := int(math.Floor((0.5 - p.Y) * float64(level.Height) / float64(level.TileHeight)))
	x = min(max(x, 0), level.NumHorizontalTiles()-1)
	y = min(max(y, 0), level.NumVerticalTiles()-1)
	return CubeTile{Face: face, X: x, Y: y, Level: z, geometry: g}
}

// CubeTile is a tile of a [CubeGeometry].
type CubeTile struct {
	Face  Face
	X, Y  int
	Level int

	geometry *CubeGeometry
}

var _ Tile = CubeTile{}

func (CubeTile) isTile() {}

// Z returns the level index.
func (t CubeTile) Z() int { return t.Level }

// Geometry returns the owning geometry.
func (t CubeTile) Geometry() Geometry { return t.geometry }

func (t CubeTile) level() Level { return t.geometry.levels[t.Level] }

// Parent returns the tile covering t one level up.
func (t CubeTile) Parent() (Tile, bool) {
	if t.Level == 0 {
		return nil, false
	}
	level, parent := t.level(), t.geometry.levels[t.Level-1]
	return CubeTile{
		Face:     t.Face,
		X:        parentIndex(t.X, level, parent, true),
		Y:        parentIndex(t.Y, level, parent, false),
		Level:    t.Level - 1,
		geometry: t.geometry,
	}, true
}

// Children appends the tiles covering t one level down.
func (t CubeTile) Children(dst []Tile) ([]Tile, bool) {
	if t.Level == len(t.geometry.levels)-1 {
		return dst, false
	}
	level, next := t.level(), t.geometry.levels[t.Level+1]
	x0, x1 := childSpan(t.X, level, next, true)
	y0, y1 := childSpan(t.Y, level, next, false)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dst = append(dst, CubeTile{Face: t.Face, X: x, Y: y, Level: t.Level + 1, geometry: t.geometry})
		}
	}
	return dst, true
}

// Neighbors returns the four edge-adjacent tiles. Steps off a face edge
// continue on the adjacent face.
func (t CubeTile) Neighbors() []Tile {
	if cached, ok := t.geometry.neighbors.Get(t); ok {
		return cached
	}

	level := t.level()
	numX, numY := level.NumHorizontalTiles(), level.NumVerticalTiles()
	left, right, bottom, top := t.bounds()
	cx, cy := (left+right)/2, (bottom+top)/2

	result := make([]Tile, 0, len(neighborOffsets))
	for _, off := range neighborOffsets {
		x, y := t.X+off[0], t.Y+off[1]
		if x >= 0 && x < numX && y >= 0 && y < numY {
			result = append(result, CubeTile{Face: t.Face, X: x, Y: y, Level: t.Level, geometry: t.geometry})
			continue
		}

		// Point just across the edge, in the source face frame. Tile rows
		// grow downwards while face Y grows upwards.
		p := Vec3{
			X: cx + float64(off[0])*(right-left),
			Y: cy - float64(off[1])*(top-bottom),
			Z: -0.5,
		}
		world := rotateToWorld(p, t.Face)
		face := closestFace(world)
		local := rotateFromWorld(world, face)
		local = local.Scale(-0.5 / local.Z)
		result = append(result, t.geometry.clampTile(face, local, t.Level))
	}

	t.geometry.neighbors.Add(t, result)
	return result
}

// bounds returns the tile extent in the face plane, Y up.
func (t CubeTile) bounds() (left, right, bottom, top float64) {
	level := t.level()
	left, right = tileBounds(t.X, level, true)
	y0, y1 := tileBounds(t.Y, level, false)
	return left, right, -y1, -y0
}

// Vertices appends the tile corners on the unit cube.
func (t CubeTile) Vertices(dst []Vec3) []Vec3 {
	left, right, bottom, top := t.bounds()
	return append(dst,
		rotateToWorld(Vec3{left, top, -0.5}, t.Face),
		rotateToWorld(Vec3{right, top, -0.5}, t.Face),
		rotateToWorld(Vec3{right, bottom, -0.5}, t.Face),
		rotateToWorld(Vec3{left, bottom, -0.5}, t.Face),
	)
}

// Center returns the tile centre in the face plane.
func (t CubeTile) Center() (x, y float64) {
	left, right, bottom, top := t.bounds()
	return (left + right) / 2, (bottom + top) / 2
}

// Scale returns the tile size as a fraction of the face.
func (t CubeTile) Scale() (x, y float64) {
	left, right, bottom, top := t.bounds()
	return right - left, top - bottom
}

// Hash returns a hash of the tile coordinates.
func (t CubeTile) Hash() uint64 {
	return hashInts(int(t.Face), t.Level, t.Y, t.X)
}

// Equal reports whether other is the same cube tile.
func (t CubeTile) Equal(other Tile) bool {
	o, ok := other.(CubeTile)
	return ok && o == t
}

// Cmp orders by level, face, row and column.
func (t CubeTile) Cmp(other Tile) int {
	return compareKeys(keyOf(t), keyOf(other))
}

func (t CubeTile) String() string {
	return fmt.Sprintf("CubeTile(%v, %d, %d, %d)", t.Face, t.X, t.Y, t.Level)
}
