// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

// Searcher finds the tiles visible in a view by flood-filling the tile
// neighbor graph from a starting tile.
//
// A Searcher keeps its stack, visited set and vertex buffer between calls
// to avoid reallocating them every frame. It is therefore not reentrant:
// concurrent or nested calls on one Searcher are not allowed.
type Searcher struct {
	stack    []Tile
	visited  *TileSet
	vertices []Vec3
}

// NewSearcher returns a ready Searcher.
func NewSearcher() *Searcher {
	return &Searcher{
		visited:  NewTileSet(0),
		vertices: make([]Vec3, 0, 4),
	}
}

// Search appends every tile reachable from start through visible tiles to
// dst and returns the extended slice and the number of tiles appended.
//
// A tile is visible if v.Intersects accepts its vertices. If start itself
// is not visible, nothing is appended and the count is zero.
func (s *Searcher) Search(v View, start Tile, dst []Tile) ([]Tile, int) {
	s.clear()
	defer s.clear()

	n := 0
	s.stack = append(s.stack, start)
	for len(s.stack) > 0 {
		last := len(s.stack) - 1
		t := s.stack[last]
		s.stack[last] = nil
		s.stack = s.stack[:last]

		if s.visited.Has(t) {
			continue
		}
		s.vertices = t.Vertices(s.vertices[:0])
		if !v.Intersects(s.vertices) {
			continue
		}

		s.visited.Add(t)
		s.stack = append(s.stack, t.Neighbors()...)
		dst = append(dst, t)
		n++
	}
	return dst, n
}

func (s *Searcher) clear() {
	clear(s.stack)
	s.stack = s.stack[:0]
	s.visited.Clear()
}
