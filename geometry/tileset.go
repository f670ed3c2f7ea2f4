// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

// defaultTileSetBuckets is the bucket count used by NewTileSet(0).
const defaultTileSetBuckets = 64

// TileSet is a hash set of tiles with a fixed number of buckets.
//
// Clear keeps the bucket storage, so a set reused every frame stops
// allocating once its buckets have grown. The zero value is not usable;
// call NewTileSet.
//
// TileSet is not safe for concurrent use.
type TileSet struct {
	buckets [][]Tile
	size    int
}

// NewTileSet returns an empty set with the given number of buckets.
// A non-positive count selects a default.
func NewTileSet(buckets int) *TileSet {
	if buckets <= 0 {
		buckets = defaultTileSetBuckets
	}
	return &TileSet{buckets: make([][]Tile, buckets)}
}

func (s *TileSet) bucket(t Tile) int {
	return int(t.Hash() % uint64(len(s.buckets)))
}

// Add inserts t. It reports whether t was not already present.
func (s *TileSet) Add(t Tile) bool {
	b := s.bucket(t)
	for _, e := range s.buckets[b] {
		if e.Equal(t) {
			return false
		}
	}
	s.buckets[b] = append(s.buckets[b], t)
	s.size++
	return true
}

// Has reports whether t is in the set.
func (s *TileSet) Has(t Tile) bool {
	for _, e := range s.buckets[s.bucket(t)] {
		if e.Equal(t) {
			return true
		}
	}
	return false
}

// Remove deletes t. It reports whether t was present.
func (s *TileSet) Remove(t Tile) bool {
	b := s.bucket(t)
	bucket := s.buckets[b]
	for i, e := range bucket {
		if e.Equal(t) {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket[last] = nil
			s.buckets[b] = bucket[:last]
			s.size--
			return true
		}
	}
	return false
}

// Len returns the number of tiles in the set.
func (s *TileSet) Len() int {
	return s.size
}

// Clear removes every tile, keeping the bucket storage.
func (s *TileSet) Clear() {
	for i, bucket := range s.buckets {
		clear(bucket)
		s.buckets[i] = bucket[:0]
	}
	s.size = 0
}

// ForEach calls fn for every tile until fn returns false.
// The set must not be modified during iteration.
func (s *TileSet) ForEach(fn func(Tile) bool) {
	for _, bucket := range s.buckets {
		for _, t := range bucket {
			if !fn(t) {
				return
			}
		}
	}
}
