// Package cache provides a small fixed-capacity LRU map.
//
// Geometries use it to remember tile neighbor lists, which the visibility
// search asks for repeatedly while flood-filling a view:
//
//	c := cache.New[geometry.Tile, []geometry.Tile](64)
//	c.Add(tile, neighbors)
//	neighbors, ok := c.Get(tile)
//
// The cache only saves work. Callers must produce the same results with
// a cache of capacity zero.
//
// # Thread Safety
//
// LRU is safe for concurrent use and must not be copied after creation.
package cache
