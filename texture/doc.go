// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texture caches the textures of tiles and coordinates their loading.
//
// A [Store] tracks one entry per tile. Entries are created when a tile is
// first marked or pinned and load asynchronously: a [Source] resolves the
// tile into an [Asset] and a [Factory] turns the asset into a [Texture].
// Loads run on a bounded pool of workers in submission order, and at most
// one load per tile is outstanding at any time.
//
// Rendering is bracketed by [Store.StartFrame] and [Store.EndFrame]. Tiles
// marked during a frame are retained. At the end of a frame, tiles that
// were marked in the previous frame but not in this one become evictable
// and enter a least-recently-used list bounded by the cache size and the
// optional byte budget. Pinned tiles are never evicted.
//
// A load that fails with a [NetworkError] is retried on a later mark once
// the retry delay has passed. Other failures stay failed until the tile is
// invalidated or evicted.
//
// Store is safe for concurrent use. Completion of loads happens on worker
// goroutines; subscribers registered with [Store.Subscribe] are called
// there, after the store lock is released.
package texture
