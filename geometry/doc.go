// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package geometry describes how a panorama or flat image is cut into a
// pyramid of tiles and how those tiles relate to each other.
//
// A [Geometry] owns an ordered list of resolution [Level]s and produces
// [Tile] values for them. Three kinds exist:
//
//   - [CubeGeometry]: six faces, each split into a grid per level.
//   - [FlatGeometry]: a single plane split into a grid per level.
//   - [EquirectGeometry]: one tile per level covering the whole sphere.
//
// Tiles are small comparable values. Constructing the same coordinates
// twice yields equal tiles, so they can be used as map keys or stored in
// a [TileSet].
//
// # Visibility
//
// [Geometry.VisibleTiles] picks the tile under the centre of a [View] and
// flood-fills outwards through tile neighbors with a [Searcher], keeping
// every tile the view's frustum test accepts.
//
// # Thread Safety
//
// Geometries and tiles are safe for concurrent use. A [Searcher] is not;
// each geometry serializes use of its own searcher.
package geometry
