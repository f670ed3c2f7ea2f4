// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package view provides the cameras used to pick visible tiles.
//
// [Rectilinear] looks out from the centre of a sphere and serves cube and
// equirectangular geometries. [Flat] looks at an image plane and serves
// flat geometries. Both implement [geometry.View] and the capability
// interface the matching geometry needs to locate its starting tile.
//
// Views are not safe for concurrent use. Change them from the goroutine
// that renders the stage.
package view
