// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package source provides tile sources for texture stores.
//
// [ImageSource] cuts the tiles of every level out of one full-resolution
// image per face, scaling it down once per level. [DynamicSource] lets the
// caller draw tile contents and redraw them later.
//
// Both produce [*ImageAsset] values, which backends upload as RGBA
// textures.
package source
