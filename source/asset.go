// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package source

import (
	"image"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// ImageAsset is an RGBA tile image.
type ImageAsset struct {
	img     *image.RGBA
	dynamic bool
}

var _ texture.Asset = (*ImageAsset)(nil)

// NewImageAsset wraps img. Dynamic assets may be redrawn and refreshed.
func NewImageAsset(img *image.RGBA, dynamic bool) *ImageAsset {
	return &ImageAsset{img: img, dynamic: dynamic}
}

// Width returns the image width in pixels.
func (a *ImageAsset) Width() int { return a.img.Rect.Dx() }

// Height returns the image height in pixels.
func (a *ImageAsset) Height() int { return a.img.Rect.Dy() }

// Dynamic reports whether the asset can change after loading.
func (a *ImageAsset) Dynamic() bool { return a.dynamic }

// RGBA returns the pixels. Backends read them during texture creation and
// updates.
func (a *ImageAsset) RGBA() *image.RGBA { return a.img }

// TileRect returns the pixel rectangle of tile within its level image and
// the level itself.
func TileRect(tile geometry.Tile) (image.Rectangle, geometry.Level, error) {
	levels := tile.Geometry().Levels()
	if tile.Z() < 0 || tile.Z() >= len(levels) {
		return image.Rectangle{}, geometry.Level{}, geometry.ErrInvalidLevelIndex
	}
	level := levels[tile.Z()]

	switch t := tile.(type) {
	case geometry.FlatTile:
		x, y, w, h := t.PixelRect()
		return image.Rect(x, y, x+w, y+h), level, nil
	case geometry.CubeTile:
		x, y := t.X*level.TileWidth, t.Y*level.TileHeight
		w, h := min(level.TileWidth, level.Width-x), min(level.TileHeight, level.Height-y)
		return image.Rect(x, y, x+w, y+h), level, nil
	case geometry.EquirectTile:
		return image.Rect(0, 0, level.Width, level.Height), level, nil
	default:
		return image.Rectangle{}, level, unsupported(tile)
	}
}

// faceOf returns the cube face of tile, or 0 for other kinds.
func faceOf(tile geometry.Tile) geometry.Face {
	if t, ok := tile.(geometry.CubeTile); ok {
		return t.Face
	}
	return 0
}
