package pano

import (
	"context"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// Backend draws layers and owns their textures.
//
// CreateTexture runs on texture store workers; the other methods run on
// the goroutine calling Stage.Render, except DestroyTexture, which may run
// on either.
type Backend interface {
	// Size returns the drawing surface size in pixels.
	Size() (width, height int)

	// CreateTexture uploads asset as the texture of tile.
	CreateTexture(ctx context.Context, tile geometry.Tile, asset texture.Asset) (texture.Texture, error)

	// DestroyTexture releases a texture created by CreateTexture.
	DestroyTexture(tex texture.Texture)

	// StartFrame begins a frame.
	StartFrame() error

	// DrawLayer draws the resolved tiles of one layer.
	DrawLayer(call DrawCall) error

	// EndFrame finishes a frame.
	EndFrame() error
}

// DrawCall is the render list of one layer for one frame.
//
// Tiles are ordered by ascending resolution so finer tiles draw over the
// coarser fallbacks they overlap. Textures[i] is the texture of Tiles[i].
// The slices are reused by the stage and must not be retained after
// DrawLayer returns.
type DrawCall struct {
	Layer *Layer

	// Depth is the layer's distance from the top of the stack; the
	// topmost layer has depth 1.
	Depth int

	Effects Effects

	Tiles    []geometry.Tile
	Textures []texture.Texture
}

// Viewport returns the pixel rectangle of a stage of the given size that
// the layer draws into.
func (c DrawCall) Viewport(width, height int) (x0, y0, x1, y1 float64) {
	r := c.Effects.Rect
	x0, y0 = r.X*float64(width), r.Y*float64(height)
	return x0, y0, x0 + r.Width*float64(width), y0 + r.Height*float64(height)
}

// ScreenRect returns the stage pixel rectangle covered by tile. It is only
// known for tiles with planar bounds seen through a view exposing its
// visible rectangle, such as flat tiles through a view.Flat.
func (c DrawCall) ScreenRect(tile geometry.Tile, width, height int) (x0, y0, x1, y1 float64, ok bool) {
	bounded, ok := tile.(interface {
		Bounds() (left, right, bottom, top float64)
	})
	if !ok || c.Layer == nil {
		return 0, 0, 0, 0, false
	}
	rv, ok := c.Layer.View().(interface {
		Rect() (left, right, bottom, top float64)
	})
	if !ok {
		return 0, 0, 0, 0, false
	}

	vl, vr, vb, vt := rv.Rect()
	if vr <= vl || vt <= vb {
		return 0, 0, 0, 0, false
	}
	l, r, b, t := bounded.Bounds()
	px0, py0, px1, py1 := c.Viewport(width, height)
	sx := (px1 - px0) / (vr - vl)
	sy := (py1 - py0) / (vt - vb)
	return px0 + (l-vl)*sx, py0 + (vt-t)*sy, px0 + (r-vl)*sx, py0 + (vt-b)*sy, true
}
