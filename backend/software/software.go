// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/backend"
	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// Errors returned by the software backend.
var (
	// ErrFrameState is returned for frame calls out of order.
	ErrFrameState = errors.New("software: frame state")

	// ErrForeignTexture is returned for textures this backend did not
	// create or already destroyed.
	ErrForeignTexture = errors.New("software: foreign or destroyed texture")
)

func init() {
	backend.Register("software", func(width, height int) (pano.Backend, error) {
		return New(width, height)
	})
}

// rgbaAsset is implemented by assets carrying RGBA pixels, such as
// source.ImageAsset.
type rgbaAsset interface {
	RGBA() *image.RGBA
}

// Texture is an in-memory RGBA texture.
type Texture struct {
	img  *image.RGBA
	tile geometry.Tile
}

var _ texture.FormatTexture = (*Texture)(nil)

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.img.Rect.Dx() }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.img.Rect.Dy() }

// Format returns the pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }

// Size returns the texture extent.
func (t *Texture) Size() gputypes.Extent3D {
	return gputypes.Extent3D{Width: uint32(t.Width()), Height: uint32(t.Height()), DepthOrArrayLayers: 1}
}

// Image returns the texture pixels.
func (t *Texture) Image() *image.RGBA { return t.img }

// DrawRecord is a draw call as recorded by the backend.
type DrawRecord struct {
	Layer   *pano.Layer
	Depth   int
	Effects pano.Effects
	Tiles   []geometry.Tile

	// Composited counts the tiles drawn into the framebuffer.
	Composited int
}

// Option configures a Backend.
type Option func(*Backend)

// WithBackground sets the color the framebuffer is cleared to.
func WithBackground(c color.Color) Option {
	return func(b *Backend) { b.background = image.NewUniform(c) }
}

// WithInterpolator sets the kernel scaling textures into the framebuffer.
// The default is draw.ApproxBiLinear.
func WithInterpolator(k draw.Interpolator) Option {
	return func(b *Backend) {
		if k != nil {
			b.kernel = k
		}
	}
}

// Backend is a software pano.Backend.
//
// CreateTexture, UpdateTexture and DestroyTexture are safe for concurrent
// use. Frame methods must be called from one goroutine.
type Backend struct {
	width, height int
	background    *image.Uniform
	kernel        draw.Interpolator

	mu   sync.Mutex
	live map[*Texture]struct{}
	// bytes is the total size of live textures.
	bytes int64

	fb      *image.RGBA
	scratch *image.RGBA
	inFrame bool
	frame   []DrawRecord
	frames  int
}

var (
	_ pano.Backend    = (*Backend)(nil)
	_ texture.Updater = (*Backend)(nil)
)

// New creates a backend with a width x height framebuffer.
func New(width, height int, opts ...Option) (*Backend, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("software: invalid size %dx%d", width, height)
	}
	b := &Backend{
		width:      width,
		height:     height,
		background: image.NewUniform(color.Transparent),
		kernel:     draw.ApproxBiLinear,
		live:       make(map[*Texture]struct{}),
		fb:         image.NewRGBA(image.Rect(0, 0, width, height)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Size returns the framebuffer size.
func (b *Backend) Size() (width, height int) {
	return b.width, b.height
}

// CreateTexture copies the pixels of asset into a new texture.
func (b *Backend) CreateTexture(ctx context.Context, tile geometry.Tile, asset texture.Asset) (texture.Texture, error) {
	src, ok := asset.(rgbaAsset)
	if !ok {
		return nil, fmt.Errorf("%w: %T", texture.ErrUnsupportedAsset, asset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pix := src.RGBA()
	img := image.NewRGBA(image.Rect(0, 0, pix.Rect.Dx(), pix.Rect.Dy()))
	draw.Draw(img, img.Bounds(), pix, pix.Rect.Min, draw.Src)
	tex := &Texture{img: img, tile: tile}

	b.mu.Lock()
	b.live[tex] = struct{}{}
	b.bytes += int64(len(img.Pix))
	b.mu.Unlock()
	return tex, nil
}

// UpdateTexture copies the pixels of asset into tex.
func (b *Backend) UpdateTexture(tex texture.Texture, _ geometry.Tile, asset texture.Asset) error {
	t, err := b.own(tex)
	if err != nil {
		return err
	}
	src, ok := asset.(rgbaAsset)
	if !ok {
		return fmt.Errorf("%w: %T", texture.ErrUnsupportedAsset, asset)
	}
	pix := src.RGBA()
	if pix.Rect.Dx() != t.Width() || pix.Rect.Dy() != t.Height() {
		return fmt.Errorf("software: update size %v does not match texture %dx%d", pix.Rect.Size(), t.Width(), t.Height())
	}
	draw.Draw(t.img, t.img.Bounds(), pix, pix.Rect.Min, draw.Src)
	return nil
}

// DestroyTexture releases tex. Destroying an unknown texture is a no-op.
func (b *Backend) DestroyTexture(tex texture.Texture) {
	t, ok := tex.(*Texture)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.live[t]; ok {
		delete(b.live, t)
		b.bytes -= int64(len(t.img.Pix))
	}
}

func (b *Backend) own(tex texture.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignTexture, tex)
	}
	b.mu.Lock()
	_, live := b.live[t]
	b.mu.Unlock()
	if !live {
		return nil, ErrForeignTexture
	}
	return t, nil
}

// LiveTextures returns the number of textures not yet destroyed and their
// total size in bytes.
func (b *Backend) LiveTextures() (count int, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live), b.bytes
}

// StartFrame clears the framebuffer and the draw log.
func (b *Backend) StartFrame() error {
	if b.inFrame {
		return fmt.Errorf("%w: frame already started", ErrFrameState)
	}
	b.inFrame = true
	b.frame = b.frame[:0]
	draw.Draw(b.fb, b.fb.Bounds(), b.background, image.Point{}, draw.Src)
	return nil
}

// DrawLayer records call and composites the tiles it can place.
func (b *Backend) DrawLayer(call pano.DrawCall) error {
	if !b.inFrame {
		return fmt.Errorf("%w: DrawLayer outside a frame", ErrFrameState)
	}
	rec := DrawRecord{
		Layer:   call.Layer,
		Depth:   call.Depth,
		Effects: call.Effects,
		Tiles:   slices.Clone(call.Tiles),
	}

	vx0, vy0, vx1, vy1 := call.Viewport(b.width, b.height)
	viewport := image.Rect(int(math.Floor(vx0)), int(math.Floor(vy0)), int(math.Ceil(vx1)), int(math.Ceil(vy1))).Intersect(b.fb.Bounds())
	if viewport.Empty() {
		b.frame = append(b.frame, rec)
		return nil
	}

	layer := b.layerScratch(viewport)
	for i, tile := range call.Tiles {
		x0, y0, x1, y1, ok := call.ScreenRect(tile, b.width, b.height)
		if !ok {
			continue
		}
		t, err := b.own(call.Textures[i])
		if err != nil {
			return err
		}
		dr := image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
		b.kernel.Scale(layer, dr, t.img, t.img.Bounds(), draw.Over, nil)
		rec.Composited++
	}

	if rec.Composited > 0 {
		applyColorOffset(layer, call.Effects.ColorOffset)
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(clamp01(call.Effects.Opacity) * 255))})
		draw.DrawMask(b.fb, viewport, layer, viewport.Min, mask, image.Point{}, draw.Over)
	}
	b.frame = append(b.frame, rec)
	return nil
}

// layerScratch returns a cleared image covering r in framebuffer
// coordinates.
func (b *Backend) layerScratch(r image.Rectangle) *image.RGBA {
	if b.scratch == nil {
		b.scratch = image.NewRGBA(b.fb.Bounds())
	}
	layer := b.scratch.SubImage(r).(*image.RGBA)
	draw.Draw(layer, r, image.Transparent, image.Point{}, draw.Src)
	return layer
}

// applyColorOffset adds offset, scaled to 8 bits, to every covered pixel.
// Pixels are premultiplied, so color channels are clamped to alpha.
func applyColorOffset(img *image.RGBA, offset [4]float64) {
	if offset == ([4]float64{}) {
		return
	}
	var d [4]int
	for i, o := range offset {
		d[i] = int(math.Round(o * 255))
	}
	r := img.Rect
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[img.PixOffset(r.Min.X, y):img.PixOffset(r.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			if row[i+3] == 0 {
				continue
			}
			a := min(max(int(row[i+3])+d[3], 0), 255)
			row[i+3] = uint8(a)
			for c := range 3 {
				row[i+c] = uint8(min(max(int(row[i+c])+d[c], 0), a))
			}
		}
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// EndFrame finishes the frame.
func (b *Backend) EndFrame() error {
	if !b.inFrame {
		return fmt.Errorf("%w: EndFrame without StartFrame", ErrFrameState)
	}
	b.inFrame = false
	b.frames++
	return nil
}

// Framebuffer returns the composited image of the last frame. It is
// overwritten by the next frame.
func (b *Backend) Framebuffer() *image.RGBA {
	return b.fb
}

// DrawLog returns the draw calls of the last frame, bottom layer first.
func (b *Backend) DrawLog() []DrawRecord {
	return slices.Clone(b.frame)
}

// Frames returns the number of completed frames.
func (b *Backend) Frames() int {
	return b.frames
}
