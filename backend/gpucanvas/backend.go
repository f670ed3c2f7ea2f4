// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// Backend errors.
var (
	// ErrNoDrawer is returned by StartFrame before SetDrawer.
	ErrNoDrawer = errors.New("gpucanvas: no drawer set")

	// ErrInvalidRenderer is returned when the drawer has no
	// gpucontext.TextureCreator.
	ErrInvalidRenderer = errors.New("gpucanvas: drawer has no texture creator")

	// ErrFrameState is returned for frame calls out of order.
	ErrFrameState = errors.New("gpucanvas: frame state")

	// ErrForeignTexture is returned for textures this backend did not
	// create.
	ErrForeignTexture = errors.New("gpucanvas: foreign texture")
)

// ScaledDrawer is implemented by drawers that can scale and fade
// textures.
type ScaledDrawer interface {
	DrawTextureScaled(tex gpucontext.Texture, x, y, width, height, alpha float32) error
}

// textureDestroyer matches the Destroy method of gogpu textures.
type textureDestroyer interface {
	Destroy()
}

// rgbaAsset is implemented by assets carrying RGBA pixels, such as
// source.ImageAsset.
type rgbaAsset interface {
	RGBA() *image.RGBA
}

// Texture is a tile texture, pending until its first draw.
type Texture struct {
	width, height int

	mu        sync.Mutex
	data      []byte // pending pixels, nil once uploaded
	gpu       gpucontext.Texture
	destroyed bool
}

var _ texture.FormatTexture = (*Texture)(nil)

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.height }

// Format returns the pixel format of the uploaded data.
func (t *Texture) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }

// Size returns the texture extent.
func (t *Texture) Size() gputypes.Extent3D {
	return gputypes.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1}
}

// Pending reports whether the texture still waits for its GPU upload.
func (t *Texture) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data != nil
}

// FrameStats counts the work of the last frame.
type FrameStats struct {
	// Drawn is the number of tiles drawn.
	Drawn int
	// Uploaded is the number of textures created or updated on the GPU.
	Uploaded int
	// Unplaced is the number of tiles skipped because they have no
	// planar screen position.
	Unplaced int
	// Released is the number of GPU textures destroyed.
	Released int
}

// Backend is a pano.Backend drawing through a gpucontext.TextureDrawer.
type Backend struct {
	mu      sync.Mutex
	width   int
	height  int
	drawer  gpucontext.TextureDrawer
	live    map[*Texture]struct{}
	garbage []gpucontext.Texture

	inFrame bool
	stats   FrameStats
}

var (
	_ pano.Backend    = (*Backend)(nil)
	_ texture.Updater = (*Backend)(nil)
)

// New creates a backend for a surface of the given size.
func New(width, height int) *Backend {
	return &Backend{
		width:  width,
		height: height,
		live:   make(map[*Texture]struct{}),
	}
}

// SetDrawer sets the drawer used by the following frames. Call it from
// the render goroutine before Stage.Render.
func (b *Backend) SetDrawer(dc gpucontext.TextureDrawer) {
	b.mu.Lock()
	b.drawer = dc
	b.mu.Unlock()
}

// Resize changes the surface size.
func (b *Backend) Resize(width, height int) {
	b.mu.Lock()
	b.width, b.height = width, height
	b.mu.Unlock()
}

// Size returns the surface size.
func (b *Backend) Size() (width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// CreateTexture keeps a tightly packed copy of the asset pixels for the
// first draw.
func (b *Backend) CreateTexture(ctx context.Context, _ geometry.Tile, asset texture.Asset) (texture.Texture, error) {
	src, ok := asset.(rgbaAsset)
	if !ok {
		return nil, fmt.Errorf("%w: %T", texture.ErrUnsupportedAsset, asset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := src.RGBA()
	tex := &Texture{
		width:  img.Rect.Dx(),
		height: img.Rect.Dy(),
		data:   packRGBA(img),
	}

	b.mu.Lock()
	b.live[tex] = struct{}{}
	b.mu.Unlock()
	return tex, nil
}

// UpdateTexture replaces the pixels of tex. The upload happens at the
// next draw.
func (b *Backend) UpdateTexture(tex texture.Texture, _ geometry.Tile, asset texture.Asset) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignTexture, tex)
	}
	src, ok := asset.(rgbaAsset)
	if !ok {
		return fmt.Errorf("%w: %T", texture.ErrUnsupportedAsset, asset)
	}
	img := src.RGBA()
	if img.Rect.Dx() != t.width || img.Rect.Dy() != t.height {
		return fmt.Errorf("gpucanvas: update size %v does not match texture %dx%d", img.Rect.Size(), t.width, t.height)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return ErrForeignTexture
	}
	t.data = packRGBA(img)
	return nil
}

// DestroyTexture releases tex. A GPU texture is kept until the next frame
// starts, as in-flight command buffers may still sample it.
func (b *Backend) DestroyTexture(tex texture.Texture) {
	t, ok := tex.(*Texture)
	if !ok {
		return
	}
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	gpu := t.gpu
	t.gpu, t.data = nil, nil
	t.mu.Unlock()

	b.mu.Lock()
	delete(b.live, t)
	if gpu != nil {
		b.garbage = append(b.garbage, gpu)
	}
	b.mu.Unlock()
}

// LiveTextures returns the number of textures not yet destroyed.
func (b *Backend) LiveTextures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// StartFrame releases GPU textures destroyed since the last frame.
func (b *Backend) StartFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("%w: frame already started", ErrFrameState)
	}
	if b.drawer == nil {
		return ErrNoDrawer
	}
	b.inFrame = true
	b.stats = FrameStats{}

	for _, gpu := range b.garbage {
		if d, ok := gpu.(textureDestroyer); ok {
			d.Destroy()
		}
		b.stats.Released++
	}
	clear(b.garbage)
	b.garbage = b.garbage[:0]
	return nil
}

// DrawLayer uploads pending textures and draws the placed tiles of call.
func (b *Backend) DrawLayer(call pano.DrawCall) error {
	b.mu.Lock()
	dc, inFrame, width, height := b.drawer, b.inFrame, b.width, b.height
	b.mu.Unlock()
	if !inFrame {
		return fmt.Errorf("%w: DrawLayer outside a frame", ErrFrameState)
	}

	alpha := float32(min(max(call.Effects.Opacity, 0), 1))
	for i, tile := range call.Tiles {
		x0, y0, x1, y1, ok := call.ScreenRect(tile, width, height)
		if !ok {
			b.count(func(s *FrameStats) { s.Unplaced++ })
			continue
		}
		t, ok := call.Textures[i].(*Texture)
		if !ok {
			return fmt.Errorf("%w: %T", ErrForeignTexture, call.Textures[i])
		}
		gpu, err := b.realize(dc, t)
		if err != nil {
			return err
		}
		if gpu == nil {
			continue
		}

		if sd, ok := dc.(ScaledDrawer); ok {
			err = sd.DrawTextureScaled(gpu, float32(x0), float32(y0), float32(x1-x0), float32(y1-y0), alpha)
		} else {
			err = dc.DrawTexture(gpu, float32(x0), float32(y0))
		}
		if err != nil {
			return fmt.Errorf("gpucanvas: draw %v: %w", tile, err)
		}
		b.count(func(s *FrameStats) { s.Drawn++ })
	}
	return nil
}

// realize returns the GPU texture of t, uploading pending pixels first.
// It returns nil for a texture destroyed concurrently.
func (b *Backend) realize(dc gpucontext.TextureDrawer, t *Texture) (gpucontext.Texture, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, nil
	}
	if t.data == nil {
		return t.gpu, nil
	}

	if t.gpu != nil {
		if u, ok := t.gpu.(gpucontext.TextureUpdater); ok {
			if err := u.UpdateData(t.data); err != nil {
				return nil, fmt.Errorf("gpucanvas: texture update failed: %w", err)
			}
			t.data = nil
			b.count(func(s *FrameStats) { s.Uploaded++ })
			return t.gpu, nil
		}
	}

	creator := dc.TextureCreator()
	if creator == nil {
		return nil, ErrInvalidRenderer
	}
	gpu, err := creator.NewTextureFromRGBA(t.width, t.height, t.data)
	if err != nil {
		return nil, fmt.Errorf("gpucanvas: NewTextureFromRGBA failed: %w", err)
	}
	// image.RGBA pixels are premultiplied.
	if pt, ok := gpu.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}
	if t.gpu != nil {
		b.mu.Lock()
		b.garbage = append(b.garbage, t.gpu)
		b.mu.Unlock()
	}
	t.gpu, t.data = gpu, nil
	b.count(func(s *FrameStats) { s.Uploaded++ })
	return gpu, nil
}

func (b *Backend) count(fn func(*FrameStats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// EndFrame finishes the frame.
func (b *Backend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return fmt.Errorf("%w: EndFrame without StartFrame", ErrFrameState)
	}
	b.inFrame = false
	return nil
}

// Stats returns the counters of the last frame.
func (b *Backend) Stats() FrameStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Close releases every GPU texture. The backend must not be used after.
func (b *Backend) Close() {
	b.mu.Lock()
	live := make([]*Texture, 0, len(b.live))
	for t := range b.live {
		live = append(live, t)
	}
	b.mu.Unlock()

	for _, t := range live {
		b.DestroyTexture(t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, gpu := range b.garbage {
		if d, ok := gpu.(textureDestroyer); ok {
			d.Destroy()
		}
	}
	b.garbage = nil
}

// packRGBA returns the pixels of img as width*height*4 bytes.
func packRGBA(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, w*h*4)
	for y := range h {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		copy(out[y*w*4:(y+1)*w*4], row[:w*4])
	}
	return out
}
