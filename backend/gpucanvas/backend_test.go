// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucanvas

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/source"
	"github.com/gogpu/pano/view"
)

// mockTexture implements the gpucontext texture interfaces for testing.
type mockTexture struct {
	width, height int
	data          []byte
	updated       int
	destroyed     bool
	premultiplied bool
}

func (m *mockTexture) Width() int  { return m.width }
func (m *mockTexture) Height() int { return m.height }

func (m *mockTexture) UpdateData(data []byte) error {
	m.data = append(m.data[:0], data...)
	m.updated++
	return nil
}

func (m *mockTexture) Destroy()                 { m.destroyed = true }
func (m *mockTexture) SetPremultiplied(pm bool) { m.premultiplied = pm }

// mockCreator implements gpucontext.TextureCreator for testing.
type mockCreator struct {
	mu       sync.Mutex
	textures []*mockTexture
	failNext bool
}

func (m *mockCreator) NewTextureFromRGBA(width, height int, data []byte) (gpucontext.Texture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return nil, errors.New("mock texture creation failed")
	}
	if len(data) != width*height*4 {
		return nil, errors.New("bad data size")
	}
	tex := &mockTexture{width: width, height: height, data: append([]byte(nil), data...)}
	m.textures = append(m.textures, tex)
	return tex, nil
}

type drawCall struct {
	tex        gpucontext.Texture
	x, y, w, h float32
	alpha      float32
}

// mockDrawer implements gpucontext.TextureDrawer for testing.
type mockDrawer struct {
	creator *mockCreator
	draws   []drawCall
}

func (m *mockDrawer) DrawTexture(tex gpucontext.Texture, x, y float32) error {
	m.draws = append(m.draws, drawCall{tex: tex, x: x, y: y, w: float32(tex.Width()), h: float32(tex.Height()), alpha: 1})
	return nil
}

func (m *mockDrawer) TextureCreator() gpucontext.TextureCreator {
	if m.creator == nil {
		return nil
	}
	return m.creator
}

// scaledDrawer also implements ScaledDrawer.
type scaledDrawer struct {
	mockDrawer
}

func (m *scaledDrawer) DrawTextureScaled(tex gpucontext.Texture, x, y, w, h, alpha float32) error {
	m.draws = append(m.draws, drawCall{tex: tex, x: x, y: y, w: w, h: h, alpha: alpha})
	return nil
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// newStage renders a 512x256 flat image of two 256 pixel tiles filling a
// 512x256 surface.
func newStage(t *testing.T, b *Backend, opts ...pano.LayerOption) *pano.Stage {
	t.Helper()
	s := pano.MustNewStage(b)
	t.Cleanup(s.Destroy)

	g, err := geometry.NewFlatGeometry([]geometry.Level{geometry.FlatLevel(512, 256, 256, 256)})
	if err != nil {
		t.Fatalf("NewFlatGeometry() error = %v", err)
	}
	src, err := source.FromImage(solid(512, 256, color.RGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	t.Cleanup(src.Close)

	v := view.NewFlat(512, 256, view.WithMediaAspectRatio(2))
	l := pano.MustNewLayer(s, src, g, v, opts...)
	if err := s.AddLayer(l); err != nil {
		t.Fatalf("AddLayer() error = %v", err)
	}
	return s
}

func renderStable(t *testing.T, s *pano.Stage) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		stable, err := s.Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if stable {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a stable frame")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBackendUploadsOnFirstDraw(t *testing.T) {
	creator := &mockCreator{}
	dc := &mockDrawer{creator: creator}
	b := New(512, 256)
	b.SetDrawer(dc)
	s := newStage(t, b)

	renderStable(t, s)
	if len(creator.textures) != 2 {
		t.Fatalf("GPU textures created = %d, want 2", len(creator.textures))
	}
	for _, tex := range creator.textures {
		if !tex.premultiplied {
			t.Error("GPU texture not marked premultiplied")
		}
		if tex.width != 256 || tex.height != 256 || tex.data[0] != 255 {
			t.Errorf("GPU texture = %dx%d first byte %d, want 256x256 red", tex.width, tex.height, tex.data[0])
		}
	}

	dc.draws = nil
	if _, err := s.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	stats := b.Stats()
	if stats.Drawn != 2 || stats.Uploaded != 0 {
		t.Errorf("second frame stats = %+v, want 2 drawn, 0 uploaded", stats)
	}
	if len(dc.draws) != 2 || dc.draws[0].x != 0 || dc.draws[1].x != 256 {
		t.Errorf("draws = %+v, want tiles at x 0 and 256", dc.draws)
	}
}

func TestBackendScaledDrawer(t *testing.T) {
	dc := &scaledDrawer{mockDrawer{creator: &mockCreator{}}}
	b := New(512, 256)
	b.SetDrawer(dc)
	s := newStage(t, b, pano.WithEffects(pano.Effects{
		Opacity: 0.5,
		Rect:    pano.Rect{Width: 0.5, Height: 1},
	}))

	renderStable(t, s)
	dc.draws = nil
	if _, err := s.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(dc.draws) != 2 {
		t.Fatalf("len(draws) = %d, want 2", len(dc.draws))
	}
	for _, d := range dc.draws {
		if d.alpha != 0.5 {
			t.Errorf("alpha = %v, want 0.5", d.alpha)
		}
		if d.w != 128 {
			t.Errorf("tile drawn %v wide, want 128 in a 256 pixel viewport", d.w)
		}
	}
}

func TestBackendReleasesDestroyedTextures(t *testing.T) {
	creator := &mockCreator{}
	b := New(512, 256)
	b.SetDrawer(&mockDrawer{creator: creator})
	s := newStage(t, b)
	renderStable(t, s)

	s.Destroy()
	if b.LiveTextures() != 0 {
		t.Fatalf("LiveTextures() = %d after stage Destroy, want 0", b.LiveTextures())
	}
	for _, tex := range creator.textures {
		if tex.destroyed {
			t.Fatal("GPU texture destroyed before the next frame")
		}
	}

	if err := b.StartFrame(); err != nil {
		t.Fatalf("StartFrame() error = %v", err)
	}
	if got := b.Stats().Released; got != 2 {
		t.Errorf("Released = %d, want 2", got)
	}
	for _, tex := range creator.textures {
		if !tex.destroyed {
			t.Error("GPU texture not destroyed at frame start")
		}
	}
	if err := b.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
}

func TestBackendUpdateTexture(t *testing.T) {
	creator := &mockCreator{}
	dc := &mockDrawer{creator: creator}
	b := New(256, 256)
	b.SetDrawer(dc)

	g, _ := geometry.NewFlatGeometry([]geometry.Level{geometry.FlatLevel(256, 256, 256, 256)})
	tile, _ := g.Tile(0, 0, 0)
	tex, err := b.CreateTexture(t.Context(), tile, source.NewImageAsset(solid(256, 256, color.RGBA{R: 255, A: 255}), true))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	gt := tex.(*Texture)
	if !gt.Pending() {
		t.Error("Pending() = false before the first draw")
	}
	if gt.Format() != gputypes.TextureFormatRGBA8Unorm || gt.Size().Width != 256 {
		t.Errorf("Format()/Size() = %v/%+v", gt.Format(), gt.Size())
	}

	if _, err := b.realize(dc, gt); err != nil {
		t.Fatalf("realize() error = %v", err)
	}
	if gt.Pending() {
		t.Error("Pending() = true after upload")
	}

	if err := b.UpdateTexture(tex, tile, source.NewImageAsset(solid(256, 256, color.RGBA{B: 255, A: 255}), true)); err != nil {
		t.Fatalf("UpdateTexture() error = %v", err)
	}
	if _, err := b.realize(dc, gt); err != nil {
		t.Fatalf("realize() error = %v", err)
	}
	gpu := creator.textures[0]
	if gpu.updated != 1 || gpu.data[2] != 255 {
		t.Errorf("GPU texture updated %d times, blue %d, want 1 and 255", gpu.updated, gpu.data[2])
	}
	if len(creator.textures) != 1 {
		t.Errorf("GPU textures created = %d, want 1 (updated in place)", len(creator.textures))
	}

	if err := b.UpdateTexture(tex, tile, source.NewImageAsset(solid(8, 8, color.RGBA{}), true)); err == nil {
		t.Error("UpdateTexture() with a different size succeeded")
	}
}

func TestBackendErrors(t *testing.T) {
	b := New(8, 8)
	if err := b.StartFrame(); !errors.Is(err, ErrNoDrawer) {
		t.Errorf("StartFrame() without drawer error = %v, want %v", err, ErrNoDrawer)
	}
	if err := b.DrawLayer(pano.DrawCall{}); !errors.Is(err, ErrFrameState) {
		t.Errorf("DrawLayer() outside a frame error = %v, want %v", err, ErrFrameState)
	}
	if err := b.EndFrame(); !errors.Is(err, ErrFrameState) {
		t.Errorf("EndFrame() without StartFrame error = %v, want %v", err, ErrFrameState)
	}

	g, _ := geometry.NewFlatGeometry([]geometry.Level{geometry.FlatLevel(8, 8, 8, 8)})
	tile, _ := g.Tile(0, 0, 0)
	tex, err := b.CreateTexture(t.Context(), tile, source.NewImageAsset(solid(8, 8, color.RGBA{A: 255}), false))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}

	if _, err := b.realize(&mockDrawer{}, tex.(*Texture)); !errors.Is(err, ErrInvalidRenderer) {
		t.Errorf("realize() without creator error = %v, want %v", err, ErrInvalidRenderer)
	}
	failing := &mockCreator{failNext: true}
	if _, err := b.realize(&mockDrawer{creator: failing}, tex.(*Texture)); err == nil {
		t.Error("realize() with a failing creator succeeded")
	}

	b.DestroyTexture(tex)
	b.DestroyTexture(tex)
	if gpu, err := b.realize(&mockDrawer{creator: &mockCreator{}}, tex.(*Texture)); gpu != nil || err != nil {
		t.Errorf("realize(destroyed) = %v, %v, want nil, nil", gpu, err)
	}
	b.Close()
}

func TestPackRGBA(t *testing.T) {
	img := solid(4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 4})
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	got := packRGBA(sub)
	if len(got) != 2*2*4 {
		t.Fatalf("len(packRGBA()) = %d, want 16", len(got))
	}
	for i := 0; i < len(got); i += 4 {
		if got[i] != 1 || got[i+3] != 4 {
			t.Fatalf("packRGBA() pixel %d = %v, want [1 2 3 4]", i/4, got[i:i+4])
		}
	}
}
