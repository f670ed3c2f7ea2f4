// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package source

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"golang.org/x/image/draw"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

var (
	red    = color.RGBA{R: 255, A: 255}
	green  = color.RGBA{G: 255, A: 255}
	blue   = color.RGBA{B: 255, A: 255}
	yellow = color.RGBA{R: 255, G: 255, A: 255}
)

// quadrants returns a w x h image with one solid color per quadrant:
// red, green on top and blue, yellow below.
func quadrants(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := func(r image.Rectangle, c color.RGBA) {
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	fill(image.Rect(0, 0, w/2, h/2), red)
	fill(image.Rect(w/2, 0, w, h/2), green)
	fill(image.Rect(0, h/2, w/2, h), blue)
	fill(image.Rect(w/2, h/2, w, h), yellow)
	return img
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func centerColor(t *testing.T, asset texture.Asset) color.RGBA {
	t.Helper()
	a, ok := asset.(*ImageAsset)
	if !ok {
		t.Fatalf("asset is %T, want *ImageAsset", asset)
	}
	return a.RGBA().RGBAAt(a.Width()/2, a.Height()/2)
}

func newFlat(t *testing.T) *geometry.FlatGeometry {
	t.Helper()
	g, err := geometry.NewFlatGeometry([]geometry.Level{
		geometry.FlatLevel(512, 512, 256, 256),
		geometry.FlatLevel(1024, 1024, 256, 256),
	})
	if err != nil {
		t.Fatalf("NewFlatGeometry() error = %v", err)
	}
	return g
}

func TestImageSourceFlatTiles(t *testing.T) {
	g := newFlat(t)
	var loads atomic.Int32
	s, err := NewImageSource(func(context.Context, geometry.Face) (image.Image, error) {
		loads.Add(1)
		return quadrants(1024, 1024), nil
	})
	if err != nil {
		t.Fatalf("NewImageSource() error = %v", err)
	}
	t.Cleanup(s.Close)

	tests := []struct {
		x, y, z int
		want    color.RGBA
	}{
		{0, 0, 0, red},
		{1, 0, 0, green},
		{0, 1, 0, blue},
		{1, 1, 0, yellow},
		{3, 0, 1, green},
		{0, 3, 1, blue},
		{2, 2, 1, yellow},
	}
	for _, tt := range tests {
		tile, err := g.Tile(tt.x, tt.y, tt.z)
		if err != nil {
			t.Fatalf("Tile() error = %v", err)
		}
		asset, err := s.LoadAsset(t.Context(), tile)
		if err != nil {
			t.Fatalf("LoadAsset(%v) error = %v", tile, err)
		}
		if asset.Width() != 256 || asset.Height() != 256 || asset.Dynamic() {
			t.Errorf("LoadAsset(%v) = %dx%d dynamic %v, want static 256x256", tile, asset.Width(), asset.Height(), asset.Dynamic())
		}
		if got := centerColor(t, asset); got != tt.want {
			t.Errorf("LoadAsset(%v) center = %v, want %v", tile, got, tt.want)
		}
	}
	if n := loads.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
}

func TestImageSourceEdgeTiles(t *testing.T) {
	g, err := geometry.NewFlatGeometry([]geometry.Level{geometry.FlatLevel(500, 300, 256, 256)})
	if err != nil {
		t.Fatalf("NewFlatGeometry() error = %v", err)
	}
	s, err := FromImage(quadrants(500, 300), WithInterpolator(draw.CatmullRom))
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	t.Cleanup(s.Close)

	tile, _ := g.Tile(1, 1, 0)
	asset, err := s.LoadAsset(t.Context(), tile)
	if err != nil {
		t.Fatalf("LoadAsset() error = %v", err)
	}
	if asset.Width() != 244 || asset.Height() != 44 {
		t.Errorf("edge tile size = %dx%d, want 244x44", asset.Width(), asset.Height())
	}
	if got := centerColor(t, asset); got != yellow {
		t.Errorf("edge tile center = %v, want %v", got, yellow)
	}
}

// countingKernel counts Scale calls.
type countingKernel struct {
	draw.Interpolator
	scales atomic.Int32
}

func (k *countingKernel) Scale(dst draw.Image, dr image.Rectangle, src image.Image, sr image.Rectangle, op draw.Op, opts *draw.Options) {
	k.scales.Add(1)
	k.Interpolator.Scale(dst, dr, src, sr, op, opts)
}

func TestImageSourceLevelsLargerThanCache(t *testing.T) {
	g, err := geometry.NewFlatGeometry([]geometry.Level{
		geometry.FlatLevel(256, 256, 128, 128),
		geometry.FlatLevel(512, 512, 128, 128),
	})
	if err != nil {
		t.Fatalf("NewFlatGeometry() error = %v", err)
	}

	// The face image does not start at the origin.
	canvas := image.NewRGBA(image.Rect(0, 0, 600, 600))
	draw.Draw(canvas, image.Rect(88, 88, 600, 600), quadrants(512, 512), image.Point{}, draw.Src)
	face := canvas.SubImage(image.Rect(88, 88, 600, 600))

	var loads atomic.Int32
	kernel := &countingKernel{Interpolator: draw.ApproxBiLinear}
	s, err := NewImageSource(func(context.Context, geometry.Face) (image.Image, error) {
		loads.Add(1)
		return face, nil
	}, WithCacheBytes(1024), WithInterpolator(kernel))
	if err != nil {
		t.Fatalf("NewImageSource() error = %v", err)
	}
	t.Cleanup(s.Close)

	tests := []struct {
		x, y, z    int
		want       color.RGBA
		wantScales int32
	}{
		{0, 0, 0, red, 1},
		{1, 1, 0, yellow, 1},
		{1, 0, 0, green, 1},
		{0, 0, 1, red, 1},
		{3, 3, 1, yellow, 1},
		{3, 0, 1, green, 1},
	}
	for _, tt := range tests {
		tile, err := g.Tile(tt.x, tt.y, tt.z)
		if err != nil {
			t.Fatalf("Tile() error = %v", err)
		}
		asset, err := s.LoadAsset(t.Context(), tile)
		if err != nil {
			t.Fatalf("LoadAsset(%v) error = %v", tile, err)
		}
		if got := centerColor(t, asset); got != tt.want {
			t.Errorf("LoadAsset(%v) center = %v, want %v", tile, got, tt.want)
		}
		if got := kernel.scales.Load(); got != tt.wantScales {
			t.Errorf("after LoadAsset(%v) scales = %d, want %d", tile, got, tt.wantScales)
		}
	}
	if n := loads.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
}

func TestImageSourceEquirect(t *testing.T) {
	g, err := geometry.NewEquirectGeometry([]geometry.Level{
		geometry.EquirectLevel(512),
		geometry.EquirectLevel(1024),
	})
	if err != nil {
		t.Fatalf("NewEquirectGeometry() error = %v", err)
	}
	s, err := FromImage(quadrants(1024, 512))
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	t.Cleanup(s.Close)

	for z, want := range []int{512, 1024} {
		tile, _ := g.Tile(z)
		asset, err := s.LoadAsset(t.Context(), tile)
		if err != nil {
			t.Fatalf("LoadAsset(z%d) error = %v", z, err)
		}
		if asset.Width() != want || asset.Height() != want/2 {
			t.Errorf("LoadAsset(z%d) = %dx%d, want %dx%d", z, asset.Width(), asset.Height(), want, want/2)
		}
	}
}

func TestImageSourceCubeFaces(t *testing.T) {
	g, err := geometry.NewCubeGeometry([]geometry.Level{geometry.CubeLevel(512, 256)})
	if err != nil {
		t.Fatalf("NewCubeGeometry() error = %v", err)
	}
	faceColors := map[geometry.Face]color.RGBA{
		geometry.FaceFront: red,
		geometry.FaceBack:  blue,
	}
	var loads atomic.Int32
	s, err := NewImageSource(func(_ context.Context, face geometry.Face) (image.Image, error) {
		loads.Add(1)
		return solid(512, 512, faceColors[face]), nil
	})
	if err != nil {
		t.Fatalf("NewImageSource() error = %v", err)
	}
	t.Cleanup(s.Close)

	for _, face := range []geometry.Face{geometry.FaceFront, geometry.FaceBack, geometry.FaceFront} {
		tile, _ := g.Tile(face, 1, 1, 0)
		asset, err := s.LoadAsset(t.Context(), tile)
		if err != nil {
			t.Fatalf("LoadAsset(%v) error = %v", tile, err)
		}
		if got := centerColor(t, asset); got != faceColors[face] {
			t.Errorf("LoadAsset(%v) center = %v, want %v", tile, got, faceColors[face])
		}
	}
	if n := loads.Load(); n != 2 {
		t.Errorf("loader calls = %d, want one per face (2)", n)
	}
}

func TestImageSourceNetworkErrorRetried(t *testing.T) {
	g := newFlat(t)
	var calls atomic.Int32
	s, err := NewImageSource(func(context.Context, geometry.Face) (image.Image, error) {
		if calls.Add(1) == 1 {
			return nil, Network("https://tiles.example/pano.jpg", errors.New("connection reset"))
		}
		return quadrants(1024, 1024), nil
	})
	if err != nil {
		t.Fatalf("NewImageSource() error = %v", err)
	}
	t.Cleanup(s.Close)

	tile, _ := g.Tile(0, 0, 0)
	_, err = s.LoadAsset(t.Context(), tile)
	if !texture.IsNetworkError(err) {
		t.Fatalf("LoadAsset() error = %v, want a network error", err)
	}
	if _, err := s.LoadAsset(t.Context(), tile); err != nil {
		t.Fatalf("second LoadAsset() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestImageSourceCanceled(t *testing.T) {
	s, err := FromImage(quadrants(1024, 1024))
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	t.Cleanup(s.Close)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	tile, _ := newFlat(t).Tile(0, 0, 1)
	if _, err := s.LoadAsset(ctx, tile); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadAsset(canceled) error = %v, want %v", err, context.Canceled)
	}
}

func TestNewImageSourceErrors(t *testing.T) {
	if _, err := NewImageSource(nil); !errors.Is(err, ErrNilLoader) {
		t.Errorf("NewImageSource(nil) error = %v, want %v", err, ErrNilLoader)
	}
	if _, err := FromImage(nil); !errors.Is(err, ErrNilLoader) {
		t.Errorf("FromImage(nil) error = %v, want %v", err, ErrNilLoader)
	}
	if Network("x", nil) != nil {
		t.Error("Network(url, nil) != nil")
	}
}

func BenchmarkImageSourceLoadAsset(b *testing.B) {
	g, err := geometry.NewFlatGeometry([]geometry.Level{geometry.FlatLevel(2048, 2048, 256, 256)})
	if err != nil {
		b.Fatal(err)
	}
	s, err := FromImage(quadrants(2048, 2048))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	tile, _ := g.Tile(3, 3, 0)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		if _, err := s.LoadAsset(ctx, tile); err != nil {
			b.Fatal(err)
		}
	}
}
