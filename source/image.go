// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package source

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/image/draw"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// DefaultCacheBytes bounds the scaled level images an ImageSource keeps.
const DefaultCacheBytes = 64 << 20

// Loader fetches the full-resolution image tiles are cut from. For cube
// geometries it is called once per face; other kinds always get face 0.
//
// Errors wrapped with [Network] are retried by the texture store.
type Loader func(ctx context.Context, face geometry.Face) (image.Image, error)

// ImageOption configures an ImageSource.
type ImageOption func(*ImageSource)

// WithCacheBytes bounds the memory used by scaled level images.
func WithCacheBytes(n int64) ImageOption {
	return func(s *ImageSource) {
		if n > 0 {
			s.cacheBytes = n
		}
	}
}

// WithInterpolator sets the resampling kernel used to scale levels down.
// The default is draw.ApproxBiLinear.
func WithInterpolator(k draw.Interpolator) ImageOption {
	return func(s *ImageSource) {
		if k != nil {
			s.kernel = k
		}
	}
}

// ImageSource serves tiles cut out of full-resolution images.
//
// Each face image is loaded once. Every level is the face image scaled to
// the level size; scaled levels live in a cost-bounded cache and are
// rebuilt after eviction. A level matching the image size is the image
// itself, and a scaled level larger than the whole cache is kept for the
// life of the source.
type ImageSource struct {
	load       Loader
	kernel     draw.Interpolator
	cacheBytes int64

	mu    sync.Mutex
	faces map[geometry.Face]image.Image
	// resident holds levels the cache cannot: unscaled face images and
	// levels costing more than cacheBytes.
	resident map[string]image.Image

	// scaleMu serializes level scaling so concurrent loads of one level
	// scale it once.
	scaleMu sync.Mutex
	levels  *ristretto.Cache[string, *image.RGBA]
}

var _ texture.Source = (*ImageSource)(nil)

// NewImageSource creates a source backed by load.
func NewImageSource(load Loader, opts ...ImageOption) (*ImageSource, error) {
	if load == nil {
		return nil, ErrNilLoader
	}
	s := &ImageSource{
		load:       load,
		kernel:     draw.ApproxBiLinear,
		cacheBytes: DefaultCacheBytes,
		faces:      make(map[geometry.Face]image.Image),
		resident:   make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(s)
	}

	levels, err := ristretto.NewCache(&ristretto.Config[string, *image.RGBA]{
		NumCounters:        1000,
		MaxCost:            s.cacheBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("source: level cache: %w", err)
	}
	s.levels = levels
	return s, nil
}

// FromImage returns a source cutting tiles out of img for every face.
func FromImage(img image.Image, opts ...ImageOption) (*ImageSource, error) {
	if img == nil {
		return nil, ErrNilLoader
	}
	return NewImageSource(func(context.Context, geometry.Face) (image.Image, error) {
		return img, nil
	}, opts...)
}

// LoadAsset implements texture.Source.
func (s *ImageSource) LoadAsset(ctx context.Context, tile geometry.Tile) (texture.Asset, error) {
	rect, level, err := TileRect(tile)
	if err != nil {
		return nil, err
	}
	face := faceOf(tile)

	levelImg, err := s.levelImage(ctx, face, tile.Z(), level)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), levelImg, levelImg.Bounds().Min.Add(rect.Min), draw.Src)
	return NewImageAsset(dst, false), nil
}

// levelImage returns the face image scaled to level z.
func (s *ImageSource) levelImage(ctx context.Context, face geometry.Face, z int, level geometry.Level) (image.Image, error) {
	key := fmt.Sprintf("%d/%d", face, z)
	if img, ok := s.cachedLevel(key); ok {
		return img, nil
	}

	s.scaleMu.Lock()
	defer s.scaleMu.Unlock()
	if img, ok := s.cachedLevel(key); ok {
		return img, nil
	}

	src, err := s.faceImage(ctx, face)
	if err != nil {
		return nil, err
	}
	if sb := src.Bounds(); sb.Dx() == level.Width && sb.Dy() == level.Height {
		s.keepLevel(key, src)
		return src, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, level.Width, level.Height))
	s.kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	if cost := int64(len(dst.Pix)); cost > s.cacheBytes {
		s.keepLevel(key, dst)
	} else {
		s.levels.Set(key, dst, cost)
		s.levels.Wait()
	}
	return dst, nil
}

func (s *ImageSource) cachedLevel(key string) (image.Image, bool) {
	s.mu.Lock()
	img, ok := s.resident[key]
	s.mu.Unlock()
	if ok {
		return img, true
	}
	if img, ok := s.levels.Get(key); ok {
		return img, true
	}
	return nil, false
}

func (s *ImageSource) keepLevel(key string, img image.Image) {
	s.mu.Lock()
	s.resident[key] = img
	s.mu.Unlock()
}

// faceImage loads the image of face once. Failures are not remembered so
// later loads try again.
func (s *ImageSource) faceImage(ctx context.Context, face geometry.Face) (image.Image, error) {
	s.mu.Lock()
	img, ok := s.faces[face]
	s.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := s.load(ctx, face)
	if err != nil {
		return nil, fmt.Errorf("source: load face %v: %w", face, err)
	}
	if img == nil {
		return nil, fmt.Errorf("source: load face %v: %w", face, ErrNilLoader)
	}

	s.mu.Lock()
	s.faces[face] = img
	s.mu.Unlock()
	return img, nil
}

// Close releases the level cache and the resident levels.
func (s *ImageSource) Close() {
	s.levels.Close()
	s.mu.Lock()
	clear(s.resident)
	s.mu.Unlock()
}
