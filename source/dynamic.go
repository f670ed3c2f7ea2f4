// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package source

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// DrawFunc draws the contents of tile into dst, which is sized to the
// tile's pixel rectangle.
type DrawFunc func(ctx context.Context, tile geometry.Tile, dst *image.RGBA) error

// DynamicSource produces dynamic assets drawn by the caller.
//
// The source keeps the asset of every tile it drew so that Redraw can
// paint into the buffer the texture store holds; a following
// texture.Store.Refresh uploads the new pixels.
type DynamicSource struct {
	draw DrawFunc

	mu     sync.Mutex
	assets map[geometry.Tile]*ImageAsset
}

var _ texture.Source = (*DynamicSource)(nil)

// NewDynamicSource creates a source drawing tiles with fn.
func NewDynamicSource(fn DrawFunc) (*DynamicSource, error) {
	if fn == nil {
		return nil, ErrNilLoader
	}
	return &DynamicSource{draw: fn, assets: make(map[geometry.Tile]*ImageAsset)}, nil
}

// LoadAsset implements texture.Source.
func (s *DynamicSource) LoadAsset(ctx context.Context, tile geometry.Tile) (texture.Asset, error) {
	rect, _, err := TileRect(tile)
	if err != nil {
		return nil, err
	}
	asset := NewImageAsset(image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), true)
	if err := s.draw(ctx, tile, asset.img); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.assets[tile] = asset
	s.mu.Unlock()
	return asset, nil
}

// Redraw paints tile again into its existing asset.
func (s *DynamicSource) Redraw(ctx context.Context, tile geometry.Tile) error {
	s.mu.Lock()
	asset, ok := s.assets[tile]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotDrawn, tile)
	}
	return s.draw(ctx, tile, asset.img)
}

// Update redraws tile and uploads the result through store.
func (s *DynamicSource) Update(ctx context.Context, store *texture.Store, tile geometry.Tile) error {
	if err := s.Redraw(ctx, tile); err != nil {
		return err
	}
	return store.Refresh(tile)
}

// Forget drops the asset kept for tile, typically after the store evicted
// it.
func (s *DynamicSource) Forget(tile geometry.Tile) {
	s.mu.Lock()
	delete(s.assets, tile)
	s.mu.Unlock()
}

// Track makes the source forget tiles as store evicts them. It returns a
// function stopping the tracking.
func (s *DynamicSource) Track(store *texture.Store) (cancel func()) {
	return store.Subscribe(func(ev texture.Event) {
		if ev.Kind == texture.EventEvicted {
			s.Forget(ev.Tile)
		}
	})
}
