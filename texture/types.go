// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"context"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pano/geometry"
)

// Texture is an opaque backend texture handle. The store never draws or
// frees a texture itself; it asks its Factory.
//
// gpucontext.Texture satisfies this interface.
type Texture interface {
	Width() int
	Height() int
}

// FormatTexture is a Texture that reports its pixel format. The store uses
// it for byte accounting; textures without a format count as RGBA8.
type FormatTexture interface {
	Texture
	Format() gputypes.TextureFormat
}

// Asset is the decoded pixel data of a tile, ready for upload.
type Asset interface {
	Width() int
	Height() int

	// Dynamic reports whether the asset contents can change after
	// loading. Dynamic assets are re-uploaded by Store.Refresh.
	Dynamic() bool
}

// Source resolves tiles into assets.
//
// LoadAsset may block. It must return promptly once ctx is done. Transport
// failures should be reported as *NetworkError so the store retries them.
type Source interface {
	LoadAsset(ctx context.Context, tile geometry.Tile) (Asset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, tile geometry.Tile) (Asset, error)

// LoadAsset calls f(ctx, tile).
func (f SourceFunc) LoadAsset(ctx context.Context, tile geometry.Tile) (Asset, error) {
	return f(ctx, tile)
}

// Factory creates and destroys textures. It is the only path through
// which the store obtains or releases a texture.
//
// CreateTexture runs on a worker goroutine. DestroyTexture may be called
// from any goroutine.
type Factory interface {
	CreateTexture(ctx context.Context, tile geometry.Tile, asset Asset) (Texture, error)
	DestroyTexture(tex Texture)
}

// Updater is implemented by factories that can replace the contents of a
// texture in place. Store.Refresh uses it for dynamic assets and falls
// back to creating a new texture otherwise. UpdateTexture runs without the
// store lock and may race with DestroyTexture of the same texture.
type Updater interface {
	UpdateTexture(tex Texture, tile geometry.Tile, asset Asset) error
}

// State is the lifecycle state of a tile's entry.
type State int

const (
	// StateNone means the store has no entry for the tile.
	StateNone State = iota
	// StateLoading means the first load of the tile is in flight.
	StateLoading
	// StateLoaded means the tile's texture is available.
	StateLoaded
	// StateFailed means the last load failed.
	StateFailed
	// StateInvalid means the texture is stale. It stays drawable until a
	// reload replaces it.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// TextureBytes estimates the memory held by tex.
func TextureBytes(tex Texture) int64 {
	bpp := int64(4)
	if ft, ok := tex.(FormatTexture); ok {
		bpp = bytesPerPixel(ft.Format())
	}
	return int64(tex.Width()) * int64(tex.Height()) * bpp
}

func bytesPerPixel(f gputypes.TextureFormat) int64 {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR8Uint, gputypes.TextureFormatR8Sint:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm,
		gputypes.TextureFormatR16Float, gputypes.TextureFormatR16Unorm:
		return 2
	case gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatRGBA16Unorm,
		gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float, gputypes.TextureFormatRGBA32Uint,
		gputypes.TextureFormatRGBA32Sint:
		return 16
	default:
		return 4
	}
}
