// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameState is returned when StartFrame, MarkTile and EndFrame are
	// called out of order.
	ErrFrameState = errors.New("texture: invalid frame state")

	// ErrNotPinned is returned by Unpin for a tile without pins.
	ErrNotPinned = errors.New("texture: tile is not pinned")

	// ErrDestroyed is returned by operations on a destroyed store.
	ErrDestroyed = errors.New("texture: store destroyed")

	// ErrNotLoaded is returned by Refresh for a tile without a texture.
	ErrNotLoaded = errors.New("texture: tile has no texture")

	// ErrNotDynamic is returned by Refresh for a tile whose asset never
	// changes.
	ErrNotDynamic = errors.New("texture: asset is not dynamic")

	// ErrNilSource is returned by New without a source.
	ErrNilSource = errors.New("texture: nil source")

	// ErrNilFactory is returned by New without a texture factory.
	ErrNilFactory = errors.New("texture: nil texture factory")

	// ErrUnsupportedAsset is returned by factories for asset types they
	// cannot upload. Loads failing with it are not retried.
	ErrUnsupportedAsset = errors.New("texture: unsupported asset")
)

// NetworkError reports a transport failure while fetching a tile.
// Loads failing with a NetworkError anywhere in their error chain are
// retried after the store's retry delay.
type NetworkError struct {
	// URL is the resource that failed, if known.
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// errorKind classifies err for metrics and logs.
func errorKind(err error) string {
	switch {
	case IsNetworkError(err):
		return "network"
	case errors.Is(err, ErrUnsupportedAsset):
		return "unsupported"
	case errors.Is(err, errCreateTexture):
		return "create"
	default:
		return "source"
	}
}

// errCreateTexture wraps factory failures.
var errCreateTexture = errors.New("texture: create texture")
