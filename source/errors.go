// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package source

import (
	"errors"
	"fmt"

	"github.com/gogpu/pano/texture"
)

var (
	// ErrUnsupportedTile is returned for tiles of a geometry kind the
	// source cannot serve.
	ErrUnsupportedTile = errors.New("source: unsupported tile")

	// ErrNilLoader is returned by constructors without a loader or draw
	// function.
	ErrNilLoader = errors.New("source: nil loader")

	// ErrNotDrawn is returned when redrawing a tile the source never
	// produced.
	ErrNotDrawn = errors.New("source: tile not drawn")
)

// Network wraps err as a transport failure for url, making the texture
// store retry the tile after its retry delay. Nil stays nil.
func Network(url string, err error) error {
	if err == nil {
		return nil
	}
	return &texture.NetworkError{URL: url, Err: err}
}

func unsupported(tile any) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedTile, tile)
}
