// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

import "errors"

// Geometry errors. All of them indicate a caller contract violation.
var (
	// ErrInvalidLevels is returned when a level list fails validation.
	ErrInvalidLevels = errors.New("geometry: invalid level list")

	// ErrNoSelectableLevels is returned when every level is fallback-only.
	ErrNoSelectableLevels = errors.New("geometry: no selectable levels")

	// ErrLevelNotFound is returned when a level does not belong to a geometry.
	ErrLevelNotFound = errors.New("geometry: level not in geometry")

	// ErrInvalidLevelIndex is returned for a level index out of range.
	ErrInvalidLevelIndex = errors.New("geometry: invalid level index")

	// ErrInvalidTile is returned for tile coordinates out of range.
	ErrInvalidTile = errors.New("geometry: tile coordinates out of range")

	// ErrStartingTileNotVisible is returned when the tile under the view
	// centre fails the view's frustum test. It signals that the geometry
	// and view disagree, not a recoverable condition.
	ErrStartingTileNotVisible = errors.New("geometry: starting tile is not visible")

	// ErrIncompatibleView is returned when a view lacks the capability a
	// geometry needs to locate its starting tile.
	ErrIncompatibleView = errors.New("geometry: view does not support this geometry")
)
