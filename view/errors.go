// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package view

import "errors"

// ErrNoLevels is returned by SelectLevel when given no levels.
var ErrNoLevels = errors.New("view: no levels to select from")
