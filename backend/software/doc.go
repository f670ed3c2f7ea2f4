// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software is a CPU pano backend.
//
// Textures are RGBA images in memory. Flat layers seen through a
// view.Flat are composited into a framebuffer with their effects; every
// draw call is also recorded so that cube and equirect layers, which need
// a projection this backend does not perform, can be inspected.
//
// The backend registers itself as "software" in the backend registry.
package software
