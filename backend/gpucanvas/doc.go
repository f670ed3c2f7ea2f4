// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpucanvas draws pano stages on the GPU through gpucontext.
//
// Tile textures are created by texture store workers, which have no GPU
// access, so the backend keeps their pixels as pending uploads. The first
// frame drawing a tile creates the GPU texture with the drawer's
// gpucontext.TextureCreator. GPU textures of destroyed tiles are released
// at the start of the next frame, once the GPU is done with them.
//
// Usage with gogpu:
//
//	b := gpucanvas.New(width, height)
//	stage := pano.MustNewStage(b)
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    b.SetDrawer(dc.AsTextureDrawer())
//	    stage.Render()
//	})
//
// Flat tiles seen through a view.Flat are positioned on screen. Drawers
// implementing [ScaledDrawer] also get them scaled and faded; plain
// gpucontext.TextureDrawer implementations draw them at native size.
package gpucanvas
