// Package pano streams multi-resolution tile pyramids for 360° panoramas
// and large flat images.
//
// # Overview
//
// A [Stage] draws a stack of [Layer]s through a [Backend]. Each layer pairs
// a tile source with a geometry (cube map, flat image or equirectangular
// sphere) and a view. Every frame the stage asks the view which level to
// show, searches the geometry for the visible tiles of that level, and
// resolves each tile to something drawable: the tile itself when its
// texture is loaded, otherwise loaded children one level down, otherwise
// the closest loaded ancestor.
//
// Textures are cached per layer in a [texture.Store], which loads them
// asynchronously on a bounded worker pool and evicts them when they leave
// the view.
//
// # Quick Start
//
//	geom, _ := geometry.NewFlatGeometry([]geometry.Level{
//	    geometry.FlatLevel(1024, 512, 512, 512),
//	    geometry.FlatLevel(2048, 1024, 512, 512),
//	})
//	v := view.NewFlat(800, 600, view.WithMediaAspectRatio(2))
//
//	stage, _ := pano.NewStage(software.New(800, 600))
//	layer, _ := pano.NewLayer(stage, src, geom, v)
//	_ = layer.PinFirstLevel()
//	_ = stage.AddLayer(layer)
//
//	stage.Subscribe(func(ev pano.Event) {
//	    if ev.Kind == pano.EventInvalidated {
//	        requestFrame()
//	    }
//	})
//	stable, err := stage.Render()
//
// # Progressive Mode
//
// With [WithProgressive], every ancestor of a visible tile is loaded too,
// coarse levels first, so zooming in always has a blurry fallback ready.
//
// # Stability
//
// A frame is stable when every visible tile was drawn with its own
// texture. [Stage.Render] returns the stability of the frame and emits
// [EventRenderComplete] with it.
package pano
