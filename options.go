package pano

import "github.com/gogpu/pano/texture"

// StageOption configures a Stage during creation.
//
// Example:
//
//	stage, err := pano.NewStage(backend, pano.WithProgressive(true))
type StageOption func(*stageOptions)

type stageOptions struct {
	progressive bool
}

// WithProgressive makes the stage load every ancestor of a visible tile,
// coarse levels first, instead of only the ancestors needed as fallback.
func WithProgressive(enabled bool) StageOption {
	return func(o *stageOptions) {
		o.progressive = enabled
	}
}

// LayerOption configures a Layer during creation.
type LayerOption func(*layerOptions)

type layerOptions struct {
	effects      Effects
	fixedLevel   int
	storeOptions []texture.Option
	store        *texture.Store
}

func defaultLayerOptions() layerOptions {
	return layerOptions{
		effects:    DefaultEffects(),
		fixedLevel: NoFixedLevel,
	}
}

// WithEffects sets the initial effects of the layer.
func WithEffects(e Effects) LayerOption {
	return func(o *layerOptions) {
		o.effects = e
	}
}

// WithFixedLevel makes the layer always show level z of its geometry
// instead of the level selected by the view.
func WithFixedLevel(z int) LayerOption {
	return func(o *layerOptions) {
		o.fixedLevel = z
	}
}

// WithTextureStoreOptions passes options to the layer's texture store.
// Ignored when WithTextureStore is also given.
func WithTextureStoreOptions(opts ...texture.Option) LayerOption {
	return func(o *layerOptions) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}

// WithTextureStore makes the layer share an existing store instead of
// creating its own. The layer does not destroy a shared store.
//
// The store must load from the same source and create textures through
// the same stage.
func WithTextureStore(s *texture.Store) LayerOption {
	return func(o *layerOptions) {
		o.store = s
	}
}
