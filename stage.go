package pano

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// Stage draws a stack of layers through a backend.
//
// Layer management and Render are meant to be called from one goroutine,
// the one driving the frame loop. Texture creation and destruction reach
// the stage from texture store workers and are safe for concurrent use.
type Stage struct {
	backend     Backend
	progressive bool

	mu        sync.Mutex
	layers    []*Layer
	destroyed bool

	// Per-frame scratch, reused across layers and frames.
	visible  []geometry.Tile
	toLoad   []geometry.Tile
	toRender []geometry.Tile
	children []geometry.Tile
	textures []texture.Texture

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// NewStage creates a stage drawing through backend.
func NewStage(backend Backend, opts ...StageOption) (*Stage, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	var o stageOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Stage{
		backend:     backend,
		progressive: o.progressive,
	}, nil
}

// MustNewStage is like NewStage but panics on error.
func MustNewStage(backend Backend, opts ...StageOption) *Stage {
	s, err := NewStage(backend, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Backend returns the stage's backend.
func (s *Stage) Backend() Backend {
	return s.backend
}

// Size returns the drawing surface size in pixels.
func (s *Stage) Size() (width, height int) {
	return s.backend.Size()
}

// Progressive reports whether progressive loading is enabled.
func (s *Stage) Progressive() bool {
	return s.progressive
}

// CreateTexture implements texture.Factory by delegating to the backend.
func (s *Stage) CreateTexture(ctx context.Context, tile geometry.Tile, asset texture.Asset) (texture.Texture, error) {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return nil, ErrStageDestroyed
	}
	return s.backend.CreateTexture(ctx, tile, asset)
}

// DestroyTexture implements texture.Factory by delegating to the backend.
func (s *Stage) DestroyTexture(tex texture.Texture) {
	s.backend.DestroyTexture(tex)
}

// updatingStage also forwards in-place texture updates to a backend that
// supports them.
type updatingStage struct {
	*Stage
	updater texture.Updater
}

func (u updatingStage) UpdateTexture(tex texture.Texture, tile geometry.Tile, asset texture.Asset) error {
	return u.updater.UpdateTexture(tex, tile, asset)
}

// textureFactory returns the factory handed to layer texture stores.
func (s *Stage) textureFactory() texture.Factory {
	if u, ok := s.backend.(texture.Updater); ok {
		return updatingStage{Stage: s, updater: u}
	}
	return s
}

// AddLayer puts l on top of the stack.
func (s *Stage) AddLayer(l *Layer) error {
	return s.InsertLayer(l, -1)
}

// InsertLayer puts l at position i of the stack, 0 being the bottom.
// A negative i appends on top.
func (s *Stage) InsertLayer(l *Layer, i int) error {
	s.mu.Lock()
	if err := s.checkAddLocked(l); err != nil {
		s.mu.Unlock()
		return err
	}
	if i < 0 {
		i = len(s.layers)
	}
	if i > len(s.layers) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	s.layers = slices.Insert(s.layers, i, l)
	s.mu.Unlock()

	Logger().Info("pano: layer added", "layer", l.ID(), "index", i)
	s.invalidate(l)
	return nil
}

func (s *Stage) checkAddLocked(l *Layer) error {
	switch {
	case s.destroyed:
		return ErrStageDestroyed
	case l.stage != s:
		return ErrWrongStage
	case l.isDestroyed():
		return ErrLayerDestroyed
	case slices.Contains(s.layers, l):
		return ErrLayerExists
	}
	return nil
}

// RemoveLayer takes l off the stack. The layer keeps its textures and can
// be added again.
func (s *Stage) RemoveLayer(l *Layer) error {
	s.mu.Lock()
	i := slices.Index(s.layers, l)
	if i < 0 {
		s.mu.Unlock()
		return ErrLayerNotFound
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	s.mu.Unlock()

	s.invalidate(l)
	return nil
}

// MoveLayer moves l to position i of the stack.
func (s *Stage) MoveLayer(l *Layer, i int) error {
	s.mu.Lock()
	from := slices.Index(s.layers, l)
	if from < 0 {
		s.mu.Unlock()
		return ErrLayerNotFound
	}
	if i < 0 || i >= len(s.layers) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	s.layers = slices.Delete(s.layers, from, from+1)
	s.layers = slices.Insert(s.layers, i, l)
	s.mu.Unlock()

	s.invalidate(l)
	return nil
}

// Layers returns the layers bottom to top.
func (s *Stage) Layers() []*Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.layers)
}

// HasLayer reports whether l is on the stage.
func (s *Stage) HasLayer(l *Layer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.layers, l)
}

// Render draws one frame and reports whether it is stable: every visible
// tile of every layer was drawn with its own texture.
//
// For each layer, bottom to top, Render collects the tiles to load and to
// render, marks the former in the layer's texture store and hands the
// latter to the backend. Texture store frames are opened for every layer
// before any tile is marked and closed after the last layer is drawn, so
// layers sharing a store are handled correctly.
//
// An error from a layer's view or geometry aborts the frame; the backend
// and texture store frames are still closed and their errors joined.
func (s *Stage) Render() (stable bool, err error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return false, ErrStageDestroyed
	}
	layers := slices.Clone(s.layers)
	s.mu.Unlock()

	width, height := s.backend.Size()

	opened := 0
	defer func() {
		for _, l := range layers[:opened] {
			if endErr := l.store.EndFrame(); endErr != nil {
				err = errors.Join(err, endErr)
			}
		}
	}()
	for _, l := range layers {
		if err := l.store.StartFrame(); err != nil {
			return false, fmt.Errorf("pano: layer %v: %w", l.ID(), err)
		}
		opened++
	}

	if err := s.backend.StartFrame(); err != nil {
		return false, err
	}

	stable = true
	for i, l := range layers {
		l.resizeView(width, height)

		layerStable, err := s.collectTiles(l)
		if err != nil {
			return false, errors.Join(fmt.Errorf("pano: layer %v: %w", l.ID(), err), s.backend.EndFrame())
		}
		stable = stable && layerStable

		for _, tile := range s.toLoad {
			if err := l.store.MarkTile(tile); err != nil {
				return false, errors.Join(fmt.Errorf("pano: layer %v: %w", l.ID(), err), s.backend.EndFrame())
			}
		}

		call := s.drawCall(l, len(layers)-i)
		if err := s.backend.DrawLayer(call); err != nil {
			return false, errors.Join(fmt.Errorf("pano: layer %v: %w", l.ID(), err), s.backend.EndFrame())
		}
	}

	if err := s.backend.EndFrame(); err != nil {
		return false, err
	}

	s.emit(Event{Kind: EventRenderComplete, Stable: stable})
	return stable, nil
}

// drawCall resolves the collected render list into textures. Tiles whose
// texture vanished since collection are skipped.
func (s *Stage) drawCall(l *Layer, depth int) DrawCall {
	tiles := s.toRender[:0]
	s.textures = s.textures[:0]
	for _, tile := range s.toRender {
		if tex, ok := l.store.Texture(tile); ok {
			tiles = append(tiles, tile)
			s.textures = append(s.textures, tex)
		}
	}
	s.toRender = tiles

	return DrawCall{
		Layer:    l,
		Depth:    depth,
		Effects:  l.Effects(),
		Tiles:    s.toRender,
		Textures: s.textures,
	}
}

// Destroy removes and destroys every layer. Layers sharing an outside
// texture store leave it alive. Later calls are no-ops.
func (s *Stage) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	layers := s.layers
	s.layers = nil
	s.mu.Unlock()

	for _, l := range layers {
		l.Destroy()
	}
	Logger().Info("pano: stage destroyed", "layers", len(layers))
}
