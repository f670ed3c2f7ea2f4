package pano

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// NoFixedLevel means the view selects the level to show.
const NoFixedLevel = -1

// Layer is one image on a stage: a source of tiles laid out by a
// geometry and seen through a view.
type Layer struct {
	id       uuid.UUID
	stage    *Stage
	source   texture.Source
	geometry geometry.Geometry
	view     geometry.View

	store       *texture.Store
	ownsStore   bool
	unsubscribe func()

	mu         sync.Mutex
	effects    Effects
	fixedLevel int
	destroyed  bool
}

// NewLayer creates a layer for stage. The layer is not drawn until it is
// added with Stage.AddLayer.
func NewLayer(stage *Stage, source texture.Source, geom geometry.Geometry, view geometry.View, opts ...LayerOption) (*Layer, error) {
	if stage == nil || geom == nil || view == nil {
		return nil, errors.New("pano: NewLayer needs a stage, a geometry and a view")
	}

	o := defaultLayerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	l := &Layer{
		id:         uuid.New(),
		stage:      stage,
		source:     source,
		geometry:   geom,
		view:       view,
		effects:    o.effects,
		fixedLevel: o.fixedLevel,
	}
	if err := l.checkLevel(o.fixedLevel); err != nil {
		return nil, err
	}

	if o.store != nil {
		l.store = o.store
	} else {
		store, err := texture.New(source, stage.textureFactory(), o.storeOptions...)
		if err != nil {
			return nil, err
		}
		l.store, l.ownsStore = store, true
	}
	l.unsubscribe = l.store.Subscribe(l.handleTextureEvent)

	return l, nil
}

// MustNewLayer is like NewLayer but panics on error.
func MustNewLayer(stage *Stage, source texture.Source, geom geometry.Geometry, view geometry.View, opts ...LayerOption) *Layer {
	l, err := NewLayer(stage, source, geom, view, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// handleTextureEvent asks for a new frame when the store changed in a way
// the next frame would show.
func (l *Layer) handleTextureEvent(ev texture.Event) {
	switch ev.Kind {
	case texture.EventLoaded, texture.EventLoadFailed, texture.EventInvalidated:
		l.stage.invalidate(l)
	}
}

// ID returns the layer's unique identifier.
func (l *Layer) ID() uuid.UUID { return l.id }

// Stage returns the stage the layer was created for.
func (l *Layer) Stage() *Stage { return l.stage }

// Source returns the tile source.
func (l *Layer) Source() texture.Source { return l.source }

// Geometry returns the tile geometry.
func (l *Layer) Geometry() geometry.Geometry { return l.geometry }

// View returns the view.
func (l *Layer) View() geometry.View { return l.view }

// TextureStore returns the layer's texture store.
func (l *Layer) TextureStore() *texture.Store { return l.store }

// Effects returns the layer's effects.
func (l *Layer) Effects() Effects {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effects
}

// SetEffects replaces the layer's effects.
func (l *Layer) SetEffects(e Effects) {
	l.mu.Lock()
	l.effects = e
	l.mu.Unlock()
	l.stage.invalidate(l)
}

// FixedLevel returns the fixed level index, or NoFixedLevel.
func (l *Layer) FixedLevel() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fixedLevel
}

// SetFixedLevel makes the layer show level z regardless of the view.
// NoFixedLevel returns level selection to the view.
func (l *Layer) SetFixedLevel(z int) error {
	if err := l.checkLevel(z); err != nil {
		return err
	}
	l.mu.Lock()
	changed := l.fixedLevel != z
	l.fixedLevel = z
	l.mu.Unlock()

	if changed {
		l.stage.invalidate(l)
	}
	return nil
}

func (l *Layer) checkLevel(z int) error {
	if z != NoFixedLevel && (z < 0 || z >= len(l.geometry.Levels())) {
		return fmt.Errorf("%w: %d", geometry.ErrInvalidLevelIndex, z)
	}
	return nil
}

// VisibleTiles appends the visible tiles of the layer's current level to
// dst: the fixed level if set, otherwise the level the view selects among
// the geometry's selectable levels.
func (l *Layer) VisibleTiles(dst []geometry.Tile) ([]geometry.Tile, error) {
	level, err := l.level()
	if err != nil {
		return dst, err
	}
	return l.geometry.VisibleTiles(l.view, level, dst)
}

func (l *Layer) level() (geometry.Level, error) {
	if z := l.FixedLevel(); z != NoFixedLevel {
		return l.geometry.Levels()[z], nil
	}
	return l.view.SelectLevel(l.geometry.SelectableLevels())
}

// resizeView fits views that can be resized to the layer's part of a
// stage of the given size.
func (l *Layer) resizeView(width, height int) {
	v, ok := l.view.(interface{ SetSize(width, height int) })
	if !ok {
		return
	}
	w, h := l.Effects().Rect.viewportSize(width, height)
	if cw, ch := l.view.Size(); cw != w || ch != h {
		v.SetSize(w, h)
	}
}

// PinLevel pins every tile of level z so it stays loaded as a fallback.
func (l *Layer) PinLevel(z int) error {
	tiles, err := l.geometry.LevelTiles(z, nil)
	if err != nil {
		return err
	}
	for _, tile := range tiles {
		if _, err := l.store.Pin(tile); err != nil {
			return err
		}
	}
	return nil
}

// UnpinLevel releases the pins taken by PinLevel(z).
func (l *Layer) UnpinLevel(z int) error {
	tiles, err := l.geometry.LevelTiles(z, nil)
	if err != nil {
		return err
	}
	var errs []error
	for _, tile := range tiles {
		if _, err := l.store.Unpin(tile); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PinFirstLevel pins the coarsest level, guaranteeing a fallback for
// every tile once it has loaded.
func (l *Layer) PinFirstLevel() error {
	return l.PinLevel(0)
}

func (l *Layer) isDestroyed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed
}

// Destroy stops the layer's texture events and destroys its texture store
// unless the store is shared. Remove the layer from its stage first.
func (l *Layer) Destroy() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	l.destroyed = true
	l.mu.Unlock()

	l.unsubscribe()
	if l.ownsStore {
		l.store.Destroy()
	}
}
