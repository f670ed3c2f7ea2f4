// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/internal/workpool"
)

// visibleSetBuckets sizes the per-frame visible tile sets.
const visibleSetBuckets = 128

// entry is the cache record of one tile. All fields are guarded by
// Store.mu.
type entry struct {
	tile  geometry.Tile
	state State

	texture Texture
	asset   Asset
	bytes   int64

	pins int

	// task is the in-flight load, nil when idle. gen identifies it so a
	// late completion of a superseded load is recognised.
	task *workpool.Task[loadResult]
	gen  uint64

	err     error
	retry   bool
	retryAt time.Time

	// elem is the entry's position in Store.lru while evictable.
	elem *list.Element
}

type loadResult struct {
	asset   Asset
	texture Texture
}

// effects collects work to perform once the store lock is released.
type effects struct {
	cancels  []*workpool.Task[loadResult]
	destroys []Texture
	events   []Event
	evicted  int
	resident bool
}

// Store caches tile textures and schedules their loads.
type Store struct {
	source  Source
	factory Factory
	cfg     config
	metrics storeMetrics
	pool    *workpool.Pool[loadResult]

	mu      sync.Mutex
	entries map[geometry.Tile]*entry

	// lru holds evictable entries, most recently evicted-from-view first.
	lru list.List

	visible     *geometry.TileSet
	prevVisible *geometry.TileSet

	frameDepth int
	marking    bool
	bytes      int64
	destroyed  bool

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// New creates a store loading tiles from source and materialising them
// with factory.
func New(source Source, factory Factory, opts ...Option) (*Store, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		source:      source,
		factory:     factory,
		cfg:         cfg,
		metrics:     storeMetrics{name: cfg.metrics},
		pool:        workpool.New[loadResult](cfg.concurrency),
		entries:     make(map[geometry.Tile]*entry),
		visible:     geometry.NewTileSet(visibleSetBuckets),
		prevVisible: geometry.NewTileSet(visibleSetBuckets),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(source Source, factory Factory, opts ...Option) *Store {
	s, err := New(source, factory, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// StartFrame opens a frame. Frames may nest when several layers share a
// store, as long as no tile has been marked yet; the frame closes with
// the matching outermost EndFrame.
func (s *Store) StartFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if s.marking {
		return fmt.Errorf("%w: StartFrame after MarkTile", ErrFrameState)
	}
	s.frameDepth++
	return nil
}

// MarkTile retains tile for the current frame and loads it if needed.
//
// An untouched tile starts loading. A stale tile reloads. A tile whose
// last load failed with a network error reloads once the retry delay has
// passed. A load already in flight is never duplicated.
func (s *Store) MarkTile(tile geometry.Tile) error {
	var fx effects
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.frameDepth == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: MarkTile outside a frame", ErrFrameState)
	}

	s.marking = true
	s.visible.Add(tile)

	e := s.entries[tile]
	if e == nil {
		e = s.newEntryLocked(tile)
		s.startLoadLocked(e, &fx)
	} else {
		s.lruRemoveLocked(e)
		if s.needsReloadLocked(e) {
			s.startLoadLocked(e, &fx)
		}
	}
	s.mu.Unlock()

	s.apply(&fx)
	return nil
}

func (s *Store) needsReloadLocked(e *entry) bool {
	if e.task != nil {
		return false
	}
	switch e.state {
	case StateInvalid:
		return true
	case StateFailed:
		if !e.retry {
			return false
		}
		if s.cfg.now().Before(e.retryAt) {
			Logger().Debug("texture: retry held back", "tile", e.tile, "until", e.retryAt)
			return false
		}
		return true
	default:
		return false
	}
}

// EndFrame closes the current frame. When the outermost frame closes,
// tiles marked in the previous frame but not in this one become evictable
// and the cache is trimmed to its size and byte budget.
func (s *Store) EndFrame() error {
	var fx effects
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.frameDepth == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: EndFrame without StartFrame", ErrFrameState)
	}

	s.frameDepth--
	if s.frameDepth > 0 {
		s.mu.Unlock()
		return nil
	}
	s.marking = false

	s.prevVisible.ForEach(func(t geometry.Tile) bool {
		if s.visible.Has(t) {
			return true
		}
		if e := s.entries[t]; e != nil && e.pins == 0 && e.elem == nil {
			e.elem = s.lru.PushFront(e)
		}
		return true
	})
	s.trimLocked(&fx)

	s.prevVisible, s.visible = s.visible, s.prevVisible
	s.visible.Clear()
	s.mu.Unlock()

	s.apply(&fx)
	return nil
}

// Texture returns the texture of tile if it has one. Stale textures are
// returned until replaced. Texture never blocks and never starts a load.
func (s *Store) Texture(tile geometry.Tile) (Texture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[tile]
	if e == nil || e.texture == nil {
		return nil, false
	}
	if e.state != StateLoaded && e.state != StateInvalid {
		return nil, false
	}
	return e.texture, true
}

// State returns the state of tile's entry.
func (s *Store) State(tile geometry.Tile) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.entries[tile]; e != nil {
		return e.state
	}
	return StateNone
}

// Err returns the error of the last failed load of tile, or nil.
func (s *Store) Err(tile geometry.Tile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.entries[tile]; e != nil && e.state == StateFailed {
		return e.err
	}
	return nil
}

// Pin adds a retention hold on tile and returns the new pin count. A
// pinned tile is never evicted. Pinning an untouched tile starts its load.
func (s *Store) Pin(tile geometry.Tile) (int, error) {
	var fx effects
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return 0, ErrDestroyed
	}

	e := s.entries[tile]
	if e == nil {
		e = s.newEntryLocked(tile)
		s.startLoadLocked(e, &fx)
	}
	s.lruRemoveLocked(e)
	e.pins++
	pins := e.pins
	s.mu.Unlock()

	s.apply(&fx)
	return pins, nil
}

// Unpin releases one hold on tile and returns the remaining pin count.
// A tile left without pins that is not in view becomes evictable.
func (s *Store) Unpin(tile geometry.Tile) (int, error) {
	var fx effects
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return 0, ErrDestroyed
	}

	e := s.entries[tile]
	if e == nil || e.pins == 0 {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ErrNotPinned, tile)
	}

	e.pins--
	pins := e.pins
	if pins == 0 && !s.visible.Has(tile) && !s.prevVisible.Has(tile) {
		e.elem = s.lru.PushFront(e)
		s.trimLocked(&fx)
	}
	s.mu.Unlock()

	s.apply(&fx)
	return pins, nil
}

// ClearNotPinned evicts every entry without pins immediately, canceling
// their loads and destroying their textures.
func (s *Store) ClearNotPinned() {
	var fx effects
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	for _, e := range s.entries {
		if e.pins == 0 {
			s.evictLocked(e, &fx)
		}
	}
	// Tiles marked this frame or last may be gone now.
	s.visible.Clear()
	s.prevVisible.Clear()
	s.mu.Unlock()

	s.apply(&fx)
}

// Invalidate marks tile's texture stale. The stale texture stays drawable
// and the tile reloads on its next mark. An in-flight load is canceled
// and restarted on the next mark. A failed tile becomes eligible for a
// reload regardless of its error kind.
func (s *Store) Invalidate(tile geometry.Tile) {
	var fx effects
	s.mu.Lock()
	e := s.entries[tile]
	if s.destroyed || e == nil {
		s.mu.Unlock()
		return
	}
	s.cancelLoadLocked(e, &fx)
	e.state = StateInvalid
	e.err = nil
	e.retry = false
	fx.events = append(fx.events, Event{Kind: EventInvalidated, Tile: tile})
	s.mu.Unlock()

	s.apply(&fx)
}

// Refresh re-uploads the dynamic asset of tile into its texture. It uses
// the factory's Updater when available and otherwise replaces the texture.
// The upload runs without the store lock. A texture created for an entry
// that was evicted, reloaded or refreshed meanwhile is destroyed unused.
func (s *Store) Refresh(tile geometry.Tile) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	e := s.entries[tile]
	if e == nil || e.texture == nil || e.asset == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotLoaded, tile)
	}
	if !e.asset.Dynamic() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotDynamic, tile)
	}
	gen, old, asset := e.gen, e.texture, e.asset
	s.mu.Unlock()

	var tex Texture
	if u, ok := s.factory.(Updater); ok {
		if err := u.UpdateTexture(old, tile, asset); err != nil {
			return err
		}
	} else {
		var err error
		tex, err = s.factory.CreateTexture(context.Background(), tile, asset)
		if err != nil {
			return fmt.Errorf("%w: %w", errCreateTexture, err)
		}
	}

	var fx effects
	s.mu.Lock()
	current := !s.destroyed && s.entries[tile] == e && e.gen == gen && e.texture == old
	switch {
	case !current:
		if tex != nil {
			fx.destroys = append(fx.destroys, tex)
		}
		Logger().Debug("texture: refresh discarded", "tile", tile)
	default:
		if tex != nil {
			fx.destroys = append(fx.destroys, old)
			s.setTextureLocked(e, tex, &fx)
		}
		e.state = StateLoaded
		fx.events = append(fx.events, Event{Kind: EventInvalidated, Tile: tile})
	}
	destroyed := s.destroyed
	s.mu.Unlock()

	s.apply(&fx)
	if destroyed {
		return ErrDestroyed
	}
	return nil
}

// Stats is a snapshot of a store.
type Stats struct {
	Entries   int
	Loading   int
	Loaded    int
	Failed    int
	Invalid   int
	Pinned    int
	Evictable int
	Bytes     int64
	Queued    int
	Running   int
}

// Stats returns a snapshot of the store's entries and load queue.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Entries:   len(s.entries),
		Evictable: s.lru.Len(),
		Bytes:     s.bytes,
	}
	for _, e := range s.entries {
		switch e.state {
		case StateLoading:
			st.Loading++
		case StateLoaded:
			st.Loaded++
		case StateFailed:
			st.Failed++
		case StateInvalid:
			st.Invalid++
		}
		if e.pins > 0 {
			st.Pinned++
		}
	}
	s.mu.Unlock()

	st.Queued = s.pool.Queued()
	st.Running = s.pool.Running()
	return st
}

// Destroy cancels every load, destroys every texture and stops the
// workers. It blocks until running loads have returned; a completion
// already past its load may still destroy its texture afterwards. Destroy
// may be called from an event subscriber, including on a worker. Later
// calls are no-ops and other methods return ErrDestroyed.
func (s *Store) Destroy() {
	var fx effects
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	for _, e := range s.entries {
		s.evictLocked(e, &fx)
	}
	s.visible.Clear()
	s.prevVisible.Clear()
	s.frameDepth = 0
	s.marking = false
	s.mu.Unlock()

	s.apply(&fx)
	s.pool.Close()
	Logger().Info("texture: store destroyed", "store", s.cfg.metrics)
}

func (s *Store) newEntryLocked(tile geometry.Tile) *entry {
	e := &entry{tile: tile, state: StateLoading}
	s.entries[tile] = e
	return e
}

// startLoadLocked submits a load for e. A stale entry keeps its state so
// its texture stays drawable meanwhile.
func (s *Store) startLoadLocked(e *entry, fx *effects) {
	if e.state != StateInvalid {
		e.state = StateLoading
	}
	e.err = nil
	e.retry = false
	e.gen++
	gen, tile := e.gen, e.tile

	e.task = s.pool.Submit(func(ctx context.Context) (loadResult, error) {
		return s.load(ctx, tile)
	}, func(r loadResult, err error) {
		s.finishLoad(e, gen, r, err)
	})

	s.metrics.instrumentLoadStarted()
	fx.events = append(fx.events, Event{Kind: EventLoadStarted, Tile: tile})
	Logger().Debug("texture: load started", "tile", tile)
}

// load runs on a worker.
func (s *Store) load(ctx context.Context, tile geometry.Tile) (loadResult, error) {
	asset, err := s.source.LoadAsset(ctx, tile)
	if err != nil {
		return loadResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return loadResult{}, err
	}
	tex, err := s.factory.CreateTexture(ctx, tile, asset)
	if err != nil {
		return loadResult{}, fmt.Errorf("%w: %w", errCreateTexture, err)
	}
	return loadResult{asset: asset, texture: tex}, nil
}

// finishLoad is the completion callback of every load. It runs exactly
// once per submitted load, on a worker or a pool goroutine.
func (s *Store) finishLoad(e *entry, gen uint64, r loadResult, err error) {
	var fx effects
	s.mu.Lock()
	current := !s.destroyed && s.entries[e.tile] == e && e.gen == gen && e.task != nil

	switch {
	case !current || errors.Is(err, workpool.ErrCanceled):
		if r.texture != nil {
			fx.destroys = append(fx.destroys, r.texture)
		}
		if current {
			// Only reachable if the pool shut down under a live store.
			e.task = nil
			e.state = StateFailed
			e.err = err
		}
		s.metrics.instrumentLoadCanceled()
		fx.events = append(fx.events, Event{Kind: EventLoadCanceled, Tile: e.tile, Err: workpool.ErrCanceled})

	case err != nil:
		e.task = nil
		if e.texture != nil {
			fx.destroys = append(fx.destroys, e.texture)
			s.setTextureLocked(e, nil, &fx)
		}
		e.asset = nil
		e.state = StateFailed
		e.err = err
		e.retry = IsNetworkError(err)
		if e.retry {
			e.retryAt = s.cfg.now().Add(s.cfg.retryDelay)
			Logger().Debug("texture: network error", "tile", e.tile, "err", err, "retryAt", e.retryAt)
		} else {
			Logger().Warn("texture: load failed", "tile", e.tile, "err", err)
		}
		s.metrics.instrumentLoadFailed(err)
		fx.events = append(fx.events, Event{Kind: EventLoadFailed, Tile: e.tile, Err: err, Retry: e.retry})

	default:
		e.task = nil
		if e.texture != nil {
			fx.destroys = append(fx.destroys, e.texture)
		}
		s.setTextureLocked(e, r.texture, &fx)
		e.asset = r.asset
		e.state = StateLoaded
		s.metrics.instrumentLoadCompleted()
		fx.events = append(fx.events, Event{Kind: EventLoaded, Tile: e.tile})
		s.trimLocked(&fx)
	}
	s.mu.Unlock()

	s.apply(&fx)
}

// setTextureLocked replaces e's texture reference and keeps the byte
// total current. It does not destroy the previous texture.
func (s *Store) setTextureLocked(e *entry, tex Texture, fx *effects) {
	s.bytes -= e.bytes
	e.texture, e.bytes = tex, 0
	if tex != nil {
		e.bytes = TextureBytes(tex)
	}
	s.bytes += e.bytes
	fx.resident = true
}

func (s *Store) cancelLoadLocked(e *entry, fx *effects) {
	if e.task == nil {
		return
	}
	fx.cancels = append(fx.cancels, e.task)
	e.task = nil
	e.gen++
}

func (s *Store) lruRemoveLocked(e *entry) {
	if e.elem != nil {
		s.lru.Remove(e.elem)
		e.elem = nil
	}
}

// trimLocked evicts the least recently used evictable entries while the
// cache size or the byte budget is exceeded.
func (s *Store) trimLocked(fx *effects) {
	for s.lru.Len() > 0 {
		overCount := s.lru.Len() > s.cfg.cacheSize
		overBytes := s.cfg.byteBudget > 0 && s.bytes > s.cfg.byteBudget
		if !overCount && !overBytes {
			return
		}
		s.evictLocked(s.lru.Back().Value.(*entry), fx)
	}
}

// evictLocked removes e from the store.
func (s *Store) evictLocked(e *entry, fx *effects) {
	s.lruRemoveLocked(e)
	s.cancelLoadLocked(e, fx)
	if e.texture != nil {
		fx.destroys = append(fx.destroys, e.texture)
		s.setTextureLocked(e, nil, fx)
	}
	delete(s.entries, e.tile)
	fx.evicted++
	fx.events = append(fx.events, Event{Kind: EventEvicted, Tile: e.tile})
	Logger().Debug("texture: evicted", "tile", e.tile)
}

// apply performs the deferred effects outside the lock.
func (s *Store) apply(fx *effects) {
	for _, t := range fx.cancels {
		t.Cancel()
	}
	for _, tex := range fx.destroys {
		s.factory.DestroyTexture(tex)
	}
	s.metrics.instrumentEvictions(fx.evicted)
	if fx.resident && s.metrics.name != "" {
		s.mu.Lock()
		n, bytes := 0, s.bytes
		for _, e := range s.entries {
			if e.texture != nil {
				n++
			}
		}
		s.mu.Unlock()
		s.metrics.instrumentResident(n, bytes)
	}
	s.emit(fx.events)
}
