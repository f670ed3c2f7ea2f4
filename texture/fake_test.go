package texture

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pano/geometry"
)

// testTiles returns n distinct tiles of one flat level.
func testTiles(t *testing.T, n int) []geometry.Tile {
	t.Helper()
	g, err := geometry.NewFlatGeometry([]geometry.Level{geometry.FlatLevel(2048, 2048, 256, 256)})
	if err != nil {
		t.Fatalf("NewFlatGeometry() error = %v", err)
	}
	tiles, err := g.LevelTiles(0, nil)
	if err != nil {
		t.Fatalf("LevelTiles() error = %v", err)
	}
	return tiles[:n]
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeAsset struct {
	w, h    int
	dynamic bool
}

func (a *fakeAsset) Width() int    { return a.w }
func (a *fakeAsset) Height() int   { return a.h }
func (a *fakeAsset) Dynamic() bool { return a.dynamic }

// fakeSource counts loads and can hold them until released.
type fakeSource struct {
	mu      sync.Mutex
	calls   map[geometry.Tile]int
	order   []geometry.Tile
	active  int
	peak    int
	gate    chan struct{}
	err     error
	dynamic bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(map[geometry.Tile]int)}
}

// hold makes subsequent loads block until release.
func (s *fakeSource) hold() {
	s.mu.Lock()
	s.gate = make(chan struct{})
	s.mu.Unlock()
}

func (s *fakeSource) release() {
	s.mu.Lock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
	s.mu.Unlock()
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSource) LoadAsset(ctx context.Context, tile geometry.Tile) (Asset, error) {
	s.mu.Lock()
	s.calls[tile]++
	s.order = append(s.order, tile)
	s.active++
	s.peak = max(s.peak, s.active)
	gate, err, dynamic := s.gate, s.err, s.dynamic
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &fakeAsset{w: 256, h: 256, dynamic: dynamic}, nil
}

func (s *fakeSource) callCount(tile geometry.Tile) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[tile]
}

func (s *fakeSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

type fakeTexture struct {
	id     int
	w, h   int
	format gputypes.TextureFormat
}

func (t *fakeTexture) Width() int                     { return t.w }
func (t *fakeTexture) Height() int                    { return t.h }
func (t *fakeTexture) Format() gputypes.TextureFormat { return t.format }

// fakeFactory tracks live textures.
type fakeFactory struct {
	mu        sync.Mutex
	next      int
	live      map[*fakeTexture]bool
	created   int
	destroyed int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{live: make(map[*fakeTexture]bool)}
}

func (f *fakeFactory) CreateTexture(_ context.Context, _ geometry.Tile, asset Asset) (Texture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	tex := &fakeTexture{id: f.next, w: asset.Width(), h: asset.Height(), format: gputypes.TextureFormatRGBA8Unorm}
	f.live[tex] = true
	f.created++
	return tex, nil
}

func (f *fakeFactory) DestroyTexture(tex Texture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := tex.(*fakeTexture)
	if !f.live[ft] {
		panic("texture destroyed twice or never created")
	}
	delete(f.live, ft)
	f.destroyed++
}

func (f *fakeFactory) counts() (created, destroyed, live int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.destroyed, len(f.live)
}

// updatingFactory also implements Updater.
type updatingFactory struct {
	*fakeFactory
	updates int
}

func (f *updatingFactory) UpdateTexture(Texture, geometry.Tile, Asset) error {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	return nil
}

// gatedFactory blocks uploads once armed until gate is closed. entered
// receives once per blocked upload.
type gatedFactory struct {
	*fakeFactory
	armed   atomic.Bool
	entered chan struct{}
	gate    chan struct{}
}

func newGatedFactory() *gatedFactory {
	return &gatedFactory{
		fakeFactory: newFakeFactory(),
		entered:     make(chan struct{}, 1),
		gate:        make(chan struct{}),
	}
}

func (f *gatedFactory) wait() {
	if f.armed.Load() {
		f.entered <- struct{}{}
		<-f.gate
	}
}

func (f *gatedFactory) CreateTexture(ctx context.Context, tile geometry.Tile, asset Asset) (Texture, error) {
	f.wait()
	return f.fakeFactory.CreateTexture(ctx, tile, asset)
}

// gatedUpdater is a gatedFactory that updates textures in place.
type gatedUpdater struct {
	*gatedFactory
}

func (f gatedUpdater) UpdateTexture(Texture, geometry.Tile, Asset) error {
	f.wait()
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// eventLog records store events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// newTestStore returns a store that is destroyed at test cleanup.
func newTestStore(t *testing.T, src Source, f Factory, opts ...Option) (*Store, *eventLog) {
	t.Helper()
	s, err := New(src, f, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log := &eventLog{}
	s.Subscribe(log.record)
	t.Cleanup(s.Destroy)
	return s, log
}

// frame marks tiles inside one StartFrame/EndFrame pair.
func frame(t *testing.T, s *Store, tiles ...geometry.Tile) {
	t.Helper()
	if err := s.StartFrame(); err != nil {
		t.Fatalf("StartFrame() error = %v", err)
	}
	for _, tile := range tiles {
		if err := s.MarkTile(tile); err != nil {
			t.Fatalf("MarkTile(%v) error = %v", tile, err)
		}
	}
	if err := s.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
}

func loaded(s *Store, tile geometry.Tile) func() bool {
	return func() bool { return s.State(tile) == StateLoaded }
}
