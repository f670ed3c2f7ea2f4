package pano

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

var errNotAvailable = errors.New("tile not available")

// testGeometry returns a flat geometry with 1x1, 2x2 and 4x4 tile levels.
func testGeometry(t *testing.T) *geometry.FlatGeometry {
	t.Helper()
	g, err := geometry.NewFlatGeometry([]geometry.Level{
		geometry.FlatLevel(512, 512, 512, 512),
		geometry.FlatLevel(1024, 1024, 512, 512),
		geometry.FlatLevel(2048, 2048, 512, 512),
	})
	if err != nil {
		t.Fatalf("NewFlatGeometry() error = %v", err)
	}
	return g
}

func flatTile(t *testing.T, g *geometry.FlatGeometry, x, y, z int) geometry.Tile {
	t.Helper()
	tile, err := g.Tile(x, y, z)
	if err != nil {
		t.Fatalf("Tile(%d, %d, %d) error = %v", x, y, z, err)
	}
	return tile
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

// rectView sees the tiles overlapping a rectangle of the normalized
// [-0.5, 0.5] image plane and always selects the same level.
type rectView struct {
	mu                       sync.Mutex
	width, height            int
	left, right, bottom, top float64
	level                    int
	err                      error
}

// newRectView returns a view over the tiles (x0..x1, y0..y1) of a level
// with n tiles per side.
func newRectView(level, n, x0, y0, x1, y1 int) *rectView {
	const eps = 1e-6
	step := 1 / float64(n)
	return &rectView{
		width:  800,
		height: 600,
		left:   float64(x0)*step - 0.5 + eps,
		right:  float64(x1+1)*step - 0.5 - eps,
		top:    0.5 - float64(y0)*step - eps,
		bottom: 0.5 - float64(y1+1)*step + eps,
		level:  level,
	}
}

func (v *rectView) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

func (v *rectView) SetSize(width, height int) {
	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()
}

func (v *rectView) Center() (x, y float64) {
	return (v.left+v.right)/2 + 0.5, 0.5 - (v.bottom+v.top)/2
}

func (v *rectView) Intersects(vertices []geometry.Vec3) bool {
	minX, maxX := vertices[0].X, vertices[0].X
	minY, maxY := vertices[0].Y, vertices[0].Y
	for _, p := range vertices[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return minX < v.right && maxX > v.left && minY < v.top && maxY > v.bottom
}

func (v *rectView) SelectLevel(levels []geometry.Level) (geometry.Level, error) {
	if v.err != nil {
		return geometry.Level{}, v.err
	}
	return levels[min(v.level, len(levels)-1)], nil
}

type fakeAsset struct{}

func (fakeAsset) Width() int    { return 512 }
func (fakeAsset) Height() int   { return 512 }
func (fakeAsset) Dynamic() bool { return false }

// allowSource loads only the tiles it was told about.
type allowSource struct {
	mu    sync.Mutex
	allow []geometry.Tile
	calls int
}

func newAllowSource(tiles ...geometry.Tile) *allowSource {
	return &allowSource{allow: tiles}
}

func (s *allowSource) LoadAsset(_ context.Context, tile geometry.Tile) (texture.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if !slices.ContainsFunc(s.allow, tile.Equal) {
		return nil, errNotAvailable
	}
	return fakeAsset{}, nil
}

type fakeTexture struct {
	tile geometry.Tile
}

func (*fakeTexture) Width() int  { return 512 }
func (*fakeTexture) Height() int { return 512 }

// drawRecord is a DrawCall copied out of the stage's scratch buffers.
type drawRecord struct {
	layer *Layer
	depth int
	tiles []geometry.Tile
}

// fakeBackend records frames and counts live textures.
type fakeBackend struct {
	mu        sync.Mutex
	live      int
	destroyed int
	frames    [][]drawRecord
	current   []drawRecord
	inFrame   bool
	drawErr   error
	endErr    error
}

func (b *fakeBackend) Size() (int, int) { return 800, 600 }

func (b *fakeBackend) CreateTexture(_ context.Context, tile geometry.Tile, _ texture.Asset) (texture.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live++
	return &fakeTexture{tile: tile}, nil
}

func (b *fakeBackend) DestroyTexture(texture.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
	b.destroyed++
}

func (b *fakeBackend) StartFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return errors.New("frame already started")
	}
	b.inFrame = true
	b.current = nil
	return nil
}

func (b *fakeBackend) DrawLayer(call DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawErr != nil {
		return b.drawErr
	}
	for i, tex := range call.Textures {
		if ft := tex.(*fakeTexture); !ft.tile.Equal(call.Tiles[i]) {
			return errors.New("texture does not match tile")
		}
	}
	b.current = append(b.current, drawRecord{
		layer: call.Layer,
		depth: call.Depth,
		tiles: slices.Clone(call.Tiles),
	})
	return nil
}

func (b *fakeBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFrame = false
	b.frames = append(b.frames, b.current)
	return b.endErr
}

func (b *fakeBackend) lastFrame() []drawRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == 0 {
		return nil
	}
	return b.frames[len(b.frames)-1]
}

func (b *fakeBackend) liveTextures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// newTestStage returns a stage over a fake backend, destroyed on cleanup.
func newTestStage(t *testing.T, opts ...StageOption) (*Stage, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{}
	s, err := NewStage(b, opts...)
	if err != nil {
		t.Fatalf("NewStage() error = %v", err)
	}
	t.Cleanup(s.Destroy)
	return s, b
}

// newTestLayer adds a layer loading only the allowed tiles and waits
// until they are loaded.
func newTestLayer(t *testing.T, s *Stage, g *geometry.FlatGeometry, v geometry.View, loaded ...geometry.Tile) *Layer {
	t.Helper()
	l, err := NewLayer(s, newAllowSource(loaded...), g, v)
	if err != nil {
		t.Fatalf("NewLayer() error = %v", err)
	}
	if err := s.AddLayer(l); err != nil {
		t.Fatalf("AddLayer() error = %v", err)
	}
	preload(t, l, loaded...)
	return l
}

// preload pins tiles until their textures exist, then releases them.
func preload(t *testing.T, l *Layer, tiles ...geometry.Tile) {
	t.Helper()
	store := l.TextureStore()
	for _, tile := range tiles {
		if _, err := store.Pin(tile); err != nil {
			t.Fatalf("Pin(%v) error = %v", tile, err)
		}
	}
	for _, tile := range tiles {
		waitFor(t, "texture of "+tile.String(), func() bool {
			_, ok := store.Texture(tile)
			return ok
		})
	}
	for _, tile := range tiles {
		if _, err := store.Unpin(tile); err != nil {
			t.Fatalf("Unpin(%v) error = %v", tile, err)
		}
	}
}

func tileStrings(tiles []geometry.Tile) []string {
	out := make([]string, len(tiles))
	for i, tile := range tiles {
		out[i] = tile.String()
	}
	return out
}
