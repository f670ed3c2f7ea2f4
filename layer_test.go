package pano

import (
	"errors"
	"testing"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
	"github.com/gogpu/pano/view"
)

func TestNewLayerValidation(t *testing.T) {
	s, _ := newTestStage(t)
	g := testGeometry(t)
	v := newRectView(0, 1, 0, 0, 0, 0)

	if _, err := NewLayer(nil, newAllowSource(), g, v); err == nil {
		t.Error("NewLayer(nil stage) succeeded")
	}
	if _, err := NewLayer(s, newAllowSource(), nil, v); err == nil {
		t.Error("NewLayer(nil geometry) succeeded")
	}
	if _, err := NewLayer(s, nil, g, v); !errors.Is(err, texture.ErrNilSource) {
		t.Errorf("NewLayer(nil source) error = %v, want %v", err, texture.ErrNilSource)
	}
	if _, err := NewLayer(s, newAllowSource(), g, v, WithFixedLevel(3)); !errors.Is(err, geometry.ErrInvalidLevelIndex) {
		t.Errorf("NewLayer(WithFixedLevel(3)) error = %v, want %v", err, geometry.ErrInvalidLevelIndex)
	}
}

func TestLayerAccessors(t *testing.T) {
	s, _ := newTestStage(t)
	g := testGeometry(t)
	v := newRectView(0, 1, 0, 0, 0, 0)
	src := newAllowSource()
	effects := Effects{Opacity: 0.25, Rect: Rect{X: 0.5, Width: 0.5, Height: 1}}
	l := MustNewLayer(s, src, g, v, WithEffects(effects))
	t.Cleanup(l.Destroy)

	if l.Stage() != s {
		t.Error("Stage() mismatch")
	}
	if l.Source() != src {
		t.Error("Source() mismatch")
	}
	if l.Geometry() != g {
		t.Error("Geometry() mismatch")
	}
	if l.View() != v {
		t.Error("View() mismatch")
	}
	if l.TextureStore() == nil {
		t.Error("TextureStore() = nil")
	}
	if got := l.Effects(); got != effects {
		t.Errorf("Effects() = %+v, want %+v", got, effects)
	}
	if l.FixedLevel() != NoFixedLevel {
		t.Errorf("FixedLevel() = %d, want NoFixedLevel", l.FixedLevel())
	}

	other := MustNewLayer(s, src, g, v)
	t.Cleanup(other.Destroy)
	if l.ID() == other.ID() {
		t.Error("two layers share an ID")
	}
}

func TestLayerFixedLevel(t *testing.T) {
	s, _ := newTestStage(t)
	g := testGeometry(t)
	l := MustNewLayer(s, newAllowSource(), g, newRectView(2, 1, 0, 0, 0, 0))
	t.Cleanup(l.Destroy)

	tiles, err := l.VisibleTiles(nil)
	if err != nil {
		t.Fatalf("VisibleTiles() error = %v", err)
	}
	if len(tiles) != 16 || tiles[0].Z() != 2 {
		t.Fatalf("VisibleTiles() = %d tiles at z%d, want 16 at z2", len(tiles), tiles[0].Z())
	}

	if err := l.SetFixedLevel(1); err != nil {
		t.Fatalf("SetFixedLevel(1) error = %v", err)
	}
	tiles, err = l.VisibleTiles(tiles[:0])
	if err != nil {
		t.Fatalf("VisibleTiles() error = %v", err)
	}
	if len(tiles) != 4 || tiles[0].Z() != 1 {
		t.Errorf("VisibleTiles() = %d tiles at z%d, want 4 at z1", len(tiles), tiles[0].Z())
	}

	for _, z := range []int{-2, 3} {
		if err := l.SetFixedLevel(z); !errors.Is(err, geometry.ErrInvalidLevelIndex) {
			t.Errorf("SetFixedLevel(%d) error = %v, want %v", z, err, geometry.ErrInvalidLevelIndex)
		}
	}
	if l.FixedLevel() != 1 {
		t.Errorf("FixedLevel() = %d after rejected calls, want 1", l.FixedLevel())
	}

	if err := l.SetFixedLevel(NoFixedLevel); err != nil {
		t.Fatalf("SetFixedLevel(NoFixedLevel) error = %v", err)
	}
	tiles, _ = l.VisibleTiles(tiles[:0])
	if len(tiles) != 16 {
		t.Errorf("len(VisibleTiles()) = %d after clearing the fixed level, want 16", len(tiles))
	}
}

func TestLayerPinLevel(t *testing.T) {
	s, _ := newTestStage(t)
	g := testGeometry(t)
	level1, err := g.LevelTiles(1, nil)
	if err != nil {
		t.Fatalf("LevelTiles() error = %v", err)
	}
	l := addLayer(t, s, newAllowSource(level1...), g, newRectView(0, 1, 0, 0, 0, 0))
	store := l.TextureStore()

	if err := l.PinLevel(1); err != nil {
		t.Fatalf("PinLevel(1) error = %v", err)
	}
	for _, tile := range level1 {
		waitFor(t, "pinned "+tile.String(), func() bool { return store.State(tile) == texture.StateLoaded })
	}

	// Pinned tiles survive a purge of everything else.
	store.ClearNotPinned()
	for _, tile := range level1 {
		if _, ok := store.Texture(tile); !ok {
			t.Errorf("Texture(%v) missing after ClearNotPinned", tile)
		}
	}

	if err := l.UnpinLevel(1); err != nil {
		t.Fatalf("UnpinLevel(1) error = %v", err)
	}
	if err := l.UnpinLevel(1); !errors.Is(err, texture.ErrNotPinned) {
		t.Errorf("UnpinLevel(1) twice error = %v, want %v", err, texture.ErrNotPinned)
	}
	if err := l.PinLevel(5); !errors.Is(err, geometry.ErrInvalidLevelIndex) {
		t.Errorf("PinLevel(5) error = %v, want %v", err, geometry.ErrInvalidLevelIndex)
	}
}

func TestLayerPinFirstLevel(t *testing.T) {
	s, _ := newTestStage(t)
	g := testGeometry(t)
	root := flatTile(t, g, 0, 0, 0)
	l := addLayer(t, s, newAllowSource(root), g, newRectView(2, 4, 3, 3, 3, 3))

	if err := l.PinFirstLevel(); err != nil {
		t.Fatalf("PinFirstLevel() error = %v", err)
	}
	waitFor(t, "root texture", func() bool {
		_, ok := l.TextureStore().Texture(root)
		return ok
	})

	// The pinned root is the fallback of every visible tile.
	if _, err := s.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !slicesContainTile(s.toRender, root) {
		t.Errorf("render list %v does not contain the pinned root", tileStrings(s.toRender))
	}
}

func addLayer(t *testing.T, s *Stage, src texture.Source, g geometry.Geometry, v geometry.View) *Layer {
	t.Helper()
	l := MustNewLayer(s, src, g, v)
	if err := s.AddLayer(l); err != nil {
		t.Fatalf("AddLayer() error = %v", err)
	}
	return l
}

func slicesContainTile(tiles []geometry.Tile, tile geometry.Tile) bool {
	for _, t := range tiles {
		if t.Equal(tile) {
			return true
		}
	}
	return false
}

func TestLayerResizesViewToRect(t *testing.T) {
	s, _ := newTestStage(t)
	g := testGeometry(t)
	v := view.NewFlat(10, 10)
	l := MustNewLayer(s, newAllowSource(), g, v, WithEffects(Effects{
		Opacity: 1,
		Rect:    Rect{X: 0.5, Width: 0.5, Height: 0.5},
	}))
	if err := s.AddLayer(l); err != nil {
		t.Fatalf("AddLayer() error = %v", err)
	}

	if _, err := s.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if w, h := v.Size(); w != 400 || h != 300 {
		t.Errorf("view Size() = %dx%d, want 400x300", w, h)
	}
}

func TestLayerDestroy(t *testing.T) {
	s, b := newTestStage(t)
	g := testGeometry(t)
	root := flatTile(t, g, 0, 0, 0)
	l := newTestLayer(t, s, g, newRectView(0, 1, 0, 0, 0, 0), root)
	if err := s.RemoveLayer(l); err != nil {
		t.Fatalf("RemoveLayer() error = %v", err)
	}

	l.Destroy()
	l.Destroy()
	if b.liveTextures() != 0 {
		t.Errorf("live textures = %d after Destroy, want 0", b.liveTextures())
	}
	if _, err := l.TextureStore().Pin(root); !errors.Is(err, texture.ErrDestroyed) {
		t.Errorf("Pin() after Destroy error = %v, want %v", err, texture.ErrDestroyed)
	}
}
