package pano

import (
	"slices"

	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/texture"
)

// collectTiles builds the load and render lists of l for this frame and
// reports whether every visible tile has its own texture.
//
// A visible tile without a texture is replaced by its loaded children
// and, if any child is missing, by its closest loaded ancestor. In
// progressive mode every ancestor is loaded as well.
func (s *Stage) collectTiles(l *Layer) (stable bool, err error) {
	s.visible = s.visible[:0]
	s.toLoad = s.toLoad[:0]
	s.toRender = s.toRender[:0]

	s.visible, err = l.VisibleTiles(s.visible)
	if err != nil {
		return false, err
	}

	store := l.store
	stable = true
	for _, tile := range s.visible {
		var needsFallback bool
		s.collectToLoad(tile)
		if _, ok := store.Texture(tile); ok {
			s.collectToRender(tile)
		} else {
			needsFallback = s.collectChildren(tile, store)
			stable = false
		}
		s.collectParents(tile, store, needsFallback)
	}

	slices.SortFunc(s.toLoad, geometry.CompareTiles)
	slices.SortFunc(s.toRender, geometry.CompareTiles)
	return stable, nil
}

// collectChildren adds the loaded children of tile to both lists and
// reports whether a coarser fallback is still needed. Chains of single
// children are followed down; tiles with several children are only
// searched one level deep.
func (s *Stage) collectChildren(tile geometry.Tile, store *texture.Store) bool {
	for {
		var ok bool
		s.children, ok = tile.Children(s.children[:0])
		if !ok {
			return true
		}

		allLoaded := true
		for _, child := range s.children {
			if _, ok := store.Texture(child); ok {
				s.collectToLoad(child)
				s.collectToRender(child)
			} else {
				allLoaded = false
			}
		}
		if allLoaded {
			return false
		}
		if len(s.children) != 1 {
			return true
		}
		tile = s.children[0]
	}
}

// collectParents walks up from tile. It renders the closest loaded
// ancestor when a fallback is needed and, in progressive mode, loads every
// ancestor until one is already in the load list.
func (s *Stage) collectParents(tile geometry.Tile, store *texture.Store, needsFallback bool) {
	needsLoading := s.progressive
	for needsLoading || needsFallback {
		parent, ok := tile.Parent()
		if !ok {
			return
		}
		tile = parent

		if needsFallback {
			if _, ok := store.Texture(tile); ok {
				s.collectToRender(tile)
				needsFallback = false
			} else if !s.progressive {
				continue
			}
		}
		if !s.collectToLoad(tile) {
			needsLoading = false
		}
	}
}

func (s *Stage) collectToLoad(tile geometry.Tile) bool {
	return collectInto(&s.toLoad, tile)
}

func (s *Stage) collectToRender(tile geometry.Tile) bool {
	return collectInto(&s.toRender, tile)
}

// collectInto appends tile to list unless an equal tile is present.
// Lists are short, so a linear scan beats hashing here.
func collectInto(list *[]geometry.Tile, tile geometry.Tile) bool {
	if slices.ContainsFunc(*list, tile.Equal) {
		return false
	}
	*list = append(*list, tile)
	return true
}
