package pano

import "slices"

// EventKind identifies a stage event.
type EventKind int

const (
	// EventRenderComplete is emitted at the end of every Render.
	EventRenderComplete EventKind = iota

	// EventInvalidated is emitted when something changed that a new frame
	// would show: a layer was added, removed or moved, effects changed,
	// or a texture finished loading.
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventRenderComplete:
		return "render-complete"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event is a stage notification.
type Event struct {
	Kind EventKind

	// Stable is set for EventRenderComplete.
	Stable bool

	// Layer is the layer that caused an EventInvalidated, if any.
	Layer *Layer
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Subscribe registers fn for every stage event and returns a function
// removing it.
//
// EventRenderComplete is delivered on the goroutine calling Render.
// EventInvalidated may also be delivered on texture store workers, so fn
// must be safe for concurrent use and must not block.
func (s *Stage) Subscribe(fn func(Event)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
		s.subsMu.Unlock()
	}
}

func (s *Stage) emit(ev Event) {
	s.subsMu.Lock()
	subs := slices.Clone(s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

func (s *Stage) invalidate(l *Layer) {
	s.emit(Event{Kind: EventInvalidated, Layer: l})
}
