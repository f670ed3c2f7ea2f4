// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"slices"

	"github.com/gogpu/pano/geometry"
)

// EventKind identifies a store event.
type EventKind int

const (
	// EventLoadStarted is emitted when a load is submitted.
	EventLoadStarted EventKind = iota
	// EventLoaded is emitted when a texture becomes available.
	EventLoaded
	// EventLoadFailed is emitted when a load fails. Event.Err holds the
	// cause and Event.Retry reports whether a later mark retries it.
	EventLoadFailed
	// EventLoadCanceled is emitted when an in-flight load is dropped.
	EventLoadCanceled
	// EventEvicted is emitted when an entry leaves the store.
	EventEvicted
	// EventInvalidated is emitted when a texture becomes stale or is
	// refreshed in place.
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventLoadStarted:
		return "load-started"
	case EventLoaded:
		return "loaded"
	case EventLoadFailed:
		return "load-failed"
	case EventLoadCanceled:
		return "load-canceled"
	case EventEvicted:
		return "evicted"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event reports a change in a tile's entry.
type Event struct {
	Kind  EventKind
	Tile  geometry.Tile
	Err   error
	Retry bool
}

// Subscribe registers fn to receive every event of the store. Events are
// delivered synchronously, outside the store lock, on the goroutine that
// caused them: the caller of MarkTile, Pin or Invalidate, or a worker for
// load completion. fn must not block. It may call Destroy.
//
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
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

type subscriber struct {
	id uint64
	fn func(Event)
}

func (s *Store) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	s.subsMu.Lock()
	subs := slices.Clone(s.subs)
	s.subsMu.Unlock()

	for _, ev := range events {
		for _, sub := range subs {
			sub.fn(ev)
		}
	}
}
