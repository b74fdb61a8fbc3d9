// Package linkset is a small orchestrator-facing helper over a group of
// Links: it is not part of the core per spec §1, but a process juggling
// more than one peer needs some way to wait on whichever Link has
// something ready next, and to notice when one has died. This is the
// minimal shape of that, built around config's connection_check_delay
// (spec §6) the way the original's Aether manager polled its sessions.
package linkset

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aethernet/aether/internal/aetherr"
	"github.com/aethernet/aether/internal/link"
	"github.com/aethernet/aether/pkg/alog"
)

var log = alog.For("linkset")

// Set tracks a group of active Links by a generated uuid, the way the
// original implementation keyed its session map by peer identity.
type Set struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*link.Link
}

// New returns an empty Set.
func New() *Set {
	return &Set{entries: make(map[uuid.UUID]*link.Link)}
}

// Add registers l under a fresh id and returns it.
func (s *Set) Add(l *link.Link) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.entries[id] = l
	s.mu.Unlock()
	return id
}

// Remove stops tracking id; it does not stop the underlying Link.
func (s *Set) Remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len reports how many Links are currently tracked.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Set) snapshot() map[uuid.UUID]*link.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]*link.Link, len(s.entries))
	for id, l := range s.entries {
		out[id] = l
	}
	return out
}

// WaitAny blocks until some tracked Link delivers a payload, a tracked
// Link dies (removed from the set, loop continues with the rest), or
// ctx is cancelled. It polls every checkDelay — the connection_check_delay
// config key's one consumer — rather than fanning out a goroutine per
// Link, since the set is expected to be small and polling is the same
// shape the original manager used.
func (s *Set) WaitAny(ctx context.Context, checkDelay time.Duration) (uuid.UUID, []byte, error) {
	ticker := time.NewTicker(checkDelay)
	defer ticker.Stop()

	for {
		if id, payload, err, ok := s.pollOnce(checkDelay); ok {
			return id, payload, err
		}

		select {
		case <-ctx.Done():
			return uuid.Nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce gives every tracked Link a brief chance to hand back a
// payload. Links that report themselves dead (LinkStopped, regardless
// of whether max_retries or link_timeout triggered it) are evicted from
// the set so future polls skip them.
func (s *Set) pollOnce(checkDelay time.Duration) (id uuid.UUID, payload []byte, err error, ok bool) {
	entries := s.snapshot()
	if len(entries) == 0 {
		return uuid.Nil, nil, nil, false
	}

	perLink := checkDelay / time.Duration(len(entries))
	if perLink <= 0 {
		perLink = time.Millisecond
	}

	for candidate, l := range entries {
		b, recvErr := l.RecvTimeout(perLink)
		if recvErr == nil {
			return candidate, b, nil, true
		}
		if aetherr.IsKind(recvErr, aetherr.LinkStopped) {
			log.WithField("link_id", l.ID()).WithField("set_id", candidate).Warn("evicting dead link from set")
			s.Remove(candidate)
			continue
		}
		// RecvTimeout kind: nothing ready on this link yet, try the next.
	}
	return uuid.Nil, nil, nil, false
}
