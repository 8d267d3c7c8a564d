package controller

import (
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ConnectionRegistry tracks last-activity per connection id so a
// background sweep can drop ones that have gone quiet past
// inactiveConnCleanup (§4.6) without the dispatcher needing to know
// about wall-clock policy itself.
type ConnectionRegistry struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	onEvict  func(connID string)
	stop     chan struct{}
}

// NewConnectionRegistry starts the periodic sweep immediately; onEvict
// is called (outside the registry's lock) for every connection id that
// has been inactive for longer than inactiveConnCleanup.
func NewConnectionRegistry(onEvict func(connID string)) *ConnectionRegistry {
	r := &ConnectionRegistry{
		lastSeen: make(map[string]time.Time),
		onEvict:  onEvict,
		stop:     make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Touch records activity for connID, registering it if new.
func (r *ConnectionRegistry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[connID] = time.Now()
}

// Forget removes connID immediately, e.g. on explicit disconnect.
func (r *ConnectionRegistry) Forget(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastSeen, connID)
}

func (r *ConnectionRegistry) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evictStale()
		case <-r.stop:
			return
		}
	}
}

// evictStale dispatches onEvict for every connection past
// inactiveConnCleanup concurrently via an errgroup, isolating one
// callback's panic from the rest of the sweep (the same per-callback
// isolation controller.subscribe gives engine event listeners).
func (r *ConnectionRegistry) evictStale() {
	cutoff := time.Now().Add(-inactiveConnCleanup)
	var stale []string
	r.mu.Lock()
	for id, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, id)
			delete(r.lastSeen, id)
		}
	}
	r.mu.Unlock()

	if len(stale) == 0 || r.onEvict == nil {
		return
	}

	var g errgroup.Group
	for _, id := range stale {
		id := id
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("controller: eviction callback for %s panicked: %v", id, rec)
				}
			}()
			r.onEvict(id)
			return nil
		})
	}
	_ = g.Wait()
}

// Stop ends the background sweep.
func (r *ConnectionRegistry) Stop() {
	close(r.stop)
}
