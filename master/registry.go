package master

import (
	"crypto/rand"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// RangeInfo describes an arrow server visible to observers: the arena it
// simulates and the load it reported on its last heartbeat.
type RangeInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Arena        string `json:"arena"`
	Observers    int    `json:"observers"`
	ActiveArrows int    `json:"activeArrows"`
	Version      string `json:"version"`
}

// load orders ranges of one arena; in-flight arrows cost more than watchers
// because every one of them is stepped and replicated each tick.
func (r RangeInfo) load() int {
	return r.ActiveArrows*4 + r.Observers
}

type rangeRecord struct {
	RangeInfo
	LastSeen time.Time
}

// Registry is the directory of arrow servers. A range stays listed while it
// heartbeats within the TTL. One address holds one entry: a range that
// restarts and registers again replaces its old entry instead of showing up
// twice.
type Registry struct {
	mu     deadlock.RWMutex
	ranges map[string]*rangeRecord
	ttl    time.Duration
	now    func() time.Time
	stopCh chan struct{}
}

// NewRegistry returns a registry. Call Run to expire silent ranges in the
// background.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ranges: make(map[string]*rangeRecord),
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

func (r *Registry) Stop() {
	close(r.stopCh)
}

// Register lists a range under a fresh id, dropping any earlier entry for the
// same address.
func (r *Registry) Register(info RangeInfo) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	info.ID = fmt.Sprintf("%x", b)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.ranges {
		if rec.Address == info.Address {
			log.Info().Str("name", rec.Name).Str("old", id).Str("new", info.ID).Msg("range re-registered")
			delete(r.ranges, id)
		}
	}
	r.ranges[info.ID] = &rangeRecord{
		RangeInfo: info,
		LastSeen:  r.now(),
	}
	return info.ID
}

// Heartbeat refreshes a range and its load. It reports false for ids the
// registry does not know, which tells the range to register again.
func (r *Registry) Heartbeat(id string, observers, activeArrows int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.ranges[id]
	if !ok {
		return false
	}
	rec.LastSeen = r.now()
	rec.Observers = observers
	rec.ActiveArrows = activeArrows
	return true
}

// List returns every live range ordered by name.
func (r *Registry) List() []RangeInfo {
	result := r.collect(func(RangeInfo) bool { return true })
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ListArena returns the ranges simulating arena, least loaded first, so an
// observer can take the head of the list.
func (r *Registry) ListArena(arena string) []RangeInfo {
	result := r.collect(func(info RangeInfo) bool { return info.Arena == arena })
	sort.Slice(result, func(i, j int) bool {
		if li, lj := result[i].load(), result[j].load(); li != lj {
			return li < lj
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func (r *Registry) collect(keep func(RangeInfo) bool) []RangeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]RangeInfo, 0, len(r.ranges))
	for _, rec := range r.ranges {
		if keep(rec.RangeInfo) {
			result = append(result, rec.RangeInfo)
		}
	}
	return result
}

// Expire drops ranges that missed their heartbeats for a full TTL and returns
// how many went. Arrows on such a range are lost to observers anyway.
func (r *Registry) Expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	expired := 0
	for id, rec := range r.ranges {
		if now.Sub(rec.LastSeen) >= r.ttl {
			log.Info().
				Str("name", rec.Name).
				Str("id", id).
				Str("arena", rec.Arena).
				Int("activeArrows", rec.ActiveArrows).
				Dur("lastSeen", now.Sub(rec.LastSeen).Round(time.Second)).
				Msg("expired range")
			delete(r.ranges, id)
			expired++
		}
	}
	return expired
}

// Run expires silent ranges every interval until Stop is called.
func (r *Registry) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Expire()
		}
	}
}
