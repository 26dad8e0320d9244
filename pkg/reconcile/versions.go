package reconcile

import (
	"sync"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// VersionTracker records every version id seen on an incoming issue.
// The set only grows so versions do not move between sidebar groups mid-session.
type VersionTracker struct {
	mu  sync.RWMutex
	ids cache.IDSet
}

// NewVersionTracker creates a tracker seeded with ids
func NewVersionTracker(ids ...int) *VersionTracker {
	return &VersionTracker{ids: cache.NewIDSet(ids...)}
}

// Observe adds the fixed versions of issues and reports whether the set grew
func (t *VersionTracker) Observe(issues []redmine.Issue) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	grew := false
	for i := range issues {
		if id := issues[i].VersionID(); id != 0 && t.ids.Add(id) {
			grew = true
		}
	}
	return grew
}

// Has reports whether any issue seen so far referenced versionID
func (t *VersionTracker) Has(versionID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ids.Has(versionID)
}

// IDs returns a copy of the tracked set
func (t *VersionTracker) IDs() cache.IDSet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ids.Clone()
}

func (t *VersionTracker) restore(ids cache.IDSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range ids {
		t.ids.Add(id)
	}
}
