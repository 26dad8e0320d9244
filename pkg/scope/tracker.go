// Package scope tracks which versions take part in the periodic refresh.
package scope

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// DefaultActiveCount is the number of versions activated when a project first loads
const DefaultActiveCount = 3

// Persister schedules an asynchronous full-value write
type Persister interface {
	EnqueueJSON(key string, v interface{})
}

// Tracker holds the active, initialized and pinned sets
type Tracker struct {
	mu          sync.RWMutex
	active      cache.IDSet
	initialized cache.IDSet
	pinned      cache.IDSet

	persist    Persister
	log        *zap.Logger
	onActivate ActivateFunc
}

// ActivateFunc is called after a version becomes active
type ActivateFunc func(ctx context.Context, versionID int) error

// NewTracker creates a tracker with empty sets. persist and log may be nil.
func NewTracker(persist Persister, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		active:      cache.NewIDSet(),
		initialized: cache.NewIDSet(),
		pinned:      cache.NewIDSet(),
		persist:     persist,
		log:         log,
	}
}

// OnActivate sets the hook called after a version becomes active
func (t *Tracker) OnActivate(fn ActivateFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onActivate = fn
}

// Restore loads the persisted sets. Missing or corrupt values restore as empty.
func (t *Tracker) Restore(ctx context.Context, store cache.Store) {
	active := loadSet(ctx, store, cache.KeyActiveVersionIDs)
	initialized := loadSet(ctx, store, cache.KeyInitializedProjectIDs)
	pinned := loadSet(ctx, store, cache.KeyPinnedVersionIDs)

	t.mu.Lock()
	t.active, t.initialized, t.pinned = active, initialized, pinned
	t.mu.Unlock()
}

// InitializeProject seeds the active set with the first DefaultActiveCount of sortedVersions.
// It runs once per project; later calls are no-ops and return false.
func (t *Tracker) InitializeProject(projectID int, sortedVersions []redmine.Version) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized.Add(projectID) {
		return false
	}
	for i := 0; i < len(sortedVersions) && i < DefaultActiveCount; i++ {
		t.active.Add(sortedVersions[i].ID)
	}

	t.log.Debug("initialized project versions",
		zap.Int("project_id", projectID),
		zap.Int("versions", len(sortedVersions)))

	t.save(cache.KeyInitializedProjectIDs, t.initialized)
	t.save(cache.KeyActiveVersionIDs, t.active)
	return true
}

// ToggleActive flips membership of versionID and returns the new state.
// Activation calls the OnActivate hook and returns its error; the version stays active either way.
// Deactivation leaves cached issues in place until the next refresh prunes them.
func (t *Tracker) ToggleActive(ctx context.Context, versionID int) (bool, error) {
	t.mu.Lock()
	active := !t.active.Has(versionID)
	if active {
		t.active.Add(versionID)
	} else {
		t.active.Remove(versionID)
	}
	t.save(cache.KeyActiveVersionIDs, t.active)
	hook := t.onActivate
	t.mu.Unlock()

	if active && hook != nil {
		return true, hook(ctx, versionID)
	}
	return active, nil
}

// Deactivate removes versionID from the active set without side effects
func (t *Tracker) Deactivate(versionID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active.Remove(versionID) {
		return false
	}
	t.save(cache.KeyActiveVersionIDs, t.active)
	return true
}

// IsActive reports whether versionID is in the refresh scope
func (t *Tracker) IsActive(versionID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.Has(versionID)
}

// ActiveIDs returns the active version ids in ascending order
func (t *Tracker) ActiveIDs() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.Sorted()
}

// IsInitialized reports whether projectID has been seeded
func (t *Tracker) IsInitialized(projectID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initialized.Has(projectID)
}

// TogglePin flips the pinned state of versionID and returns the new state
func (t *Tracker) TogglePin(versionID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pinned := !t.pinned.Has(versionID)
	if pinned {
		t.pinned.Add(versionID)
	} else {
		t.pinned.Remove(versionID)
	}
	t.save(cache.KeyPinnedVersionIDs, t.pinned)
	return pinned
}

// IsPinned reports whether versionID is pinned
func (t *Tracker) IsPinned(versionID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pinned.Has(versionID)
}

// Pinned returns a copy of the pinned set
func (t *Tracker) Pinned() cache.IDSet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pinned.Clone()
}

// Sort orders versions using the current pinned set
func (t *Tracker) Sort(versions []redmine.Version) []redmine.Version {
	return SortVersions(versions, t.Pinned())
}

func loadSet(ctx context.Context, store cache.Store, key string) cache.IDSet {
	set, _ := cache.LoadJSON(ctx, store, key, cache.NewIDSet())
	if set == nil {
		return cache.NewIDSet()
	}
	return set
}

func (t *Tracker) save(key string, set cache.IDSet) {
	if t.persist == nil {
		return
	}
	t.persist.EnqueueJSON(key, set.Clone())
}
