package reconcile

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Persister schedules an asynchronous full-value write
type Persister interface {
	EnqueueJSON(key string, v interface{})
}

// Listener is notified after every change to the collection
type Listener func(Result)

// Engine owns the authoritative issue collection.
// Every merge is applied against the collection as it is when the batch arrives.
type Engine struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	issues    []redmine.Issue
	versions  *VersionTracker
	persist   Persister
	log       *zap.Logger
	listeners []Listener
}

// NewEngine creates an empty engine. persist and log may be nil.
func NewEngine(persist Persister, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		versions: NewVersionTracker(),
		persist:  persist,
		log:      log,
	}
}

// Subscribe registers a listener called after each change
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Versions returns the versions-with-issues tracker
func (e *Engine) Versions() *VersionTracker {
	return e.versions
}

// Restore loads the cached collection and tracker. Missing or corrupt values leave the engine empty.
func (e *Engine) Restore(ctx context.Context, store cache.Store) {
	issues, ok := cache.LoadJSON(ctx, store, cache.KeyIssues, []redmine.Issue(nil))
	if !ok {
		e.log.Debug("no cached issues restored")
	}
	tracked, _ := cache.LoadJSON(ctx, store, cache.KeyVersionsWithIssues, cache.IDSet{})

	e.mu.Lock()
	e.issues = issues
	e.versions.restore(tracked)
	e.versions.Observe(issues)
	e.mu.Unlock()

	e.log.Debug("restored issue cache", zap.Int("issues", len(issues)), zap.Int("versions", len(tracked)))
}

// Apply merges incoming under scope and returns what changed
func (e *Engine) Apply(scope Scope, incoming []redmine.Issue) Result {
	e.mu.Lock()
	merged, result := MergeBatch(e.issues, incoming, scope)
	grew := e.versions.Observe(incoming)
	if result.Changed {
		e.issues = merged
	}
	save := e.beginPersist(result.Changed, grew)
	listeners := e.listeners
	e.mu.Unlock()
	save()

	if result.Changed || grew {
		e.log.Debug("merged batch",
			zap.Stringer("scope", scope),
			zap.Int("incoming", len(incoming)),
			zap.Int("added", len(result.Added)),
			zap.Int("updated", len(result.Updated)),
			zap.Int("removed", len(result.Removed)))
		e.notify(listeners, result)
	}
	return result
}

// Insert adds a newly created issue, replacing any cached copy with the same id
func (e *Engine) Insert(issue redmine.Issue) {
	e.mu.Lock()
	var result Result
	replaced := false
	next := make([]redmine.Issue, len(e.issues), len(e.issues)+1)
	copy(next, e.issues)
	for i := range next {
		if next[i].ID == issue.ID {
			next[i] = issue
			replaced = true
			result.Updated = []int{issue.ID}
			break
		}
	}
	if !replaced {
		next = append(next, issue)
		result.Added = []int{issue.ID}
	}
	result.Changed = true
	e.issues = next
	grew := e.versions.Observe([]redmine.Issue{issue})
	save := e.beginPersist(true, grew)
	listeners := e.listeners
	e.mu.Unlock()
	save()

	e.notify(listeners, result)
}

// Remove deletes an issue from the collection and reports whether it was present
func (e *Engine) Remove(id int) bool {
	e.mu.Lock()
	idx := -1
	for i := range e.issues {
		if e.issues[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	next := make([]redmine.Issue, 0, len(e.issues)-1)
	next = append(next, e.issues[:idx]...)
	next = append(next, e.issues[idx+1:]...)
	e.issues = next
	save := e.beginPersist(true, false)
	listeners := e.listeners
	e.mu.Unlock()
	save()

	e.notify(listeners, Result{Changed: true, Removed: []int{id}})
	return true
}

// Snapshot returns a copy of the current collection
func (e *Engine) Snapshot() []redmine.Issue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.issues)
}

// Get returns the cached copy of an issue
func (e *Engine) Get(id int) (redmine.Issue, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, issue := range e.issues {
		if issue.ID == id {
			return issue, true
		}
	}
	return redmine.Issue{}, false
}

// Len returns the number of cached issues
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.issues)
}

// beginPersist captures the values to write and must be called with mu held.
// persistMu is taken before mu is released so writes are enqueued in mutation order;
// the returned func encodes and enqueues them outside mu.
func (e *Engine) beginPersist(issues, versions bool) func() {
	if e.persist == nil || (!issues && !versions) {
		return func() {}
	}
	var snap []redmine.Issue
	if issues {
		snap = e.issues
	}
	var ids cache.IDSet
	if versions {
		ids = e.versions.IDs()
	}
	e.persistMu.Lock()
	return func() {
		defer e.persistMu.Unlock()
		if issues {
			e.persist.EnqueueJSON(cache.KeyIssues, snap)
		}
		if versions {
			e.persist.EnqueueJSON(cache.KeyVersionsWithIssues, ids)
		}
	}
}

func (e *Engine) notify(listeners []Listener, result Result) {
	for _, l := range listeners {
		l(result)
	}
}
