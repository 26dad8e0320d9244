// Package app sequences fetches and mutations against the reconciliation engine.
package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/config"
	"github.com/jheroy/Redmine-desktop/pkg/filter"
	"github.com/jheroy/Redmine-desktop/pkg/reconcile"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
	"github.com/jheroy/Redmine-desktop/pkg/scope"
)

const (
	// PageSize is the limit sent on every issues request
	PageSize = redmine.MaxPageSize
	// MaxRefreshIssues caps the issues fetched by one refresh cycle
	MaxRefreshIssues = 1000
	// MaxVersionIssues caps an on-demand version fetch
	MaxVersionIssues = 500
	// DefaultRequestTimeout bounds each remote call
	DefaultRequestTimeout = 15 * time.Second
	// projectFanOut bounds concurrent per-project fetches during load
	projectFanOut = 8
)

// Status is the connection state of the app
type Status int

const (
	Unconfigured Status = iota
	Configured
)

// String returns the status name
func (s Status) String() string {
	if s == Configured {
		return "configured"
	}
	return "unconfigured"
}

// Options configures an App
type Options struct {
	// API is nil when no server is configured
	API   API
	Store cache.Store
	Log   *zap.Logger

	RefreshInterval        time.Duration
	RequestTimeout         time.Duration
	AssistingWatchersField string
	Workflow               filter.Workflow
}

// OptionsFromConfig maps configuration values onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RefreshInterval:        cfg.RefreshInterval(),
		RequestTimeout:         cfg.Refresh.RequestTimeout,
		AssistingWatchersField: cfg.Fields.AssistingWatchers,
		Workflow: filter.Workflow{
			VerifiedMarker: cfg.Workflow.VerifiedStatus,
			DoneMarker:     cfg.Workflow.DoneStatus,
			ClosedMarkers:  cfg.Workflow.ClosedMarkers,
		},
	}
}

// Flags are the loading, background refresh and error indicators
type Flags struct {
	Loading    bool
	Refreshing bool
	Error      *Error
}

// VersionEntry is a version with its client side state
type VersionEntry struct {
	redmine.Version
	Active    bool
	Pinned    bool
	HasIssues bool
}

// App is the application state shared by every consumer
type App struct {
	api      API
	store    cache.Store
	writer   *cache.Writer
	engine   *reconcile.Engine
	scope    *scope.Tracker
	log      *zap.Logger
	flights  singleflight.Group
	interval time.Duration
	timeout  time.Duration
	field    string
	workflow filter.Workflow

	mu         sync.RWMutex
	status     Status
	user       *redmine.User
	statuses   []redmine.IssueStatus
	priorities []redmine.IssuePriority
	projects   []redmine.Project
	versions   map[int][]redmine.Version
	members    map[int][]redmine.Member
	followed   cache.IDSet
	selection  filter.Selection
	loading    int
	refreshing bool
	lastErr    *Error
	partial    []*Error
	listeners  []func()
}

// New creates an App and restores cached state from the store
func New(ctx context.Context, opts Options) *App {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = cache.NewMemoryStore()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	field := opts.AssistingWatchersField
	if field == "" {
		field = redmine.DefaultAssistingWatchersField
	}
	workflow := opts.Workflow
	if workflow.VerifiedMarker == "" && workflow.DoneMarker == "" && len(workflow.ClosedMarkers) == 0 {
		workflow = filter.DefaultWorkflow()
	}

	writer := cache.NewWriter(store, log.Named("cache"))
	a := &App{
		api:       opts.API,
		store:     store,
		writer:    writer,
		engine:    reconcile.NewEngine(writer, log.Named("reconcile")),
		scope:     scope.NewTracker(writer, log.Named("scope")),
		log:       log,
		interval:  opts.RefreshInterval,
		timeout:   timeout,
		field:     field,
		workflow:  workflow,
		versions:  make(map[int][]redmine.Version),
		members:   make(map[int][]redmine.Member),
		followed:  cache.NewIDSet(),
		selection: filter.NewSelection(),
	}

	a.engine.Restore(ctx, store)
	a.scope.Restore(ctx, store)
	a.scope.OnActivate(a.FetchVersion)
	if ids, ok := cache.LoadJSON(ctx, store, cache.KeyFollowedIssueIDs, cache.NewIDSet()); ok && ids != nil {
		a.followed = ids
	}
	if sel, ok := cache.LoadJSON(ctx, store, cache.KeySelection, filter.NewSelection()); ok {
		a.selection = sel.Normalize()
	}
	a.engine.Subscribe(func(reconcile.Result) { a.notify() })

	return a
}

// Close flushes pending cache writes and closes the store
func (a *App) Close() error {
	werr := a.writer.Close()
	serr := a.store.Close()
	if werr != nil {
		return werr
	}
	return serr
}

// Flush waits for pending cache writes
func (a *App) Flush(ctx context.Context) error {
	return a.writer.Flush(ctx)
}

// Subscribe registers fn to be called after every state change
func (a *App) Subscribe(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

func (a *App) notify() {
	a.mu.RLock()
	listeners := slices.Clone(a.listeners)
	a.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Status returns the connection state
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// CurrentUser returns the logged in user, or nil before a successful load
func (a *App) CurrentUser() *redmine.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

// Statuses returns the canonical status list
func (a *App) Statuses() []redmine.IssueStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.statuses)
}

// Priorities returns the priority enumeration
func (a *App) Priorities() []redmine.IssuePriority {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.priorities)
}

// Projects returns the projects visible to the user
func (a *App) Projects() []redmine.Project {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.projects)
}

// Versions returns the sorted versions of a project
func (a *App) Versions(projectID int) []redmine.Version {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.versions[projectID])
}

// VersionEntries returns the sorted versions of a project with their active, pinned and activity state
func (a *App) VersionEntries(projectID int) []VersionEntry {
	versions := a.Versions(projectID)
	tracked := a.engine.Versions()
	entries := make([]VersionEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, VersionEntry{
			Version:   v,
			Active:    a.scope.IsActive(v.ID),
			Pinned:    a.scope.IsPinned(v.ID),
			HasIssues: tracked.Has(v.ID),
		})
	}
	return entries
}

// ProjectMembers returns the members of one project
func (a *App) ProjectMembers(projectID int) []redmine.Member {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.members[projectID])
}

// Members returns every known user across projects and cached issues
func (a *App) Members() []redmine.Member {
	a.mu.RLock()
	members := make(map[int][]redmine.Member, len(a.members))
	for pid, m := range a.members {
		members[pid] = m
	}
	a.mu.RUnlock()
	return filter.GlobalMembers(members, a.engine.Snapshot())
}

// FollowedIDs returns a copy of the followed issue ids
func (a *App) FollowedIDs() cache.IDSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.followed.Clone()
}

// Issues returns a copy of the cached collection
func (a *App) Issues() []redmine.Issue {
	return a.engine.Snapshot()
}

// Issue returns the cached copy of an issue
func (a *App) Issue(id int) (redmine.Issue, bool) {
	return a.engine.Get(id)
}

// AssistingWatchersField returns the configured custom field name
func (a *App) AssistingWatchersField() string {
	return a.field
}

// Workflow returns the configured status markers
func (a *App) Workflow() filter.Workflow {
	return a.workflow
}

// RefreshInterval returns the polling interval
func (a *App) RefreshInterval() time.Duration {
	return a.interval
}

// Flags returns the loading, refreshing and error indicators
func (a *App) Flags() Flags {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Flags{
		Loading:    a.loading > 0,
		Refreshing: a.refreshing,
		Error:      a.lastErr,
	}
}

// LastError returns the error shown to the user, or nil
func (a *App) LastError() *Error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// PartialErrors returns the per-project failures of the last load
func (a *App) PartialErrors() []*Error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.partial)
}

// DismissError clears the displayed error
func (a *App) DismissError() {
	a.mu.Lock()
	a.lastErr = nil
	a.mu.Unlock()
	a.notify()
}

// filterContext snapshots the state the view predicate depends on
func (a *App) filterContext() filter.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	userID := 0
	if a.user != nil {
		userID = a.user.ID
	}
	return filter.Context{
		CurrentUserID:          userID,
		FollowedIDs:            a.followed.Clone(),
		Statuses:               slices.Clone(a.statuses),
		AssistingWatchersField: a.field,
		Workflow:               a.workflow,
	}
}

// View derives the filtered and grouped issues for the current selection
func (a *App) View() filter.View {
	return a.ViewFor(a.Selection())
}

// ViewFor derives the view for sel without changing the current selection
func (a *App) ViewFor(sel filter.Selection) filter.View {
	return filter.Derive(a.engine.Snapshot(), sel, a.filterContext())
}

// Counts derives the sidebar and header counters for the current selection
func (a *App) Counts() filter.Counts {
	return a.CountsFor(a.Selection())
}

// CountsFor derives the counters for sel without changing the current selection
func (a *App) CountsFor(sel filter.Selection) filter.Counts {
	issues := a.engine.Snapshot()
	env := a.filterContext()
	return filter.ComputeCounts(issues, sel, env, filter.Derive(issues, sel, env))
}

// Badge returns the number of open issues assigned to the current user
func (a *App) Badge() int {
	return filter.Badge(a.engine.Snapshot(), a.filterContext().CurrentUserID, a.workflow)
}

func (a *App) record(err *Error) *Error {
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
	a.log.Warn(err.Message, zap.Stringer("kind", err.Kind), zap.Error(err.Cause))
	a.notify()
	return err
}

func (a *App) clearFetchError() {
	a.mu.Lock()
	if a.lastErr != nil && a.lastErr.Kind == KindFetch {
		a.lastErr = nil
	}
	a.mu.Unlock()
}

func (a *App) beginLoading() {
	a.mu.Lock()
	a.loading++
	a.mu.Unlock()
	a.notify()
}

func (a *App) endLoading() {
	a.mu.Lock()
	a.loading--
	a.mu.Unlock()
	a.notify()
}

func (a *App) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

// ready returns a connection error when no server is configured
func (a *App) ready() error {
	if a.api != nil {
		return nil
	}
	return newError(KindConnection, "not connected", ErrNotConfigured)
}
