package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/reconcile"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Load performs the initial load: Connect, then versions and members per
// project, then a refresh.
func (a *App) Load(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}

	a.beginLoading()
	defer a.endLoading()

	if err := a.Connect(ctx); err != nil {
		return err
	}
	a.loadProjects(ctx, a.Projects())

	if err := a.Refresh(ctx); err != nil {
		a.log.Warn("initial refresh failed", zap.Error(err))
	}
	return nil
}

// Connect fetches the current user, statuses, priorities and projects in
// parallel. Any failure leaves the app unconfigured.
func (a *App) Connect(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}

	var (
		user       *redmine.User
		statuses   []redmine.IssueStatus
		priorities []redmine.IssuePriority
		projects   []redmine.Project
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cctx, cancel := a.callCtx(gctx)
		defer cancel()
		user, err = a.api.CurrentUser(cctx)
		return err
	})
	g.Go(func() (err error) {
		cctx, cancel := a.callCtx(gctx)
		defer cancel()
		statuses, err = a.api.IssueStatuses(cctx)
		return err
	})
	g.Go(func() (err error) {
		cctx, cancel := a.callCtx(gctx)
		defer cancel()
		priorities, err = a.api.IssuePriorities(cctx)
		return err
	})
	g.Go(func() (err error) {
		cctx, cancel := a.callCtx(gctx)
		defer cancel()
		projects, err = a.api.Projects(cctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.mu.Lock()
		a.status = Unconfigured
		a.mu.Unlock()
		return a.record(newError(KindConnection, "could not connect to the server", err))
	}

	a.mu.Lock()
	a.user = user
	a.statuses = statuses
	a.priorities = priorities
	a.projects = projects
	a.status = Configured
	a.partial = nil
	if a.lastErr != nil && a.lastErr.Kind == KindConnection {
		a.lastErr = nil
	}
	a.mu.Unlock()
	a.notify()

	a.log.Debug("connected",
		zap.Int("user_id", user.ID),
		zap.Int("projects", len(projects)),
		zap.Int("statuses", len(statuses)))
	return nil
}

// loadProjects fetches versions and members of every project. A failing
// project is recorded and does not stop the others.
func (a *App) loadProjects(ctx context.Context, projects []redmine.Project) {
	var g errgroup.Group
	g.SetLimit(projectFanOut)
	for _, p := range projects {
		p := p
		g.Go(func() error {
			if err := a.loadProject(ctx, p.ID); err != nil {
				perr := newError(KindPartialProject, fmt.Sprintf("could not load project %s", p.Name), err)
				perr.ProjectID = p.ID
				a.mu.Lock()
				a.partial = append(a.partial, perr)
				a.mu.Unlock()
				a.log.Warn("project load failed", zap.Int("project_id", p.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	a.notify()
}

// LoadProject fetches the versions and members of one project
func (a *App) LoadProject(ctx context.Context, projectID int) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.loadProject(ctx, projectID); err != nil {
		return a.record(newError(KindFetch, fmt.Sprintf("could not load project %d", projectID), err))
	}
	a.notify()
	return nil
}

func (a *App) loadProject(ctx context.Context, projectID int) error {
	var (
		versions []redmine.Version
		members  []redmine.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cctx, cancel := a.callCtx(gctx)
		defer cancel()
		versions, err = a.api.Versions(cctx, projectID)
		return err
	})
	g.Go(func() (err error) {
		cctx, cancel := a.callCtx(gctx)
		defer cancel()
		members, err = a.api.AssignableUsers(cctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	sorted := a.scope.Sort(versions)
	a.scope.InitializeProject(projectID, sorted)

	a.mu.Lock()
	a.versions[projectID] = sorted
	a.members[projectID] = members
	a.mu.Unlock()
	return nil
}

// Refresh re-fetches issues in the active versions and the followed issues.
// Concurrent callers join the refresh already in flight.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	_, err, _ := a.flights.Do("active-refresh", func() (interface{}, error) {
		return nil, a.refresh(ctx)
	})
	return err
}

func (a *App) refresh(ctx context.Context) error {
	a.mu.Lock()
	a.refreshing = true
	a.mu.Unlock()
	a.notify()
	defer func() {
		a.mu.Lock()
		a.refreshing = false
		a.mu.Unlock()
		a.notify()
	}()

	var activeErr, followedErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		activeErr = a.refreshActive(ctx)
	}()
	go func() {
		defer wg.Done()
		followedErr = a.SyncFollowed(ctx)
	}()
	wg.Wait()

	if err := errors.Join(activeErr, followedErr); err != nil {
		return err
	}
	a.clearFetchError()
	return nil
}

// refreshActive fetches every active version and merges the result with
// pruning limited to the versions that were fetched completely.
func (a *App) refreshActive(ctx context.Context) error {
	active := a.scope.ActiveIDs()
	if len(active) == 0 {
		return nil
	}

	var (
		batch     []redmine.Issue
		fetched   []int
		failed    []int
		truncated bool
		firstErr  error
	)
	remaining := MaxRefreshIssues
	for _, vid := range active {
		if remaining <= 0 {
			truncated = true
			break
		}
		issues, more, err := a.fetchAllPages(ctx, redmine.IssueQuery{
			FixedVersionID: vid,
			StatusID:       "*",
		}, remaining)
		if err != nil {
			a.log.Warn("version refresh failed", zap.Int("version_id", vid), zap.Error(err))
			failed = append(failed, vid)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		batch = append(batch, issues...)
		remaining -= len(issues)
		fetched = append(fetched, vid)
		if more {
			truncated = true
			break
		}
	}

	sc := reconcile.ActiveVersionsRefresh(fetched...)
	if truncated {
		a.log.Warn("refresh truncated, skipping pruning", zap.Int("issues", len(batch)))
		sc = reconcile.ActiveVersionsRefresh()
	}
	a.engine.Apply(sc, batch)

	if firstErr != nil {
		return a.record(newError(KindFetch,
			fmt.Sprintf("could not refresh %d of %d versions", len(failed), len(active)), firstErr))
	}
	return nil
}

// SyncFollowed replaces the followed id set with the issues the current user
// watches and merges them without pruning.
func (a *App) SyncFollowed(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	user := a.CurrentUser()
	if user == nil {
		return nil
	}
	_, err, _ := a.flights.Do("followed-sync", func() (interface{}, error) {
		issues, truncated, err := a.fetchAllPages(ctx, redmine.IssueQuery{
			WatcherID: user.ID,
			StatusID:  "*",
		}, MaxRefreshIssues)
		if err != nil {
			return nil, a.record(newError(KindFetch, "could not sync followed issues", err))
		}

		ids := cache.NewIDSet()
		for _, issue := range issues {
			ids.Add(issue.ID)
		}
		a.mu.Lock()
		if truncated {
			for id := range a.followed {
				ids.Add(id)
			}
		}
		a.followed = ids
		a.mu.Unlock()
		a.writer.EnqueueJSON(cache.KeyFollowedIssueIDs, ids.Clone())

		a.engine.Apply(reconcile.FollowedSync(user.ID), issues)
		return nil, nil
	})
	return err
}

// fetchAllPages pages through an issues query until the server total is
// reached, a short page arrives or limit issues are collected. more reports
// whether the limit cut the result short.
func (a *App) fetchAllPages(ctx context.Context, q redmine.IssueQuery, limit int) (issues []redmine.Issue, more bool, err error) {
	q.Limit = PageSize
	q.Offset = 0
	for {
		cctx, cancel := a.callCtx(ctx)
		page, err := a.api.Issues(cctx, q)
		cancel()
		if err != nil {
			return nil, false, err
		}

		issues = append(issues, page.Issues...)
		if len(issues) >= limit {
			more = len(issues) > limit || page.TotalCount > limit
			return issues[:limit], more, nil
		}
		if len(issues) >= page.TotalCount || len(page.Issues) < PageSize {
			return issues, false, nil
		}
		q.Offset += len(page.Issues)
	}
}

// FetchVersion fetches all issues of one version and merges them additively
func (a *App) FetchVersion(ctx context.Context, versionID int) error {
	if err := a.ready(); err != nil {
		return err
	}
	_, err, _ := a.flights.Do("version:"+strconv.Itoa(versionID), func() (interface{}, error) {
		a.beginLoading()
		defer a.endLoading()

		issues, more, err := a.fetchAllPages(ctx, redmine.IssueQuery{
			FixedVersionID: versionID,
			StatusID:       "*",
		}, MaxVersionIssues)
		if err != nil {
			return nil, a.record(newError(KindFetch, "could not load version issues", err))
		}
		if more {
			a.log.Warn("version fetch truncated", zap.Int("version_id", versionID), zap.Int("issues", len(issues)))
		}
		a.engine.Apply(reconcile.VersionOnDemand(versionID), issues)
		return nil, nil
	})
	return err
}

// FetchIssueDetail fetches one issue with journals, attachments and watchers
func (a *App) FetchIssueDetail(ctx context.Context, issueID int) (redmine.Issue, error) {
	if err := a.ready(); err != nil {
		return redmine.Issue{}, err
	}
	_, err, _ := a.flights.Do(detailFlight(issueID), func() (interface{}, error) {
		cctx, cancel := a.callCtx(ctx)
		defer cancel()
		issue, err := a.api.IssueDetail(cctx, issueID)
		if err != nil {
			return nil, a.record(newError(KindFetch, fmt.Sprintf("could not load issue #%d", issueID), err))
		}
		a.engine.Apply(reconcile.SingleDetail(issueID), []redmine.Issue{*issue})
		return nil, nil
	})
	if err != nil {
		return redmine.Issue{}, err
	}
	issue, _ := a.engine.Get(issueID)
	return issue, nil
}

func detailFlight(issueID int) string {
	return "detail:" + strconv.Itoa(issueID)
}

// ToggleActive flips a version's membership in the active set. Activation
// fetches the version's issues before returning.
func (a *App) ToggleActive(ctx context.Context, versionID int) (bool, error) {
	active, err := a.scope.ToggleActive(ctx, versionID)
	a.notify()
	return active, err
}

// TogglePin flips a version's pinned state and re-sorts its project's versions
func (a *App) TogglePin(projectID, versionID int) bool {
	pinned := a.scope.TogglePin(versionID)
	a.mu.Lock()
	if versions, ok := a.versions[projectID]; ok {
		a.versions[projectID] = a.scope.Sort(versions)
	}
	a.mu.Unlock()
	a.notify()
	return pinned
}

// Run refreshes at the configured interval until ctx is cancelled.
// A non-positive interval disables polling.
func (a *App) Run(ctx context.Context) error {
	if a.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				a.log.Warn("background refresh failed", zap.Error(err))
			}
		}
	}
}
