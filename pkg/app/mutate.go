package app

import (
	"context"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

func (a *App) mutationFailed(what string, err error) error {
	return a.record(newError(KindMutation, "could not "+what, err))
}

// confirm re-fetches an issue after a successful write. A failed fetch is
// recorded but does not fail the write.
func (a *App) confirm(ctx context.Context, issueID int) {
	// A detail fetch already in flight was issued before the write
	a.flights.Forget(detailFlight(issueID))
	if _, err := a.FetchIssueDetail(ctx, issueID); err != nil {
		a.log.Warn("could not confirm issue after write", zap.Int("issue_id", issueID), zap.Error(err))
	}
}

// UpdateIssue writes fields to the server and returns after the detail
// re-fetch has merged the server copy. The cache is not updated before the
// server confirms.
func (a *App) UpdateIssue(ctx context.Context, issueID int, fields *redmine.IssueFields) error {
	if err := a.ready(); err != nil {
		return err
	}
	cctx, cancel := a.callCtx(ctx)
	err := a.api.UpdateIssue(cctx, issueID, fields)
	cancel()
	if err != nil {
		return a.mutationFailed(fmt.Sprintf("update issue #%d", issueID), err)
	}
	a.confirm(ctx, issueID)
	return nil
}

// AddNote appends a journal note to an issue
func (a *App) AddNote(ctx context.Context, issueID int, notes string, private bool) error {
	if notes == "" {
		return a.mutationFailed("add note", redmine.NewValidationError("note text is required", nil))
	}
	return a.UpdateIssue(ctx, issueID, &redmine.IssueFields{Notes: notes, PrivateNotes: private})
}

// CreateIssue creates an issue and inserts the server copy into the cache
func (a *App) CreateIssue(ctx context.Context, fields *redmine.IssueFields) (*redmine.Issue, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	cctx, cancel := a.callCtx(ctx)
	issue, err := a.api.CreateIssue(cctx, fields)
	cancel()
	if err != nil {
		return nil, a.mutationFailed("create issue", err)
	}
	a.engine.Insert(*issue)
	return issue, nil
}

// DeleteIssue deletes an issue on the server and drops it from the cache
func (a *App) DeleteIssue(ctx context.Context, issueID int) error {
	if err := a.ready(); err != nil {
		return err
	}
	cctx, cancel := a.callCtx(ctx)
	err := a.api.DeleteIssue(cctx, issueID)
	cancel()
	if err != nil {
		return a.mutationFailed(fmt.Sprintf("delete issue #%d", issueID), err)
	}
	a.engine.Remove(issueID)
	a.unfollow(issueID)
	return nil
}

// AddWatcher adds userID to the watchers of an issue
func (a *App) AddWatcher(ctx context.Context, issueID, userID int) error {
	if err := a.ready(); err != nil {
		return err
	}
	cctx, cancel := a.callCtx(ctx)
	err := a.api.AddWatcher(cctx, issueID, userID)
	cancel()
	if err != nil {
		return a.mutationFailed("add watcher", err)
	}
	if a.isCurrentUser(userID) {
		a.follow(issueID)
	}
	a.confirm(ctx, issueID)
	return nil
}

// RemoveWatcher removes userID from the watchers of an issue
func (a *App) RemoveWatcher(ctx context.Context, issueID, userID int) error {
	if err := a.ready(); err != nil {
		return err
	}
	cctx, cancel := a.callCtx(ctx)
	err := a.api.RemoveWatcher(cctx, issueID, userID)
	cancel()
	if err != nil {
		return a.mutationFailed("remove watcher", err)
	}
	if a.isCurrentUser(userID) {
		a.unfollow(issueID)
	}
	a.confirm(ctx, issueID)
	return nil
}

// SetAssistingWatchers replaces the assisting watchers custom field of an issue
func (a *App) SetAssistingWatchers(ctx context.Context, issueID int, userIDs []int) error {
	if err := a.ready(); err != nil {
		return err
	}
	issue, ok := a.engine.Get(issueID)
	if !ok {
		return a.mutationFailed("set assisting watchers", redmine.NewNotFoundError(fmt.Sprintf("issue #%d", issueID)))
	}
	field := redmine.AssistingWatchersField(&issue, a.field)
	if field == nil {
		return a.mutationFailed("set assisting watchers",
			redmine.NewValidationError(fmt.Sprintf("issue #%d has no %q field", issueID, a.field), nil))
	}
	return a.UpdateIssue(ctx, issueID, &redmine.IssueFields{
		CustomFields: redmine.AssistingWatchersUpdate(field.ID, userIDs),
	})
}

// UploadFile uploads content and returns the token used to attach it
func (a *App) UploadFile(ctx context.Context, filename string, content io.Reader) (*redmine.Upload, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	upload, err := a.api.UploadFile(ctx, filename, content)
	if err != nil {
		return nil, a.mutationFailed("upload "+filename, err)
	}
	return upload, nil
}

// CreateVersion creates a version and adds it to the project's version list
func (a *App) CreateVersion(ctx context.Context, projectID int, name string) (*redmine.Version, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	cctx, cancel := a.callCtx(ctx)
	version, err := a.api.CreateVersion(cctx, projectID, name)
	cancel()
	if err != nil {
		return nil, a.mutationFailed("create version", err)
	}

	a.mu.Lock()
	versions := append([]redmine.Version{*version}, a.versions[projectID]...)
	a.versions[projectID] = a.scope.Sort(versions)
	a.mu.Unlock()
	a.notify()
	return version, nil
}

// UpdateVersion writes fields to a version and re-fetches the project's versions
func (a *App) UpdateVersion(ctx context.Context, projectID, versionID int, fields *redmine.VersionFields) error {
	if err := a.ready(); err != nil {
		return err
	}
	cctx, cancel := a.callCtx(ctx)
	err := a.api.UpdateVersion(cctx, versionID, fields)
	cancel()
	if err != nil {
		return a.mutationFailed("update version", err)
	}
	return a.reloadVersions(ctx, projectID)
}

// RenameVersion changes a version's name
func (a *App) RenameVersion(ctx context.Context, projectID, versionID int, name string) error {
	return a.UpdateVersion(ctx, projectID, versionID, &redmine.VersionFields{Name: name})
}

// DeleteVersion deletes a version and stops tracking it
func (a *App) DeleteVersion(ctx context.Context, versionID int) error {
	if err := a.ready(); err != nil {
		return err
	}
	cctx, cancel := a.callCtx(ctx)
	err := a.api.DeleteVersion(cctx, versionID)
	cancel()
	if err != nil {
		return a.mutationFailed("delete version", err)
	}

	a.mu.Lock()
	for pid, versions := range a.versions {
		a.versions[pid] = slices.DeleteFunc(slices.Clone(versions), func(v redmine.Version) bool {
			return v.ID == versionID
		})
	}
	a.mu.Unlock()
	a.scope.Deactivate(versionID)
	a.notify()
	return nil
}

func (a *App) reloadVersions(ctx context.Context, projectID int) error {
	cctx, cancel := a.callCtx(ctx)
	versions, err := a.api.Versions(cctx, projectID)
	cancel()
	if err != nil {
		return a.record(newError(KindFetch, "could not reload versions", err))
	}
	a.mu.Lock()
	a.versions[projectID] = a.scope.Sort(versions)
	a.mu.Unlock()
	a.notify()
	return nil
}

func (a *App) isCurrentUser(userID int) bool {
	user := a.CurrentUser()
	return user != nil && user.ID == userID
}

func (a *App) follow(issueID int) {
	a.mu.Lock()
	changed := a.followed.Add(issueID)
	ids := a.followed.Clone()
	a.mu.Unlock()
	if changed {
		a.writer.EnqueueJSON(cache.KeyFollowedIssueIDs, ids)
	}
}

func (a *App) unfollow(issueID int) {
	a.mu.Lock()
	changed := a.followed.Remove(issueID)
	ids := a.followed.Clone()
	a.mu.Unlock()
	if changed {
		a.writer.EnqueueJSON(cache.KeyFollowedIssueIDs, ids)
	}
}
