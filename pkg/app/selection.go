package app

import (
	"slices"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/filter"
)

// Selection returns the current filter state
func (a *App) Selection() filter.Selection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sel := a.selection
	sel.AssistingWatcherIDs = slices.Clone(sel.AssistingWatcherIDs)
	return sel
}

func (a *App) updateSelection(fn func(*filter.Selection)) {
	a.mu.Lock()
	fn(&a.selection)
	sel := a.selection
	a.mu.Unlock()
	a.writer.EnqueueJSON(cache.KeySelection, sel)
	a.notify()
}

// SelectProject selects a project or pseudo-project and clears the version
func (a *App) SelectProject(projectID int) {
	a.updateSelection(func(s *filter.Selection) {
		s.ProjectID = projectID
		s.VersionID = 0
	})
}

// SelectVersion selects a version inside its project
func (a *App) SelectVersion(projectID, versionID int) {
	a.updateSelection(func(s *filter.Selection) {
		s.ProjectID = projectID
		s.VersionID = versionID
	})
}

// SetAssignee filters by assignee, 0 clears the filter
func (a *App) SetAssignee(userID int) {
	a.updateSelection(func(s *filter.Selection) {
		s.AssigneeID = userID
	})
}

// FilterAssistingWatchers filters by any of the given assisting watchers
func (a *App) FilterAssistingWatchers(userIDs ...int) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	a.updateSelection(func(s *filter.Selection) {
		s.AssistingWatcherIDs = ids
	})
}

// SetStatus filters by status id, 0 clears the filter
func (a *App) SetStatus(statusID int) {
	a.updateSelection(func(s *filter.Selection) {
		s.StatusID = statusID
	})
}

// SetQuery sets the free text search
func (a *App) SetQuery(query string) {
	a.updateSelection(func(s *filter.Selection) {
		s.Query = query
	})
}

// SetGroupBy switches the grouping mode
func (a *App) SetGroupBy(mode filter.GroupBy) {
	a.updateSelection(func(s *filter.Selection) {
		s.GroupBy = filter.ParseGroupBy(string(mode))
	})
}

// SetHideVerifiedInFollowed toggles hiding verified issues in the followed view
func (a *App) SetHideVerifiedInFollowed(hide bool) {
	a.updateSelection(func(s *filter.Selection) {
		s.HideVerifiedInFollowed = hide
	})
}

// SetHideVerifiedInAssigned toggles hiding verified issues in the assigned view
func (a *App) SetHideVerifiedInAssigned(hide bool) {
	a.updateSelection(func(s *filter.Selection) {
		s.HideVerifiedInAssigned = hide
	})
}

// SetHideVerified toggles hiding verified issues in whichever pseudo-project view is selected
func (a *App) SetHideVerified(hide bool) {
	a.updateSelection(func(s *filter.Selection) {
		switch {
		case s.InFollowedView():
			s.HideVerifiedInFollowed = hide
		case s.InAssignedView():
			s.HideVerifiedInAssigned = hide
		}
	})
}

// ApplySelection replaces the whole selection
func (a *App) ApplySelection(sel filter.Selection) {
	sel = sel.Normalize()
	a.updateSelection(func(s *filter.Selection) {
		*s = sel
	})
}
