// Package filter derives the filtered and grouped issue views from the cached collection.
package filter

import (
	"slices"
	"strings"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Pseudo-project ids. They exist only in the selection and route the predicate.
const (
	AllProjects      = -1
	FollowedProjects = -2
	AssignedProjects = -3
)

// GroupBy is the grouping mode of a view
type GroupBy string

const (
	GroupByStatus   GroupBy = "status"
	GroupByAssignee GroupBy = "assignee"
)

// ParseGroupBy returns the mode named by s, defaulting to status
func ParseGroupBy(s string) GroupBy {
	if GroupBy(strings.ToLower(strings.TrimSpace(s))) == GroupByAssignee {
		return GroupByAssignee
	}
	return GroupByStatus
}

// Selection is the process-wide filter state.
// Zero ids mean nothing is selected. StatusID and Query are not persisted.
type Selection struct {
	ProjectID              int     `json:"project_id"`
	VersionID              int     `json:"version_id,omitempty"`
	AssigneeID             int     `json:"assignee_id,omitempty"`
	AssistingWatcherIDs    []int   `json:"assisting_watcher_ids,omitempty"`
	StatusID               int     `json:"-"`
	Query                  string  `json:"-"`
	GroupBy                GroupBy `json:"group_by"`
	HideVerifiedInFollowed bool    `json:"hide_verified_in_followed,omitempty"`
	HideVerifiedInAssigned bool    `json:"hide_verified_in_assigned,omitempty"`
}

// NewSelection returns the selection used on first start
func NewSelection() Selection {
	return Selection{
		ProjectID: AllProjects,
		GroupBy:   GroupByStatus,
	}
}

// InFollowedView reports whether the followed pseudo-project is selected
func (s Selection) InFollowedView() bool {
	return s.ProjectID == FollowedProjects
}

// InAssignedView reports whether the assigned pseudo-project is selected
func (s Selection) InAssignedView() bool {
	return s.ProjectID == AssignedProjects
}

// InSpecialView reports whether a pseudo-project view that bypasses project matching is selected
func (s Selection) InSpecialView() bool {
	return s.InFollowedView() || s.InAssignedView()
}

// Normalize fixes values a restored selection may be missing
func (s Selection) Normalize() Selection {
	if s.ProjectID == 0 {
		s.ProjectID = AllProjects
	}
	s.GroupBy = ParseGroupBy(string(s.GroupBy))
	if len(s.AssistingWatcherIDs) > 0 {
		ids := slices.Clone(s.AssistingWatcherIDs)
		slices.Sort(ids)
		s.AssistingWatcherIDs = slices.Compact(ids)
	}
	return s
}

// Workflow names the status markers used for buckets, hide-verified and the badge
type Workflow struct {
	VerifiedMarker string
	DoneMarker     string
	ClosedMarkers  []string
}

// DefaultWorkflow returns the markers of the stock workflow
func DefaultWorkflow() Workflow {
	return Workflow{
		VerifiedMarker: "验证完成",
		DoneMarker:     "开发完成",
		ClosedMarkers:  []string{"完成", "关闭"},
	}
}

// IsVerified reports whether statusName denotes the terminal verified state
func (w Workflow) IsVerified(statusName string) bool {
	return w.VerifiedMarker != "" && containsMarker(statusName, w.VerifiedMarker)
}

// IsClosed reports whether statusName contains any closed marker
func (w Workflow) IsClosed(statusName string) bool {
	for _, m := range w.ClosedMarkers {
		if m != "" && containsMarker(statusName, m) {
			return true
		}
	}
	return false
}

// Context is the non-selection state the predicate depends on
type Context struct {
	CurrentUserID          int
	FollowedIDs            cache.IDSet
	Statuses               []redmine.IssueStatus
	AssistingWatchersField string
	Workflow               Workflow
}

func containsMarker(statusName, marker string) bool {
	return strings.Contains(statusName, marker)
}
