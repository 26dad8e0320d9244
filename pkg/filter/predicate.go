package filter

import (
	"strconv"
	"strings"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Matches reports whether issue passes every clause of the selection
func Matches(issue *redmine.Issue, sel Selection, env Context) bool {
	followedView := sel.InFollowedView()
	assignedView := sel.InAssignedView()
	special := followedView || assignedView

	if !special && sel.ProjectID != AllProjects && issue.ProjectID() != sel.ProjectID {
		return false
	}
	if followedView && !env.FollowedIDs.Has(issue.ID) {
		return false
	}
	if assignedView && (env.CurrentUserID == 0 || issue.AssigneeID() != env.CurrentUserID) {
		return false
	}
	if sel.VersionID != 0 && issue.VersionID() != sel.VersionID {
		return false
	}
	if !special && sel.AssigneeID != 0 && issue.AssigneeID() != sel.AssigneeID {
		return false
	}
	if !special && len(sel.AssistingWatcherIDs) > 0 && !intersects(redmine.AssistingWatcherIDs(issue, env.AssistingWatchersField), sel.AssistingWatcherIDs) {
		return false
	}
	if sel.StatusID != 0 && issue.Status.ID != sel.StatusID {
		return false
	}
	if !matchesQuery(issue, sel.Query) {
		return false
	}

	hideVerified := (followedView && sel.HideVerifiedInFollowed) || (assignedView && sel.HideVerifiedInAssigned)
	if hideVerified && env.Workflow.IsVerified(issue.Status.Name) {
		return false
	}
	return true
}

// Apply returns the issues that match, in collection order
func Apply(issues []redmine.Issue, sel Selection, env Context) []redmine.Issue {
	out := make([]redmine.Issue, 0, len(issues))
	for i := range issues {
		if Matches(&issues[i], sel, env) {
			out = append(out, issues[i])
		}
	}
	return out
}

func matchesQuery(issue *redmine.Issue, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(issue.Subject), strings.ToLower(query)) {
		return true
	}
	return strings.Contains(strconv.Itoa(issue.ID), strings.TrimPrefix(query, "#"))
}

func intersects(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
