package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

type issueOpt func(*redmine.Issue)

func inProject(id int) issueOpt {
	return func(i *redmine.Issue) { i.Project = &redmine.Ref{ID: id} }
}

func inVersion(id int) issueOpt {
	return func(i *redmine.Issue) { i.FixedVersion = &redmine.Ref{ID: id} }
}

func assignedTo(id int, name string) issueOpt {
	return func(i *redmine.Issue) { i.AssignedTo = &redmine.Ref{ID: id, Name: name} }
}

func withStatus(id int, name string) issueOpt {
	return func(i *redmine.Issue) { i.Status = redmine.IssueStatus{ID: id, Name: name} }
}

func assisting(raw string) issueOpt {
	return func(i *redmine.Issue) {
		i.CustomFields = []redmine.CustomField{{ID: 3, Name: redmine.DefaultAssistingWatchersField, Value: json.RawMessage(raw)}}
	}
}

func newIssue(id int, subject string, opts ...issueOpt) redmine.Issue {
	i := redmine.Issue{ID: id, Subject: subject, Status: redmine.IssueStatus{ID: 1, Name: "新建"}}
	for _, o := range opts {
		o(&i)
	}
	return i
}

func defaultEnv() Context {
	return Context{
		CurrentUserID: 7,
		FollowedIDs:   cache.NewIDSet(2),
		Workflow:      DefaultWorkflow(),
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		issue redmine.Issue
		sel   Selection
		want  bool
	}{
		{
			name:  "all projects matches any project",
			issue: newIssue(1, "a", inProject(4)),
			sel:   Selection{ProjectID: AllProjects},
			want:  true,
		},
		{
			name:  "project mismatch",
			issue: newIssue(1, "a", inProject(4)),
			sel:   Selection{ProjectID: 5},
			want:  false,
		},
		{
			name:  "issue without project never matches a real project",
			issue: newIssue(1, "a"),
			sel:   Selection{ProjectID: 5},
			want:  false,
		},
		{
			name:  "followed view uses followed ids",
			issue: newIssue(2, "a", inProject(4)),
			sel:   Selection{ProjectID: FollowedProjects},
			want:  true,
		},
		{
			name:  "followed view excludes others",
			issue: newIssue(3, "a", inProject(4)),
			sel:   Selection{ProjectID: FollowedProjects},
			want:  false,
		},
		{
			name:  "version mismatch",
			issue: newIssue(1, "a", inProject(4), inVersion(9)),
			sel:   Selection{ProjectID: 4, VersionID: 8},
			want:  false,
		},
		{
			name:  "version match",
			issue: newIssue(1, "a", inProject(4), inVersion(9)),
			sel:   Selection{ProjectID: 4, VersionID: 9},
			want:  true,
		},
		{
			name:  "assignee mismatch",
			issue: newIssue(1, "a", inProject(4), assignedTo(5, "Bob")),
			sel:   Selection{ProjectID: 4, AssigneeID: 6},
			want:  false,
		},
		{
			name:  "assignee ignored in followed view",
			issue: newIssue(2, "a", assignedTo(5, "Bob")),
			sel:   Selection{ProjectID: FollowedProjects, AssigneeID: 6},
			want:  true,
		},
		{
			name:  "assisting watcher intersects",
			issue: newIssue(1, "a", inProject(4), assisting(`["5","11"]`)),
			sel:   Selection{ProjectID: 4, AssistingWatcherIDs: []int{11, 12}},
			want:  true,
		},
		{
			name:  "assisting watcher disjoint",
			issue: newIssue(2, "a", inProject(4), assisting(`["5"]`)),
			sel:   Selection{ProjectID: 4, AssistingWatcherIDs: []int{11}},
			want:  false,
		},
		{
			name:  "assisting watcher ignored in assigned view",
			issue: newIssue(1, "a", assignedTo(7, "Me")),
			sel:   Selection{ProjectID: AssignedProjects, AssistingWatcherIDs: []int{11}},
			want:  true,
		},
		{
			name:  "status mismatch",
			issue: newIssue(1, "a", withStatus(2, "进行中")),
			sel:   Selection{ProjectID: AllProjects, StatusID: 3},
			want:  false,
		},
		{
			name:  "query matches subject case-insensitively",
			issue: newIssue(1, "Fix Login Page"),
			sel:   Selection{ProjectID: AllProjects, Query: "login"},
			want:  true,
		},
		{
			name:  "query matches id",
			issue: newIssue(1234, "unrelated"),
			sel:   Selection{ProjectID: AllProjects, Query: "23"},
			want:  true,
		},
		{
			name:  "query matches hash id",
			issue: newIssue(1234, "unrelated"),
			sel:   Selection{ProjectID: AllProjects, Query: "#1234"},
			want:  true,
		},
		{
			name:  "query misses",
			issue: newIssue(1234, "unrelated"),
			sel:   Selection{ProjectID: AllProjects, Query: "login"},
			want:  false,
		},
		{
			name:  "hide verified in followed",
			issue: newIssue(2, "a", withStatus(5, "验证完成")),
			sel:   Selection{ProjectID: FollowedProjects, HideVerifiedInFollowed: true},
			want:  false,
		},
		{
			name:  "hide verified flag of other view has no effect",
			issue: newIssue(2, "a", withStatus(5, "验证完成")),
			sel:   Selection{ProjectID: FollowedProjects, HideVerifiedInAssigned: true},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(&tt.issue, tt.sel, defaultEnv()))
		})
	}
}

func TestMatches_AssignedViewHideVerified(t *testing.T) {
	env := defaultEnv()
	mineVerified := newIssue(1, "mine", assignedTo(7, "Me"), withStatus(5, "验证完成"))
	other := newIssue(2, "other", assignedTo(8, "Bob"), withStatus(1, "新建"))

	for _, hide := range []bool{true, false} {
		for _, hideFollowed := range []bool{true, false} {
			sel := Selection{ProjectID: AssignedProjects, HideVerifiedInAssigned: hide, HideVerifiedInFollowed: hideFollowed}
			assert.Equal(t, !hide, Matches(&mineVerified, sel, env))
			assert.False(t, Matches(&other, sel, env))
		}
	}
}

func TestMatches_AssignedViewWithoutUser(t *testing.T) {
	env := defaultEnv()
	env.CurrentUserID = 0
	unassigned := newIssue(1, "a")
	assert.False(t, Matches(&unassigned, Selection{ProjectID: AssignedProjects}, env))
}

func TestMatches_ConfiguredAssistingField(t *testing.T) {
	env := defaultEnv()
	env.AssistingWatchersField = "Helpers"
	issue := newIssue(1, "a", func(i *redmine.Issue) {
		i.CustomFields = []redmine.CustomField{{ID: 9, Name: "Helpers", Value: json.RawMessage(`[4]`)}}
	})

	assert.True(t, Matches(&issue, Selection{ProjectID: AllProjects, AssistingWatcherIDs: []int{4}}, env))
	assert.False(t, Matches(&issue, Selection{ProjectID: AllProjects, AssistingWatcherIDs: []int{5}}, env))
}

func TestSelection_Normalize(t *testing.T) {
	sel := Selection{GroupBy: "ASSIGNEE", AssistingWatcherIDs: []int{3, 1, 3}}.Normalize()
	assert.Equal(t, AllProjects, sel.ProjectID)
	assert.Equal(t, GroupByAssignee, sel.GroupBy)
	assert.Equal(t, []int{1, 3}, sel.AssistingWatcherIDs)

	assert.Equal(t, GroupByStatus, Selection{GroupBy: "bogus"}.Normalize().GroupBy)
}

func TestSelection_PersistedFields(t *testing.T) {
	sel := Selection{ProjectID: 4, StatusID: 2, Query: "x", GroupBy: GroupByStatus}
	data, err := json.Marshal(sel)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "x")
	assert.NotContains(t, string(data), "status_id")
}
