package filter

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Unassigned is the group key of issues without an assignee. It always sorts last.
const Unassigned = "未指派"

// View is an ordered grouping of filtered issues
type View struct {
	Keys   []string
	Groups map[string][]redmine.Issue
	Total  int
}

// Issues returns the grouped issues flattened in key order
func (v View) Issues() []redmine.Issue {
	out := make([]redmine.Issue, 0, v.Total)
	for _, k := range v.Keys {
		out = append(out, v.Groups[k]...)
	}
	return out
}

// Derive filters issues by the selection and groups the result
func Derive(issues []redmine.Issue, sel Selection, env Context) View {
	return Group(Apply(issues, sel, env), sel.GroupBy, env.Statuses)
}

// Group buckets issues by status or assignee. Issues keep their input order within a group.
func Group(issues []redmine.Issue, mode GroupBy, statuses []redmine.IssueStatus) View {
	view := View{
		Keys:   []string{},
		Groups: make(map[string][]redmine.Issue),
		Total:  len(issues),
	}

	keyOf := statusKey
	if mode == GroupByAssignee {
		keyOf = assigneeKey
	}
	for _, issue := range issues {
		k := keyOf(issue)
		if _, ok := view.Groups[k]; !ok {
			view.Keys = append(view.Keys, k)
		}
		view.Groups[k] = append(view.Groups[k], issue)
	}

	if mode == GroupByAssignee {
		sortAssigneeKeys(view.Keys)
	} else {
		sortStatusKeys(view.Keys, statuses)
	}
	return view
}

func statusKey(issue redmine.Issue) string {
	return issue.Status.Name
}

func assigneeKey(issue redmine.Issue) string {
	if issue.AssignedTo == nil || issue.AssignedTo.Name == "" {
		return Unassigned
	}
	return issue.AssignedTo.Name
}

func sortStatusKeys(keys []string, statuses []redmine.IssueStatus) {
	position := make(map[string]int, len(statuses))
	for i, s := range statuses {
		if _, ok := position[s.Name]; !ok {
			position[s.Name] = i
		}
	}
	rank := func(k string) int {
		if p, ok := position[k]; ok {
			return p
		}
		return len(statuses)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return rank(keys[i]) < rank(keys[j])
	})
}

func sortAssigneeKeys(keys []string) {
	c := collate.New(language.Und)
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a == Unassigned || b == Unassigned {
			return b == Unassigned && a != Unassigned
		}
		return c.CompareString(a, b) < 0
	})
}
