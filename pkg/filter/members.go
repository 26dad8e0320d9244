package filter

import (
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// GlobalMembers merges project members with every user seen on an issue.
// Role groups of the same user are unioned; the result is sorted by name.
func GlobalMembers(projectMembers map[int][]redmine.Member, issues []redmine.Issue) []redmine.Member {
	byID := make(map[int]*redmine.Member)
	var order []int

	add := func(id int, name string, groups []string) {
		if id <= 0 {
			return
		}
		if m, ok := byID[id]; ok {
			for _, g := range groups {
				if !slices.Contains(m.Groups, g) {
					m.Groups = append(m.Groups, g)
				}
			}
			return
		}
		if name == "" {
			name = "Unknown"
		}
		byID[id] = &redmine.Member{ID: id, Name: name, Groups: append([]string{}, groups...)}
		order = append(order, id)
	}

	projectIDs := make([]int, 0, len(projectMembers))
	for pid := range projectMembers {
		projectIDs = append(projectIDs, pid)
	}
	slices.Sort(projectIDs)
	for _, pid := range projectIDs {
		for _, m := range projectMembers[pid] {
			add(m.ID, m.Name, m.Groups)
		}
	}

	for i := range issues {
		issue := &issues[i]
		if issue.AssignedTo != nil {
			add(issue.AssignedTo.ID, issue.AssignedTo.Name, nil)
		}
		add(issue.Author.ID, issue.Author.Name, nil)
		for _, w := range issue.Watchers {
			add(w.ID, w.Name, nil)
		}
	}

	members := make([]redmine.Member, 0, len(order))
	for _, id := range order {
		members = append(members, *byID[id])
	}

	c := collate.New(language.Und)
	sort.SliceStable(members, func(i, j int) bool {
		return c.CompareString(members[i].Name, members[j].Name) < 0
	})
	return members
}

// MemberName returns the display name of userID, or "" when unknown
func MemberName(members []redmine.Member, userID int) string {
	for _, m := range members {
		if m.ID == userID {
			return m.Name
		}
	}
	return ""
}
