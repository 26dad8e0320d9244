package args

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/filter"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// SelectionFlags contains flag names used by commands that read the issue view
type SelectionFlags struct {
	Project      string
	Version      string
	Assignee     string
	Assist       string
	Status       string
	Search       string
	GroupBy      string
	HideVerified string
}

// DefaultFlags returns the default flag names
func DefaultFlags() *SelectionFlags {
	return &SelectionFlags{
		Project:      "project",
		Version:      "version",
		Assignee:     "assignee",
		Assist:       "assist",
		Status:       "status",
		Search:       "search",
		GroupBy:      "group-by",
		HideVerified: "hide-verified",
	}
}

// Values are the raw selection flag values of one invocation
type Values struct {
	Project      string
	Version      int
	Assignee     string
	Assist       []int
	Status       string
	Search       string
	GroupBy      string
	HideVerified bool
	// HideVerifiedSet is true when the hide flag was given explicitly
	HideVerifiedSet bool
}

// AddSelectionFlags adds the view selection flags to the command
func AddSelectionFlags(cmd *cobra.Command, flags *SelectionFlags) {
	if flags == nil {
		flags = DefaultFlags()
	}

	cmd.Flags().StringP(flags.Project, "p", "", "Project id or identifier, or one of {all|followed|assigned}")
	cmd.Flags().IntP(flags.Version, "v", 0, "Version id")
	cmd.Flags().StringP(flags.Assignee, "a", "", "Filter by assignee id, or \"me\"")
	cmd.Flags().IntSlice(flags.Assist, nil, "Filter by assisting watcher ids")
	cmd.Flags().StringP(flags.Status, "s", "", "Filter by status id or name")
	cmd.Flags().StringP(flags.Search, "S", "", "Search subject or issue number")
	cmd.Flags().StringP(flags.GroupBy, "g", "", "Group issues by: {status|assignee}")
	cmd.Flags().Bool(flags.HideVerified, false, "Hide verified issues in the followed and assigned views")
}

// ParseSelectionFlags extracts the selection flag values from the command
func ParseSelectionFlags(cmd *cobra.Command, flags *SelectionFlags) (*Values, error) {
	if flags == nil {
		flags = DefaultFlags()
	}

	v := &Values{}
	var err error

	if v.Project, err = cmd.Flags().GetString(flags.Project); err != nil {
		return nil, err
	}
	if v.Version, err = cmd.Flags().GetInt(flags.Version); err != nil {
		return nil, err
	}
	if v.Assignee, err = cmd.Flags().GetString(flags.Assignee); err != nil {
		return nil, err
	}
	if v.Assist, err = cmd.Flags().GetIntSlice(flags.Assist); err != nil {
		return nil, err
	}
	if v.Status, err = cmd.Flags().GetString(flags.Status); err != nil {
		return nil, err
	}
	if v.Search, err = cmd.Flags().GetString(flags.Search); err != nil {
		return nil, err
	}
	if v.GroupBy, err = cmd.Flags().GetString(flags.GroupBy); err != nil {
		return nil, err
	}
	if v.HideVerified, err = cmd.Flags().GetBool(flags.HideVerified); err != nil {
		return nil, err
	}
	v.HideVerifiedSet = cmd.Flags().Changed(flags.HideVerified)

	return v, nil
}

// Lookup is the server metadata needed to resolve names in flag values
type Lookup struct {
	Projects      []redmine.Project
	Statuses      []redmine.IssueStatus
	CurrentUserID int
}

// Apply overlays the flag values on sel. Flags that were not given leave sel untouched.
func (v *Values) Apply(sel filter.Selection, lookup Lookup) (filter.Selection, error) {
	if v.Project != "" {
		id, err := ResolveProject(v.Project, lookup.Projects)
		if err != nil {
			return sel, err
		}
		sel.ProjectID = id
		sel.VersionID = 0
	}
	if v.Version != 0 {
		sel.VersionID = v.Version
	}
	if v.Assignee != "" {
		id, err := ResolveUser(v.Assignee, lookup.CurrentUserID)
		if err != nil {
			return sel, err
		}
		sel.AssigneeID = id
	}
	if len(v.Assist) > 0 {
		sel.AssistingWatcherIDs = v.Assist
	}
	if v.Status != "" {
		id, err := ResolveStatus(v.Status, lookup.Statuses)
		if err != nil {
			return sel, err
		}
		sel.StatusID = id
	}
	if v.Search != "" {
		sel.Query = v.Search
	}
	if v.GroupBy != "" {
		sel.GroupBy = filter.ParseGroupBy(v.GroupBy)
	}
	if v.HideVerifiedSet {
		if sel.InAssignedView() {
			sel.HideVerifiedInAssigned = v.HideVerified
		} else {
			sel.HideVerifiedInFollowed = v.HideVerified
		}
	}
	return sel, nil
}

// ResolveProject maps a project id, identifier, name or pseudo-project keyword to an id
func ResolveProject(value string, projects []redmine.Project) (int, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "all":
		return filter.AllProjects, nil
	case "followed":
		return filter.FollowedProjects, nil
	case "assigned":
		return filter.AssignedProjects, nil
	}

	if id, err := strconv.Atoi(value); err == nil {
		for _, p := range projects {
			if p.ID == id {
				return id, nil
			}
		}
		return 0, fmt.Errorf("project %d not found", id)
	}
	for _, p := range projects {
		if p.Identifier == value || strings.EqualFold(p.Name, value) {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("project '%s' not found", value)
}

// ResolveStatus maps a status id or case-insensitive name to an id
func ResolveStatus(value string, statuses []redmine.IssueStatus) (int, error) {
	value = strings.TrimSpace(value)
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}
	for _, s := range statuses {
		if strings.EqualFold(s.Name, value) {
			return s.ID, nil
		}
	}
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.Name)
	}
	return 0, fmt.Errorf("status '%s' not found (available: %s)", value, strings.Join(names, ", "))
}

// ResolveUser maps "me" or a positive user id to an id
func ResolveUser(value string, currentUserID int) (int, error) {
	if strings.EqualFold(value, "me") || value == "@me" {
		if currentUserID == 0 {
			return 0, fmt.Errorf("current user is unknown; run 'redmine-desktop sync' first")
		}
		return currentUserID, nil
	}
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id '%s'", value)
	}
	return id, nil
}

// ResolvePriority maps a priority id or case-insensitive name to an id
func ResolvePriority(value string, priorities []redmine.IssuePriority) (int, error) {
	value = strings.TrimSpace(value)
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}
	for _, p := range priorities {
		if strings.EqualFold(p.Name, value) {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("priority '%s' not found", value)
}

// ResolveVersion maps a version id or name to an id. Names are looked up in versions.
func ResolveVersion(value string, versions []redmine.Version) (int, error) {
	value = strings.TrimSpace(value)
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}
	for _, v := range versions {
		if v.Name == value {
			return v.ID, nil
		}
	}
	return 0, fmt.Errorf("version '%s' not found", value)
}
