package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jheroy/Redmine-desktop/pkg/args"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
	"github.com/jheroy/Redmine-desktop/pkg/utils"
)

// issueSpec describes an issue to create, from flags or a batch file
type issueSpec struct {
	Project     string   `yaml:"project"`
	Subject     string   `yaml:"subject"`
	Description string   `yaml:"description"`
	Tracker     int      `yaml:"tracker"`
	Priority    string   `yaml:"priority"`
	Assignee    string   `yaml:"assignee"`
	Version     string   `yaml:"version"`
	Start       string   `yaml:"start"`
	Due         string   `yaml:"due"`
	Attach      []string `yaml:"attach"`
}

// editSpec holds the changed flags of an edit. Empty strings and nil pointers are left alone.
type editSpec struct {
	Subject     string
	Status      string
	Priority    string
	Assignee    string
	Version     string
	Start       string
	Due         string
	Done        *int
	Description *string
	Notes       string
	Private     bool
}

// resolver turns user supplied names into Redmine ids
type resolver struct {
	lookup     args.Lookup
	priorities []redmine.IssuePriority
	versions   func(projectID int) []redmine.Version
	now        time.Time
}

// resolver loads the versions of a project the first time a version name is resolved
func (s *session) resolver(ctx context.Context) resolver {
	return resolver{
		lookup:     s.lookup(),
		priorities: s.app.Priorities(),
		versions: func(projectID int) []redmine.Version {
			if len(s.app.Versions(projectID)) == 0 {
				if err := s.app.LoadProject(ctx, projectID); err != nil {
					s.log.Warn("could not load versions", zap.Int("project_id", projectID), zap.Error(err))
				}
			}
			return s.app.Versions(projectID)
		},
		now: time.Now(),
	}
}

// createFields builds the fields of a new issue. defaultProject is used when spec names none.
func (r resolver) createFields(spec issueSpec, defaultProject int) (*redmine.IssueFields, error) {
	fields := &redmine.IssueFields{
		ProjectID: defaultProject,
		TrackerID: spec.Tracker,
		Subject:   strings.TrimSpace(spec.Subject),
	}

	if spec.Project != "" {
		id, err := args.ResolveProject(spec.Project, r.lookup.Projects)
		if err != nil {
			return nil, err
		}
		fields.ProjectID = id
	}
	if fields.ProjectID <= 0 {
		return nil, fmt.Errorf("a project is required; use --project or select one with 'list --project <name> --save'")
	}
	if spec.Description != "" {
		desc := spec.Description
		fields.Description = &desc
	}

	edit := editSpec{
		Priority: spec.Priority,
		Assignee: spec.Assignee,
		Version:  spec.Version,
		Start:    spec.Start,
		Due:      spec.Due,
	}
	if err := r.apply(fields, edit, fields.ProjectID); err != nil {
		return nil, err
	}
	if err := fields.ValidateCreate(); err != nil {
		return nil, err
	}
	return fields, nil
}

// updateFields builds a partial update of an issue in projectID
func (r resolver) updateFields(spec editSpec, projectID int) (*redmine.IssueFields, error) {
	fields := &redmine.IssueFields{
		Subject:     strings.TrimSpace(spec.Subject),
		DoneRatio:   spec.Done,
		Description: spec.Description,
		Notes:       spec.Notes,
	}
	fields.PrivateNotes = spec.Private && spec.Notes != ""
	if spec.Status != "" {
		id, err := args.ResolveStatus(spec.Status, r.lookup.Statuses)
		if err != nil {
			return nil, err
		}
		fields.StatusID = id
	}
	if err := r.apply(fields, spec, projectID); err != nil {
		return nil, err
	}
	if err := fields.ValidateUpdate(); err != nil {
		return nil, err
	}
	if len(fields.ToRequest()) == 0 {
		return nil, fmt.Errorf("nothing to update")
	}
	return fields, nil
}

// apply resolves the fields shared by create and edit
func (r resolver) apply(fields *redmine.IssueFields, spec editSpec, projectID int) error {
	if spec.Priority != "" {
		id, err := args.ResolvePriority(spec.Priority, r.priorities)
		if err != nil {
			return err
		}
		fields.PriorityID = id
	}

	switch strings.ToLower(strings.TrimSpace(spec.Assignee)) {
	case "":
	case "none":
		fields.ClearAssignee = true
	default:
		id, err := args.ResolveUser(spec.Assignee, r.lookup.CurrentUserID)
		if err != nil {
			return err
		}
		fields.AssignedToID = id
	}

	if spec.Version != "" {
		var versions []redmine.Version
		if r.versions != nil {
			versions = r.versions(projectID)
		}
		id, err := args.ResolveVersion(spec.Version, versions)
		if err != nil {
			return err
		}
		fields.FixedVersionID = id
	}

	var err error
	if fields.StartDate, err = utils.ResolveDateWithBase(spec.Start, r.now); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if fields.DueDate, err = utils.ResolveDateWithBase(spec.Due, r.now); err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}
	return nil
}

// parseDone parses a done ratio given as "40" or "40%"
func parseDone(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if err != nil {
		return 0, fmt.Errorf("invalid done ratio '%s'", value)
	}
	return n, nil
}
