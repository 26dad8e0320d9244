package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jheroy/Redmine-desktop/pkg/args"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

func testResolver() resolver {
	return resolver{
		lookup: args.Lookup{
			Projects:      []redmine.Project{{ID: 1, Name: "Core", Identifier: "core"}},
			Statuses:      []redmine.IssueStatus{{ID: 1, Name: "New"}, {ID: 2, Name: "In Progress"}},
			CurrentUserID: 7,
		},
		priorities: []redmine.IssuePriority{{ID: 2, Name: "Normal"}, {ID: 3, Name: "High"}},
		versions: func(projectID int) []redmine.Version {
			if projectID != 1 {
				return nil
			}
			return []redmine.Version{{ID: 10, Name: "1.0"}, {ID: 11, Name: "1.1"}}
		},
		now: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolver_CreateFields(t *testing.T) {
	r := testResolver()

	fields, err := r.createFields(issueSpec{
		Project:     "core",
		Subject:     "  Crash on start ",
		Description: "steps",
		Priority:    "high",
		Assignee:    "me",
		Version:     "1.1",
		Due:         "@today+1w",
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, fields.ProjectID)
	assert.Equal(t, "Crash on start", fields.Subject)
	require.NotNil(t, fields.Description)
	assert.Equal(t, "steps", *fields.Description)
	assert.Equal(t, 3, fields.PriorityID)
	assert.Equal(t, 7, fields.AssignedToID)
	assert.Equal(t, 11, fields.FixedVersionID)
	assert.Equal(t, "2025-09-11", fields.DueDate)
	assert.Empty(t, fields.StartDate)
}

func TestResolver_CreateFieldsErrors(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name       string
		spec       issueSpec
		defProject int
		err        string
	}{
		{name: "no project", spec: issueSpec{Subject: "x"}, err: "a project is required"},
		{name: "pseudo project", spec: issueSpec{Project: "all", Subject: "x"}, err: "a project is required"},
		{name: "no subject", spec: issueSpec{}, defProject: 1, err: "subject is required"},
		{name: "unknown version", spec: issueSpec{Subject: "x", Version: "9.9"}, defProject: 1, err: "version '9.9' not found"},
		{name: "bad date", spec: issueSpec{Subject: "x", Due: "tomorrow"}, defProject: 1, err: "invalid due date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.createFields(tt.spec, tt.defProject)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestResolver_UpdateFields(t *testing.T) {
	r := testResolver()
	done := 40

	fields, err := r.updateFields(editSpec{Status: "in progress", Assignee: "none", Done: &done}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, fields.StatusID)
	assert.True(t, fields.ClearAssignee)
	assert.Equal(t, map[string]interface{}{
		"status_id":      2,
		"assigned_to_id": "",
		"done_ratio":     40,
	}, fields.ToRequest())

	fields, err = r.updateFields(editSpec{Notes: "looked into it", Private: true}, 1)
	require.NoError(t, err)
	assert.True(t, fields.PrivateNotes)

	_, err = r.updateFields(editSpec{Private: true}, 1)
	assert.EqualError(t, err, "nothing to update")
}

func TestParseIssueID(t *testing.T) {
	for input, want := range map[string]int{"123": 123, "#45": 45, " 7 ": 7} {
		got, err := parseIssueID(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	for _, input := range []string{"", "abc", "0", "-3"} {
		_, err := parseIssueID(input)
		assert.Error(t, err, input)
	}
}

func TestParseDone(t *testing.T) {
	n, err := parseDone("40%")
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	_, err = parseDone("half")
	assert.Error(t, err)
}

func TestEditUserIDs(t *testing.T) {
	assert.Equal(t, []int{2, 4, 9}, editUserIDs([]int{9, 3, 4}, []int{2, 4}, []int{3}))
	assert.Empty(t, editUserIDs(nil, nil, nil))
}

func TestLoadIssueSpecs(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "list.yml")
	require.NoError(t, os.WriteFile(list, []byte(`
- subject: First
  project: core
  priority: High
- subject: Second
  attach: [a.txt, b.png]
`), 0o644))

	specs, err := loadIssueSpecs(list)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "core", specs[0].Project)
	assert.Equal(t, []string{"a.txt", "b.png"}, specs[1].Attach)

	doc := filepath.Join(dir, "doc.yml")
	require.NoError(t, os.WriteFile(doc, []byte("issues:\n  - subject: Only\n"), 0o644))
	specs, err = loadIssueSpecs(doc)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "Only", specs[0].Subject)

	empty := filepath.Join(dir, "empty.yml")
	require.NoError(t, os.WriteFile(empty, []byte("issues: []\n"), 0o644))
	_, err = loadIssueSpecs(empty)
	assert.Error(t, err)
}
