package redmine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Ref is the {id, name} reference Redmine embeds for related records
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// User represents a Redmine account
type User struct {
	ID          int        `json:"id"`
	Login       string     `json:"login"`
	Firstname   string     `json:"firstname"`
	Lastname    string     `json:"lastname"`
	Mail        string     `json:"mail,omitempty"`
	CreatedOn   time.Time  `json:"created_on"`
	LastLoginOn *time.Time `json:"last_login_on,omitempty"`
	APIKey      string     `json:"api_key,omitempty"`
	Status      int        `json:"status,omitempty"`
	Name        string     `json:"name,omitempty"`
}

// DisplayName returns the name shown for the user
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	full := strings.TrimSpace(u.Firstname + " " + u.Lastname)
	if full != "" {
		return full
	}
	return u.Login
}

// Member is a project member with the role names used for grouping pickers
type Member struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
}

// Project represents a Redmine project
type Project struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Identifier  string    `json:"identifier"`
	Description string    `json:"description,omitempty"`
	Status      int       `json:"status"`
	IsPublic    bool      `json:"is_public"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
	Parent      *Ref      `json:"parent,omitempty"`
}

// IssueStatus represents a workflow status
type IssueStatus struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed,omitempty"`
}

// IssuePriority represents a priority enumeration value
type IssuePriority struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Version status values
const (
	VersionOpen   = "open"
	VersionLocked = "locked"
	VersionClosed = "closed"
)

// Version is a milestone scoped to a project
type Version struct {
	ID          int       `json:"id"`
	Project     Ref       `json:"project"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	DueDate     string    `json:"due_date,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

// Attachment represents a file attached to an issue
type Attachment struct {
	ID          int       `json:"id"`
	Filename    string    `json:"filename"`
	Filesize    int64     `json:"filesize"`
	ContentType string    `json:"content_type"`
	Description string    `json:"description"`
	ContentURL  string    `json:"content_url"`
	Author      Ref       `json:"author"`
	CreatedOn   time.Time `json:"created_on"`
}

// CustomField is a custom field value attached to an issue.
// Value is kept raw because Redmine sends strings, arrays or null.
type CustomField struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Multiple bool            `json:"multiple,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// JournalDetail is a single attribute change recorded in a journal
type JournalDetail struct {
	Property string `json:"property"`
	Name     string `json:"name"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
}

// IssueJournal is one history entry of an issue
type IssueJournal struct {
	ID        int             `json:"id"`
	User      Ref             `json:"user"`
	Notes     string          `json:"notes"`
	CreatedOn time.Time       `json:"created_on"`
	Details   []JournalDetail `json:"details,omitempty"`
}

// Issue represents a Redmine issue.
// Journals, Attachments and Watchers are only populated by the detail endpoint.
type Issue struct {
	ID             int            `json:"id"`
	Project        *Ref           `json:"project,omitempty"`
	Tracker        Ref            `json:"tracker"`
	Status         IssueStatus    `json:"status"`
	Priority       IssuePriority  `json:"priority"`
	Author         Ref            `json:"author"`
	AssignedTo     *Ref           `json:"assigned_to,omitempty"`
	FixedVersion   *Ref           `json:"fixed_version,omitempty"`
	Subject        string         `json:"subject"`
	Description    string         `json:"description,omitempty"`
	StartDate      string         `json:"start_date,omitempty"`
	DueDate        string         `json:"due_date,omitempty"`
	DoneRatio      int            `json:"done_ratio"`
	IsPrivate      bool           `json:"is_private"`
	EstimatedHours *float64       `json:"estimated_hours,omitempty"`
	SpentHours     *float64       `json:"spent_hours,omitempty"`
	CreatedOn      time.Time      `json:"created_on"`
	UpdatedOn      time.Time      `json:"updated_on"`
	ClosedOn       *time.Time     `json:"closed_on,omitempty"`
	Journals       []IssueJournal `json:"journals,omitempty"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Watchers       []Ref          `json:"watchers,omitempty"`
	CustomFields   []CustomField  `json:"custom_fields,omitempty"`
}

// ProjectID returns the project id or 0 when the issue has none
func (i *Issue) ProjectID() int {
	if i.Project == nil {
		return 0
	}
	return i.Project.ID
}

// AssigneeID returns the assignee id or 0 when unassigned
func (i *Issue) AssigneeID() int {
	if i.AssignedTo == nil {
		return 0
	}
	return i.AssignedTo.ID
}

// VersionID returns the fixed version id or 0 when the issue has none
func (i *Issue) VersionID() int {
	if i.FixedVersion == nil {
		return 0
	}
	return i.FixedVersion.ID
}

// IsWatchedBy reports whether userID is in the watcher list
func (i *Issue) IsWatchedBy(userID int) bool {
	for _, w := range i.Watchers {
		if w.ID == userID {
			return true
		}
	}
	return false
}

// IssuePage is one page of the issues list endpoint
type IssuePage struct {
	Issues     []Issue `json:"issues"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

// Upload is the token returned by the uploads endpoint
type Upload struct {
	ID    int    `json:"id,omitempty"`
	Token string `json:"token"`
}

// UploadRef attaches a previously uploaded file to an issue
type UploadRef struct {
	Token       string `json:"token"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// CustomFieldValue is a custom field assignment sent on create/update
type CustomFieldValue struct {
	ID    int         `json:"id"`
	Value interface{} `json:"value"`
}

// IssueFields holds the attributes sent when creating or updating an issue.
// Zero values are not sent; ClearAssignee explicitly unassigns.
type IssueFields struct {
	ProjectID      int
	TrackerID      int
	StatusID       int
	PriorityID     int
	AssignedToID   int
	ClearAssignee  bool
	FixedVersionID int
	Subject        string
	Description    *string
	StartDate      string
	DueDate        string
	DoneRatio      *int
	Notes          string
	PrivateNotes   bool
	CustomFields   []CustomFieldValue
	Uploads        []UploadRef
	WatcherUserIDs []int
}

// ValidateCreate checks the fields required to create an issue
func (f *IssueFields) ValidateCreate() error {
	if f.ProjectID <= 0 {
		return fmt.Errorf("project is required")
	}
	if strings.TrimSpace(f.Subject) == "" {
		return fmt.Errorf("issue subject is required")
	}
	if len(f.Subject) > 255 {
		return fmt.Errorf("issue subject must be 255 characters or less")
	}
	return f.validateCommon()
}

// ValidateUpdate checks the fields of a partial update
func (f *IssueFields) ValidateUpdate() error {
	if f.Subject != "" && len(f.Subject) > 255 {
		return fmt.Errorf("issue subject must be 255 characters or less")
	}
	if f.ClearAssignee && f.AssignedToID != 0 {
		return fmt.Errorf("cannot both assign and clear the assignee")
	}
	return f.validateCommon()
}

func (f *IssueFields) validateCommon() error {
	if f.DoneRatio != nil && (*f.DoneRatio < 0 || *f.DoneRatio > 100) {
		return fmt.Errorf("done ratio must be between 0 and 100")
	}
	for _, u := range f.Uploads {
		if u.Token == "" {
			return fmt.Errorf("upload token is required")
		}
	}
	return nil
}

// ToRequest converts IssueFields to the body of an issues request
func (f *IssueFields) ToRequest() map[string]interface{} {
	req := make(map[string]interface{})

	if f.ProjectID > 0 {
		req["project_id"] = f.ProjectID
	}
	if f.TrackerID > 0 {
		req["tracker_id"] = f.TrackerID
	}
	if f.StatusID > 0 {
		req["status_id"] = f.StatusID
	}
	if f.PriorityID > 0 {
		req["priority_id"] = f.PriorityID
	}
	if f.ClearAssignee {
		req["assigned_to_id"] = ""
	} else if f.AssignedToID > 0 {
		req["assigned_to_id"] = f.AssignedToID
	}
	if f.FixedVersionID > 0 {
		req["fixed_version_id"] = f.FixedVersionID
	}
	if f.Subject != "" {
		req["subject"] = f.Subject
	}
	if f.Description != nil {
		req["description"] = *f.Description
	}
	if f.StartDate != "" {
		req["start_date"] = f.StartDate
	}
	if f.DueDate != "" {
		req["due_date"] = f.DueDate
	}
	if f.DoneRatio != nil {
		req["done_ratio"] = *f.DoneRatio
	}
	if f.Notes != "" {
		req["notes"] = f.Notes
		if f.PrivateNotes {
			req["private_notes"] = true
		}
	}
	if len(f.CustomFields) > 0 {
		req["custom_fields"] = f.CustomFields
	}
	if len(f.Uploads) > 0 {
		req["uploads"] = f.Uploads
	}
	if len(f.WatcherUserIDs) > 0 {
		req["watcher_user_ids"] = f.WatcherUserIDs
	}

	return req
}

// VersionFields holds the attributes sent when updating a version
type VersionFields struct {
	Name        string
	Status      string
	DueDate     string
	Description *string
	Sharing     string
}

// Validate checks the version fields
func (f *VersionFields) Validate() error {
	switch f.Status {
	case "", VersionOpen, VersionLocked, VersionClosed:
	default:
		return fmt.Errorf("invalid version status '%s': must be open, locked or closed", f.Status)
	}
	if len(f.Name) > 60 {
		return fmt.Errorf("version name must be 60 characters or less")
	}
	return nil
}

// ToRequest converts VersionFields to the body of a versions request
func (f *VersionFields) ToRequest() map[string]interface{} {
	req := make(map[string]interface{})
	if f.Name != "" {
		req["name"] = f.Name
	}
	if f.Status != "" {
		req["status"] = f.Status
	}
	if f.DueDate != "" {
		req["due_date"] = f.DueDate
	}
	if f.Description != nil {
		req["description"] = *f.Description
	}
	if f.Sharing != "" {
		req["sharing"] = f.Sharing
	}
	return req
}
