package app

import (
	"context"
	"io"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// API is the remote issue tracker the orchestration layer talks to.
// *redmine.Client implements it.
type API interface {
	CurrentUser(ctx context.Context) (*redmine.User, error)
	Projects(ctx context.Context) ([]redmine.Project, error)
	Versions(ctx context.Context, projectID int) ([]redmine.Version, error)
	IssueStatuses(ctx context.Context) ([]redmine.IssueStatus, error)
	IssuePriorities(ctx context.Context) ([]redmine.IssuePriority, error)
	Issues(ctx context.Context, q redmine.IssueQuery) (*redmine.IssuePage, error)
	IssueDetail(ctx context.Context, id int) (*redmine.Issue, error)
	UpdateIssue(ctx context.Context, id int, fields *redmine.IssueFields) error
	CreateIssue(ctx context.Context, fields *redmine.IssueFields) (*redmine.Issue, error)
	DeleteIssue(ctx context.Context, id int) error
	AddWatcher(ctx context.Context, issueID, userID int) error
	RemoveWatcher(ctx context.Context, issueID, userID int) error
	AssignableUsers(ctx context.Context, projectID int) ([]redmine.Member, error)
	CreateVersion(ctx context.Context, projectID int, name string) (*redmine.Version, error)
	UpdateVersion(ctx context.Context, id int, fields *redmine.VersionFields) error
	DeleteVersion(ctx context.Context, id int) error
	UploadFile(ctx context.Context, filename string, content io.Reader) (*redmine.Upload, error)
}

var _ API = (*redmine.Client)(nil)
