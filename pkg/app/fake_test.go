package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// fakeAPI serves canned data and records the calls it receives
type fakeAPI struct {
	mu sync.Mutex

	user       *redmine.User
	userErr    error
	statuses   []redmine.IssueStatus
	priorities []redmine.IssuePriority
	projects   []redmine.Project

	versions    map[int][]redmine.Version
	versionsErr map[int]error
	members     map[int][]redmine.Member

	byVersion  map[int][]redmine.Issue
	versionErr map[int]error
	watched    []redmine.Issue

	// issuesGate blocks Issues until closed; each call first sends on issuesEntered
	issuesGate    chan struct{}
	issuesEntered chan struct{}

	// detail overrides IssueDetail when set
	detail  func(ctx context.Context, id int) (*redmine.Issue, error)
	details map[int]redmine.Issue

	updateErr error
	created   redmine.Issue

	queries     []redmine.IssueQuery
	detailCalls int
	updates     map[int]*redmine.IssueFields
	watchers    map[int][]int
	deleted     []int
	nextVersion int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		user:        &redmine.User{ID: 7, Login: "dev", Firstname: "Dev", Lastname: "User"},
		statuses:    []redmine.IssueStatus{{ID: 1, Name: "New"}, {ID: 3, Name: "Resolved"}, {ID: 5, Name: "Closed", IsClosed: true}},
		priorities:  []redmine.IssuePriority{{ID: 2, Name: "Normal"}},
		versions:    make(map[int][]redmine.Version),
		versionsErr: make(map[int]error),
		members:     make(map[int][]redmine.Member),
		byVersion:   make(map[int][]redmine.Issue),
		versionErr:  make(map[int]error),
		details:     make(map[int]redmine.Issue),
		updates:     make(map[int]*redmine.IssueFields),
		watchers:    make(map[int][]int),
		nextVersion: 900,
	}
}

func (f *fakeAPI) CurrentUser(_ context.Context) (*redmine.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeAPI) Projects(_ context.Context) ([]redmine.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, nil
}

func (f *fakeAPI) Versions(_ context.Context, projectID int) ([]redmine.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.versionsErr[projectID]; err != nil {
		return nil, err
	}
	return f.versions[projectID], nil
}

func (f *fakeAPI) IssueStatuses(_ context.Context) ([]redmine.IssueStatus, error) {
	return f.statuses, nil
}

func (f *fakeAPI) IssuePriorities(_ context.Context) ([]redmine.IssuePriority, error) {
	return f.priorities, nil
}

func (f *fakeAPI) Issues(_ context.Context, q redmine.IssueQuery) (*redmine.IssuePage, error) {
	f.mu.Lock()
	gate, entered := f.issuesGate, f.issuesEntered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	var src []redmine.Issue
	if q.WatcherID != 0 {
		src = f.watched
	} else {
		if err := f.versionErr[q.FixedVersionID]; err != nil {
			return nil, err
		}
		src = f.byVersion[q.FixedVersionID]
	}

	start := min(q.Offset, len(src))
	end := min(start+q.Limit, len(src))
	page := make([]redmine.Issue, end-start)
	copy(page, src[start:end])
	return &redmine.IssuePage{Issues: page, TotalCount: len(src), Offset: q.Offset, Limit: q.Limit}, nil
}

func (f *fakeAPI) IssueDetail(ctx context.Context, id int) (*redmine.Issue, error) {
	f.mu.Lock()
	f.detailCalls++
	detail := f.detail
	issue, ok := f.details[id]
	f.mu.Unlock()

	if detail != nil {
		return detail(ctx, id)
	}
	if !ok {
		return nil, redmine.NewNotFoundError(fmt.Sprintf("issue #%d", id))
	}
	return &issue, nil
}

func (f *fakeAPI) UpdateIssue(_ context.Context, id int, fields *redmine.IssueFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = fields
	return nil
}

func (f *fakeAPI) CreateIssue(_ context.Context, fields *redmine.IssueFields) (*redmine.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := f.created
	issue.Subject = fields.Subject
	return &issue, nil
}

func (f *fakeAPI) DeleteIssue(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) AddWatcher(_ context.Context, issueID, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers[issueID] = append(f.watchers[issueID], userID)
	return nil
}

func (f *fakeAPI) RemoveWatcher(_ context.Context, issueID, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []int
	for _, id := range f.watchers[issueID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	f.watchers[issueID] = kept
	return nil
}

func (f *fakeAPI) AssignableUsers(_ context.Context, projectID int) ([]redmine.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[projectID], nil
}

func (f *fakeAPI) CreateVersion(_ context.Context, projectID int, name string) (*redmine.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextVersion++
	return &redmine.Version{ID: f.nextVersion, Name: name, Status: redmine.VersionOpen, Project: redmine.Ref{ID: projectID}}, nil
}

func (f *fakeAPI) UpdateVersion(_ context.Context, id int, fields *redmine.VersionFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pid, versions := range f.versions {
		for i := range versions {
			if versions[i].ID == id && fields.Name != "" {
				f.versions[pid][i].Name = fields.Name
			}
		}
	}
	return nil
}

func (f *fakeAPI) DeleteVersion(_ context.Context, id int) error {
	return nil
}

func (f *fakeAPI) UploadFile(_ context.Context, filename string, content io.Reader) (*redmine.Upload, error) {
	if _, err := io.ReadAll(content); err != nil {
		return nil, err
	}
	return &redmine.Upload{Token: "token-" + filename}, nil
}

func (f *fakeAPI) issueQueries() []redmine.IssueQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]redmine.IssueQuery(nil), f.queries...)
}

func (f *fakeAPI) detailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

func issueIn(id, versionID int, subject string) redmine.Issue {
	issue := redmine.Issue{
		ID:      id,
		Project: &redmine.Ref{ID: 1, Name: "Core"},
		Subject: subject,
		Status:  redmine.IssueStatus{ID: 1, Name: "New"},
	}
	if versionID != 0 {
		issue.FixedVersion = &redmine.Ref{ID: versionID}
	}
	return issue
}

func issuesIn(versionID, from, n int) []redmine.Issue {
	issues := make([]redmine.Issue, 0, n)
	for i := 0; i < n; i++ {
		issues = append(issues, issueIn(from+i, versionID, fmt.Sprintf("issue %d", from+i)))
	}
	return issues
}
