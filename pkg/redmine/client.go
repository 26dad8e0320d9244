package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
)

// DefaultTimeout bounds every request made by the client
const DefaultTimeout = 15 * time.Second

// MaxPageSize is the largest page the issues endpoint returns
const MaxPageSize = 100

// ClientOptions configures the connection to a Redmine server
type ClientOptions struct {
	// URL is the server base URL, optionally with a sub-path
	URL string
	// APIKey is sent as X-Redmine-API-Key on every request
	APIKey string
	// Timeout defaults to DefaultTimeout
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests)
	Transport http.RoundTripper
	// UserAgent defaults to "redmine-desktop"
	UserAgent string
}

// Client is a wrapper around the go-gh REST client for the Redmine API
type Client struct {
	base *url.URL
	rest *api.RESTClient
	http *http.Client
}

// IssueQuery holds the filters accepted by the issues list endpoint
type IssueQuery struct {
	ProjectID      int
	StatusID       string
	AssignedToID   string
	FixedVersionID int
	WatcherID      int
	Limit          int
	Offset         int
	UpdatedOn      string
	Sort           string
	Include        string
}

// Values encodes the query, omitting zero values
func (q IssueQuery) Values() url.Values {
	v := url.Values{}
	if q.ProjectID != 0 {
		v.Set("project_id", strconv.Itoa(q.ProjectID))
	}
	if q.StatusID != "" {
		v.Set("status_id", q.StatusID)
	}
	if q.AssignedToID != "" {
		v.Set("assigned_to_id", q.AssignedToID)
	}
	if q.FixedVersionID != 0 {
		v.Set("fixed_version_id", strconv.Itoa(q.FixedVersionID))
	}
	if q.WatcherID != 0 {
		v.Set("watcher_id", strconv.Itoa(q.WatcherID))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.UpdatedOn != "" {
		v.Set("updated_on", q.UpdatedOn)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Include != "" {
		v.Set("include", q.Include)
	}
	return v
}

// NewClient creates a new Redmine client
func NewClient(opts ClientOptions) (*Client, error) {
	raw := strings.TrimSpace(opts.URL)
	if raw == "" {
		return nil, NewConfigurationError("server URL is required", nil)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, NewConfigurationError("API key is required", nil)
	}

	base, err := url.Parse(raw)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, NewConfigurationError(fmt.Sprintf("invalid server URL '%s'", raw), err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "redmine-desktop"
	}

	// An explicit host, token and transport keep go-gh from consulting gh CLI config
	clientOpts := api.ClientOptions{
		Host:               base.Hostname(),
		AuthToken:          opts.APIKey,
		Timeout:            timeout,
		Transport:          transport,
		SkipDefaultHeaders: true,
		Headers: map[string]string{
			"X-Redmine-API-Key": opts.APIKey,
			"Content-Type":      "application/json",
			"Accept":            "application/json",
			"User-Agent":        userAgent,
		},
	}

	restClient, err := api.NewRESTClient(clientOpts)
	if err != nil {
		return nil, NewConfigurationError("failed to create REST client", err)
	}

	httpClient, err := api.NewHTTPClient(clientOpts)
	if err != nil {
		return nil, NewConfigurationError("failed to create HTTP client", err)
	}

	return &Client{
		base: base,
		rest: restClient,
		http: httpClient,
	}, nil
}

// BaseURL returns the normalized server base URL
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint resolves path against the base URL
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, response interface{}, what string) error {
	if err := c.rest.DoWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil, response); err != nil {
		return classify(err, "failed to fetch "+what)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}, response interface{}, what string) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return NewAPIError("failed to marshal request", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.rest.RequestWithContext(ctx, method, c.endpoint(path, nil), body)
	if err != nil {
		return classify(err, "failed to "+what)
	}
	defer resp.Body.Close()

	if response == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return NewAPIError("failed to parse response", err)
	}
	return nil
}

// CurrentUser fetches the account the API key belongs to
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var result struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, "users/current.json", nil, &result, "current user"); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Projects fetches every project visible to the current user
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var all []Project
	offset := 0

	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(MaxPageSize))
		if offset > 0 {
			query.Set("offset", strconv.Itoa(offset))
		}

		var result struct {
			Projects   []Project `json:"projects"`
			TotalCount int       `json:"total_count"`
		}
		if err := c.get(ctx, "projects.json", query, &result, "projects"); err != nil {
			return nil, err
		}
		all = append(all, result.Projects...)

		if len(all) >= result.TotalCount || len(result.Projects) < MaxPageSize {
			break
		}
		offset += MaxPageSize
	}

	return all, nil
}

// Versions fetches the versions of a project
func (c *Client) Versions(ctx context.Context, projectID int) ([]Version, error) {
	var result struct {
		Versions []Version `json:"versions"`
	}
	path := fmt.Sprintf("projects/%d/versions.json", projectID)
	if err := c.get(ctx, path, nil, &result, fmt.Sprintf("versions of project %d", projectID)); err != nil {
		return nil, err
	}
	return result.Versions, nil
}

// IssueStatuses fetches the canonical status list in server order
func (c *Client) IssueStatuses(ctx context.Context) ([]IssueStatus, error) {
	var result struct {
		IssueStatuses []IssueStatus `json:"issue_statuses"`
	}
	if err := c.get(ctx, "issue_statuses.json", nil, &result, "issue statuses"); err != nil {
		return nil, err
	}
	return result.IssueStatuses, nil
}

// IssuePriorities fetches the issue priority enumeration
func (c *Client) IssuePriorities(ctx context.Context) ([]IssuePriority, error) {
	var result struct {
		IssuePriorities []IssuePriority `json:"issue_priorities"`
	}
	if err := c.get(ctx, "enumerations/issue_priorities.json", nil, &result, "issue priorities"); err != nil {
		return nil, err
	}
	return result.IssuePriorities, nil
}

// Issues fetches a single page of issues
func (c *Client) Issues(ctx context.Context, q IssueQuery) (*IssuePage, error) {
	var page IssuePage
	if err := c.get(ctx, "issues.json", q.Values(), &page, "issues"); err != nil {
		return nil, err
	}
	return &page, nil
}

// IssueDetail fetches one issue including journals, attachments and watchers
func (c *Client) IssueDetail(ctx context.Context, id int) (*Issue, error) {
	query := url.Values{}
	query.Set("include", "journals,attachments,watchers")

	var result struct {
		Issue Issue `json:"issue"`
	}
	if err := c.get(ctx, fmt.Sprintf("issues/%d.json", id), query, &result, fmt.Sprintf("issue #%d", id)); err != nil {
		return nil, err
	}
	return &result.Issue, nil
}

// UpdateIssue writes a partial update to an issue
func (c *Client) UpdateIssue(ctx context.Context, id int, fields *IssueFields) error {
	if err := fields.ValidateUpdate(); err != nil {
		return NewValidationError("invalid issue fields", err)
	}
	payload := map[string]interface{}{"issue": fields.ToRequest()}
	return c.send(ctx, http.MethodPut, fmt.Sprintf("issues/%d.json", id), payload, nil, fmt.Sprintf("update issue #%d", id))
}

// CreateIssue creates a new issue and returns the server copy
func (c *Client) CreateIssue(ctx context.Context, fields *IssueFields) (*Issue, error) {
	if err := fields.ValidateCreate(); err != nil {
		return nil, NewValidationError("invalid issue fields", err)
	}
	payload := map[string]interface{}{"issue": fields.ToRequest()}

	var result struct {
		Issue Issue `json:"issue"`
	}
	if err := c.send(ctx, http.MethodPost, "issues.json", payload, &result, "create issue"); err != nil {
		return nil, err
	}
	return &result.Issue, nil
}

// DeleteIssue deletes an issue
func (c *Client) DeleteIssue(ctx context.Context, id int) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("issues/%d.json", id), nil, nil, fmt.Sprintf("delete issue #%d", id))
}

// AddWatcher adds a user to the watchers of an issue
func (c *Client) AddWatcher(ctx context.Context, issueID, userID int) error {
	payload := map[string]interface{}{"user_id": userID}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("issues/%d/watchers.json", issueID), payload, nil, "add watcher")
}

// RemoveWatcher removes a user from the watchers of an issue
func (c *Client) RemoveWatcher(ctx context.Context, issueID, userID int) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("issues/%d/watchers/%d.json", issueID, userID), nil, nil, "remove watcher")
}

// AssignableUsers fetches the user members of a project with their role names
func (c *Client) AssignableUsers(ctx context.Context, projectID int) ([]Member, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(MaxPageSize))

	var result struct {
		Memberships []struct {
			User  *Ref `json:"user"`
			Group *Ref `json:"group"`
			Roles []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"roles"`
		} `json:"memberships"`
	}
	path := fmt.Sprintf("projects/%d/memberships.json", projectID)
	if err := c.get(ctx, path, query, &result, fmt.Sprintf("members of project %d", projectID)); err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(result.Memberships))
	for _, m := range result.Memberships {
		// Group memberships have no user
		if m.User == nil {
			continue
		}
		groups := make([]string, 0, len(m.Roles))
		for _, r := range m.Roles {
			groups = append(groups, r.Name)
		}
		members = append(members, Member{ID: m.User.ID, Name: m.User.Name, Groups: groups})
	}
	return members, nil
}

// CreateVersion creates an open version in a project
func (c *Client) CreateVersion(ctx context.Context, projectID int, name string) (*Version, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("version name is required", nil)
	}
	payload := map[string]interface{}{
		"version": map[string]interface{}{"name": name, "status": VersionOpen},
	}

	var result struct {
		Version Version `json:"version"`
	}
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("projects/%d/versions.json", projectID), payload, &result, "create version"); err != nil {
		return nil, err
	}
	return &result.Version, nil
}

// UpdateVersion writes a partial update to a version
func (c *Client) UpdateVersion(ctx context.Context, id int, fields *VersionFields) error {
	if err := fields.Validate(); err != nil {
		return NewValidationError("invalid version fields", err)
	}
	payload := map[string]interface{}{"version": fields.ToRequest()}
	return c.send(ctx, http.MethodPut, fmt.Sprintf("versions/%d.json", id), payload, nil, fmt.Sprintf("update version %d", id))
}

// DeleteVersion deletes a version
func (c *Client) DeleteVersion(ctx context.Context, id int) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("versions/%d.json", id), nil, nil, fmt.Sprintf("delete version %d", id))
}

// UploadFile streams a file to the uploads endpoint and returns its token
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*Upload, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, NewValidationError("file name is required", nil)
	}
	query := url.Values{}
	query.Set("filename", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("uploads.json", query), content)
	if err != nil {
		return nil, NewAPIError("failed to build upload request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err, "failed to upload file")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(api.HandleHTTPError(resp), "failed to upload file")
	}

	var result struct {
		Upload Upload `json:"upload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewAPIError("failed to parse upload response", err)
	}
	return &result.Upload, nil
}
