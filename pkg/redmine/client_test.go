package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{
		URL:       srv.URL + "/redmine",
		APIKey:    "secret",
		Timeout:   2 * time.Second,
		Transport: srv.Client().Transport,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    ClientOptions
		wantErr bool
		wantURL string
	}{
		{
			name:    "valid",
			opts:    ClientOptions{URL: "https://redmine.example.com", APIKey: "k", Transport: http.DefaultTransport},
			wantURL: "https://redmine.example.com/",
		},
		{
			name:    "sub-path",
			opts:    ClientOptions{URL: "https://example.com/redmine", APIKey: "k", Transport: http.DefaultTransport},
			wantURL: "https://example.com/redmine/",
		},
		{
			name:    "missing url",
			opts:    ClientOptions{APIKey: "k"},
			wantErr: true,
		},
		{
			name:    "missing key",
			opts:    ClientOptions{URL: "https://redmine.example.com"},
			wantErr: true,
		},
		{
			name:    "bad scheme",
			opts:    ClientOptions{URL: "ftp://redmine.example.com", APIKey: "k"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConnectionFailure(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, client.BaseURL())
		})
	}
}

func TestIssueQuery_Values(t *testing.T) {
	q := IssueQuery{
		ProjectID:      3,
		StatusID:       "*",
		FixedVersionID: 12,
		Limit:          100,
		Offset:         200,
		Sort:           "updated_on:desc",
	}
	v := q.Values()

	assert.Equal(t, "3", v.Get("project_id"))
	assert.Equal(t, "*", v.Get("status_id"))
	assert.Equal(t, "12", v.Get("fixed_version_id"))
	assert.Equal(t, "100", v.Get("limit"))
	assert.Equal(t, "200", v.Get("offset"))
	assert.Equal(t, "updated_on:desc", v.Get("sort"))
	assert.NotContains(t, v, "watcher_id")
	assert.NotContains(t, v, "assigned_to_id")
	assert.Empty(t, IssueQuery{}.Values())
}

func TestClient_CurrentUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redmine/users/current.json", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Redmine-API-Key"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user": map[string]interface{}{"id": 7, "login": "jdoe", "firstname": "Jane", "lastname": "Doe"},
		})
	})

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, "Jane Doe", user.DisplayName())
}

func TestClient_Issues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redmine/issues.json", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("fixed_version_id"))
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"issues": []map[string]interface{}{
				{"id": 1, "subject": "one", "fixed_version": map[string]interface{}{"id": 5, "name": "1.0"}},
				{"id": 2, "subject": "two"},
			},
			"total_count": 102,
			"offset":      100,
			"limit":       100,
		})
	})

	page, err := client.Issues(context.Background(), IssueQuery{FixedVersionID: 5, Limit: 100, Offset: 100})
	require.NoError(t, err)
	assert.Equal(t, 102, page.TotalCount)
	require.Len(t, page.Issues, 2)
	assert.Equal(t, 5, page.Issues[0].VersionID())
	assert.Equal(t, 0, page.Issues[1].VersionID())
}

func TestClient_IssueDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redmine/issues/9.json", r.URL.Path)
		assert.Equal(t, "journals,attachments,watchers", r.URL.Query().Get("include"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"issue": map[string]interface{}{
				"id":       9,
				"journals": []map[string]interface{}{{"id": 1, "notes": "hi"}},
				"watchers": []map[string]interface{}{{"id": 7, "name": "Jane"}},
			},
		})
	})

	issue, err := client.IssueDetail(context.Background(), 9)
	require.NoError(t, err)
	assert.Len(t, issue.Journals, 1)
	assert.True(t, issue.IsWatchedBy(7))
}

func TestClient_UpdateIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/redmine/issues/4.json", r.URL.Path)

		var body map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new subject", body["issue"]["subject"])
		assert.Equal(t, "", body["issue"]["assigned_to_id"])
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateIssue(context.Background(), 4, &IssueFields{Subject: "new subject", ClearAssignee: true})
	require.NoError(t, err)
}

func TestClient_UpdateIssue_Invalid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})

	err := client.UpdateIssue(context.Background(), 4, &IssueFields{AssignedToID: 3, ClearAssignee: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &APIError{Type: ErrorTypeValidation}))
}

func TestClient_CreateIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"issue": map[string]interface{}{"id": 77, "subject": "created", "project": map[string]interface{}{"id": 2}},
		})
	})

	issue, err := client.CreateIssue(context.Background(), &IssueFields{ProjectID: 2, Subject: "created"})
	require.NoError(t, err)
	assert.Equal(t, 77, issue.ID)
	assert.Equal(t, 2, issue.ProjectID())
}

func TestClient_AssignableUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redmine/projects/3/memberships.json", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"memberships": []map[string]interface{}{
				{"user": map[string]interface{}{"id": 1, "name": "Ann"}, "roles": []map[string]interface{}{{"id": 3, "name": "Developer"}}},
				{"group": map[string]interface{}{"id": 9, "name": "QA"}, "roles": []map[string]interface{}{{"id": 4, "name": "Tester"}}},
			},
		})
	})

	members, err := client.AssignableUsers(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, Member{ID: 1, Name: "Ann", Groups: []string{"Developer"}}, members[0])
}

func TestClient_CreateVersion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2.0.0", body["version"]["name"])
		assert.Equal(t, VersionOpen, body["version"]["status"])
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"version": map[string]interface{}{"id": 11, "name": "2.0.0", "status": "open", "project": map[string]interface{}{"id": 3}},
		})
	})

	version, err := client.CreateVersion(context.Background(), 3, " 2.0.0 ")
	require.NoError(t, err)
	assert.Equal(t, 11, version.ID)
	assert.Equal(t, 3, version.Project.ID)

	_, err = client.CreateVersion(context.Background(), 3, "  ")
	assert.Error(t, err)
}

func TestClient_UploadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redmine/uploads.json", r.URL.Path)
		assert.Equal(t, "notes.txt", r.URL.Query().Get("filename"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(data))
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"upload": map[string]interface{}{"id": 5, "token": "5.abc"},
		})
	})

	upload, err := client.UploadFile(context.Background(), "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "5.abc", upload.Token)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantType: ErrorTypeAuth},
		{name: "forbidden", status: http.StatusForbidden, wantType: ErrorTypeAuth},
		{name: "not found", status: http.StatusNotFound, wantType: ErrorTypeNotFound},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, wantType: ErrorTypeValidation},
		{name: "server error", status: http.StatusInternalServerError, wantType: ErrorTypeAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]interface{}{"errors": []string{"nope"}})
			})

			_, err := client.IssueStatuses(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Projects(ctx)
	require.Error(t, err)
	assert.True(t, IsConnectionFailure(err))
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := NewClient(ClientOptions{URL: srv.URL, APIKey: "k", Transport: http.DefaultTransport})
	require.NoError(t, err)

	_, err = client.CurrentUser(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrorTypeNetwork, apiErr.Type)
}
