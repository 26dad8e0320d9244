package setup

import (
	"context"
	"time"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Connection summarizes a verified server connection
type Connection struct {
	User     *redmine.User
	Statuses []redmine.IssueStatus
	Projects int
}

// Verify connects with the given settings and fetches the data the wizard needs
func Verify(ctx context.Context, serverURL, apiKey string, timeout time.Duration) (*Connection, error) {
	if serverURL == "" || apiKey == "" {
		return nil, NewValidationError("server URL and API key are required")
	}

	client, err := redmine.NewClient(redmine.ClientOptions{
		URL:     serverURL,
		APIKey:  apiKey,
		Timeout: timeout,
	})
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, NewConnectionError("could not log in", err)
	}
	statuses, err := client.IssueStatuses(ctx)
	if err != nil {
		return nil, NewConnectionError("could not fetch issue statuses", err)
	}
	projects, err := client.Projects(ctx)
	if err != nil {
		return nil, NewConnectionError("could not fetch projects", err)
	}

	return &Connection{User: user, Statuses: statuses, Projects: len(projects)}, nil
}
