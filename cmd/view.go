package cmd

import (
	"fmt"

	"github.com/cli/go-gh/v2/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var viewCmd = &cobra.Command{
	Use:   "view <issue>",
	Short: "View an issue with its history and attachments",
	Long: `Display an issue including its description, watchers, assisting watchers,
attachments and history.

The issue is fetched from the server and merged into the cache. With --cached
the cached copy is shown without contacting the server.`,
	Example: `  # View an issue
  redmine-desktop view 123

  # View the cached copy
  redmine-desktop view 123 --cached

  # Open the issue in the browser
  redmine-desktop view 123 --web

  # View in JSON format
  redmine-desktop view 123 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

var (
	viewCached bool
	viewWeb    bool
)

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().BoolVar(&viewCached, "cached", false, "Show the cached copy only")
	viewCmd.Flags().BoolVarP(&viewWeb, "web", "w", false, "Open in web browser")
}

func runView(cmd *cobra.Command, args []string) error {
	id, err := parseIssueID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if viewWeb {
		if err := s.requireServer(); err != nil {
			return err
		}
		return browser.New("", cmd.OutOrStdout(), cmd.ErrOrStderr()).Browse(s.urls.IssueURL(id))
	}

	issue, cached := s.app.Issue(id)
	if !viewCached && s.client != nil {
		fresh, err := s.app.FetchIssueDetail(ctx, id)
		switch {
		case err == nil:
			issue, cached = fresh, true
		case cached:
			s.log.Warn("showing cached issue", zap.Int("issue_id", id), zap.Error(err))
		default:
			return err
		}
	}
	if !cached {
		return fmt.Errorf("issue #%d is not cached", id)
	}

	return s.formatter.FormatIssue(&issue, s.outputOptions())
}
