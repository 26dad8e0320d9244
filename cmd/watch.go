package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/args"
)

var watchCmd = &cobra.Command{
	Use:   "watch <issue>",
	Short: "Add or remove a watcher of an issue",
	Long: `Add a watcher to an issue, or remove one with --remove. The watcher defaults
to the current user; watching an issue adds it to the followed view.`,
	Example: `  # Follow an issue
  redmine-desktop watch 123

  # Stop following
  redmine-desktop watch 123 --remove

  # Add another user as watcher
  redmine-desktop watch 123 --user 42`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchUser   string
	watchRemove bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchUser, "user", "u", "me", "User id or 'me'")
	watchCmd.Flags().BoolVar(&watchRemove, "remove", false, "Remove the watcher")
}

func runWatch(cmd *cobra.Command, a []string) error {
	id, err := parseIssueID(a[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.connect(ctx); err != nil {
		return err
	}
	userID, err := args.ResolveUser(watchUser, s.lookup().CurrentUserID)
	if err != nil {
		return err
	}

	if watchRemove {
		if err := s.app.RemoveWatcher(ctx, id, userID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed watcher %d from issue #%d\n", userID, id)
		return nil
	}
	if err := s.app.AddWatcher(ctx, id, userID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added watcher %d to issue #%d\n", userID, id)
	return nil
}
