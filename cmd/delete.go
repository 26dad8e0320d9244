package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/setup"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <issue>",
	Short: "Delete an issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var deleteYes bool

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if err := s.requireServer(); err != nil {
		return err
	}

	if !deleteYes {
		question := fmt.Sprintf("Delete issue #%d", id)
		if issue, ok := s.app.Issue(id); ok {
			question = fmt.Sprintf("Delete issue #%d %q", id, issue.Subject)
		}
		prompt := setup.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
		if !prompt.Confirm(question+"?", false) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
			return nil
		}
	}

	if err := s.app.DeleteIssue(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted issue #%d\n", id)
	return nil
}
