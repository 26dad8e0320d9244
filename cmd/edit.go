package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit <issue>",
	Short: "Edit the attributes of an issue",
	Long: `Update an issue on the server. The cache is updated from the server copy
once the write succeeds.

Use --assignee none to unassign and --assignee me to take the issue.`,
	Example: `  # Move an issue to In Progress and take it
  redmine-desktop edit 123 --status "In Progress" --assignee me

  # Retarget and reschedule
  redmine-desktop edit 123 --version 1.2 --due @today+2w

  # Mark as done with a note
  redmine-desktop edit 123 --status Resolved --done 100 -m "Fixed in r42"`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var (
	editValues      editSpec
	editDone        string
	editDescription string
)

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&editValues.Subject, "subject", "t", "", "New subject")
	editCmd.Flags().StringVarP(&editValues.Status, "status", "s", "", "Status name or id")
	editCmd.Flags().StringVar(&editValues.Priority, "priority", "", "Priority name or id")
	editCmd.Flags().StringVarP(&editValues.Assignee, "assignee", "a", "", "Assignee user id, 'me' or 'none'")
	editCmd.Flags().StringVarP(&editValues.Version, "version", "v", "", "Target version name or id")
	editCmd.Flags().StringVar(&editValues.Start, "start", "", "Start date (YYYY-MM-DD or @today expression)")
	editCmd.Flags().StringVar(&editValues.Due, "due", "", "Due date (YYYY-MM-DD or @today expression)")
	editCmd.Flags().StringVar(&editDone, "done", "", "Done ratio in percent")
	editCmd.Flags().StringVarP(&editDescription, "description", "d", "", "New description")
	editCmd.Flags().StringVarP(&editValues.Notes, "message", "m", "", "Note added with the change")
	editCmd.Flags().BoolVar(&editValues.Private, "private", false, "Make the note private")
}

func runEdit(cmd *cobra.Command, args []string) error {
	id, err := parseIssueID(args[0])
	if err != nil {
		return err
	}

	spec := editValues
	if cmd.Flags().Changed("done") {
		done, err := parseDone(editDone)
		if err != nil {
			return err
		}
		spec.Done = &done
	}
	if cmd.Flags().Changed("description") {
		desc := editDescription
		spec.Description = &desc
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

	issue, ok := s.app.Issue(id)
	if !ok && spec.Version != "" {
		if issue, err = s.app.FetchIssueDetail(ctx, id); err != nil {
			return err
		}
	}

	fields, err := s.resolver(ctx).updateFields(spec, issue.ProjectID())
	if err != nil {
		return err
	}
	if err := s.app.UpdateIssue(ctx, id, fields); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated issue #%d\n", id)
	return nil
}
