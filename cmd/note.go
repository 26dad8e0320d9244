package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:     "note <issue>",
	Aliases: []string{"comment"},
	Short:   "Add a note to an issue",
	Example: `  # Add a note
  redmine-desktop note 123 -m "Reproduced on 1.2"

  # Add a private note
  redmine-desktop note 123 -m "Customer data attached" --private`,
	Args: cobra.ExactArgs(1),
	RunE: runNote,
}

var (
	noteMessage string
	notePrivate bool
)

func init() {
	rootCmd.AddCommand(noteCmd)

	noteCmd.Flags().StringVarP(&noteMessage, "message", "m", "", "Note text (required)")
	noteCmd.Flags().BoolVar(&notePrivate, "private", false, "Make the note private")
	_ = noteCmd.MarkFlagRequired("message")
}

func runNote(cmd *cobra.Command, args []string) error {
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
	if err := s.app.AddNote(ctx, id, strings.TrimSpace(noteMessage), notePrivate); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added note to issue #%d\n", id)
	return nil
}
