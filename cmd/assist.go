package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/args"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

var assistCmd = &cobra.Command{
	Use:   "assist <issue>",
	Short: "Change the assisting watchers of an issue",
	Long: `Add or remove users in the assisting watchers custom field of an issue.
The field name is taken from the configuration.`,
	Example: `  # Add yourself as assisting watcher
  redmine-desktop assist 123 --add me

  # Replace the assisting watchers
  redmine-desktop assist 123 --set 4,9

  # Clear the field
  redmine-desktop assist 123 --set ""`,
	Args: cobra.ExactArgs(1),
	RunE: runAssist,
}

var (
	assistAdd    []string
	assistRemove []string
	assistSet    []string
)

func init() {
	rootCmd.AddCommand(assistCmd)

	assistCmd.Flags().StringSliceVar(&assistAdd, "add", nil, "Users to add (ids or 'me')")
	assistCmd.Flags().StringSliceVar(&assistRemove, "remove", nil, "Users to remove (ids or 'me')")
	assistCmd.Flags().StringSliceVar(&assistSet, "set", nil, "Replace the assisting watchers")
	assistCmd.MarkFlagsMutuallyExclusive("set", "add")
	assistCmd.MarkFlagsMutuallyExclusive("set", "remove")
}

func runAssist(cmd *cobra.Command, a []string) error {
	id, err := parseIssueID(a[0])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("set") && len(assistAdd) == 0 && len(assistRemove) == 0 {
		return fmt.Errorf("one of --add, --remove or --set is required")
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
	issue, err := s.app.FetchIssueDetail(ctx, id)
	if err != nil {
		return err
	}

	current := s.lookup().CurrentUserID
	var ids []int
	if cmd.Flags().Changed("set") {
		if ids, err = resolveUsers(assistSet, current); err != nil {
			return err
		}
	} else {
		add, err := resolveUsers(assistAdd, current)
		if err != nil {
			return err
		}
		remove, err := resolveUsers(assistRemove, current)
		if err != nil {
			return err
		}
		ids = editUserIDs(redmine.AssistingWatcherIDs(&issue, s.app.AssistingWatchersField()), add, remove)
	}

	if err := s.app.SetAssistingWatchers(ctx, id, ids); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated assisting watchers of issue #%d\n", id)
	return nil
}

func resolveUsers(values []string, currentUserID int) ([]int, error) {
	ids := make([]int, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		id, err := args.ResolveUser(v, currentUserID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// editUserIDs applies additions and removals to ids, returning a sorted set
func editUserIDs(ids, add, remove []int) []int {
	out := slices.Clone(ids)
	out = append(out, add...)
	out = slices.DeleteFunc(out, func(id int) bool {
		return slices.Contains(remove, id)
	})
	slices.Sort(out)
	return slices.Compact(out)
}
