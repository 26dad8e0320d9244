package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jheroy/Redmine-desktop/pkg/args"
	"github.com/jheroy/Redmine-desktop/pkg/filter"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
	"github.com/jheroy/Redmine-desktop/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cached issues for the current selection",
	Long: `List the cached issues that match the current selection, grouped by status or assignee.

Selection flags apply to this invocation only unless --save is given, in which
case they become the selection used by later commands.`,
	Example: `  # Issues of the active versions in every project
  redmine-desktop list

  # Issues of one version, grouped by assignee
  redmine-desktop list --project core --version 12 --group-by assignee

  # Issues you follow, without verified ones
  redmine-desktop list --project followed --hide-verified

  # Issues assigned to you, updated in the last week
  redmine-desktop list --project assigned --updated ">=@today-1w"

  # Search by subject or issue number
  redmine-desktop list --search "#123"`,
	RunE: runList,
}

var (
	listRefresh bool
	listSave    bool
	listUpdated string
	listCounts  bool
)

func init() {
	args.AddSelectionFlags(listCmd, nil)

	listCmd.Flags().BoolVarP(&listRefresh, "refresh", "r", false, "Load from the server before listing")
	listCmd.Flags().BoolVar(&listSave, "save", false, "Remember the selection flags")
	listCmd.Flags().StringVar(&listUpdated, "updated", "", "Filter by update date (e.g. \">=@today-1w\")")
	listCmd.Flags().BoolVar(&listCounts, "counts", false, "Show followed and assigned counters")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.client != nil {
		if listRefresh {
			err = s.app.Load(ctx)
		} else {
			err = s.app.Connect(ctx)
		}
		if err != nil {
			s.log.Warn("showing cached issues", zap.Error(err))
		}
	}

	values, err := args.ParseSelectionFlags(cmd, nil)
	if err != nil {
		return err
	}
	sel, err := values.Apply(s.app.Selection(), s.lookup())
	if err != nil {
		return err
	}
	if listSave {
		s.app.ApplySelection(sel)
	}

	view := s.app.ViewFor(sel)
	if listUpdated != "" {
		f, err := utils.ParseDateFilter(listUpdated, time.Now())
		if err != nil {
			return err
		}
		view = filterUpdated(view, f)
	}

	if err := s.formatter.FormatView(view); err != nil {
		return err
	}
	if listCounts {
		return s.formatter.FormatSummary(s.app.CountsFor(sel), s.app.Badge())
	}
	return nil
}

// filterUpdated keeps the issues whose update time matches f, dropping emptied groups
func filterUpdated(view filter.View, f *utils.DateFilter) filter.View {
	out := filter.View{Keys: []string{}, Groups: make(map[string][]redmine.Issue)}
	for _, k := range view.Keys {
		var kept []redmine.Issue
		for _, issue := range view.Groups[k] {
			if f.Match(issue.UpdatedOn) {
				kept = append(kept, issue)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out.Keys = append(out.Keys, k)
		out.Groups[k] = kept
		out.Total += len(kept)
	}
	return out
}
