package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load from the server and keep the cache fresh",
	Long: `Connect to the server, load projects, versions and members, and refresh the
issues of the active versions and the followed issues.

Unless --once is given the command keeps refreshing at the configured
interval until interrupted.`,
	Example: `  # Load once and exit
  redmine-desktop sync --once

  # Keep the cache fresh in the background
  redmine-desktop sync`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var syncOnce bool

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "Load once and exit")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.requireServer(); err != nil {
		return err
	}
	if err := s.app.Load(ctx); err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	for _, perr := range s.app.PartialErrors() {
		fmt.Fprintf(errOut, "Warning: %v\n", perr)
	}
	if lastErr := s.app.LastError(); lastErr != nil {
		fmt.Fprintf(errOut, "Warning: %v\n", lastErr)
	}
	if err := s.formatter.FormatSummary(s.app.Counts(), s.app.Badge()); err != nil {
		return err
	}
	if syncOnce {
		return nil
	}

	interval := s.app.RefreshInterval()
	if interval <= 0 {
		fmt.Fprintln(errOut, "Background refresh is disabled in the configuration")
		return nil
	}
	s.log.Info("refreshing in the background", zap.Duration("interval", interval))
	if err := s.app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
