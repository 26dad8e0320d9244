package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/config"
	"github.com/jheroy/Redmine-desktop/pkg/setup"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure the server connection",
	Long: `Create or update the redmine-desktop configuration file.

This command will:
- Ask for the server URL and your API key
- Verify the connection by logging in
- Let you choose the statuses that mark issues as done and verified
- Write the configuration file atomically`,
	Example: `  # Interactive setup
  redmine-desktop init

  # Non-interactive setup
  redmine-desktop init --url https://redmine.example.com --api-key 0123abcd --no-interactive`,
	RunE: runInit,
}

var (
	initURL           string
	initAPIKey        string
	initInteractive   bool
	initNoInteractive bool
	initSkipVerify    bool
	initAssistField   string
	initRefreshPeriod int
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initURL, "url", "", "Server URL")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (My account > API access key)")
	initCmd.Flags().BoolVar(&initNoInteractive, "no-interactive", false, "Take all values from flags without prompting")
	initCmd.Flags().BoolVar(&initSkipVerify, "skip-verify", false, "Save without verifying the connection")
	initCmd.Flags().StringVar(&initAssistField, "assisting-field", "", "Name of the assisting watchers custom field")
	initCmd.Flags().IntVar(&initRefreshPeriod, "refresh-interval", -1, "Background refresh interval in seconds (0 disables)")
}

func runInit(cmd *cobra.Command, args []string) error {
	initInteractive = !initNoInteractive

	path, err := config.ResolvePath(configPath)
	if err != nil {
		return setup.NewFileSystemError("failed to resolve config path", err)
	}

	prompt := setup.NewInteractivePrompt()
	cfg := config.DefaultConfig()
	if config.Exists(path) {
		if initInteractive && !prompt.ConfirmOverwrite(path) {
			fmt.Fprintln(cmd.OutOrStdout(), "Initialization cancelled.")
			return nil
		}
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Could not load existing config, creating new one: %v\n", err)
		}
		cfg = loaded
	}

	if err := configureInit(cmd.Context(), cfg, prompt); err != nil {
		setup.HandleSetupError(cmd.ErrOrStderr(), err)
		return err
	}

	if err := cfg.Validate(); err != nil {
		verr := setup.NewValidationError(err.Error())
		setup.HandleSetupError(cmd.ErrOrStderr(), verr)
		return verr
	}
	if err := cfg.Save(path); err != nil {
		ferr := setup.NewFileSystemError("failed to save configuration", err)
		setup.HandleSetupError(cmd.ErrOrStderr(), ferr)
		return ferr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Run 'redmine-desktop sync' to load your issues.")
	return nil
}

// configureInit fills cfg from flags and, in interactive mode, from prompts
func configureInit(ctx context.Context, cfg *config.Config, prompt *setup.InteractivePrompt) error {
	if initURL != "" {
		cfg.Server.URL = initURL
	}
	if initAPIKey != "" {
		cfg.Server.APIKey = initAPIKey
	}
	if initAssistField != "" {
		cfg.Fields.AssistingWatchers = initAssistField
	}
	if initRefreshPeriod >= 0 {
		cfg.Refresh.Interval = initRefreshPeriod
	}

	if initInteractive {
		cfg.Server.URL = prompt.GetStringInput("Server URL", cfg.Server.URL)
		cfg.Server.APIKey = prompt.GetSecretInput("API key", cfg.Server.APIKey)
	}
	cfg.Server.URL = strings.TrimRight(strings.TrimSpace(cfg.Server.URL), "/")
	cfg.Server.APIKey = strings.TrimSpace(cfg.Server.APIKey)

	if !cfg.IsConfigured() {
		return setup.NewValidationError("server URL and API key are required")
	}
	if initSkipVerify {
		return nil
	}

	conn, err := setup.Verify(ctx, cfg.Server.URL, cfg.Server.APIKey, cfg.Refresh.RequestTimeout)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%d projects)\n", conn.User.DisplayName(), conn.Projects)

	if initInteractive {
		cfg.Workflow.DoneStatus = prompt.SelectStatus("done", conn.Statuses, cfg.Workflow.DoneStatus)
		cfg.Workflow.VerifiedStatus = prompt.SelectStatus("verified", conn.Statuses, cfg.Workflow.VerifiedStatus)
		cfg.Fields.AssistingWatchers = prompt.GetStringInput("Assisting watchers custom field", cfg.Fields.AssistingWatchers)
	}
	return nil
}
