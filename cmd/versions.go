package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/args"
	"github.com/jheroy/Redmine-desktop/pkg/setup"
)

var versionsCmd = &cobra.Command{
	Use:     "versions",
	Aliases: []string{"ver"},
	Short:   "Manage the versions of a project",
	Long: `List and manage the versions of a project.

Active versions (*) are refreshed in the background; pinned versions (^) sort
first. The project defaults to the project of the current selection.`,
}

var versionsProject string

var versionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List versions with their issue counters",
	Args:  cobra.NoArgs,
	RunE:  runVersionsList,
}

var versionsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a version",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsCreate,
}

var versionsRenameCmd = &cobra.Command{
	Use:   "rename <version> <name>",
	Short: "Rename a version",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionsRename,
}

var versionsDeleteCmd = &cobra.Command{
	Use:   "delete <version>",
	Short: "Delete a version",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsDelete,
}

var versionsPinCmd = &cobra.Command{
	Use:   "pin <version>",
	Short: "Pin or unpin a version",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsPin,
}

var versionsActivateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Toggle whether a version is refreshed in the background",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsActivate,
}

var versionsDeleteYes bool

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.PersistentFlags().StringVarP(&versionsProject, "project", "p", "", "Project id, identifier or name")

	versionsDeleteCmd.Flags().BoolVarP(&versionsDeleteYes, "yes", "y", false, "Do not ask for confirmation")

	versionsCmd.AddCommand(versionsListCmd, versionsCreateCmd, versionsRenameCmd,
		versionsDeleteCmd, versionsPinCmd, versionsActivateCmd)
}

// openProject opens a session, connects and loads the versions of the target project
func openProject(ctx context.Context) (*session, int, error) {
	s, err := openSession(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, 0, err
	}

	projectID := s.app.Selection().ProjectID
	if versionsProject != "" {
		if projectID, err = args.ResolveProject(versionsProject, s.app.Projects()); err != nil {
			s.Close()
			return nil, 0, err
		}
	}
	if projectID <= 0 {
		s.Close()
		return nil, 0, fmt.Errorf("a project is required; use --project")
	}
	if err := s.app.LoadProject(ctx, projectID); err != nil {
		s.Close()
		return nil, 0, err
	}
	return s, projectID, nil
}

// versionArg resolves a version id or name within projectID
func (s *session) versionArg(projectID int, value string) (int, error) {
	return args.ResolveVersion(value, s.app.Versions(projectID))
}

func runVersionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, projectID, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sel := s.app.Selection()
	sel.ProjectID = projectID
	return s.formatter.FormatVersions(s.app.VersionEntries(projectID), s.app.CountsFor(sel))
}

func runVersionsCreate(cmd *cobra.Command, a []string) error {
	name := strings.TrimSpace(a[0])
	if name == "" {
		return fmt.Errorf("version name is required")
	}

	ctx := cmd.Context()
	s, projectID, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.app.CreateVersion(ctx, projectID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created version %s (%d)\n", version.Name, version.ID)
	return nil
}

func runVersionsRename(cmd *cobra.Command, a []string) error {
	ctx := cmd.Context()
	s, projectID, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	versionID, err := s.versionArg(projectID, a[0])
	if err != nil {
		return err
	}
	if err := s.app.RenameVersion(ctx, projectID, versionID, strings.TrimSpace(a[1])); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed version %d to %s\n", versionID, a[1])
	return nil
}

func runVersionsDelete(cmd *cobra.Command, a []string) error {
	ctx := cmd.Context()
	s, projectID, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	versionID, err := s.versionArg(projectID, a[0])
	if err != nil {
		return err
	}
	if !versionsDeleteYes {
		prompt := setup.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
		if !prompt.Confirm(fmt.Sprintf("Delete version %s?", a[0]), false) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
			return nil
		}
	}
	if err := s.app.DeleteVersion(ctx, versionID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted version %d\n", versionID)
	return nil
}

func runVersionsPin(cmd *cobra.Command, a []string) error {
	ctx := cmd.Context()
	s, projectID, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	versionID, err := s.versionArg(projectID, a[0])
	if err != nil {
		return err
	}
	state := "Unpinned"
	if s.app.TogglePin(projectID, versionID) {
		state = "Pinned"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s version %d\n", state, versionID)
	return nil
}

func runVersionsActivate(cmd *cobra.Command, a []string) error {
	ctx := cmd.Context()
	s, projectID, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	versionID, err := s.versionArg(projectID, a[0])
	if err != nil {
		return err
	}
	active, err := s.app.ToggleActive(ctx, versionID)
	if err != nil {
		return err
	}
	state := "Deactivated"
	if active {
		state = "Activated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s version %d\n", state, versionID)
	return nil
}
