package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new issue",
	Long: `Create a new Redmine issue and insert it into the local cache.

The project defaults to the project of the current selection. Dates accept
ISO dates or @today expressions such as @today+3d.`,
	Example: `  # Create an issue in the selected project
  redmine-desktop create --subject "Fix login bug"

  # Create in a version with a priority and assignee
  redmine-desktop create -p core --subject "Crash on start" --version 1.2 --priority High --assignee me

  # Create with a due date and an attachment
  redmine-desktop create --subject "Update docs" --due @today+1w --attach notes.pdf

  # Create from a file (batch mode)
  redmine-desktop create --from-file issues.yml`,
	RunE: runCreate,
}

var (
	createSpec     issueSpec
	createFromFile string
)

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createSpec.Project, "project", "p", "", "Project id, identifier or name")
	createCmd.Flags().StringVarP(&createSpec.Subject, "subject", "t", "", "Issue subject")
	createCmd.Flags().StringVarP(&createSpec.Description, "description", "d", "", "Issue description")
	createCmd.Flags().IntVar(&createSpec.Tracker, "tracker", 0, "Tracker id")
	createCmd.Flags().StringVar(&createSpec.Priority, "priority", "", "Priority name or id")
	createCmd.Flags().StringVarP(&createSpec.Assignee, "assignee", "a", "", "Assignee user id or 'me'")
	createCmd.Flags().StringVarP(&createSpec.Version, "version", "v", "", "Target version name or id")
	createCmd.Flags().StringVar(&createSpec.Start, "start", "", "Start date (YYYY-MM-DD or @today expression)")
	createCmd.Flags().StringVar(&createSpec.Due, "due", "", "Due date (YYYY-MM-DD or @today expression)")
	createCmd.Flags().StringSliceVar(&createSpec.Attach, "attach", nil, "Files to attach")
	createCmd.Flags().StringVarP(&createFromFile, "from-file", "f", "", "Create issues from a YAML file")
}

func runCreate(cmd *cobra.Command, _ []string) error {
	specs := []issueSpec{createSpec}
	if createFromFile != "" {
		var err error
		if specs, err = loadIssueSpecs(createFromFile); err != nil {
			return err
		}
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
	res := s.resolver(ctx)
	defaultProject := max(s.app.Selection().ProjectID, 0)

	out := cmd.OutOrStdout()
	failed := 0
	for _, spec := range specs {
		issue, err := createOne(cmd, s, res, spec, defaultProject)
		if err != nil {
			if len(specs) == 1 {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to create '%s': %v\n", spec.Subject, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "Created issue #%d: %s\n", issue.ID, s.urls.IssueURL(issue.ID))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d issues could not be created", failed, len(specs))
	}
	return nil
}

func createOne(cmd *cobra.Command, s *session, res resolver, spec issueSpec, defaultProject int) (*redmine.Issue, error) {
	fields, err := res.createFields(spec, defaultProject)
	if err != nil {
		return nil, err
	}
	if fields.Uploads, err = uploadFiles(cmd.Context(), s, spec.Attach); err != nil {
		return nil, err
	}
	return s.app.CreateIssue(cmd.Context(), fields)
}

// loadIssueSpecs reads a YAML list of issues, or a document with an issues key
func loadIssueSpecs(path string) ([]issueSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var specs []issueSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		var doc struct {
			Issues []issueSpec `yaml:"issues"`
		}
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		specs = doc.Issues
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no issues found in %s", path)
	}
	return specs, nil
}
