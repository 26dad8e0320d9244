package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files and attach them to an issue",
	Long: `Upload files to the server. With --issue the uploads are attached to the
issue; otherwise the upload tokens are printed for later use.`,
	Example: `  # Attach a screenshot to an issue
  redmine-desktop upload screen.png --issue 123

  # Upload and print the token
  redmine-desktop upload build.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var (
	uploadIssue string
	uploadNote  string
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVarP(&uploadIssue, "issue", "i", "", "Issue to attach the files to")
	uploadCmd.Flags().StringVarP(&uploadNote, "message", "m", "", "Note added with the attachment")
}

func runUpload(cmd *cobra.Command, paths []string) error {
	issueID := 0
	if uploadIssue != "" {
		var err error
		if issueID, err = parseIssueID(uploadIssue); err != nil {
			return err
		}
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

	refs, err := uploadFiles(ctx, s, paths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if issueID == 0 {
		for _, ref := range refs {
			fmt.Fprintf(out, "%s\t%s\n", ref.Filename, ref.Token)
		}
		return nil
	}

	if err := s.app.UpdateIssue(ctx, issueID, &redmine.IssueFields{Uploads: refs, Notes: uploadNote}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Attached %d file(s) to issue #%d\n", len(refs), issueID)
	return nil
}

// uploadFiles uploads each path and returns the references to attach
func uploadFiles(ctx context.Context, s *session, paths []string) ([]redmine.UploadRef, error) {
	refs := make([]redmine.UploadRef, 0, len(paths))
	for _, path := range paths {
		ref, err := uploadFile(ctx, s, path)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func uploadFile(ctx context.Context, s *session, path string) (redmine.UploadRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return redmine.UploadRef{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return redmine.UploadRef{}, err
	}
	name := filepath.Base(path)
	s.log.Sugar().Debugf("uploading %s (%s)", name, humanize.Bytes(uint64(info.Size())))

	upload, err := s.app.UploadFile(ctx, name, f)
	if err != nil {
		return redmine.UploadRef{}, err
	}
	return redmine.UploadRef{
		Token:       upload.Token,
		Filename:    name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
	}, nil
}
