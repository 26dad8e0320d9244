package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cli/go-gh/v2/pkg/tableprinter"
	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/jheroy/Redmine-desktop/pkg/app"
	"github.com/jheroy/Redmine-desktop/pkg/filter"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// FormatType represents the output format type
type FormatType int

const (
	// FormatTable outputs as a formatted table
	FormatTable FormatType = iota
	// FormatJSON outputs as JSON
	FormatJSON
	// FormatCSV outputs as CSV
	FormatCSV
	// FormatQuiet outputs minimal information
	FormatQuiet
)

// ParseFormat returns the format named by s
func ParseFormat(s string) (FormatType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "quiet":
		return FormatQuiet, nil
	default:
		return FormatTable, fmt.Errorf("invalid output format '%s': must be table, json, csv or quiet", s)
	}
}

const defaultWidth = 120

// Formatter handles output formatting
type Formatter struct {
	format FormatType
	writer io.Writer
	isTTY  bool
	width  int
	now    func() time.Time
}

// NewFormatter creates a formatter writing to the terminal
func NewFormatter(format FormatType) *Formatter {
	t := term.FromEnv()
	width := defaultWidth
	if w, _, err := t.Size(); err == nil && w > 0 {
		width = w
	}
	isTTY := t.IsTerminalOutput()
	if !isTTY {
		color.NoColor = true
	}
	return &Formatter{
		format: format,
		writer: os.Stdout,
		isTTY:  isTTY,
		width:  width,
		now:    time.Now,
	}
}

// NewFormatterWithWriter creates a new formatter with custom writer
func NewFormatterWithWriter(format FormatType, writer io.Writer) *Formatter {
	return &Formatter{
		format: format,
		writer: writer,
		width:  defaultWidth,
		now:    time.Now,
	}
}

// Options for rendering issues
type Options struct {
	Members []redmine.Member
	URLs    *redmine.URLBuilder
	// AssistingWatchersField names the custom field rendered as assisting watchers
	AssistingWatchersField string
}

func (o Options) issueURL(id int) string {
	if o.URLs == nil {
		return "#" + strconv.Itoa(id)
	}
	return o.URLs.IssueURL(id)
}

var (
	groupHeader = color.New(color.Bold, color.FgCyan).SprintFunc()
	dimmed      = color.New(color.Faint).SprintFunc()
	marker      = color.New(color.FgYellow).SprintFunc()
)

func (f *Formatter) ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, f.now(), "ago", "from now")
}

func (f *Formatter) encodeJSON(v interface{}) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func assigneeName(issue *redmine.Issue) string {
	if issue.AssignedTo == nil {
		return filter.Unassigned
	}
	return issue.AssignedTo.Name
}

func versionName(issue *redmine.Issue) string {
	if issue.FixedVersion == nil {
		return ""
	}
	return issue.FixedVersion.Name
}

// FormatView renders a derived view grouped by its keys
func (f *Formatter) FormatView(view filter.View) error {
	switch f.format {
	case FormatQuiet:
		for _, issue := range view.Issues() {
			if _, err := fmt.Fprintln(f.writer, issue.ID); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		return f.formatViewJSON(view)
	case FormatCSV:
		return f.formatViewCSV(view)
	default:
		return f.formatViewTable(view)
	}
}

type jsonGroup struct {
	Key    string          `json:"key"`
	Issues []redmine.Issue `json:"issues"`
}

func (f *Formatter) formatViewJSON(view filter.View) error {
	groups := make([]jsonGroup, 0, len(view.Keys))
	for _, k := range view.Keys {
		groups = append(groups, jsonGroup{Key: k, Issues: view.Groups[k]})
	}
	return f.encodeJSON(map[string]interface{}{
		"total":  view.Total,
		"groups": groups,
	})
}

func (f *Formatter) formatViewCSV(view filter.View) error {
	w := csv.NewWriter(f.writer)
	defer w.Flush()

	headers := []string{"Group", "ID", "Tracker", "Status", "Priority", "Subject", "Assignee", "Version", "Updated"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, k := range view.Keys {
		for _, issue := range view.Groups[k] {
			record := []string{
				k,
				strconv.Itoa(issue.ID),
				issue.Tracker.Name,
				issue.Status.Name,
				issue.Priority.Name,
				issue.Subject,
				assigneeName(&issue),
				versionName(&issue),
				issue.UpdatedOn.Format(time.RFC3339),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

func (f *Formatter) formatViewTable(view filter.View) error {
	if view.Total == 0 {
		_, err := fmt.Fprintln(f.writer, "No issues match the current selection")
		return err
	}

	for i, k := range view.Keys {
		issues := view.Groups[k]
		if i > 0 {
			fmt.Fprintln(f.writer)
		}
		fmt.Fprintf(f.writer, "%s %s\n", groupHeader(k), dimmed(fmt.Sprintf("(%d)", len(issues))))

		tp := tableprinter.New(f.writer, f.isTTY, f.width)
		tp.AddHeader([]string{"ID", "TRACKER", "STATUS", "PRIORITY", "SUBJECT", "ASSIGNEE", "UPDATED"})
		for _, issue := range issues {
			tp.AddField("#" + strconv.Itoa(issue.ID))
			tp.AddField(issue.Tracker.Name)
			tp.AddField(issue.Status.Name)
			tp.AddField(issue.Priority.Name)
			tp.AddField(issue.Subject)
			tp.AddField(assigneeName(&issue))
			tp.AddField(f.ago(issue.UpdatedOn))
			tp.EndRow()
		}
		if err := tp.Render(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(f.writer, "\n%d issues\n", view.Total)
	return err
}

// FormatIssue renders one issue with its journals, attachments and watchers
func (f *Formatter) FormatIssue(issue *redmine.Issue, opts Options) error {
	switch f.format {
	case FormatQuiet:
		_, err := fmt.Fprintln(f.writer, opts.issueURL(issue.ID))
		return err
	case FormatJSON:
		return f.encodeJSON(issue)
	case FormatCSV:
		return f.formatViewCSV(filter.Group([]redmine.Issue{*issue}, filter.GroupByStatus, nil))
	default:
		return f.formatIssueTable(issue, opts)
	}
}

func (f *Formatter) formatIssueTable(issue *redmine.Issue, opts Options) error {
	w := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\n\n", groupHeader(fmt.Sprintf("#%d %s", issue.ID, issue.Subject)))
	if issue.Project != nil {
		fmt.Fprintf(w, "Project:\t%s\n", issue.Project.Name)
	}
	fmt.Fprintf(w, "Tracker:\t%s\n", issue.Tracker.Name)
	fmt.Fprintf(w, "Status:\t%s\n", issue.Status.Name)
	fmt.Fprintf(w, "Priority:\t%s\n", issue.Priority.Name)
	fmt.Fprintf(w, "Assignee:\t%s\n", assigneeName(issue))
	if v := versionName(issue); v != "" {
		fmt.Fprintf(w, "Version:\t%s\n", v)
	}
	fmt.Fprintf(w, "Author:\t%s\n", issue.Author.Name)
	if issue.StartDate != "" {
		fmt.Fprintf(w, "Start:\t%s\n", issue.StartDate)
	}
	if issue.DueDate != "" {
		fmt.Fprintf(w, "Due:\t%s\n", issue.DueDate)
	}
	fmt.Fprintf(w, "Done:\t%d%%\n", issue.DoneRatio)
	fmt.Fprintf(w, "Updated:\t%s\n", f.ago(issue.UpdatedOn))
	if opts.URLs != nil {
		u := opts.issueURL(issue.ID)
		fmt.Fprintf(w, "URL:\t%s\n", u)
	}

	if len(issue.Watchers) > 0 {
		names := make([]string, len(issue.Watchers))
		for i, watcher := range issue.Watchers {
			names[i] = watcher.Name
		}
		fmt.Fprintf(w, "Watchers:\t%s\n", strings.Join(names, ", "))
	}
	if ids := redmine.AssistingWatcherIDs(issue, opts.AssistingWatchersField); len(ids) > 0 {
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = filter.MemberName(opts.Members, id)
			if names[i] == "" {
				names[i] = "#" + strconv.Itoa(id)
			}
		}
		fmt.Fprintf(w, "Assisting:\t%s\n", strings.Join(names, ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if strings.TrimSpace(issue.Description) != "" {
		fmt.Fprintf(f.writer, "\n%s\n", strings.TrimSpace(issue.Description))
	}

	if len(issue.Attachments) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", groupHeader("Attachments"))
		tp := tableprinter.New(f.writer, f.isTTY, f.width)
		for _, a := range issue.Attachments {
			tp.AddField(a.Filename)
			tp.AddField(humanize.Bytes(uint64(max(a.Filesize, 0))))
			tp.AddField(a.Author.Name)
			tp.AddField(f.ago(a.CreatedOn))
			tp.EndRow()
		}
		if err := tp.Render(); err != nil {
			return err
		}
	}

	if len(issue.Journals) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", groupHeader("History"))
		for _, j := range issue.Journals {
			fmt.Fprintf(f.writer, "%s %s\n", j.User.Name, dimmed(f.ago(j.CreatedOn)))
			for _, d := range j.Details {
				fmt.Fprintf(f.writer, "  %s: %s -> %s\n", d.Name, d.OldValue, d.NewValue)
			}
			if notes := strings.TrimSpace(j.Notes); notes != "" {
				for _, line := range strings.Split(notes, "\n") {
					fmt.Fprintf(f.writer, "  %s\n", line)
				}
			}
		}
	}
	return nil
}

// FormatVersions renders the versions of a project with their tracking state
func (f *Formatter) FormatVersions(entries []app.VersionEntry, counts filter.Counts) error {
	switch f.format {
	case FormatQuiet:
		for _, e := range entries {
			if _, err := fmt.Fprintln(f.writer, e.ID); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		return f.encodeJSON(entries)
	case FormatCSV:
		w := csv.NewWriter(f.writer)
		defer w.Flush()
		if err := w.Write([]string{"ID", "Name", "Status", "Active", "Pinned", "Issues"}); err != nil {
			return err
		}
		for _, e := range entries {
			record := []string{
				strconv.Itoa(e.ID),
				e.Name,
				e.Status,
				strconv.FormatBool(e.Active),
				strconv.FormatBool(e.Pinned),
				strconv.Itoa(counts.VersionIssues[e.ID]),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return w.Error()
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(f.writer, "No versions")
		return err
	}
	tp := tableprinter.New(f.writer, f.isTTY, f.width)
	tp.AddHeader([]string{"", "ID", "NAME", "STATUS", "DEV", "DONE", "VERIFIED", "DUE"})
	for _, e := range entries {
		flags := ""
		if e.Pinned {
			flags += "^"
		}
		if e.Active {
			flags += "*"
		}
		c := counts.ByVersion[e.ID]
		tp.AddField(marker(flags))
		tp.AddField(strconv.Itoa(e.ID))
		tp.AddField(e.Name)
		tp.AddField(e.Status)
		tp.AddField(strconv.Itoa(c.Dev))
		tp.AddField(strconv.Itoa(c.Done))
		tp.AddField(strconv.Itoa(c.Verified))
		tp.AddField(e.DueDate)
		tp.EndRow()
	}
	return tp.Render()
}

// FormatSummary renders the followed and assigned counters and the badge
func (f *Formatter) FormatSummary(counts filter.Counts, badge int) error {
	switch f.format {
	case FormatJSON:
		return f.encodeJSON(map[string]interface{}{
			"followed":       counts.Followed,
			"followed_total": counts.FollowedTotal,
			"assigned":       counts.Assigned,
			"badge":          badge,
		})
	case FormatQuiet:
		_, err := fmt.Fprintln(f.writer, badge)
		return err
	}

	w := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "View\tDev\tDone\tVerified\n")
	fmt.Fprintf(w, "Followed (%d)\t%d\t%d\t%d\n", counts.FollowedTotal, counts.Followed.Dev, counts.Followed.Done, counts.Followed.Verified)
	fmt.Fprintf(w, "Assigned\t%d\t%d\t%d\n", counts.Assigned.Dev, counts.Assigned.Done, counts.Assigned.Verified)
	fmt.Fprintf(w, "\nOpen issues assigned to you:\t%d\n", badge)
	return w.Flush()
}

// FormatError formats an error for output
func (f *Formatter) FormatError(err error) error {
	if f.format == FormatJSON {
		errorData := map[string]string{
			"error": err.Error(),
		}

		var appErr *app.Error
		var apiErr *redmine.APIError
		if errors.As(err, &appErr) {
			errorData["kind"] = appErr.Kind.String()
		}
		if errors.As(err, &apiErr) {
			errorData["type"] = apiErr.Type.String()
			if apiErr.Suggestion != "" {
				errorData["suggestion"] = apiErr.Suggestion
			}
		}

		return f.encodeJSON(errorData)
	}

	// For table and quiet formats, just print the error
	_, printErr := fmt.Fprintln(f.writer, err.Error())
	return printErr
}
