package filter

import (
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Bucket is the coarse progress class of a status
type Bucket int

const (
	BucketDev Bucket = iota
	BucketDone
	BucketVerified
)

// String returns the bucket name
func (b Bucket) String() string {
	switch b {
	case BucketDone:
		return "done"
	case BucketVerified:
		return "verified"
	default:
		return "dev"
	}
}

// Classify returns the bucket of a status name. Verified takes precedence over done.
func (w Workflow) Classify(statusName string) Bucket {
	if w.IsVerified(statusName) {
		return BucketVerified
	}
	if w.DoneMarker != "" && containsMarker(statusName, w.DoneMarker) {
		return BucketDone
	}
	return BucketDev
}

// StatusCounts counts issues per bucket
type StatusCounts struct {
	Dev      int `json:"dev"`
	Done     int `json:"done"`
	Verified int `json:"verified"`
}

// Total returns the sum of every bucket
func (c StatusCounts) Total() int {
	return c.Dev + c.Done + c.Verified
}

func (c *StatusCounts) add(b Bucket) {
	switch b {
	case BucketDone:
		c.Done++
	case BucketVerified:
		c.Verified++
	default:
		c.Dev++
	}
}

// Counts are the sidebar and header counters
type Counts struct {
	// ByVersion buckets issues per version, honouring the selected assignee
	ByVersion map[int]StatusCounts
	// VersionIssues counts every cached issue per version
	VersionIssues map[int]int
	Followed      StatusCounts
	FollowedTotal int
	Assigned      StatusCounts
	// ByStatus counts the issues of the current view per status name
	ByStatus map[string]int
}

// ComputeCounts derives every counter from the collection and the current view
func ComputeCounts(issues []redmine.Issue, sel Selection, env Context, view View) Counts {
	counts := Counts{
		ByVersion:     make(map[int]StatusCounts),
		VersionIssues: make(map[int]int),
		FollowedTotal: len(env.FollowedIDs),
		ByStatus:      make(map[string]int),
	}

	for i := range issues {
		issue := &issues[i]
		bucket := env.Workflow.Classify(issue.Status.Name)

		if vid := issue.VersionID(); vid != 0 {
			counts.VersionIssues[vid]++
			if sel.AssigneeID == 0 || issue.AssigneeID() == sel.AssigneeID {
				c := counts.ByVersion[vid]
				c.add(bucket)
				counts.ByVersion[vid] = c
			}
		}
		if env.FollowedIDs.Has(issue.ID) {
			counts.Followed.add(bucket)
		}
		if env.CurrentUserID != 0 && issue.AssigneeID() == env.CurrentUserID {
			counts.Assigned.add(bucket)
		}
	}

	for _, k := range view.Keys {
		for _, issue := range view.Groups[k] {
			counts.ByStatus[issue.Status.Name]++
		}
	}
	return counts
}

// Badge counts the open issues assigned to userID
func Badge(issues []redmine.Issue, userID int, w Workflow) int {
	if userID == 0 {
		return 0
	}
	n := 0
	for i := range issues {
		if issues[i].AssigneeID() == userID && !w.IsClosed(issues[i].Status.Name) {
			n++
		}
	}
	return n
}
