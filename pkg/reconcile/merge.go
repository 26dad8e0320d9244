package reconcile

import (
	"github.com/google/go-cmp/cmp"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// Result summarizes what a merge changed
type Result struct {
	Changed bool
	Added   []int
	Updated []int
	Removed []int
}

// MergeIssue merges an incoming copy of an issue over the cached copy.
//
//	id                              immutable
//	scalar and ref fields           incoming wins
//	custom_fields                   incoming wins when present, else cached kept
//	journals, attachments, watchers incoming wins only when non-empty
//	updated_on older than cached    cached record wins
func MergeIssue(old, incoming redmine.Issue) redmine.Issue {
	if isStale(old, incoming) {
		return old
	}

	merged := incoming
	merged.ID = old.ID
	if len(incoming.Journals) == 0 {
		merged.Journals = old.Journals
	}
	if len(incoming.Attachments) == 0 {
		merged.Attachments = old.Attachments
	}
	if len(incoming.Watchers) == 0 {
		merged.Watchers = old.Watchers
	}
	if incoming.CustomFields == nil {
		merged.CustomFields = old.CustomFields
	}
	return merged
}

// Equal reports whether two copies of an issue hold the same data.
// Timestamps compare by instant at every depth, including journals and attachments.
func Equal(a, b redmine.Issue) bool {
	return cmp.Equal(a, b)
}

func isStale(old, incoming redmine.Issue) bool {
	return !incoming.UpdatedOn.IsZero() && incoming.UpdatedOn.Before(old.UpdatedOn)
}

// detailDiffers reports whether a detail fetch carries news for the cached copy
func detailDiffers(old, detail redmine.Issue) bool {
	return !old.UpdatedOn.Equal(detail.UpdatedOn) ||
		len(old.Journals) != len(detail.Journals) ||
		len(old.Watchers) != len(detail.Watchers)
}

// MergeBatch merges incoming into existing according to scope and returns the new collection.
// existing is never modified. Existing order is kept; new issues are appended in incoming order.
func MergeBatch(existing, incoming []redmine.Issue, scope Scope) ([]redmine.Issue, Result) {
	if scope.Kind == KindDetail {
		return mergeDetail(existing, incoming, scope)
	}

	// Later duplicates within a batch overwrite earlier ones
	byID := make(map[int]redmine.Issue, len(incoming))
	order := make([]int, 0, len(incoming))
	for _, issue := range incoming {
		if _, seen := byID[issue.ID]; !seen {
			order = append(order, issue.ID)
		}
		byID[issue.ID] = issue
	}

	var result Result
	merged := make([]redmine.Issue, 0, len(existing)+len(incoming))
	matched := make(map[int]bool, len(incoming))

	for _, old := range existing {
		in, ok := byID[old.ID]
		if ok {
			matched[old.ID] = true
			m := MergeIssue(old, in)
			if !Equal(old, m) {
				result.Updated = append(result.Updated, old.ID)
			}
			merged = append(merged, m)
			continue
		}
		if scope.Prunes() && scope.VersionIDs.Has(old.VersionID()) {
			result.Removed = append(result.Removed, old.ID)
			continue
		}
		merged = append(merged, old)
	}

	for _, id := range order {
		if matched[id] {
			continue
		}
		merged = append(merged, byID[id])
		result.Added = append(result.Added, id)
	}

	result.Changed = len(result.Added) > 0 || len(result.Updated) > 0 || len(result.Removed) > 0
	if !result.Changed {
		return existing, result
	}
	return merged, result
}

func mergeDetail(existing, incoming []redmine.Issue, scope Scope) ([]redmine.Issue, Result) {
	var result Result
	var detail *redmine.Issue
	for i := range incoming {
		if scope.IssueID == 0 || incoming[i].ID == scope.IssueID {
			detail = &incoming[i]
			break
		}
	}
	if detail == nil {
		return existing, result
	}

	for i, old := range existing {
		if old.ID != detail.ID {
			continue
		}
		if isStale(old, *detail) || !detailDiffers(old, *detail) {
			return existing, result
		}
		merged := make([]redmine.Issue, len(existing))
		copy(merged, existing)
		merged[i] = *detail
		result.Changed = true
		result.Updated = []int{detail.ID}
		return merged, result
	}

	merged := make([]redmine.Issue, 0, len(existing)+1)
	merged = append(merged, existing...)
	merged = append(merged, *detail)
	result.Changed = true
	result.Added = []int{detail.ID}
	return merged, result
}
