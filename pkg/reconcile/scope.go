// Package reconcile merges fetched issue batches into the cached issue collection.
package reconcile

import (
	"fmt"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
)

// ScopeKind identifies the fetch that produced an incoming batch
type ScopeKind int

const (
	// KindActiveVersions is a complete result for a set of versions; in-scope issues missing from it are pruned
	KindActiveVersions ScopeKind = iota
	// KindFollowed is the complete followed set of a user; merged additively
	KindFollowed
	// KindVersionOnDemand is the complete issue set of one version fetched on request; merged additively
	KindVersionOnDemand
	// KindDetail is a single issue with journals, attachments and watchers
	KindDetail
)

// String returns the scope kind name
func (k ScopeKind) String() string {
	switch k {
	case KindActiveVersions:
		return "active-versions"
	case KindFollowed:
		return "followed"
	case KindVersionOnDemand:
		return "version-on-demand"
	case KindDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Scope describes which part of the collection an incoming batch is authoritative for
type Scope struct {
	Kind ScopeKind
	// VersionIDs is the pruning scope of an active versions refresh
	VersionIDs cache.IDSet
	// UserID is the follower of a followed sync
	UserID int
	// VersionID is the version of an on-demand fetch
	VersionID int
	// IssueID is the issue of a detail fetch
	IssueID int
}

// ActiveVersionsRefresh scopes a batch that is complete for versionIDs
func ActiveVersionsRefresh(versionIDs ...int) Scope {
	return Scope{Kind: KindActiveVersions, VersionIDs: cache.NewIDSet(versionIDs...)}
}

// FollowedSync scopes the complete followed set of userID
func FollowedSync(userID int) Scope {
	return Scope{Kind: KindFollowed, UserID: userID}
}

// VersionOnDemand scopes the complete issue set of one version
func VersionOnDemand(versionID int) Scope {
	return Scope{Kind: KindVersionOnDemand, VersionID: versionID}
}

// SingleDetail scopes one detail fetch
func SingleDetail(issueID int) Scope {
	return Scope{Kind: KindDetail, IssueID: issueID}
}

// Prunes reports whether the scope removes missing in-scope issues
func (s Scope) Prunes() bool {
	return s.Kind == KindActiveVersions && len(s.VersionIDs) > 0
}

// String returns a short description of the scope used in logs
func (s Scope) String() string {
	switch s.Kind {
	case KindActiveVersions:
		return fmt.Sprintf("%s%v", s.Kind, s.VersionIDs.Sorted())
	case KindFollowed:
		return fmt.Sprintf("%s(user %d)", s.Kind, s.UserID)
	case KindVersionOnDemand:
		return fmt.Sprintf("%s(version %d)", s.Kind, s.VersionID)
	case KindDetail:
		return fmt.Sprintf("%s(issue %d)", s.Kind, s.IssueID)
	default:
		return s.Kind.String()
	}
}
