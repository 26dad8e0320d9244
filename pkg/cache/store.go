// Package cache provides the durable key/value store that survives restarts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
)

// Logical keys persisted by the client
const (
	KeyIssues                = "issues"
	KeyFollowedIssueIDs      = "followed_issue_ids"
	KeyActiveVersionIDs      = "active_version_ids"
	KeyInitializedProjectIDs = "initialized_project_ids"
	KeyPinnedVersionIDs      = "pinned_version_ids"
	KeyVersionsWithIssues    = "versions_with_issues"
	KeySelection             = "selection"
)

// ErrClosed is returned by a store used after Close
var ErrClosed = errors.New("cache store is closed")

// Store is a durable key/value store. Every Put is a full-value replace.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// LoadJSON decodes the value stored under key.
// A missing, unreadable or corrupt value yields def and false.
func LoadJSON[T any](ctx context.Context, s Store, key string, def T) (T, bool) {
	if s == nil {
		return def, false
	}
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok || len(data) == 0 {
		return def, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, false
	}
	return v, true
}

// EncodeJSON serializes v for storage
func EncodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// SaveJSON serializes v and writes it synchronously
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, data)
}

// IDSet is a set of integer ids encoded as a sorted JSON array
type IDSet map[int]struct{}

// NewIDSet creates a set holding ids
func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether the set changed
func (s IDSet) Add(id int) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether the set changed
func (s IDSet) Remove(id int) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Sorted returns the ids in ascending order
func (s IDSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a copy of the set
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted array
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of ids
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
