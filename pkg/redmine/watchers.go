package redmine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultAssistingWatchersField is the custom field name used when none is configured
const DefaultAssistingWatchersField = "协助者"

// AssistingWatchersField returns the custom field holding the assisting watchers, or nil
func AssistingWatchersField(issue *Issue, fieldName string) *CustomField {
	if issue == nil {
		return nil
	}
	if fieldName == "" {
		fieldName = DefaultAssistingWatchersField
	}
	for i := range issue.CustomFields {
		if issue.CustomFields[i].Name == fieldName {
			return &issue.CustomFields[i]
		}
	}
	return nil
}

// AssistingWatcherIDs parses the assisting watcher user ids of an issue.
// The value may hold id strings, numbers or {id} objects; invalid entries are skipped.
func AssistingWatcherIDs(issue *Issue, fieldName string) []int {
	field := AssistingWatchersField(issue, fieldName)
	if field == nil || len(field.Value) == 0 {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(field.Value, &entries); err != nil {
		return nil
	}

	ids := make([]int, 0, len(entries))
	for _, raw := range entries {
		if id := parseUserID(raw); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseUserID(raw json.RawMessage) int {
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.ID) > 0 {
		raw = obj.ID
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil {
			return n
		}
	}
	return 0
}

// AssistingWatchersUpdate builds the custom_fields payload that replaces the assisting watchers
func AssistingWatchersUpdate(fieldID int, userIDs []int) []CustomFieldValue {
	values := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		values = append(values, strconv.Itoa(id))
	}
	return []CustomFieldValue{{ID: fieldID, Value: values}}
}
