package redmine

import (
	"fmt"
	"net/url"
	"strings"
)

// URLBuilder helps build Redmine web URLs
type URLBuilder struct {
	base string
}

// NewURLBuilder creates a new URL builder for the given server base URL
func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{base: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// IssueURL returns the web URL of an issue
func (b *URLBuilder) IssueURL(id int) string {
	if b.base == "" || id <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/issues/%d", b.base, id)
}

// VersionURL returns the web URL of a version
func (b *URLBuilder) VersionURL(id int) string {
	if b.base == "" || id <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/versions/%d", b.base, id)
}

// ProjectURL returns the web URL of a project by identifier
func (b *URLBuilder) ProjectURL(identifier string) string {
	if b.base == "" || identifier == "" {
		return ""
	}
	return fmt.Sprintf("%s/projects/%s", b.base, url.PathEscape(identifier))
}
