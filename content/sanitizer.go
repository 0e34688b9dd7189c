// Package content sanitizes variant content before it is stored.
package content

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/arloliu/vario/types"
)

// HTMLSanitizer strips unsafe markup with a bluemonday policy.
//
// bluemonday policies are safe for concurrent use once built.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

var _ types.ContentSanitizer = (*HTMLSanitizer)(nil)

// NewUGC keeps common formatting markup (links, lists, emphasis, images)
// and removes scripts, event handlers and styles.
func NewUGC() *HTMLSanitizer {
	return &HTMLSanitizer{policy: bluemonday.UGCPolicy()}
}

// NewStrict removes all markup and keeps only text.
func NewStrict() *HTMLSanitizer {
	return &HTMLSanitizer{policy: bluemonday.StrictPolicy()}
}

// NewWithPolicy wraps a caller-built bluemonday policy.
func NewWithPolicy(policy *bluemonday.Policy) *HTMLSanitizer {
	return &HTMLSanitizer{policy: policy}
}

// Sanitize returns content with disallowed markup removed.
func (s *HTMLSanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

// Passthrough leaves content untouched, for plain references such as blob ids.
type Passthrough struct{}

var _ types.ContentSanitizer = Passthrough{}

// Sanitize returns content unchanged.
func (Passthrough) Sanitize(content string) string {
	return content
}
