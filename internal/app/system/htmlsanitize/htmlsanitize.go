// Package htmlsanitize cleans project descriptions with bluemonday.
//
// Descriptions are HTML fragments and may carry basic formatting. Comments
// and messages are plain text and are stored as typed; they do not pass
// through here.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func richPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.AllowElements("u", "s", "sub", "sup", "mark")
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// Sanitize removes dangerous elements and attributes while keeping basic
// formatting such as emphasis, lists, code and links. The result is trimmed.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(richPolicy().Sanitize(s))
}
