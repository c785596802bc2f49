// Package normalize holds the canonical trimming and case rules for values
// that are stored or compared: emails, enum fields, tags and URL slugs.
package normalize

import "strings"

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Email is the storage and lookup form of an address.
func Email(s string) string { return lowerTrim(s) }

// Name trims a display name. Case is kept; use text.Fold for sort keys.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Language normalizes a project language ("Go " -> "go").
func Language(s string) string { return lowerTrim(s) }

// Visibility normalizes a project visibility value.
func Visibility(s string) string { return lowerTrim(s) }

// Theme normalizes a profile theme preference.
func Theme(s string) string { return lowerTrim(s) }

// Slug normalizes a community slug taken from a URL.
func Slug(s string) string { return lowerTrim(s) }

// Tag normalizes a single tag for filtering.
func Tag(s string) string { return lowerTrim(s) }

// Tags applies Tag to each entry, dropping empties and duplicates while
// keeping first-seen order. A nil or all-empty input returns an empty slice.
func Tags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = Tag(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Status normalizes an account status.
func Status(s string) string { return lowerTrim(s) }

// Role normalizes a role name.
func Role(s string) string { return lowerTrim(s) }

// QueryParam trims a free-form query parameter.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
