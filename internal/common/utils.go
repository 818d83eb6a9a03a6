package common

import "strings"

// HasAnyPrefix returns true if s starts with any of the prefixes, ignoring
// case. Empty prefixes never match.
func HasAnyPrefix(s string, prefixes ...string) bool {
	s = strings.ToLower(s)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
