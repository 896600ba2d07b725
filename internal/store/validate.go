package store

import "regexp"

// emailPattern is deliberately lax: a non-whitespace local part, an "@", and
// a non-whitespace domain containing a dot. Internationalized addresses are
// not a concern for this capture flow.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether candidate looks like a deliverable address.
// It has no side effects and applies no length bound; request body limits are
// enforced upstream.
func ValidateEmail(candidate string) bool {
	return emailPattern.MatchString(candidate)
}
