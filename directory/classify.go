package directory

import "strings"

// ClassifiedError is the classifier's verdict on a failed directory-tool
// invocation: an HTTP status, an optional scimType, and the original
// (non-lowercased) stderr as detail.
type ClassifiedError struct {
	Status   int
	ScimType string
	Detail   string
}

// Classify maps a directory-tool stderr string to an HTTP status and
// scimType, per spec.md §4.D. Matching is substring-based against the
// lowercased stderr, tried in order, first match wins.
func Classify(stderr string) ClassifiedError {
	lower := strings.ToLower(stderr)

	switch {
	case strings.Contains(lower, "already exists"), strings.Contains(lower, "already in use"):
		return ClassifiedError{Status: 409, ScimType: "uniqueness", Detail: stderr}

	case strings.Contains(lower, "cannot find an object with identity"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "no such object"):
		return ClassifiedError{Status: 404, ScimType: "noTarget", Detail: stderr}

	case strings.Contains(lower, "password") && (strings.Contains(lower, "complexity") ||
		strings.Contains(lower, "length") || strings.Contains(lower, "requirement")):
		return ClassifiedError{Status: 400, ScimType: "invalidValue", Detail: stderr}

	case strings.Contains(lower, "access") && strings.Contains(lower, "denied"):
		return ClassifiedError{Status: 403, Detail: stderr}

	case strings.Contains(lower, "invalid"), strings.Contains(lower, "bad request"):
		return ClassifiedError{Status: 400, ScimType: "invalidValue", Detail: stderr}

	default:
		return ClassifiedError{Status: 500, Detail: stderr}
	}
}

// IsAlreadyGone reports whether stderr indicates the target object no
// longer exists in AD, the signal the delete path treats as success
// rather than failure (spec.md §4.G).
func IsAlreadyGone(stderr string) bool {
	c := Classify(stderr)
	return c.ScimType == "noTarget"
}
