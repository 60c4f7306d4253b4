// Package directory builds and executes directory-management command-line
// invocations against Active Directory and translates their results to and
// from the SCIM attribute model.
package directory

// Params is the intermediate parameter set passed to a directory-tool
// invocation. Only the keys below are recognized; callers must never stuff
// arbitrary attributes in here.
type Params map[string]any

// Recognized parameter keys. Any other key is a programmer error.
const (
	SamAccountName    = "SamAccountName"
	GivenName         = "GivenName"
	Surname           = "Surname"
	EmailAddress      = "EmailAddress"
	DisplayName       = "DisplayName"
	Name              = "Name"
	Enabled           = "Enabled"
	EmployeeID        = "EmployeeID"
	Path              = "Path"
	UserPrincipalName = "UserPrincipalName"

	// AccountPassword is only ever populated on the create path and is
	// always redacted before it reaches an audit row.
	AccountPassword = "AccountPassword"
)

// Result is the parsed outcome of a single directory-tool invocation.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs int64
	// Object is the parsed JSON payload of stdout, when present and
	// well-formed. It is nil when stdout was empty, not JSON, or the
	// command failed.
	Object map[string]any
}

// Success reports whether the invocation exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// ObjectGUID extracts an AD objectGUID from a Result's parsed object,
// tolerating the two layouts the tooling emits: a bare string under
// "ObjectGUID", or a wrapper object {"value": "<guid>"}.
func (r Result) ObjectGUID() (string, bool) {
	if r.Object == nil {
		return "", false
	}
	raw, ok := r.Object["ObjectGUID"]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case map[string]any:
		if s, ok := v["value"].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
