// Package scim implements the slice of RFC 7644 this bridge needs: the User
// resource shape, the filter subset of §3.4.2.2, the PATCH subset of
// §3.5.2, and the envelope formats of §3.4.2/§3.12.
package scim

import (
	"maps"
	"strings"
)

// Schema URIs mandated by RFC 7643/7644, used verbatim in every envelope.
const (
	SchemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaError        = "urn:ietf:params:scim:api:messages:2.0:Error"
	SchemaPatchOp      = "urn:ietf:params:scim:api:messages:2.0:PatchOp"

	ContentType = "application/scim+json"
)

// Resource is a SCIM resource represented as its natural dynamic JSON
// shape: a mapping of string to value, where a value may be nil, a bool,
// a float64/string, a []any, or a nested Resource. Modeling it this way
// (rather than a fixed struct) lets the patch applier and the attribute
// mapper preserve fields neither of them knows about, per the design note
// that a strongly-typed re-implementation must not let unmapped fields
// silently vanish on a round trip.
type Resource map[string]any

// Clone returns a deep copy of r so callers (chiefly the patch applier) can
// mutate the result without touching the caller's original.
func Clone(r Resource) Resource {
	return cloneValue(r).(Resource)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Resource:
		out := make(Resource, len(val))
		for k, vv := range val {
			out[k] = cloneValue(vv)
		}
		return out
	case map[string]any:
		out := make(Resource, len(val))
		for k, vv := range val {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// GetString reads a string field, tolerating absence or a type mismatch by
// reporting "not present" rather than panicking or returning a zero value
// a caller might mistake for a real empty string.
func GetString(r Resource, key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetBool reads a boolean field with the same absent/mismatch contract as
// GetString.
func GetBool(r Resource, key string) (bool, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetObject reads a nested object field as a Resource.
func GetObject(r Resource, key string) (Resource, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	switch val := v.(type) {
	case Resource:
		return val, true
	case map[string]any:
		return Resource(val), true
	default:
		return nil, false
	}
}

// GetSlice reads a list field as a raw []any so callers can inspect
// elements without assuming their shape.
func GetSlice(r Resource, key string) ([]any, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// AsObjectSlice converts a []any of element maps into []Resource, dropping
// (rather than failing on) elements that aren't objects.
func AsObjectSlice(items []any) []Resource {
	out := make([]Resource, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case Resource:
			out = append(out, v)
		case map[string]any:
			out = append(out, Resource(v))
		}
	}
	return out
}

// SetPath writes value at a shallow path: either a top-level key, or
// "parent.child" upserting parent as an object if it is missing or not an
// object.
func SetPath(r Resource, path string, value any) {
	if parent, child, ok := strings.Cut(path, "."); ok {
		EnsureObject(r, parent)[child] = value
		return
	}
	r[path] = value
}

// EnsureObject returns r[key] as a Resource, creating and installing an
// empty one if it is missing or of the wrong type.
func EnsureObject(r Resource, key string) Resource {
	if obj, ok := GetObject(r, key); ok {
		return obj
	}
	obj := Resource{}
	r[key] = obj
	return obj
}

// MergeInto copies every key of src into dst, overwriting existing keys.
func MergeInto(dst, src Resource) {
	maps.Copy(dst, src)
}

// NewUser builds the minimal SCIM User resource for a freshly assigned id.
func NewUser(id, userName string) Resource {
	return Resource{
		"schemas":  []any{SchemaUser},
		"id":       id,
		"userName": userName,
	}
}
