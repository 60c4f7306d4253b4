package scim

import "strings"

// Patch operation verbs. ApplyPatch lowercases each operation's verb
// before comparing it with these constants.
const (
	PatchAdd     = "add"
	PatchRemove  = "remove"
	PatchReplace = "replace"
)

// PatchOperation is a single entry of a SCIM PATCH request body (RFC 7644
// §3.5.2).
type PatchOperation struct {
	Op    string
	Path  string // empty when the request omitted "path"
	Value any
}

// PatchRequest is the decoded PatchOp envelope body.
type PatchRequest struct {
	Schemas    []string
	Operations []PatchOperation
}

// ApplyPatch applies ops to resource in order and returns the new resource
// (the input is never mutated) plus a map of the top-level fields that
// were touched, keyed by field name with their post-update value. An empty
// op list returns an unmutated clone and an empty change map (identity).
func ApplyPatch(resource Resource, ops []PatchOperation) (Resource, map[string]any) {
	result := Clone(resource)
	changed := map[string]any{}

	for _, op := range ops {
		verb := strings.ToLower(op.Op)
		applyOne(result, verb, op.Path, op.Value, changed)
	}

	return result, changed
}

func applyOne(r Resource, verb, path string, value any, changed map[string]any) {
	switch {
	case path == "":
		applyNoPath(r, verb, value, changed)
	case !strings.ContainsAny(path, ".["):
		applySimple(r, verb, path, value, changed)
	case strings.Contains(path, "["):
		if applyMultiValued(r, verb, path, value, changed) {
			return
		}
		// malformed bracket expression: fall through to single-key treatment
		applySimple(r, verb, path, value, changed)
	case strings.Contains(path, "."):
		applyDotted(r, verb, path, value, changed)
	default:
		applySimple(r, verb, path, value, changed)
	}
}

// applyNoPath handles case 1: value must be an object; each key/value pair
// is written into the resource top level. add and replace are identical
// here; remove with no path is a no-op.
func applyNoPath(r Resource, verb string, value any, changed map[string]any) {
	if verb == PatchRemove {
		return
	}
	obj, ok := value.(Resource)
	if !ok {
		if m, ok2 := value.(map[string]any); ok2 {
			obj = Resource(m)
		} else {
			return
		}
	}
	for k, v := range obj {
		r[k] = v
		changed[k] = r[k]
	}
}

// applySimple handles case 2: a top-level key with no dots or brackets.
func applySimple(r Resource, verb, key string, value any, changed map[string]any) {
	if verb == PatchRemove {
		delete(r, key)
		changed[key] = nil
		return
	}
	r[key] = value
	changed[key] = r[key]
}

// applyDotted handles case 4: a two-level dotted path, e.g. "name.givenName".
func applyDotted(r Resource, verb, path string, value any, changed map[string]any) {
	parent, child, ok := strings.Cut(path, ".")
	if !ok {
		applySimple(r, verb, path, value, changed)
		return
	}
	obj := EnsureObject(r, parent)
	if verb == PatchRemove {
		delete(obj, child)
	} else {
		obj[child] = value
	}
	changed[parent] = r[parent]
}

// applyMultiValued handles case 3: attr[filter] or attr[filter].subAttr.
// It returns false if path does not actually match that shape, so the
// caller can fall back to single-key treatment (case 5).
func applyMultiValued(r Resource, verb, path string, value any, changed map[string]any) bool {
	openIdx := strings.Index(path, "[")
	closeIdx := strings.Index(path, "]")
	if openIdx < 0 || closeIdx < openIdx {
		return false
	}
	attr := path[:openIdx]
	filterExpr := path[openIdx+1 : closeIdx]
	rest := path[closeIdx+1:]

	filterName, filterValue, ok := parseSimpleFilterExpr(filterExpr)
	if !ok || attr == "" {
		return false
	}

	var subAttr string
	if strings.HasPrefix(rest, ".") {
		subAttr = rest[1:]
	} else if rest != "" {
		return false
	}

	items, _ := GetSlice(r, attr)
	elements := AsObjectSlice(items)

	matches := func(el Resource) bool {
		v, ok := el[filterName]
		if !ok {
			return false
		}
		return valuesEqual(v, filterValue)
	}

	if verb == PatchRemove {
		kept := make([]any, 0, len(elements))
		for _, el := range elements {
			if !matches(el) {
				kept = append(kept, el)
			}
		}
		r[attr] = kept
		changed[attr] = r[attr]
		return true
	}

	idx := -1
	for i, el := range elements {
		if matches(el) {
			idx = i
			break
		}
	}

	if idx == -1 {
		// Synthesize a new element from the filter predicate and append.
		// This matches observed IdP behavior for multi-valued add/replace
		// against a filter that doesn't currently match anything; it is
		// not mandated by the RFC (spec.md §9 Open Question) but is
		// preserved deliberately.
		newElement := Resource{filterName: filterValue}
		applyElementValue(newElement, subAttr, value)
		elements = append(elements, newElement)
	} else {
		applyElementValue(elements[idx], subAttr, value)
	}

	out := make([]any, len(elements))
	for i, el := range elements {
		out[i] = el
	}
	r[attr] = out
	changed[attr] = r[attr]
	return true
}

// applyElementValue sets subAttr on el if present, otherwise merges value
// (expected to be an object) into el.
func applyElementValue(el Resource, subAttr string, value any) {
	if subAttr != "" {
		el[subAttr] = value
		return
	}
	if obj, ok := value.(Resource); ok {
		MergeInto(el, obj)
		return
	}
	if m, ok := value.(map[string]any); ok {
		MergeInto(el, Resource(m))
	}
}

// parseSimpleFilterExpr parses "name eq \"value\"" or "name eq value" where
// an unquoted value is only accepted as the literal true/false booleans.
func parseSimpleFilterExpr(expr string) (name string, value any, ok bool) {
	fields := strings.Fields(expr)
	if len(fields) != 3 || !strings.EqualFold(fields[1], "eq") {
		return "", nil, false
	}
	name = fields[0]
	tok := fields[2]
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		return name, tok[1 : len(tok)-1], true
	}
	switch tok {
	case "true":
		return name, true, true
	case "false":
		return name, false, true
	}
	return "", nil, false
}

func valuesEqual(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return a == b
}
