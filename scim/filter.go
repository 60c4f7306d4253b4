package scim

import (
	"strings"
)

// Op is one of the RFC 7644 §3.4.2.2 comparison operators this bridge
// recognizes. "pr" (present) takes no value.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpCo Op = "co"
	OpSw Op = "sw"
	OpEw Op = "ew"
	OpPr Op = "pr"
	OpGt Op = "gt"
	OpGe Op = "ge"
	OpLt Op = "lt"
	OpLe Op = "le"
)

var validOps = map[string]Op{
	"eq": OpEq, "ne": OpNe, "co": OpCo, "sw": OpSw, "ew": OpEw,
	"pr": OpPr, "gt": OpGt, "ge": OpGe, "lt": OpLt, "le": OpLe,
}

// Column names a cache column a filter predicate can be evaluated against.
// Only attributes that map to a dedicated column are supported; everything
// else is "unsupported" and falls back to an unfiltered page (spec.md
// §4.B).
type Column string

const (
	ColumnID            Column = "id"
	ColumnSamAccountName Column = "sam_account_name"
)

// Predicate is a parsed, supported filter expression.
type Predicate struct {
	Column Column
	Op     Op
	Value  string
}

// ParseFilter parses the single-binary-comparison subset of RFC 7644
// filters this bridge supports: `<attr> <op> "<value>"`, whitespace
// between tokens is one or more spaces, <op> is case-insensitive, and
// <value> is a double-quoted string with no escape interpretation.
//
// It returns (nil, false) for anything outside that subset — compound
// filters, unrecognized attributes, "pr" (which this bridge has no use for
// since every supported attribute is always present), unparseable value
// literals — so the caller can fall back to an unfiltered page rather than
// fail the request, per spec.md §4.B.
func ParseFilter(raw string) (*Predicate, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	fields := splitOnSpaces(raw)
	if len(fields) != 3 {
		return nil, false
	}

	attr, opTok, valTok := fields[0], fields[1], fields[2]

	op, ok := validOps[strings.ToLower(opTok)]
	if !ok || op == OpPr {
		return nil, false
	}

	value, ok := unquote(valTok)
	if !ok {
		return nil, false
	}

	column, ok := columnFor(attr)
	if !ok {
		return nil, false
	}

	if column == ColumnSamAccountName {
		value = SamAccountNameFor(value)
	}

	return &Predicate{Column: column, Op: op, Value: value}, true
}

// SamAccountNameFor derives the sam_account_name a userName is stored under:
// the portion before the first "@", truncated to 20 characters (spec.md
// invariant 2). Both create and the userName filter path must apply this
// same transform, since the column never holds the raw userName verbatim.
func SamAccountNameFor(userName string) string {
	sam := userName
	if idx := strings.IndexByte(userName, '@'); idx >= 0 {
		sam = userName[:idx]
	}
	if len(sam) > 20 {
		sam = sam[:20]
	}
	return sam
}

// columnFor maps a SCIM attribute name to the cache column that backs it.
// externalId aliases the primary key (invariant 1: id == externalId on
// creation when supplied).
func columnFor(attr string) (Column, bool) {
	switch strings.ToLower(attr) {
	case "id":
		return ColumnID, true
	case "externalid":
		return ColumnID, true
	case "username":
		return ColumnSamAccountName, true
	default:
		return "", false
	}
}

// splitOnSpaces splits on runs of one or more ASCII spaces, unlike
// strings.Fields it does not treat tabs/newlines as separators — SCIM
// filters are single-line query values.
func splitOnSpaces(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}

// unquote strips a surrounding pair of double quotes. It rejects values
// containing an escaped quote (`\"`) — real IdP traffic observed against
// this bridge has not needed escape handling, and adding it without a
// concrete test case risks silently mismatching what an IdP actually
// sends (spec.md §9 Open Question).
func unquote(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", false
	}
	inner := tok[1 : len(tok)-1]
	if strings.Contains(inner, `\"`) {
		return "", false
	}
	return inner, true
}
