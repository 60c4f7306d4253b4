package scim

import "time"

// timeFormat is RFC 7643's dateTime representation, an ISO-8601 timestamp
// in UTC.
const timeFormat = "2006-01-02T15:04:05Z07:00"

// FormatTime renders t the way every meta.created/meta.lastModified field
// in this bridge is rendered.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// RowFallback carries the cache-row fields the formatter falls back to
// when the stored SCIM view is missing them (spec.md §4.H).
type RowFallback struct {
	ID             string
	SamAccountName string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FormatUser builds the User envelope: schemas, the stored view's
// top-level fields, and a meta block. Fields absent from view fall back to
// row data.
func FormatUser(view Resource, row RowFallback, baseURL string) Resource {
	out := Clone(view)
	out["schemas"] = []any{SchemaUser}
	out["id"] = row.ID

	if _, ok := GetString(out, "userName"); !ok {
		if row.SamAccountName != "" {
			out["userName"] = row.SamAccountName
		}
	}

	out["meta"] = Resource{
		"resourceType": "User",
		"created":      FormatTime(row.CreatedAt),
		"lastModified": FormatTime(row.UpdatedAt),
		"location":     baseURL + "/scim/v2/Users/" + row.ID,
	}

	return out
}

// FormatList builds the ListResponse envelope.
func FormatList(resources []Resource, total, startIndex, itemsPerPage int) Resource {
	items := make([]any, len(resources))
	for i, r := range resources {
		items[i] = r
	}
	return Resource{
		"schemas":      []any{SchemaListResponse},
		"totalResults": total,
		"startIndex":   startIndex,
		"itemsPerPage": itemsPerPage,
		"Resources":    items,
	}
}

// FormatError builds the Error envelope for err.
func FormatError(err *Error) Resource {
	out := Resource{
		"schemas": []any{SchemaError},
		"status":  err.Status,
		"detail":  err.Detail,
	}
	if err.ScimType != "" {
		out["scimType"] = err.ScimType
	}
	return out
}
