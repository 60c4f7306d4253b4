package scim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUser_FallsBackToRowUserName(t *testing.T) {
	row := RowFallback{
		ID:             "id-1",
		SamAccountName: "alice",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	out := FormatUser(Resource{"active": true}, row, "https://bridge.example.com")

	assert.Equal(t, "id-1", out["id"])
	assert.Equal(t, "alice", out["userName"])
	assert.Equal(t, []any{SchemaUser}, out["schemas"])

	meta, ok := GetObject(out, "meta")
	require.True(t, ok)
	assert.Equal(t, "User", meta["resourceType"])
	assert.Equal(t, "2026-01-02T03:04:05Z", meta["created"])
	assert.Equal(t, "https://bridge.example.com/scim/v2/Users/id-1", meta["location"])
}

func TestFormatUser_PrefersStoredUserName(t *testing.T) {
	row := RowFallback{ID: "id-2", SamAccountName: "fallback"}
	out := FormatUser(Resource{"userName": "stored"}, row, "https://x")
	assert.Equal(t, "stored", out["userName"])
}

func TestFormatUser_DoesNotMutateInput(t *testing.T) {
	view := Resource{"userName": "alice"}
	FormatUser(view, RowFallback{ID: "id-3"}, "https://x")
	_, hasSchemas := view["schemas"]
	assert.False(t, hasSchemas)
}

func TestFormatList(t *testing.T) {
	out := FormatList([]Resource{{"id": "1"}, {"id": "2"}}, 2, 1, 2)
	assert.Equal(t, []any{SchemaListResponse}, out["schemas"])
	assert.Equal(t, 2, out["totalResults"])
	assert.Equal(t, 1, out["startIndex"])
	assert.Equal(t, 2, out["itemsPerPage"])
	resources, ok := out["Resources"].([]any)
	require.True(t, ok)
	assert.Len(t, resources, 2)
}

func TestFormatError_OmitsScimTypeWhenEmpty(t *testing.T) {
	out := FormatError(ErrInternal("boom"))
	assert.Equal(t, 500, out["status"])
	assert.Equal(t, "boom", out["detail"])
	_, hasType := out["scimType"]
	assert.False(t, hasType)
}

func TestFormatError_IncludesScimType(t *testing.T) {
	out := FormatError(ErrUniqueness("dup"))
	assert.Equal(t, "uniqueness", out["scimType"])
	assert.Equal(t, 409, out["status"])
}
