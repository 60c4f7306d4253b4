package scim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPatch_NoPathReplacesTopLevelFields(t *testing.T) {
	resource := Resource{"userName": "alice", "active": true}
	ops := []PatchOperation{
		{Op: "replace", Value: Resource{"active": false}},
	}
	out, changed := ApplyPatch(resource, ops)
	assert.Equal(t, false, out["active"])
	assert.Equal(t, "alice", out["userName"])
	assert.Equal(t, false, changed["active"])
	assert.Equal(t, true, resource["active"]) // original untouched
}

func TestApplyPatch_SimpleTopLevelSetAndRemove(t *testing.T) {
	resource := Resource{"displayName": "Old Name"}
	out, changed := ApplyPatch(resource, []PatchOperation{
		{Op: "replace", Path: "displayName", Value: "New Name"},
	})
	assert.Equal(t, "New Name", out["displayName"])
	assert.Equal(t, "New Name", changed["displayName"])

	out2, changed2 := ApplyPatch(out, []PatchOperation{
		{Op: "remove", Path: "displayName"},
	})
	_, ok := out2["displayName"]
	assert.False(t, ok)
	assert.Nil(t, changed2["displayName"])
}

func TestApplyPatch_DottedPathUpsertsParent(t *testing.T) {
	resource := Resource{}
	out, changed := ApplyPatch(resource, []PatchOperation{
		{Op: "replace", Path: "name.givenName", Value: "Alice"},
	})
	name, ok := GetObject(out, "name")
	require.True(t, ok)
	assert.Equal(t, "Alice", name["givenName"])
	assert.NotNil(t, changed["name"])
}

func TestApplyPatch_DottedPathPreservesSiblingFields(t *testing.T) {
	resource := Resource{"name": Resource{"givenName": "Alice", "familyName": "Ice"}}
	out, _ := ApplyPatch(resource, []PatchOperation{
		{Op: "replace", Path: "name.givenName", Value: "Alicia"},
	})
	name, _ := GetObject(out, "name")
	assert.Equal(t, "Alicia", name["givenName"])
	assert.Equal(t, "Ice", name["familyName"])
}

func TestApplyPatch_MultiValuedReplaceMatchingElement(t *testing.T) {
	resource := Resource{
		"emails": []any{
			Resource{"value": "old@work.com", "type": "work", "primary": true},
			Resource{"value": "home@example.com", "type": "home"},
		},
	}
	out, changed := ApplyPatch(resource, []PatchOperation{
		{Op: "replace", Path: `emails[type eq "work"].value`, Value: "new@work.com"},
	})
	emails := AsObjectSlice(out["emails"].([]any))
	require.Len(t, emails, 2)
	assert.Equal(t, "new@work.com", emails[0]["value"])
	assert.Equal(t, "home@example.com", emails[1]["value"])
	assert.NotNil(t, changed["emails"])
}

func TestApplyPatch_MultiValuedRemoveMatchingElement(t *testing.T) {
	resource := Resource{
		"emails": []any{
			Resource{"value": "a@work.com", "type": "work"},
			Resource{"value": "b@home.com", "type": "home"},
		},
	}
	out, _ := ApplyPatch(resource, []PatchOperation{
		{Op: "remove", Path: `emails[type eq "home"]`},
	})
	emails := AsObjectSlice(out["emails"].([]any))
	require.Len(t, emails, 1)
	assert.Equal(t, "a@work.com", emails[0]["value"])
}

func TestApplyPatch_MultiValuedAddSynthesizesElementWhenNoMatch(t *testing.T) {
	resource := Resource{"emails": []any{}}
	out, _ := ApplyPatch(resource, []PatchOperation{
		{Op: "add", Path: `emails[type eq "work"].value`, Value: "new@work.com"},
	})
	emails := AsObjectSlice(out["emails"].([]any))
	require.Len(t, emails, 1)
	assert.Equal(t, "work", emails[0]["type"])
	assert.Equal(t, "new@work.com", emails[0]["value"])
}

func TestApplyPatch_MalformedBracketFallsBackToSimple(t *testing.T) {
	resource := Resource{}
	out, changed := ApplyPatch(resource, []PatchOperation{
		{Op: "replace", Path: "emails[bad", Value: "x"},
	})
	assert.Equal(t, "x", out["emails[bad"])
	assert.Equal(t, "x", changed["emails[bad"])
}

func TestApplyPatch_EmptyOpsReturnsUnmutatedClone(t *testing.T) {
	resource := Resource{"userName": "alice"}
	out, changed := ApplyPatch(resource, nil)
	assert.Equal(t, resource, out)
	assert.Empty(t, changed)
}

func TestApplyPatch_MultipleOpsAppliedInOrder(t *testing.T) {
	resource := Resource{"active": true}
	out, _ := ApplyPatch(resource, []PatchOperation{
		{Op: "replace", Path: "active", Value: false},
		{Op: "replace", Path: "active", Value: true},
	})
	assert.Equal(t, true, out["active"])
}
