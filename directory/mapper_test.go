package directory

import (
	"testing"

	"github.com/nordforge/scim-ad-bridge/scim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScimToParams_UserPrincipalName(t *testing.T) {
	user := scim.Resource{
		"userName": "alice@ex.com",
		"name":     scim.Resource{"givenName": "Al", "familyName": "Ice"},
		"active":   true,
		"emails": []any{
			scim.Resource{"value": "alice@work.com", "primary": true},
			scim.Resource{"value": "other@work.com"},
		},
		"displayName": "Alice Ice",
		"externalId":  "abc123",
	}

	params := ScimToParams(user, "OU=Users,DC=example,DC=com")

	assert.Equal(t, "alice@ex.com", params[SamAccountName])
	assert.Equal(t, "alice@ex.com", params[UserPrincipalName])
	assert.Equal(t, "Al", params[GivenName])
	assert.Equal(t, "Ice", params[Surname])
	assert.Equal(t, "alice@work.com", params[EmailAddress]) // prefers primary
	assert.Equal(t, "Alice Ice", params[DisplayName])
	assert.Equal(t, true, params[Enabled])
	assert.Equal(t, "abc123", params[EmployeeID])
	assert.Equal(t, "Alice Ice", params[Name])
	assert.Equal(t, "OU=Users,DC=example,DC=com", params[Path])
}

func TestScimToParams_NoAtSign_NoUPN(t *testing.T) {
	params := ScimToParams(scim.Resource{"userName": "bob"}, "")
	assert.Equal(t, "bob", params[SamAccountName])
	_, hasUPN := params[UserPrincipalName]
	assert.False(t, hasUPN)
	assert.Equal(t, "bob", params[Name]) // falls back to SamAccountName
	_, hasPath := params[Path]
	assert.False(t, hasPath)
}

func TestScimToParams_FallsBackToFirstEmail(t *testing.T) {
	user := scim.Resource{
		"userName": "carol",
		"emails":   []any{scim.Resource{"value": "carol@work.com"}},
	}
	params := ScimToParams(user, "")
	assert.Equal(t, "carol@work.com", params[EmailAddress])
}

func TestAdToScim_MergesWithoutClobberingOtherNameFields(t *testing.T) {
	existing := scim.Resource{
		"userName": "old",
		"name":     scim.Resource{"givenName": "Old", "honorificPrefix": "Dr."},
	}
	ad := map[string]any{
		SamAccountName: "carol",
		GivenName:      "Carol",
		Surname:        "Danvers",
		EmailAddress:   "carol@example.com",
		Enabled:        true,
	}

	out := AdToScim(existing, ad)

	assert.Equal(t, "carol", out["userName"])
	name, ok := scim.GetObject(out, "name")
	require.True(t, ok)
	assert.Equal(t, "Carol", name["givenName"])
	assert.Equal(t, "Danvers", name["familyName"])
	assert.Equal(t, "Dr.", name["honorificPrefix"]) // preserved

	emails, ok := scim.GetSlice(out, "emails")
	require.True(t, ok)
	require.Len(t, emails, 1)
	email := scim.AsObjectSlice(emails)[0]
	assert.Equal(t, "carol@example.com", email["value"])
	assert.Equal(t, "work", email["type"])
	assert.Equal(t, true, email["primary"])

	assert.Equal(t, true, out["active"])

	// existing must be untouched
	assert.Equal(t, "old", existing["userName"])
}

func TestMapRoundTrip(t *testing.T) {
	user := scim.Resource{
		"userName": "dave@ex.com",
		"name":     scim.Resource{"givenName": "Dave", "familyName": "Grohl"},
		"emails":   []any{scim.Resource{"value": "dave@work.com", "primary": true}},
		"active":   true,
	}

	params := ScimToParams(user, "")
	adResult := map[string]any{
		SamAccountName: params[SamAccountName],
		GivenName:      params[GivenName],
		Surname:        params[Surname],
		EmailAddress:   params[EmailAddress],
		Enabled:        params[Enabled],
	}

	roundTripped := AdToScim(scim.Resource{}, adResult)

	assert.Equal(t, user["userName"], roundTripped["userName"])
	name, _ := scim.GetObject(roundTripped, "name")
	origName, _ := scim.GetObject(user, "name")
	assert.Equal(t, origName["givenName"], name["givenName"])
	assert.Equal(t, origName["familyName"], name["familyName"])
	assert.Equal(t, user["active"], roundTripped["active"])
}
