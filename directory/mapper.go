package directory

import (
	"strings"

	"github.com/nordforge/scim-ad-bridge/scim"
)

// ScimToParams translates a SCIM User resource into a directory parameter
// set, following the field order in spec.md §4.A. baseOu is only supplied
// on the creation path; when present it is written to Path.
func ScimToParams(user scim.Resource, baseOu string) Params {
	p := Params{}

	userName, _ := scim.GetString(user, "userName")
	if userName != "" {
		p[SamAccountName] = userName
		if strings.Contains(userName, "@") {
			p[UserPrincipalName] = userName
		}
	}

	if name, ok := scim.GetObject(user, "name"); ok {
		if given, ok := scim.GetString(name, "givenName"); ok {
			p[GivenName] = given
		}
		if family, ok := scim.GetString(name, "familyName"); ok {
			p[Surname] = family
		}
	}

	if email, ok := primaryEmail(user); ok {
		if value, ok := scim.GetString(email, "value"); ok && value != "" {
			p[EmailAddress] = value
		}
	}

	if displayName, ok := scim.GetString(user, "displayName"); ok {
		p[DisplayName] = displayName
	}

	if active, ok := scim.GetBool(user, "active"); ok {
		p[Enabled] = active
	}

	if externalID, ok := scim.GetString(user, "externalId"); ok {
		p[EmployeeID] = externalID
	}

	if displayName, ok := p[DisplayName].(string); ok && displayName != "" {
		p[Name] = displayName
	} else if sam, ok := p[SamAccountName].(string); ok && sam != "" {
		p[Name] = sam
	}

	if baseOu != "" {
		p[Path] = baseOu
	}

	return p
}

// primaryEmail returns the first email marked primary=true, else the first
// email in the list.
func primaryEmail(user scim.Resource) (scim.Resource, bool) {
	items, ok := scim.GetSlice(user, "emails")
	if !ok || len(items) == 0 {
		return nil, false
	}
	emails := scim.AsObjectSlice(items)
	if len(emails) == 0 {
		return nil, false
	}
	for _, e := range emails {
		if primary, ok := scim.GetBool(e, "primary"); ok && primary {
			return e, true
		}
	}
	return emails[0], true
}

// AdToScim merges a directory read-back result into an existing SCIM
// view, following spec.md §4.A's inverse mapping. Fields the read-back
// doesn't carry are left untouched in existing; sub-fields of "name" other
// than givenName/familyName are preserved.
func AdToScim(existing scim.Resource, adResult map[string]any) scim.Resource {
	out := scim.Clone(existing)
	ad := scim.Resource(adResult)

	if sam, ok := scim.GetString(ad, SamAccountName); ok {
		out["userName"] = sam
	}
	if displayName, ok := scim.GetString(ad, DisplayName); ok {
		out["displayName"] = displayName
	}

	given, hasGiven := scim.GetString(ad, GivenName)
	surname, hasSurname := scim.GetString(ad, Surname)
	if hasGiven || hasSurname {
		name := scim.EnsureObject(out, "name")
		if hasGiven {
			name["givenName"] = given
		}
		if hasSurname {
			name["familyName"] = surname
		}
	}

	if email, ok := scim.GetString(ad, EmailAddress); ok && email != "" {
		out["emails"] = []any{
			scim.Resource{"value": email, "type": "work", "primary": true},
		}
	}

	if enabled, ok := scim.GetBool(ad, Enabled); ok {
		out["active"] = enabled
	}

	return out
}
