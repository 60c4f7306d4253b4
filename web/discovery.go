package web

import (
	"net/http"

	"github.com/nordforge/scim-ad-bridge/scim"
)

// handleServiceProviderConfig answers RFC 7644 §4 discovery. Bulk is
// advertised as disabled. Filtering is advertised as supported, but only an
// eq comparison on id, externalId or userName narrows the result; any other
// filter returns the unfiltered page.
func (s *Server) handleServiceProviderConfig(w http.ResponseWriter, r *http.Request) {
	writeSCIM(w, http.StatusOK, scim.Resource{
		"schemas": []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		"patch":           map[string]any{"supported": true},
		"bulk":            map[string]any{"supported": false, "maxOperations": 0, "maxPayloadSize": 0},
		"filter":          map[string]any{"supported": true, "maxResults": 200},
		"changePassword":  map[string]any{"supported": false},
		"sort":            map[string]any{"supported": false},
		"etag":            map[string]any{"supported": false},
		"authenticationSchemes": []map[string]any{
			{
				"type":        "oauthbearertoken",
				"name":        "Bearer Token",
				"description": "Authentication via a static bearer token",
				"primary":     true,
			},
		},
	})
}

// handleSchemas answers RFC 7644 §7 with a minimal User schema description
// covering the attributes ScimToParams actually reads.
func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	writeSCIM(w, http.StatusOK, scim.FormatList([]scim.Resource{
		{
			"id":          "urn:ietf:params:scim:schemas:core:2.0:User",
			"name":        "User",
			"description": "SCIM core User resource, as mapped onto Active Directory attributes",
			"attributes": []map[string]any{
				{"name": "userName", "type": "string", "required": true, "multiValued": false},
				{"name": "externalId", "type": "string", "required": false, "multiValued": false},
				{"name": "displayName", "type": "string", "required": false, "multiValued": false},
				{"name": "active", "type": "boolean", "required": false, "multiValued": false},
				{"name": "emails", "type": "complex", "required": false, "multiValued": true},
				{"name": "name", "type": "complex", "required": false, "multiValued": false},
			},
		},
	}, 1, 1, 1))
}
