package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/nordforge/scim-ad-bridge/scim"
)

// authenticate gates next behind a bearer token check against s.apiKey. An
// empty apiKey disables the gate entirely, which NewServer's doc comment
// calls out as a local-development convenience, never a production mode.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			writeSCIMError(w, scim.NewError(http.StatusUnauthorized, "", "invalid or missing bearer token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}
