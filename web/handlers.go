package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nordforge/scim-ad-bridge/scim"
)

// writeSCIM encodes body as the SCIM content type and status code.
func writeSCIM(w http.ResponseWriter, status int, body scim.Resource) {
	w.Header().Set("Content-Type", scim.ContentType)
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeSCIMError(w http.ResponseWriter, err *scim.Error) {
	writeSCIM(w, err.Status, scim.FormatError(err))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	startIndex := 1
	if v := q.Get("startIndex"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			startIndex = parsed
		}
	}
	count := 100
	if v := q.Get("count"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			count = parsed
		}
	}

	resp := s.processor.List(r.Context(), q.Get("filter"), startIndex, count)
	writeSCIM(w, resp.Status, resp.Body)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	resp := s.processor.Get(r.Context(), r.PathValue("id"))
	writeSCIM(w, resp.Status, resp.Body)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user scim.Resource
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeSCIMError(w, scim.ErrInvalidValue("malformed JSON body"))
		return
	}

	resp := s.processor.Create(r.Context(), user)
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}
	writeSCIM(w, resp.Status, resp.Body)
}

func (s *Server) handleReplaceUser(w http.ResponseWriter, r *http.Request) {
	var user scim.Resource
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeSCIMError(w, scim.ErrInvalidValue("malformed JSON body"))
		return
	}

	resp := s.processor.Replace(r.Context(), r.PathValue("id"), user)
	writeSCIM(w, resp.Status, resp.Body)
}

// patchRequestBody mirrors the wire shape of a PatchOp envelope; it decodes
// into scim.PatchRequest rather than exposing json tags on that type
// directly, since PatchRequest is also constructed by hand in tests.
type patchRequestBody struct {
	Schemas    []string `json:"schemas"`
	Operations []struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	} `json:"Operations"`
}

func (s *Server) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	var body patchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeSCIMError(w, scim.ErrInvalidValue("malformed JSON body"))
		return
	}

	patch := scim.PatchRequest{Schemas: body.Schemas}
	for _, op := range body.Operations {
		patch.Operations = append(patch.Operations, scim.PatchOperation{
			Op:    op.Op,
			Path:  op.Path,
			Value: op.Value,
		})
	}

	resp := s.processor.Patch(r.Context(), r.PathValue("id"), patch)
	writeSCIM(w, resp.Status, resp.Body)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	resp := s.processor.Delete(r.Context(), r.PathValue("id"))
	if resp.Status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeSCIM(w, resp.Status, resp.Body)
}
