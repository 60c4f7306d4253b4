package web

import (
	"context"
	"net/http"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/nordforge/scim-ad-bridge/provisioner"
)

// Pinger is the health-check seam over the cache's connection pool. It is
// satisfied by *store.Store; nil disables the liveness check (used by tests
// that never open a real pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP transport boundary: it decodes SCIM requests, calls
// the request processor, and encodes SCIM responses. Everything named a
// collaborator in spec.md §6 — TLS termination, auth, health, discovery —
// lives here rather than in provisioner.
type Server struct {
	mux       *http.ServeMux
	processor *provisioner.Processor
	apiKey    string
	logger    kitlog.Logger
	pinger    Pinger
}

// NewServer builds a Server with all routes registered. An empty apiKey
// disables the authentication gate (useful for local development). A nil
// pinger makes /healthz always report ok.
func NewServer(processor *provisioner.Processor, apiKey string, logger kitlog.Logger, pinger Pinger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		processor: processor,
		apiKey:    apiKey,
		logger:    logger,
		pinger:    pinger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	scimUsers := s.authenticate(http.HandlerFunc(s.routeUsers))
	s.mux.Handle("GET /scim/v2/Users", scimUsers)
	s.mux.Handle("GET /scim/v2/Users/{id}", scimUsers)
	s.mux.Handle("POST /scim/v2/Users", scimUsers)
	s.mux.Handle("PUT /scim/v2/Users/{id}", scimUsers)
	s.mux.Handle("PATCH /scim/v2/Users/{id}", scimUsers)
	s.mux.Handle("DELETE /scim/v2/Users/{id}", scimUsers)

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /scim/v2/ServiceProviderConfig", s.handleServiceProviderConfig)
	s.mux.HandleFunc("GET /scim/v2/Schemas", s.handleSchemas)
}

// routeUsers dispatches by method; the Go 1.22 method-prefixed mux patterns
// above already narrowed both verb and path shape, so GET only needs to
// tell the collection and single-resource forms apart.
func (s *Server) routeUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.PathValue("id") != "" {
			s.handleGetUser(w, r)
		} else {
			s.handleListUsers(w, r)
		}
	case http.MethodPost:
		s.handleCreateUser(w, r)
	case http.MethodPut:
		s.handleReplaceUser(w, r)
	case http.MethodPatch:
		s.handlePatchUser(w, r)
	case http.MethodDelete:
		s.handleDeleteUser(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Handler returns the HTTP handler for use by a custom listener (e.g. TLS).
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts a plain HTTP listener on addr.
func (s *Server) ListenAndServe(addr string) error {
	level.Info(s.logger).Log("msg", "starting scim bridge", "addr", addr, "tls", false)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// ListenAndServeTLS starts a TLS listener on addr using certFile/keyFile.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	level.Info(s.logger).Log("msg", "starting scim bridge", "addr", addr, "tls", true)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServeTLS(certFile, keyFile)
}
