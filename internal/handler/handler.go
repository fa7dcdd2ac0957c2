package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"topomerge/internal/domain"
	"topomerge/internal/fixture"
	"topomerge/internal/overlay"
)

// Handler serves the merge backend API over a fixture store
type Handler struct {
	store  *fixture.Store
	status http.Handler
}

// New creates a handler. status serves GET /status.
func New(store *fixture.Store, status http.Handler) *Handler {
	return &Handler{store: store, status: status}
}

// ErrorResponse mirrors the backend's {"detail": ...} error body
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// LoginResponse is the body of a successful POST /token
type LoginResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	Domains     map[string]string `json:"domains"`
}

// ConflictsRequest is the body of POST /conflicts
type ConflictsRequest struct {
	TopologyIDs []string `json:"topology_ids"`
}

// MergeRequest is the body of POST /hns-topology
type MergeRequest struct {
	P2PTopologyIDs []string         `json:"p2p_topology_ids"`
	Override       overlay.Override `json:"override"`
	HNSTopologyID  *string          `json:"hns_topology_id"`
}

// Routes builds the router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Post("/token", h.Login)
	r.Get("/status", h.status.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/domains", h.Domains)

		r.Group(func(r chi.Router) {
			r.Use(h.requireDomain)
			r.Get("/devices", h.Devices)
			r.Get("/hns-topologies", h.HNSTopologies)
			r.Get("/hns-p2p-topologies", h.HNSP2PTopologies)
			r.Get("/p2p-topologies", h.P2PTopologies)
			r.Post("/conflicts", h.Conflicts)
			r.Post("/hns-topology", h.Merge)
			r.Post("/deploy", h.Deploy)
		})
	})
	return r
}

// Login opens a session from an OAuth2 password form
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	sess, domains, err := h.store.Login(username, password)
	if err != nil {
		writeError(w, http.StatusForbidden, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: sess.Token,
		TokenType:   "bearer",
		Domains:     domains,
	})
}

// Domains lists domain names by uuid
func (h *Handler) Domains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.store.Domains(token(r))
	if err != nil {
		h.fail(w, "list domains", err)
		return
	}
	writeJSON(w, http.StatusOK, domains)
}

// Devices lists the hub candidates
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Devices(token(r))
	if err != nil {
		h.fail(w, "list devices", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HNSTopologies lists the existing hub-and-spoke topologies
func (h *Handler) HNSTopologies(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.HNSTopologies(token(r))
	if err != nil {
		h.fail(w, "list hub-and-spoke topologies", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HNSP2PTopologies lists the point-to-point topologies mergeable into a
// hub-and-spoke topology
func (h *Handler) HNSP2PTopologies(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQuery(w, r, "hns_topology_id")
	if !ok {
		return
	}
	recs, err := h.store.HNSP2PTopologies(token(r), id)
	if err != nil {
		h.fail(w, "list hub-and-spoke members", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// P2PTopologies lists the point-to-point topologies of a device
func (h *Handler) P2PTopologies(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQuery(w, r, "device_id")
	if !ok {
		return
	}
	recs, err := h.store.P2PTopologies(token(r), id)
	if err != nil {
		h.fail(w, "list point-to-point topologies", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// Conflicts diffs the given topologies
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	var req ConflictsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TopologyIDs == nil {
		writeError(w, http.StatusUnprocessableEntity, "topology_ids is required")
		return
	}

	conflict, err := h.store.Conflicts(token(r), req.TopologyIDs)
	if err != nil {
		h.fail(w, "compute conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, conflict)
}

// Merge builds a hub-and-spoke topology and returns it as a one-element list
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.P2PTopologyIDs == nil {
		writeError(w, http.StatusUnprocessableEntity, "p2p_topology_ids is required")
		return
	}

	merged, err := h.store.Merge(token(r), req.P2PTopologyIDs, req.Override, req.HNSTopologyID)
	if err != nil {
		h.fail(w, "merge", err)
		return
	}
	writeJSON(w, http.StatusOK, []domain.Record{merged})
}

// Deploy removes the merged point-to-point topologies
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Deploy(token(r)); err != nil {
		h.fail(w, "deploy", err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// requireToken rejects requests without a known bearer token
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, tok, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		if !strings.EqualFold(scheme, "bearer") || tok == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if !h.store.Authorized(tok) {
			writeError(w, http.StatusUnauthorized, "X-Token header invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(withToken(r.Context(), tok)))
	})
}

// requireDomain selects the domain named by the domain_id parameter
func (h *Handler) requireDomain(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQuery(w, r, "domain_id")
		if !ok {
			return
		}
		if err := h.store.SelectDomain(token(r), id); err != nil {
			h.fail(w, "select domain", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail maps store errors to status codes
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fixture.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, fixture.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fixture.ErrNoDevice),
		errors.Is(err, fixture.ErrNoRecords),
		errors.Is(err, fixture.ErrNothingMerged),
		errors.Is(err, domain.ErrInvalidOverrideJSON):
		status = http.StatusBadRequest
	default:
		log.Printf("Failed to %s: %v", op, err)
	}
	writeError(w, status, err.Error())
}

func requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeError(w, http.StatusUnprocessableEntity, name+" query parameter is required")
		return "", false
	}
	return v, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
