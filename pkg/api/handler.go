package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/hazyhaar/termindex/pkg/kit"
)

const maxBatchBody = 64 * 1024

// NewRouter returns an http.Handler with all termindex API routes.
func NewRouter(reg *codesys.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	h := &handler{eps: newEndpoints(reg, logger), reg: reg}

	mux.HandleFunc("GET /v1/normalize", h.handleNormalize)
	mux.HandleFunc("GET /v1/search/batch", methodNotAllowed) // batch is POST only
	mux.HandleFunc("POST /v1/search/batch", h.handleSearchBatch)
	mux.HandleFunc("GET /v1/search/{text}", h.handleSearch)
	mux.HandleFunc("GET /v1/codesystems", h.handleListCodeSystems)
	mux.HandleFunc("GET /v1/codesystems/{id}/concepts/{code}", h.handleLookup)
	mux.HandleFunc("GET /v1/codesystems/{id}/expand", h.handleExpand)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(requestContext(mux))
}

type handler struct {
	eps *endpoints
	reg *codesys.Registry
}

// --- normalize ---

func (h *handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("text") {
		writeError(w, http.StatusBadRequest, "missing text")
		return
	}
	resp, err := h.eps.normalize(r.Context(), &normalizeReq{
		Text:     q.Get("text"),
		Mode:     q.Get("mode"),
		Language: q.Get("lang"),
	})
	h.respond(w, resp, err)
}

// --- search single text ---

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	text := r.PathValue("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing text")
		return
	}
	resp, err := h.eps.search(r.Context(), &searchReq{Text: text, Opts: parseOpts(r)})
	h.respond(w, resp, err)
}

// --- search batch ---

type httpBatchRequest struct {
	Texts       []string `json:"texts"`
	CodeSystems []string `json:"code_systems,omitempty"`
	URLs        []string `json:"urls,omitempty"`
	Publishers  []string `json:"publishers,omitempty"`
}

func (h *handler) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBody)
	var req httpBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.eps.searchBatch(r.Context(), &searchBatchReq{
		Texts: req.Texts,
		Opts: &codesys.SearchOptions{
			CodeSystems: req.CodeSystems,
			URLs:        req.URLs,
			Publishers:  req.Publishers,
		},
	})
	h.respond(w, resp, err)
}

// --- code systems ---

func (h *handler) handleListCodeSystems(w http.ResponseWriter, r *http.Request) {
	resp, err := h.eps.listSystems(r.Context(), nil)
	h.respond(w, resp, err)
}

func (h *handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.eps.lookup(r.Context(), &lookupReq{
		CodeSystem: r.PathValue("id"),
		Code:       r.PathValue("code"),
	})
	h.respond(w, resp, err)
}

func (h *handler) handleExpand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	count, err := intParam(q.Get("count"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid count")
		return
	}

	resp, err := h.eps.expand(r.Context(), &expandReq{
		CodeSystem: r.PathValue("id"),
		ExpandRequest: codesys.ExpandRequest{
			Filter: q.Get("filter"),
			Offset: offset,
			Count:  count,
		},
	})
	h.respond(w, resp, err)
}

// --- health ---

type healthResponse struct {
	Status        string `json:"status"`
	CodeSystems   int    `json:"code_systems"`
	TotalConcepts int    `json:"total_concepts"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		CodeSystems:   h.reg.CodeSystemCount(),
		TotalConcepts: h.reg.TotalConcepts(),
	})
}

// --- helpers ---

func (h *handler) respond(w http.ResponseWriter, resp any, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps endpoint errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, codesys.ErrUnknownCodeSystem), errors.Is(err, codesys.ErrConceptNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, codesys.ErrNotEnumerable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseOpts(r *http.Request) *codesys.SearchOptions {
	q := r.URL.Query()
	opts := &codesys.SearchOptions{}
	if v := q.Get("code_systems"); v != "" {
		opts.CodeSystems = strings.Split(v, ",")
	}
	if v := q.Get("urls"); v != "" {
		opts.URLs = strings.Split(v, ",")
	}
	if v := q.Get("publishers"); v != "" {
		opts.Publishers = strings.Split(v, ",")
	}
	return opts
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", v, err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// requestContext tags the request context with the HTTP transport and a
// request id, taken from X-Request-ID when the client sent one.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithTransport(r.Context(), kit.TransportHTTP)
		ctx = kit.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
