// Package httpapi serves a cache.Store over HTTP with JSON responses.
//
// Routes:
//
//	POST /put      {"key": "...", "value": "..."}
//	GET  /get?key= value lookup
//	GET  /size     live entry count
//	POST /clear    drop every entry
//	GET  /healthz  liveness
//
// Every response body is a Response. Status codes: 200 on success, 400 for
// malformed or out-of-bounds input, 404 on a miss, 507 when the cache
// refuses a new key for capacity, 503 after the cache is closed.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/textcache/cache"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"

	// maxBodyBytes bounds a /put body.
	maxBodyBytes = 64 << 10
)

// Response is the JSON body of every endpoint.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Size    *int   `json:"size,omitempty"`
}

// PutRequest is the body of POST /put. Pointers distinguish a missing
// field from an empty one.
type PutRequest struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

// Handler routes requests to a cache.Store.
type Handler struct {
	store  cache.Store
	logger log.Logger
	mux    *http.ServeMux
}

// New builds the handler. extra routes (e.g. /metrics) are mounted on the
// same mux.
func New(store cache.Store, logger log.Logger, extra map[string]http.Handler) *Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	h := &Handler{store: store, logger: log.With(logger, "component", "http"), mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /put", h.handlePut)
	h.mux.HandleFunc("GET /get", h.handleGet)
	h.mux.HandleFunc("GET /size", h.handleSize)
	h.mux.HandleFunc("POST /clear", h.handleClear)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	for pattern, handler := range extra {
		h.mux.Handle(pattern, handler)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var req PutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Key == nil || req.Value == nil {
		h.writeError(w, http.StatusBadRequest, "Key and value cannot be null")
		return
	}

	err := h.store.TryPut(*req.Key, *req.Value)
	switch {
	case err == nil:
		h.write(w, http.StatusOK, Response{
			Status:  StatusOK,
			Message: "Key inserted/updated successfully.",
			Key:     *req.Key,
			Value:   *req.Value,
		})
	case errors.Is(err, cache.ErrInvalidKey), errors.Is(err, cache.ErrInvalidValue):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cache.ErrCapacity):
		h.writeError(w, http.StatusInsufficientStorage, "Cache is full.")
	case errors.Is(err, cache.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, "Cache is closed.")
	default:
		level.Error(h.logger).Log("msg", "put failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Error processing request: "+err.Error())
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Missing key parameter.")
		return
	}
	value, ok := h.store.Get(key)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Key not found.")
		return
	}
	h.write(w, http.StatusOK, Response{Status: StatusOK, Key: key, Value: value})
}

func (h *Handler) handleSize(w http.ResponseWriter, _ *http.Request) {
	size := h.store.Len()
	h.write(w, http.StatusOK, Response{Status: StatusOK, Size: &size})
}

func (h *Handler) handleClear(w http.ResponseWriter, _ *http.Request) {
	h.store.Clear()
	size := h.store.Len()
	h.write(w, http.StatusOK, Response{Status: StatusOK, Message: "Cache cleared.", Size: &size})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, Response{Status: StatusOK})
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.write(w, code, Response{Status: StatusError, Message: msg})
}

func (h *Handler) write(w http.ResponseWriter, code int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		level.Warn(h.logger).Log("msg", "writing response", "err", fmt.Errorf("encode: %w", err))
	}
}
