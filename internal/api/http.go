package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/hashicorp/raft"
	"go.uber.org/zap"

	"github.com/heysubinoy/pyazkv/pkg/codec"
	"github.com/heysubinoy/pyazkv/pkg/kv"
)

// maxImportBytes caps the body accepted by /import.
const maxImportBytes = 4 << 20

// Leadership reports the raft role of the local node. *raft.Raft
// implements it.
type Leadership interface {
	State() raft.RaftState
}

// Server wraps a kv.Store and exposes HTTP endpoints for KV operations.
// Raft is nil when the store is not replicated.
type Server struct {
	Store    kv.Store
	Raft     Leadership
	Resolver *codec.Resolver
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server with the given store.
func NewServer(store kv.Store, raftNode Leadership, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Store:    store,
		Raft:     raftNode,
		Resolver: codec.NewResolver(codec.WithLogger(logger)),
		Logger:   logger,
	}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/get", s.handleGet)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/set", s.handleSet)
	mux.HandleFunc("/delete", s.handleDelete)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/import", s.handleImport)
}

// valueResponse is the JSON shape of a single lookup.
type valueResponse struct {
	Key   string `json:"key"`
	Found bool   `json:"found"`
	Kind  string `json:"kind,omitempty"`
	Value any    `json:"value,omitempty"`
}

// handleGet handles GET /get?key=foo requests.
// Returns the value as plain text or appropriate error codes.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}

	value, err := s.Store.Get(key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Value-Kind", value.Kind().String())
	w.Write([]byte(value.String()))
}

// handleQuery handles GET /query?key=foo requests.
// Always answers 200 with {"found": ...}; absence is not an error here.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}

	resp := valueResponse{Key: key}
	if value, ok := s.Store.Lookup(key); ok {
		resp.Found = true
		resp.Kind = value.Kind().String()
		resp.Value = value.Interface()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSet handles POST /set requests with JSON body.
// Expects: {"key": "foo", "value": "bar"}. The value is coerced the same
// way loaded files are.
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rejectUnlessLeader(w) {
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}

	if err := codec.JSON.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return
	}
	if req.Value == nil {
		http.Error(w, "Missing value field", http.StatusBadRequest)
		return
	}

	if err := s.Store.Set(req.Key, kv.Coerce(req.Value)); err != nil {
		s.Logger.Error("set failed", zap.String("key", req.Key), zap.Error(err))
		http.Error(w, "Failed to set key", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDelete handles POST /delete requests with JSON body.
// Expects: {"key": "foo"}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rejectUnlessLeader(w) {
		return
	}

	var req struct {
		Key string `json:"key"`
	}

	if err := codec.JSON.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return
	}

	if err := s.Store.Delete(req.Key); err != nil {
		s.Logger.Error("delete failed", zap.String("key", req.Key), zap.Error(err))
		http.Error(w, "Failed to delete key", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExport handles GET /export?format=yaml requests.
// The format defaults to json.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, ok := formatParam(w, r)
	if !ok {
		return
	}

	data, err := codec.Marshal(format, s.Store.Snapshot())
	if err != nil {
		http.Error(w, "Failed to encode store", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Write(data)
}

// handleImport handles POST /import?format=yaml requests. The body is
// parsed like a config file, the format parameter only choosing which
// format is tried first, and every key is written to the store.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rejectUnlessLeader(w) {
		return
	}

	hint, ok := formatParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	parsed := kv.NewMemStore()
	if err := s.Resolver.LoadBytes(body, parsed, hint); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for key, value := range parsed.Snapshot() {
		if err := s.Store.Set(key, value); err != nil {
			s.Logger.Error("import failed", zap.String("key", key), zap.Error(err))
			http.Error(w, "Failed to set key", http.StatusInternalServerError)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"format": parsed.Format().String(),
		"keys":   parsed.Len(),
	})
}

// rejectUnlessLeader answers writes sent to a node that is not the raft
// leader with 503. It reports whether the request has been handled.
func (s *Server) rejectUnlessLeader(w http.ResponseWriter) bool {
	if s.Raft == nil || s.Raft.State() == raft.Leader {
		return false
	}
	http.Error(w, "Not leader", http.StatusServiceUnavailable)
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := codec.JSON.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func formatParam(w http.ResponseWriter, r *http.Request) (kv.Format, bool) {
	token := r.URL.Query().Get("format")
	if token == "" {
		return kv.FormatJSON, true
	}
	format, err := kv.ParseFormat(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return format, true
}

func contentType(format kv.Format) string {
	if format == kv.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
