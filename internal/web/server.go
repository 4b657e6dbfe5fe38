// Package web exposes the plugin control surface over HTTP: module
// listing for the panel UI and action dispatch into plugins.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"modeswitch/internal/logging"
	"modeswitch/internal/plugin"
)

// Server serves the plugin web endpoints.
type Server struct {
	registry *plugin.Registry
	log      *logging.Logger
	srv      *http.Server
}

// NewServer builds a server bound to addr.
func NewServer(addr string, registry *plugin.Registry, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NullLogger
	}

	s := &Server{
		registry: registry,
		log:      log.WithComponent("web"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /modules", s.handleModules)
	mux.HandleFunc("POST /plugin-action", s.handleAction)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Start begins serving in the background. The returned channel receives
// the terminal serve error, if any.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("listening on http://%s", ln.Addr())
	return errCh, nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// moduleEntry is the JSON shape of one panel descriptor.
type moduleEntry struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Plugin string         `json:"plugin"`
	Data   map[string]any `json:"data"`
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	log := s.log.WithField("request", reqID)

	modules := s.registry.ListWebModules()
	entries := make([]moduleEntry, 0, len(modules))
	for _, m := range modules {
		entries = append(entries, moduleEntry{ID: m.ID, Title: m.Title, Plugin: m.Plugin, Data: m.Data})
	}

	log.Debug("listed %d modules", len(entries))
	writeJSON(w, http.StatusOK, map[string]any{"modules": entries})
}

// actionRequest is a dispatch submission. The payload is passed to the
// plugin untouched.
type actionRequest struct {
	PluginID string         `json:"plugin_id"`
	Action   string         `json:"action"`
	Payload  map[string]any `json:"payload"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	log := s.log.WithField("request", reqID)

	req, err := parseActionRequest(r)
	if err != nil {
		log.Warn("bad action request: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	log.Info("dispatch %s -> %s", req.Action, req.PluginID)

	msg, err := s.registry.Dispatch(req.PluginID, req.Action, req.Payload)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, plugin.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, plugin.ErrUnsupportedAction):
			status = http.StatusBadRequest
		}
		log.Warn("dispatch failed: %v", err)
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

// parseActionRequest accepts a JSON body or an HTML form. Form payloads
// carry their payload as a JSON string in the payload field.
func parseActionRequest(r *http.Request) (actionRequest, error) {
	var req actionRequest

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %v", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form: %v", err)
		}
		req.PluginID = r.PostFormValue("plugin_id")
		req.Action = r.PostFormValue("action")
		if raw := r.PostFormValue("payload"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Payload); err != nil {
				return req, fmt.Errorf("invalid payload JSON: %v", err)
			}
		}
	}

	if strings.TrimSpace(req.PluginID) == "" {
		return req, errors.New("plugin_id is required")
	}
	if strings.TrimSpace(req.Action) == "" {
		return req, errors.New("action is required")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
