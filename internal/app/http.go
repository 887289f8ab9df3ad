package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"shoplist/internal/auth"
	"shoplist/internal/events"
	"shoplist/internal/search"
	"shoplist/internal/session"
)

type HTTPServer struct {
	service  *Service
	hub      *events.Hub
	sessions *session.Store
	auth     *auth.Service
}

func NewHTTPServer(service *Service, hub *events.Hub, sessions *session.Store, authService *auth.Service) *HTTPServer {
	return &HTTPServer{
		service:  service,
		hub:      hub,
		sessions: sessions,
		auth:     authService,
	}
}

// Handler assembles the route table. Everything under /api except the
// health probes requires a signed-in session; the session middleware
// wraps the whole tree so /login can bind a user to it.
func (s *HTTPServer) Handler() http.Handler {
	api := http.NewServeMux()
	api.Handle("GET /api/events/", s.hub.Handler())
	api.HandleFunc("GET /api/list/", s.handleLists)
	api.HandleFunc("POST /api/list/", s.handleCreateList)
	api.HandleFunc("GET /api/list/active", s.handleActiveList)
	api.HandleFunc("GET /api/list/{listId}/", s.handleGetList)
	api.HandleFunc("PATCH /api/list/{listId}/", s.handleUpdateList)
	api.HandleFunc("GET /api/list/{listId}/item/", s.handleItems)
	api.HandleFunc("POST /api/list/{listId}/item/", s.handleCreateItem)
	api.HandleFunc("PATCH /api/list/{listId}/item/{itemId}", s.handleUpdateItem)
	api.HandleFunc("DELETE /api/list/{listId}/item/{itemId}", s.handleDeleteItem)
	api.HandleFunc("POST /api/list/{listId}/item/{itemId}/move", s.handleMoveItem)
	api.HandleFunc("GET /api/search", s.handleSearch)

	root := http.NewServeMux()
	root.Handle("/api/", s.auth.Require(api))
	root.HandleFunc("GET /api/health", s.handleHealth)
	root.HandleFunc("GET /api/ready", s.handleReady)
	root.HandleFunc("POST /login", s.handleLogin)

	var handler http.Handler = logRequests(root)
	handler = s.sessions.Middleware(handler)
	return handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "failed to parse form")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if err := s.auth.SignIn(r, username, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusForbidden, "INVALID_CREDENTIALS", "invalid username or password")
			return
		}
		slog.Error("sign-in failed", "err", err)
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- lists ---

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.service.Lists(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *HTTPServer) handleCreateList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.CreateList(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleActiveList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ActiveList(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "NO_ACTIVE_LIST", "no active list")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.GetList(r.Context(), r.PathValue("listId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	list, err := s.service.UpdateListStatus(r.Context(), r.PathValue("listId"), body.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- items ---

func (s *HTTPServer) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.Items(r.Context(), r.PathValue("listId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text  string  `json:"text"`
		After *string `json:"after"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	id, err := s.service.CreateItem(r.Context(), r.PathValue("listId"), body.Text, body.After)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text    *string `json:"text"`
		Checked *bool   `json:"checked"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := s.service.UpdateItem(r.Context(), r.PathValue("itemId"), body.Text, body.Checked); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteItem(r.Context(), r.PathValue("itemId")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	var body MoveRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := s.service.MoveItem(r.Context(), r.PathValue("itemId"), body); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- search ---

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := search.Query{
		Text: r.URL.Query().Get("q"),
		List: r.URL.Query().Get("list"),
	}
	results, err := s.service.SearchItems(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, search.Response{Results: results, Query: query.Text})
}

// --- plumbing ---

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainErr.Status, domainErr.Code, domainErr.Message)
		return
	}
	slog.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.DebugContext(r.Context(), "request", "remoteAddr", r.RemoteAddr, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
