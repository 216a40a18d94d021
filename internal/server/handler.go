// Package server provides the JSON HTTP handlers for the note API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/blancocp/notex/internal/apperr"
	"github.com/blancocp/notex/internal/auth"
	"github.com/blancocp/notex/internal/category"
	"github.com/blancocp/notex/internal/note"
	"github.com/blancocp/notex/internal/tag"
)

// Server routes API requests to the note, category, and tag services.
type Server struct {
	notes      *note.Service
	categories *category.Service
	tags       *tag.Service
	auth       *auth.Provider
}

// New creates a Server.
func New(notes *note.Service, categories *category.Service, tags *tag.Service, authProvider *auth.Provider) *Server {
	return &Server{
		notes:      notes,
		categories: categories,
		tags:       tags,
		auth:       authProvider,
	}
}

// Handler returns the routed handler with auth applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/notes", s.handleCreateNote)
	mux.HandleFunc("GET /api/notes/{id}", s.handleGetNote)
	mux.HandleFunc("PUT /api/notes/{id}", s.handleUpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/tags", s.handleListTags)
	mux.HandleFunc("GET /api/tags/search", s.handleSearchTags)
	mux.HandleFunc("POST /api/tags", s.handleCreateTag)
	mux.HandleFunc("PUT /api/tags/{id}", s.handleUpdateTag)
	mux.HandleFunc("DELETE /api/tags/{id}", s.handleDeleteTag)

	return s.auth.Middleware(mux)
}

type noteURLRequest struct {
	URL         string  `json:"url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type createNoteRequest struct {
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Content     *string          `json:"content"`
	CategoryID  *string          `json:"category_id"`
	Tags        []string         `json:"tags"`
	URLs        []noteURLRequest `json:"urls"`
}

type updateNoteRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Content     *string           `json:"content"`
	CategoryID  *string           `json:"category_id"`
	Tags        *[]string         `json:"tags"`
	URLs        *[]noteURLRequest `json:"urls"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	result, err := s.notes.List(r.Context(), userID, note.Filter{
		CategoryID: query.Get("category_id"),
		Search:     query.Get("search"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validationf("invalid request body"))
		return
	}

	created, err := s.notes.Create(r.Context(), userID, note.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		CategoryID:  req.CategoryID,
		Tags:        req.Tags,
		URLs:        toURLInputs(req.URLs),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	n, err := s.notes.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validationf("invalid request body"))
		return
	}

	in := note.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		CategoryID:  req.CategoryID,
		Tags:        req.Tags,
	}
	if req.URLs != nil {
		urls := toURLInputs(*req.URLs)
		in.URLs = &urls
	}

	updated, err := s.notes.Update(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.notes.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	categories, err := s.categories.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []category.Category{}
	}
	s.writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validationf("invalid request body"))
		return
	}

	created, err := s.categories.Create(r.Context(), userID, category.Input{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validationf("invalid request body"))
		return
	}

	if err := s.categories.Update(r.Context(), userID, r.PathValue("id"), category.Input{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.categories.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tags, err := s.tags.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []tag.Tag{}
	}
	s.writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tags := s.tags.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if tags == nil {
		tags = []tag.Tag{}
	}
	s.writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validationf("invalid request body"))
		return
	}

	created, err := s.tags.Create(r.Context(), userID, tag.Input{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validationf("invalid request body"))
		return
	}

	if err := s.tags.Update(r.Context(), userID, r.PathValue("id"), tag.Input{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.tags.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	NoteID string `json:"note_id,omitempty"`
}

// writeError maps the error taxonomy to HTTP statuses. A partial aggregate
// failure reports the note id that now exists so the caller can reconcile.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *apperr.ValidationError
	var notFoundErr *apperr.NotFoundError
	var partialErr *apperr.PartialAggregateError

	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Msg})
	case errors.As(err, &notFoundErr):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundErr.Error()})
	case errors.As(err, &partialErr):
		slog.ErrorContext(r.Context(), "partial aggregate write", "note_id", partialErr.NoteID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:  partialErr.Error(),
			NoteID: partialErr.NoteID,
		})
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "store request failed"})
	}
}

func toURLInputs(urls []noteURLRequest) []note.URLInput {
	inputs := make([]note.URLInput, 0, len(urls))
	for _, u := range urls {
		inputs = append(inputs, note.URLInput{
			URL:         u.URL,
			Title:       u.Title,
			Description: u.Description,
		})
	}
	return inputs
}
