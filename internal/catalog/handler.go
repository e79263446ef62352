// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Handler serves the catalog API over HTTP.
type Handler struct {
	service     Service
	rateLimiter *rate.Limiter
}

// NewHandler returns a handler whose mutating routes share limiter.
// A nil limiter disables throttling.
func NewHandler(service Service, limiter *rate.Limiter) *Handler {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Handler{service: service, rateLimiter: limiter}
}

// Routes mounts the catalog API on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/genres", h.handleListGenres)

	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.handleListBooks)
		r.With(h.throttle).Post("/", h.handleAddBook)
		r.Get("/{id}", h.handleGetBook)
		r.With(h.throttle).Put("/{id}", h.handleUpdateBook)
		r.With(h.throttle).Delete("/{id}", h.handleRemoveBook)
	})
	return r
}

func (h *Handler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.rateLimiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bookRequest carries the writable fields. Genre decoding rejects codes outside 0-5.
type bookRequest struct {
	Title *string `json:"title"`
	Genre *Genre  `json:"genre"`
}

func decodeBookRequest(r *http.Request) (string, Genre, error) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", 0, err
	}
	if req.Title == nil {
		return "", 0, errors.New("missing title")
	}
	if req.Genre == nil {
		return "", 0, errors.New("missing genre")
	}
	return *req.Title, *req.Genre, nil
}

func parseID(r *http.Request) (uint32, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	title, genre, err := decodeBookRequest(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), title, genre)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	book, ok, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}
	title, genre, err := decodeBookRequest(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	found, err := h.service.UpdateBook(r.Context(), id, title, genre)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, Book{ID: id, Title: title, Genre: genre})
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	found, err := h.service.RemoveBook(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type genreResponse struct {
	Code Genre  `json:"code"`
	Name string `json:"name"`
}

func (h *Handler) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres := AllGenres()
	resp := make([]genreResponse, 0, len(genres))
	for _, g := range genres {
		resp = append(resp, genreResponse{Code: g, Name: g.String()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ErrorCodeHeader carries a stable code for sentinel errors so clients need
// not parse the plain-text body.
const ErrorCodeHeader = "X-Error-Code"

const (
	CodeInvalidGenre     = "invalid_genre_code"
	CodeIDSpaceExhausted = "id_space_exhausted"
)

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidGenreCode) {
		writeServiceError(w, err)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidGenreCode):
		w.Header().Set(ErrorCodeHeader, CodeInvalidGenre)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrIDSpaceExhausted):
		w.Header().Set(ErrorCodeHeader, CodeIDSpaceExhausted)
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
