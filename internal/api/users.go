package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/prodev-core/internal/user"
)

// Page size bounds for GET /users.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type createUserRequest struct {
	ID    string `json:"user_id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int64  `json:"age"`
}

type updateEmailRequest struct {
	Email string `json:"email"`
}

// handleListUsers returns one page of users.
// Query: page_size (default from config), offset (default 0).
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	size, ok := queryInt(w, r, "page_size", s.pageSize)
	if !ok {
		return
	}
	if size < 1 || size > maxPageSize {
		writeBadRequest(w, "page_size must be between 1 and "+strconv.Itoa(maxPageSize))
		return
	}

	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if offset < 0 {
		writeBadRequest(w, "offset must not be negative")
		return
	}

	users, err := s.users.Page(r.Context(), size, offset)
	if err != nil {
		s.writeUserError(w, r, "list users", err)
		return
	}
	if users == nil {
		users = []user.User{}
	}

	resp := map[string]any{
		"users":  users,
		"count":  len(users),
		"offset": offset,
	}
	if len(users) == size {
		resp["next_offset"] = offset + size
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUserStats returns the user count and average age.
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.users.Stats(r.Context())
	if err != nil {
		s.writeUserError(w, r, "user stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeUserError(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleCreateUser creates a user. A missing user_id is generated.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	u := &user.User{
		ID:    req.ID,
		Name:  req.Name,
		Email: req.Email,
		Age:   req.Age,
	}
	if err := s.users.Create(r.Context(), u); err != nil {
		s.writeUserError(w, r, "create user", err)
		return
	}

	w.Header().Set("Location", "/api/v1/users/"+u.ID)
	writeJSON(w, http.StatusCreated, u)
}

// handleUpdateEmail changes a user's email.
func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.users.UpdateEmail(r.Context(), id, req.Email); err != nil {
		s.writeUserError(w, r, "update email", err)
		return
	}

	u, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.writeUserError(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleDeleteUser removes a user.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeUserError(w, r, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads an integer query parameter, writing a 400 and returning
// false if it is present but not a number.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}
