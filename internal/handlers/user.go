package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taskhub/accounts/internal/services"
	"github.com/taskhub/accounts/internal/store"
	"github.com/taskhub/accounts/types"
)

const maxBodyBytes = 1 << 20

// UserHandler provides the /users HTTP endpoints.
type UserHandler struct {
	accounts *services.AccountService
	avatars  *services.AvatarService
}

// NewUserHandler constructs a UserHandler with the provided services.
// avatars may be nil when no object storage is configured.
func NewUserHandler(accounts *services.AccountService, avatars *services.AvatarService) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		avatars:  avatars,
	}
}

// UserRouter registers the /users routes on the given router.
func UserRouter(r chi.Router, accounts *services.AccountService, avatars *services.AvatarService, verifier TokenVerifier) {
	handler := NewUserHandler(accounts, avatars)
	auth := RequireAuth(accounts, verifier)

	r.Post("/", handler.Register)
	r.Post("/login", handler.Login)
	r.With(auth).Post("/logout", handler.Logout)
	r.With(auth).Post("/logoutAll", handler.LogoutAll)
	r.With(auth).Get("/me", handler.Me)
	if avatars != nil {
		r.With(auth).Post("/me/avatar", handler.UploadAvatar)
		r.With(auth).Delete("/me/avatar", handler.DeleteAvatar)
	}
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Patch("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
		if avatars != nil {
			r.Get("/avatar", handler.GetAvatar)
		}
	})
}

// Register creates a new account and returns it with the first
// session token.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.NewUser
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, tokenString, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Msg)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: tokenString})
}

// Login verifies credentials and returns the user with a fresh session
// token. Unknown email and wrong password are indistinguishable: both
// yield a bare 401.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, tokenString, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: tokenString})
}

// Logout invalidates the session token that authenticated this request.
// Other sessions stay valid.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	tokenString, err := tokenFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.accounts.LogoutCurrent(r.Context(), user, tokenString); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// LogoutAll invalidates every session of the authenticated user.
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.accounts.LogoutAll(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Me returns the authenticated user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUser fetches a user by id.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateUser applies a partial update. Every key in the body must name
// an updatable field, otherwise the whole request is rejected before
// anything is touched.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	for key := range fields {
		if !types.IsUpdatableField(key) {
			writeError(w, http.StatusBadRequest, "invalid update field")
			return
		}
	}

	var upd types.UserUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.accounts.Update(r.Context(), id, upd)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, store.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		default:
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user and returns the deleted snapshot.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.accounts.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	if h.avatars != nil {
		// Best-effort cleanup; the object store key is orphaned otherwise.
		_ = h.avatars.Remove(r.Context(), id)
	}

	writeJSON(w, http.StatusOK, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func parseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
