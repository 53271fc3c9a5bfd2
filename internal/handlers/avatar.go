package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/taskhub/accounts/internal/services"
	"github.com/taskhub/accounts/internal/store"
)

const (
	avatarFormField    = "avatar"
	maxAvatarFormBytes = services.MaxAvatarBytes + (64 << 10)
)

// UploadAvatar stores the profile image of the authenticated user.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxAvatarFormBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, _, err := r.FormFile(avatarFormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxAvatarBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar")
		return
	}

	if err := h.avatars.Upload(r.Context(), user.ID, data); err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Msg)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteAvatar removes the profile image of the authenticated user.
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.avatars.Remove(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete avatar")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetAvatar serves a user's profile image.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if _, err := h.accounts.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	data, contentType, err := h.avatars.Fetch(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAvatarNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch avatar")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
