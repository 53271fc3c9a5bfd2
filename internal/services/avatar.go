package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxAvatarBytes caps uploaded avatar size.
const MaxAvatarBytes = 1 << 20

// ObjectStorage defines the object operations the avatar service needs.
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// AvatarService stores one profile image per user in object storage.
type AvatarService struct {
	storage ObjectStorage
}

func NewAvatarService(storage ObjectStorage) *AvatarService {
	return &AvatarService{storage: storage}
}

// Upload validates and stores the avatar for a user, replacing any
// previous one.
func (s *AvatarService) Upload(ctx context.Context, userID int64, data []byte) error {
	if len(data) == 0 {
		return newValidationError("avatar is empty")
	}
	if len(data) > MaxAvatarBytes {
		return newValidationError("avatar exceeds 1 MiB")
	}
	contentType := http.DetectContentType(data)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return newValidationError("avatar must be a PNG or JPEG image")
	}
	return s.storage.Put(ctx, avatarKey(userID), bytes.NewReader(data), int64(len(data)), contentType)
}

// Fetch returns the stored avatar bytes and their content type.
func (s *AvatarService) Fetch(ctx context.Context, userID int64) ([]byte, string, error) {
	reader, err := s.storage.Get(ctx, avatarKey(userID))
	if err != nil {
		// Backends disagree on how a missing object surfaces; every
		// read failure is treated as an absent avatar.
		return nil, "", ErrAvatarNotFound
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil || len(data) == 0 {
		return nil, "", ErrAvatarNotFound
	}
	return data, http.DetectContentType(data), nil
}

// Remove deletes the stored avatar. Removing an absent avatar is not
// an error.
func (s *AvatarService) Remove(ctx context.Context, userID int64) error {
	return s.storage.Delete(ctx, avatarKey(userID))
}

func avatarKey(userID int64) string {
	return fmt.Sprintf("avatars/%d", userID)
}
