package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

type fakeObjectStorage struct {
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func pngBytes() []byte {
	// Enough of a PNG for content-type sniffing.
	return append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
}

func TestAvatarUploadFetchRemove(t *testing.T) {
	storage := newFakeObjectStorage()
	svc := NewAvatarService(storage)
	ctx := context.Background()

	if err := svc.Upload(ctx, 1, pngBytes()); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	data, contentType, err := svc.Fetch(ctx, 1)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if contentType != "image/png" {
		t.Errorf("unexpected content type %q", contentType)
	}
	if !bytes.Equal(data, pngBytes()) {
		t.Errorf("avatar bytes did not round-trip")
	}

	if err := svc.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, _, err := svc.Fetch(ctx, 1); !errors.Is(err, ErrAvatarNotFound) {
		t.Fatalf("expected ErrAvatarNotFound after removal, got %v", err)
	}
}

func TestAvatarUpload_RejectsNonImage(t *testing.T) {
	svc := NewAvatarService(newFakeObjectStorage())

	err := svc.Upload(context.Background(), 1, []byte("plain text, not an image"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAvatarUpload_RejectsOversize(t *testing.T) {
	svc := NewAvatarService(newFakeObjectStorage())

	big := append(pngBytes(), make([]byte, MaxAvatarBytes)...)
	err := svc.Upload(context.Background(), 1, big)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAvatarFetch_Missing(t *testing.T) {
	svc := NewAvatarService(newFakeObjectStorage())

	if _, _, err := svc.Fetch(context.Background(), 42); !errors.Is(err, ErrAvatarNotFound) {
		t.Fatalf("expected ErrAvatarNotFound, got %v", err)
	}
}
