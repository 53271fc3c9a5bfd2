package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/taskhub/accounts/internal/store"
	"github.com/taskhub/accounts/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 7

// AccountEventsChannel is the broker channel carrying account
// lifecycle events consumed by the mail worker.
const AccountEventsChannel = "account-events"

// Account event types.
const (
	EventAccountCreated = "account.created"
	EventAccountDeleted = "account.deleted"
)

// AccountEvent is the payload published on AccountEventsChannel.
type AccountEvent struct {
	Type  string `json:"type"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int64) (types.User, error)
}

// TokenIssuer mints a new session token bound to a user identity.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// EventPublisher delivers account lifecycle events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountService owns the lifecycle of a user record and its session
// token list.
type AccountService struct {
	repo   UserRepository
	issuer TokenIssuer
	events EventPublisher
}

// NewAccountService constructs the service. events may be nil, in which
// case lifecycle events are not published.
func NewAccountService(repo UserRepository, issuer TokenIssuer, events EventPublisher) *AccountService {
	return &AccountService{
		repo:   repo,
		issuer: issuer,
		events: events,
	}
}

// Register creates a user from candidate fields, persists it, then
// mints and appends the first session token.
func (s *AccountService) Register(ctx context.Context, candidate types.NewUser) (types.User, string, error) {
	user := types.User{
		Name:  strings.TrimSpace(candidate.Name),
		Email: normalizeEmail(candidate.Email),
		Age:   candidate.Age,
	}
	if err := validateProfile(user); err != nil {
		return types.User{}, "", err
	}
	if err := validatePassword(candidate.Password); err != nil {
		return types.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(candidate.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, "", err
	}
	user.PasswordHash = string(hash)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, "", newValidationError("email already in use")
		}
		return types.User{}, "", err
	}

	tokenString, err := s.appendToken(ctx, &created)
	if err != nil {
		return types.User{}, "", err
	}

	s.publish(ctx, EventAccountCreated, created)
	return created, tokenString, nil
}

// Login verifies credentials, mints a new session token, and appends it
// to the user's token list.
func (s *AccountService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	tokenString, err := s.appendToken(ctx, &user)
	if err != nil {
		return types.User{}, "", err
	}
	return user, tokenString, nil
}

// LogoutCurrent removes the entries equal to the presented token from
// the user's token list, leaving every other session valid. Removing an
// already-absent token is not an error.
func (s *AccountService) LogoutCurrent(ctx context.Context, user types.User, presentedToken string) error {
	kept := make([]string, 0, len(user.Tokens))
	for _, t := range user.Tokens {
		if t != presentedToken {
			kept = append(kept, t)
		}
	}
	user.Tokens = kept
	_, err := s.repo.Update(ctx, user)
	return err
}

// LogoutAll clears the user's token list. Idempotent.
func (s *AccountService) LogoutAll(ctx context.Context, user types.User) error {
	user.Tokens = []string{}
	_, err := s.repo.Update(ctx, user)
	return err
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update fetches the user, applies the non-nil fields, re-validates,
// and persists. A password change is re-hashed before the save.
func (s *AccountService) Update(ctx context.Context, id int64, upd types.UserUpdate) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		user.Email = normalizeEmail(*upd.Email)
	}
	if upd.Age != nil {
		user.Age = *upd.Age
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return types.User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hash)
	}

	if err := validateProfile(user); err != nil {
		return types.User{}, err
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, newValidationError("email already in use")
		}
		return types.User{}, err
	}
	return updated, nil
}

// Delete removes the user in one atomic find-and-delete and returns the
// snapshot as it existed before deletion. All sessions die with the row.
func (s *AccountService) Delete(ctx context.Context, id int64) (types.User, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	s.publish(ctx, EventAccountDeleted, deleted)
	return deleted, nil
}

func (s *AccountService) appendToken(ctx context.Context, user *types.User) (string, error) {
	tokenString, err := s.issuer.Issue(user.ID)
	if err != nil {
		return "", err
	}
	user.Tokens = append(user.Tokens, tokenString)
	saved, err := s.repo.Update(ctx, *user)
	if err != nil {
		return "", err
	}
	*user = saved
	return tokenString, nil
}

// publish is best-effort: a broker failure never fails the request.
func (s *AccountService) publish(ctx context.Context, eventType string, user types.User) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(AccountEvent{
		Type:  eventType,
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	})
	if err != nil {
		return
	}
	attrs := map[string]string{"type": eventType}
	if _, err := s.events.Publish(ctx, AccountEventsChannel, payload, attrs); err != nil {
		slog.Warn("failed to publish account event", "type", eventType, "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateProfile(user types.User) error {
	if user.Name == "" {
		return newValidationError("name is required")
	}
	if user.Email == "" {
		return newValidationError("email is required")
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return newValidationError("email is invalid")
	}
	if user.Age < 0 {
		return newValidationError("age must be a positive number")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return newValidationError("password must be at least 7 characters")
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return newValidationError("password cannot contain \"password\"")
	}
	return nil
}
