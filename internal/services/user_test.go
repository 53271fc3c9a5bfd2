package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/taskhub/accounts/internal/store"
	"github.com/taskhub/accounts/types"
	"golang.org/x/crypto/bcrypt"
)

// -------- test fakes --------

type fakeUserRepo struct {
	users  map[int64]types.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]types.User), nextID: 1}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.ID = f.nextID
	f.nextID++
	if user.Tokens == nil {
		user.Tokens = []string{}
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range f.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int64) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	delete(f.users, id)
	return user, nil
}

type fakeIssuer struct {
	count int
}

func (f *fakeIssuer) Issue(userID int64) (string, error) {
	f.count++
	return fmt.Sprintf("token-%d-%d", userID, f.count), nil
}

type fakeEvents struct {
	published []AccountEvent
	err       error
}

func (f *fakeEvents) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, AccountEvent{Type: attrs["type"]})
	return "msg-1", nil
}

// -------- helpers --------

func newService(t *testing.T) (*AccountService, *fakeUserRepo, *fakeEvents) {
	t.Helper()
	repo := newFakeUserRepo()
	events := &fakeEvents{}
	return NewAccountService(repo, &fakeIssuer{}, events), repo, events
}

func mustRegister(t *testing.T, s *AccountService, name, email, password string) (types.User, string) {
	t.Helper()
	user, tok, err := s.Register(context.Background(), types.NewUser{Name: name, Email: email, Password: password})
	if err != nil {
		t.Fatalf("Register(%s) error: %v", email, err)
	}
	return user, tok
}

// -------- tests --------

func TestRegister_Success(t *testing.T) {
	svc, repo, events := newService(t)

	user, tok, err := svc.Register(context.Background(), types.NewUser{
		Name:     "A",
		Email:    "A@X.com ",
		Password: "secret1",
		Age:      30,
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected a minted token")
	}
	if user.Email != "a@x.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "secret1" || user.PasswordHash == "" {
		t.Errorf("password was not hashed: %q", user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}

	stored := repo.users[user.ID]
	if len(stored.Tokens) != 1 || stored.Tokens[0] != tok {
		t.Errorf("expected the minted token to be persisted, got %v", stored.Tokens)
	}
	if len(events.published) != 1 || events.published[0].Type != EventAccountCreated {
		t.Errorf("expected one account.created event, got %+v", events.published)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newService(t)

	cases := []struct {
		name      string
		candidate types.NewUser
	}{
		{"missing name", types.NewUser{Email: "a@x.com", Password: "secret1"}},
		{"missing email", types.NewUser{Name: "A", Password: "secret1"}},
		{"invalid email", types.NewUser{Name: "A", Email: "not-an-email", Password: "secret1"}},
		{"short password", types.NewUser{Name: "A", Email: "a@x.com", Password: "abc"}},
		{"password contains password", types.NewUser{Name: "A", Email: "a@x.com", Password: "myPassword1"}},
		{"negative age", types.NewUser{Name: "A", Email: "a@x.com", Password: "secret1", Age: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tc.candidate)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, repo, _ := newService(t)

	first, _ := mustRegister(t, svc, "A", "a@x.com", "secret1")

	_, _, err := svc.Register(context.Background(), types.NewUser{Name: "B", Email: "a@x.com", Password: "secret2"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for duplicate email, got %v", err)
	}

	// First account is untouched.
	stored := repo.users[first.ID]
	if stored.Name != "A" || len(stored.Tokens) != 1 {
		t.Errorf("first account was affected by the failed registration: %+v", stored)
	}
}

func TestLogin_AppendsDistinctToken(t *testing.T) {
	svc, repo, _ := newService(t)
	user, firstToken := mustRegister(t, svc, "A", "a@x.com", "secret1")

	_, loginToken, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if loginToken == firstToken {
		t.Fatalf("expected a fresh token, got the registration token again")
	}

	stored := repo.users[user.ID]
	if len(stored.Tokens) != 2 {
		t.Fatalf("expected the login token to be appended, got %v", stored.Tokens)
	}
	if stored.Tokens[0] != firstToken || stored.Tokens[1] != loginToken {
		t.Errorf("token order not preserved: %v", stored.Tokens)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newService(t)
	mustRegister(t, svc, "A", "a@x.com", "secret1")

	_, _, wrongPassword := svc.Login(context.Background(), "a@x.com", "wrong")
	_, _, unknownEmail := svc.Login(context.Background(), "nobody@x.com", "secret1")

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", unknownEmail)
	}
}

func TestLogoutCurrent_RemovesOnlyPresentedToken(t *testing.T) {
	svc, repo, _ := newService(t)
	user, firstToken := mustRegister(t, svc, "A", "a@x.com", "secret1")
	_, secondToken, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	current := repo.users[user.ID]
	if err := svc.LogoutCurrent(context.Background(), current, firstToken); err != nil {
		t.Fatalf("LogoutCurrent error: %v", err)
	}

	stored := repo.users[user.ID]
	if len(stored.Tokens) != 1 || stored.Tokens[0] != secondToken {
		t.Fatalf("expected only the other session to survive, got %v", stored.Tokens)
	}

	// Logging out an already-removed token is a no-op, not an error.
	if err := svc.LogoutCurrent(context.Background(), stored, firstToken); err != nil {
		t.Fatalf("idempotent logout failed: %v", err)
	}
	if got := repo.users[user.ID].Tokens; len(got) != 1 {
		t.Fatalf("second logout changed the list: %v", got)
	}
}

func TestLogoutAll_Idempotent(t *testing.T) {
	svc, repo, _ := newService(t)
	user, _ := mustRegister(t, svc, "A", "a@x.com", "secret1")
	if _, _, err := svc.Login(context.Background(), "a@x.com", "secret1"); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if err := svc.LogoutAll(context.Background(), repo.users[user.ID]); err != nil {
		t.Fatalf("LogoutAll error: %v", err)
	}
	if got := repo.users[user.ID].Tokens; len(got) != 0 {
		t.Fatalf("expected an empty token list, got %v", got)
	}

	if err := svc.LogoutAll(context.Background(), repo.users[user.ID]); err != nil {
		t.Fatalf("LogoutAll on empty list failed: %v", err)
	}
}

func TestUpdate_RehashesPassword(t *testing.T) {
	svc, repo, _ := newService(t)
	user, _ := mustRegister(t, svc, "A", "a@x.com", "secret1")
	oldHash := repo.users[user.ID].PasswordHash

	newPassword := "another7"
	_, err := svc.Update(context.Background(), user.ID, types.UserUpdate{Password: &newPassword})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	stored := repo.users[user.ID]
	if stored.PasswordHash == oldHash {
		t.Fatalf("expected the password hash to change")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(newPassword)); err != nil {
		t.Errorf("new hash does not verify: %v", err)
	}
}

func TestUpdate_Validation(t *testing.T) {
	svc, repo, _ := newService(t)
	user, _ := mustRegister(t, svc, "A", "a@x.com", "secret1")

	bad := "nope"
	_, err := svc.Update(context.Background(), user.ID, types.UserUpdate{Email: &bad})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if repo.users[user.ID].Email != "a@x.com" {
		t.Errorf("failed update mutated the record")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newService(t)

	name := "B"
	_, err := svc.Update(context.Background(), 99, types.UserUpdate{Name: &name})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_ReturnsSnapshotAndPublishes(t *testing.T) {
	svc, repo, events := newService(t)
	user, tok := mustRegister(t, svc, "A", "a@x.com", "secret1")

	deleted, err := svc.Delete(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if deleted.ID != user.ID || len(deleted.Tokens) != 1 || deleted.Tokens[0] != tok {
		t.Errorf("unexpected snapshot: %+v", deleted)
	}
	if _, ok := repo.users[user.ID]; ok {
		t.Errorf("record still present after delete")
	}
	if len(events.published) != 2 || events.published[1].Type != EventAccountDeleted {
		t.Errorf("expected an account.deleted event, got %+v", events.published)
	}

	if _, err := svc.Delete(context.Background(), user.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	repo := newFakeUserRepo()
	events := &fakeEvents{err: errors.New("broker down")}
	svc := NewAccountService(repo, &fakeIssuer{}, events)

	if _, _, err := svc.Register(context.Background(), types.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register should succeed despite broker failure: %v", err)
	}
}
