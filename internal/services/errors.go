package services

import "errors"

// ErrInvalidCredentials is returned for a failed login. Unknown email
// and wrong password intentionally collapse into this one error so the
// response cannot confirm whether an account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAvatarNotFound is returned when a user has no stored avatar.
var ErrAvatarNotFound = errors.New("avatar not found")

// ValidationError reports a client-fault problem with supplied fields.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func newValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}
