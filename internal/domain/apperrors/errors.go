package apperrors

import "errors"

// Sentinel errors shared across layers. The HTTP boundary maps each of
// these to a status code; the application and persistence layers return
// them unchanged so callers can branch with errors.Is.
var (
	// ErrInvalidData marks malformed or missing required input.
	ErrInvalidData = errors.New("invalid user data")

	// ErrUserNotFound marks a reference to a user that does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail and ErrDuplicateLogin mark uniqueness violations,
	// whether caught by the advisory pre-check or by the database's
	// unique indexes on a racing write.
	ErrDuplicateEmail = errors.New("email already in use")
	ErrDuplicateLogin = errors.New("login already in use")

	// ErrInvalidCredentials covers both unknown login and wrong password;
	// callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
