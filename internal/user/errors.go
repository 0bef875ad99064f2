package user

import "errors"

var (
	// ErrUsernameTaken indicates another account already uses the username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
)
