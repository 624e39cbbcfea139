package state

import "errors"

var (
	// ErrNotAuthenticated marks actions that require an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrPermissionDenied marks actions the current user may not perform,
	// even when invoked directly rather than through the UI.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCardNotFound marks operations against an unknown card id.
	ErrCardNotFound = errors.New("card not found")
	// ErrUserNotFound marks operations against an unknown user id.
	ErrUserNotFound = errors.New("user not found")
	// ErrSelfDelete rejects deletion of the current session's account.
	ErrSelfDelete = errors.New("the current user cannot delete their own account")
	// ErrNoFields rejects partial updates that carry nothing to change.
	ErrNoFields = errors.New("update carries no fields")
	// ErrTitleRequired rejects cards without a title.
	ErrTitleRequired = errors.New("card title is required")
	// ErrCredentialsRequired rejects accounts without username or password.
	ErrCredentialsRequired = errors.New("username and password are required")
	// ErrUsernameTaken rejects duplicate usernames.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidRole rejects roles other than admin and member.
	ErrInvalidRole = errors.New("unknown role")
)
