// Package apierr defines the typed error kinds the dispatcher maps to a
// specific outbound message or connection action, per the error handling
// design: an error never escapes the dispatcher boundary.
package apierr

import "errors"

// Kind classifies an error into one of the dispatcher's response strategies.
type Kind int

const (
	KindAuth Kind = iota
	KindValidation
	KindPermission
	KindNotFound
	KindRateLimited
	KindConflict
	KindEvicted
)

// Error is a typed application error carrying a Kind and a human-readable
// message safe to surface to the originating client.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// Sentinel errors used for errors.Is comparisons where no dynamic message is needed.
var (
	ErrBadRealm         = New(KindNotFound, "malformed realm map")
	ErrBadRoom          = New(KindValidation, "invalid room index")
	ErrUnknownUser      = New(KindNotFound, "unknown user")
	ErrAlreadyJoining   = New(KindConflict, "Already joining a space.")
	ErrRealmNotFound    = New(KindNotFound, "Space not found")
	ErrProfileNotFound  = New(KindNotFound, "Failed to get profile")
	ErrShareLinkMissing = New(KindPermission, "This realm requires a share link.")
	ErrShareLinkChanged = New(KindPermission, "The share link has been changed.")
)
