package repository

import "errors"

var (
	// ErrNotFound is returned when no live row has the requested identity.
	ErrNotFound = errors.New("repository: not found")

	// ErrNotRegistered is returned by New when T is not in the session's
	// catalog.
	ErrNotRegistered = errors.New("repository: model is not in the catalog")

	// ErrNoIdentity is returned by New when T's entity has no identity
	// column, since rows cannot be addressed by id.
	ErrNoIdentity = errors.New("repository: model has no identity column")
)

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}
