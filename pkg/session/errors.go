package session

import "errors"

var (
	// ErrUnknownEntity is returned when a name is not in the catalog.
	ErrUnknownEntity = errors.New("session: unknown entity")

	// ErrNotSoftDeletable is returned by SoftDelete and Restore for entities
	// without a deletion marker.
	ErrNotSoftDeletable = errors.New("session: entity is not soft-deletable")

	// ErrNoIdentity is returned by SoftDelete and Restore for entities without
	// an identity column, since the target row cannot be addressed.
	ErrNoIdentity = errors.New("session: entity has no identity column")

	// ErrNoTxSupport is returned by WithTx when the session is already bound
	// to a transaction or to a Querier that cannot begin one.
	ErrNoTxSupport = errors.New("session: querier cannot begin transactions")
)

// IsUnknownEntityErr returns true if err is or wraps ErrUnknownEntity.
func IsUnknownEntityErr(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}

// IsNotSoftDeletableErr returns true if err is or wraps ErrNotSoftDeletable.
func IsNotSoftDeletableErr(err error) bool {
	return errors.Is(err, ErrNotSoftDeletable)
}

// IsNoIdentityErr returns true if err is or wraps ErrNoIdentity.
func IsNoIdentityErr(err error) bool {
	return errors.Is(err, ErrNoIdentity)
}
