package entity

import "errors"

// Catalog construction errors. They indicate a mistake in the model
// definitions or the catalog file and are meant to fail startup.
var (
	// ErrDuplicateEntity is returned when two entities share a table or type name.
	ErrDuplicateEntity = errors.New("entity: duplicate entity")

	// ErrEmptyTableName is returned when no table name could be derived,
	// e.g. for an anonymous struct without TableName.
	ErrEmptyTableName = errors.New("entity: empty table name")

	// ErrInvalidColumn is returned when a configured column name is not a
	// plain identifier.
	ErrInvalidColumn = errors.New("entity: invalid column name")
)

// IsDuplicateEntityErr returns true if err is or wraps ErrDuplicateEntity.
func IsDuplicateEntityErr(err error) bool {
	return errors.Is(err, ErrDuplicateEntity)
}

// IsEmptyTableNameErr returns true if err is or wraps ErrEmptyTableName.
func IsEmptyTableNameErr(err error) bool {
	return errors.Is(err, ErrEmptyTableName)
}

// IsInvalidColumnErr returns true if err is or wraps ErrInvalidColumn.
func IsInvalidColumnErr(err error) bool {
	return errors.Is(err, ErrInvalidColumn)
}
