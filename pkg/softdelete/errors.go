package softdelete

import "errors"

// ErrUnknownOuterJoinMode is returned by ParseOuterJoinMode for an
// unrecognized mode name.
var ErrUnknownOuterJoinMode = errors.New("softdelete: unknown outer join mode")

// IsUnknownOuterJoinModeErr returns true if err is or wraps ErrUnknownOuterJoinMode.
func IsUnknownOuterJoinModeErr(err error) bool {
	return errors.Is(err, ErrUnknownOuterJoinMode)
}
