package dobject

import (
	"errors"
	"fmt"
)

// AuthorityViolation is raised (by panicking) when code attempts to
// mutate a field it does not have write authority over (spec.md §4.2
// "Authority", §7 "Authority violations": "operations mutating a
// server-backed object from the client raise an immediate programming
// error (not sent over the wire)").
type AuthorityViolation struct {
	FieldID uint32
	Op      string
}

func (e *AuthorityViolation) Error() string {
	return fmt.Sprintf("dobject: authority violation: %s on field %d", e.Op, e.FieldID)
}

// FriendlyException is an access-denied or validation failure the server
// is permitted to surface verbatim to the client (spec.md §7). Anything
// else thrown during subscription is logged server-side only.
type FriendlyException struct {
	Cause string
}

func (e *FriendlyException) Error() string { return e.Cause }

// IsFriendly reports whether err is (or wraps) a *FriendlyException.
func IsFriendly(err error) (*FriendlyException, bool) {
	var fe *FriendlyException
	ok := errors.As(err, &fe)
	return fe, ok
}
