package store

import "errors"

// ErrUnavailable indicates the log database could not be reached or
// written. Callers surface it but still return any reply that was already
// generated; a storage failure never terminates a session.
var ErrUnavailable = errors.New("conversation store unavailable")
