package domain

import (
	"fmt"
	"strings"
	"time"
)

// ForbiddenError rejects one request for missing capabilities. The
// connection stays open.
type ForbiddenError struct {
	Missing []Capability
}

func (e *ForbiddenError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("forbidden: missing %s", strings.Join(names, ", "))
}

// FilteredError rejects one message for disallowed content. Reported to the
// sender only.
type FilteredError struct {
	RoomID RoomID
	Word   string
}

func (e *FilteredError) Error() string {
	return "message filtered"
}

// BannedError refuses a connection. This is the only error class that
// closes the transport.
type BannedError struct {
	Reason    string
	ExpiresAt *time.Time
}

func (e *BannedError) Error() string {
	if e.ExpiresAt == nil {
		return fmt.Sprintf("banned: %s", e.Reason)
	}
	return fmt.Sprintf("banned until %s: %s", e.ExpiresAt.Format(time.RFC3339), e.Reason)
}

// SessionConflictError rejects a duplicate signaling session for a peer
// pair. The existing session is untouched.
type SessionConflictError struct {
	Local  string
	Remote string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("peer session already exists for %s and %s", e.Local, e.Remote)
}

// StorageError wraps a persistence failure. The message is not broadcast
// and the sender may retry on the same connection.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
