package domain

import "time"

// Ban blocks a fingerprint and/or network address from connecting.
// A nil ExpiresAt means the ban is permanent; an expiry in the past makes
// the record inert.
type Ban struct {
	Fingerprint string
	Addr        string
	Reason      string
	ExpiresAt   *time.Time
}

// ActiveAt reports whether the ban still blocks connections at t.
func (b *Ban) ActiveAt(t time.Time) bool {
	if b == nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(t)
}

// Matches reports whether the ban applies to the given fingerprint or
// address. Empty ban fields never match, so a record targeting only an
// address cannot catch every client that omits a fingerprint.
func (b *Ban) Matches(fingerprint, addr string) bool {
	if b == nil {
		return false
	}
	if b.Fingerprint != "" && b.Fingerprint == fingerprint {
		return true
	}
	return b.Addr != "" && b.Addr == addr
}
