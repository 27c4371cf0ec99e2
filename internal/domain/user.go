package domain

import "errors"

const MaxNameLen = 36

var (
	ErrNameEmpty   = errors.New("name empty")
	ErrNameTooLong = errors.New("name too long")
)

type UserID int64

// Identity is a connected participant. It is built at handshake and lives
// only as long as the connection; the durable account record stays in
// storage. Fingerprint and Addr exist for ban matching and are never
// exposed to other clients.
type Identity struct {
	ID          UserID `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Fingerprint string `json:"-"`
	Addr        string `json:"-"`
}

// NewIdentity validates the display name and keeps construction out of the
// adapters.
func NewIdentity(id UserID, name string, role Role) (*Identity, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	if !role.Valid() {
		role = RoleGuest
	}
	return &Identity{ID: id, Name: name, Role: role}, nil
}
