package core

import (
	"sync"

	"github.com/dardasha/relay/internal/domain"
)

// MemberSession binds an identity to its transport endpoint plus the
// connection-scoped media toggles. This is what the registry and rooms
// store and fan out to.
type MemberSession struct {
	id     SessionID
	ident  *domain.Identity
	signal SignalConnection

	mu    sync.RWMutex
	mic   bool
	video bool

	teardown sync.Once
}

func NewMemberSession(id SessionID, ident *domain.Identity, signal SignalConnection) *MemberSession {
	return &MemberSession{id: id, ident: ident, signal: signal}
}

func (m *MemberSession) ID() SessionID             { return m.id }
func (m *MemberSession) Identity() *domain.Identity { return m.ident }
func (m *MemberSession) Signal() SignalConnection  { return m.signal }

// SetMedia records the local mic/video toggle state. Purely bookkeeping;
// negotiation state is untouched.
func (m *MemberSession) SetMedia(mic, video bool) {
	m.mu.Lock()
	m.mic, m.video = mic, video
	m.mu.Unlock()
}

func (m *MemberSession) Media() (mic, video bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mic, m.video
}

// Teardown runs f at most once for the life of the session, no matter how
// many disconnect signals race in. Cleanup must observe a disconnect
// exactly once.
func (m *MemberSession) Teardown(f func()) {
	m.teardown.Do(f)
}

// MemberInfo is the read-only roster view of a session. Fingerprint and
// address never appear here.
type MemberInfo struct {
	ID    domain.UserID `json:"id"`
	Name  string        `json:"name"`
	Role  domain.Role   `json:"role"`
	Mic   bool          `json:"mic"`
	Video bool          `json:"video"`
}

func (m *MemberSession) Info() MemberInfo {
	mic, video := m.Media()
	return MemberInfo{
		ID:    m.ident.ID,
		Name:  m.ident.Name,
		Role:  m.ident.Role,
		Mic:   mic,
		Video: video,
	}
}
