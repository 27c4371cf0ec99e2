// Package protocol defines the tagged wire events exchanged over the
// signaling connection. Every event carries a Type tag; payloads are
// validated at the connection boundary instead of assumed by shape.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
)

// Inbound event types.
const (
	TypeJoinRoom     = "join-room"
	TypeLeaveRoom    = "leave-room"
	TypeChatMessage  = "chat-message"
	TypeMediaState   = "media-state"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeHangup       = "hangup"
	TypePing         = "ping"
)

// Outbound-only event types.
const (
	TypeWelcome         = "welcome"
	TypePresenceRoster  = "presence-roster"
	TypeRoomState       = "room-state"
	TypeLeft            = "left"
	TypeMemberJoined    = "member-joined"
	TypeMemberLeft      = "member-left"
	TypeBanned          = "banned"
	TypeMessageFiltered = "message-filtered"
	TypeError           = "error"
	TypePong            = "pong"
)

// Error codes carried by Error events.
const (
	CodeBadPayload         = "bad_payload"
	CodeUnknownType        = "unknown_type"
	CodeForbidden          = "forbidden"
	CodeRateLimited        = "rate_limited"
	CodeStorageUnavailable = "storage_unavailable"
	CodeNoSuchPeer         = "no_such_peer"
	CodeSessionConflict    = "session_conflict"
	CodeBadSignalState     = "bad_signal_state"
)

// Envelope is the minimal shape read from every inbound frame to pick the
// variant.
type Envelope struct {
	Type string `json:"type"`
}

// JoinRoom is inbound; a client may be in at most one room, joining a new
// one leaves the previous room first.
type JoinRoom struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}

type LeaveRoom struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room,omitempty"`
}

// ChatMessage is both inbound (room, text) and outbound (message, user).
type ChatMessage struct {
	Type    string           `json:"type"`
	Room    domain.RoomID    `json:"room,omitempty"`
	Text    string           `json:"text,omitempty"`
	Message *domain.Message  `json:"message,omitempty"`
	User    *domain.Identity `json:"user,omitempty"`
}

// MediaState is inbound as the local mic/video toggle and rebroadcast to
// room mates as a status update. It never touches negotiation state.
type MediaState struct {
	Type  string        `json:"type"`
	User  domain.UserID `json:"user,omitempty"`
	Mic   bool          `json:"mic"`
	Video bool          `json:"video"`
}

// Signal carries offer/answer SDP between a peer pair, relayed verbatim.
// Peer is the counterpart's user id; on delivery it is rewritten to name
// the sender.
type Signal struct {
	Type string        `json:"type"`
	Peer domain.UserID `json:"peer"`
	SDP  string        `json:"sdp"`
}

type ICECandidate struct {
	Type          string        `json:"type"`
	Peer          domain.UserID `json:"peer"`
	Candidate     string        `json:"candidate"`
	SDPMid        *string       `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16       `json:"sdpMLineIndex,omitempty"`
}

type Hangup struct {
	Type   string        `json:"type"`
	Peer   domain.UserID `json:"peer"`
	Reason string        `json:"reason,omitempty"`
}

// ICEServer describes STUN/TURN servers advertised to clients at
// handshake.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type Welcome struct {
	Type       string           `json:"type"`
	User       *domain.Identity `json:"user"`
	ICEServers []ICEServer      `json:"iceServers,omitempty"`
}

// RosterEntry is one connected identity as seen by every client. Only
// display fields; fingerprints and addresses stay server-side.
type RosterEntry struct {
	ID    domain.UserID `json:"id"`
	Name  string        `json:"name"`
	Role  domain.Role   `json:"role"`
	Room  domain.RoomID `json:"room,omitempty"`
	Mic   bool          `json:"mic"`
	Video bool          `json:"video"`
}

type PresenceRoster struct {
	Type  string        `json:"type"`
	Users []RosterEntry `json:"users"`
}

type RoomState struct {
	Type    string            `json:"type"`
	Room    domain.RoomID     `json:"room"`
	Members []core.MemberInfo `json:"members"`
	Count   int               `json:"count"`
}

// Left confirms a leave-room to the leaver; Room names the room that was
// left, empty when the session was not in one.
type Left struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room,omitempty"`
}

type MemberEvent struct {
	Type string           `json:"type"`
	Room domain.RoomID    `json:"room"`
	User *domain.Identity `json:"user"`
}

type Banned struct {
	Type      string     `json:"type"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type MessageFiltered struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type Pong struct {
	Type string `json:"type"`
}

// Encode marshals an event into a frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
