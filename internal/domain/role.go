// Package domain holds the entities and pure rules of the chat core:
// identities, roles and their capabilities, bans, and the error taxonomy.
// Nothing here does I/O.
package domain

// Role is a closed enumeration. Anything outside the four known roles
// carries no permissions at all.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Capability names one action a role may be allowed to perform.
type Capability string

const (
	CapViewPublicRooms  Capability = "view_public_rooms"
	CapViewMessages     Capability = "view_messages"
	CapViewWall         Capability = "view_wall"
	CapViewUsers        Capability = "view_users"
	CapViewPrivateRooms Capability = "view_private_rooms"
	CapSendMessages     Capability = "send_messages"
	CapSendPrivate      Capability = "send_private_messages"
	CapSendGifts        Capability = "send_gifts"
	CapPostOnWall       Capability = "post_on_wall"
	CapReactToMessages  Capability = "react_to_messages"
	CapManageFriends    Capability = "manage_friends"
	CapUseMicrophone    Capability = "use_microphone"
	CapReportContent    Capability = "report_content"
	CapDeleteMessages   Capability = "delete_messages"
	CapMuteUsers        Capability = "mute_users"
	CapKickUsers        Capability = "kick_users"
	CapAnnounce         Capability = "publish_announcements"
	CapManageFilters    Capability = "manage_filters"
	CapViewActivityLogs Capability = "view_activity_logs"
	CapManageRoomContent Capability = "manage_room_content"
	CapManageUsers         Capability = "manage_users"
	CapManageRoles         Capability = "manage_roles"
	CapBanUsers            Capability = "ban_users"
	CapManageSettings      Capability = "manage_global_settings"
	CapManageAnnouncements Capability = "manage_announcements"
	CapViewAllLogs         Capability = "view_all_logs"
	CapManageContentFilters Capability = "manage_content_filters"
	CapManageRooms         Capability = "manage_rooms"
	CapManageAdmins        Capability = "manage_admins"
	CapAdminPanel          Capability = "access_admin_panel"
)

var guestCaps = []Capability{
	CapViewPublicRooms,
	CapViewMessages,
	CapViewWall,
	CapViewUsers,
}

var memberCaps = append(guestCaps[:len(guestCaps):len(guestCaps)],
	CapViewPrivateRooms,
	CapSendMessages,
	CapSendPrivate,
	CapSendGifts,
	CapPostOnWall,
	CapReactToMessages,
	CapManageFriends,
	CapUseMicrophone,
	CapReportContent,
)

var moderatorCaps = append(memberCaps[:len(memberCaps):len(memberCaps)],
	CapDeleteMessages,
	CapMuteUsers,
	CapKickUsers,
	CapAnnounce,
	CapManageFilters,
	CapViewActivityLogs,
	CapManageRoomContent,
)

var adminCaps = append(moderatorCaps[:len(moderatorCaps):len(moderatorCaps)],
	CapManageUsers,
	CapManageRoles,
	CapBanUsers,
	CapManageSettings,
	CapManageAnnouncements,
	CapViewAllLogs,
	CapManageContentFilters,
	CapManageRooms,
	CapManageAdmins,
	CapAdminPanel,
)

var roleCaps = map[Role]map[Capability]struct{}{
	RoleGuest:     capSet(guestCaps),
	RoleMember:    capSet(memberCaps),
	RoleModerator: capSet(moderatorCaps),
	RoleAdmin:     capSet(adminCaps),
}

var roleRank = map[Role]int{
	RoleGuest:     0,
	RoleMember:    1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

func capSet(caps []Capability) map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}

// Roles returns the closed role set in ascending rank order.
func Roles() []Role {
	return []Role{RoleGuest, RoleMember, RoleModerator, RoleAdmin}
}

var roleDisplayNames = map[Role]string{
	RoleGuest:     "زائر",
	RoleMember:    "عضو",
	RoleModerator: "مشرف",
	RoleAdmin:     "إدارة",
}

// DisplayName returns the localized label shown next to a member's name.
// Unknown roles render as their raw value.
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank maps a role to its position in the management hierarchy.
// Unknown roles rank below guest.
func (r Role) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return -1
}

// Has reports whether the role's capability set contains cap.
// Capability sets are cumulative: every capability of a role is held by
// all higher-ranked roles. Unknown roles have no capabilities.
func (r Role) Has(cap Capability) bool {
	caps, ok := roleCaps[r]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// HasAny reports whether the role holds at least one of caps.
// An empty list is false.
func (r Role) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if r.Has(c) {
			return true
		}
	}
	return false
}

// HasAll reports whether the role holds every capability in caps.
// An empty list is vacuously true.
func (r Role) HasAll(caps ...Capability) bool {
	for _, c := range caps {
		if !r.Has(c) {
			return false
		}
	}
	return true
}

// CanManage reports whether actor outranks target. Strict: equal roles can
// never manage each other, and callers must reject self-management before
// comparing roles.
func CanManage(actor, target Role) bool {
	return actor.Rank() > target.Rank()
}

// CanDeleteMessage allows holders of delete_messages to delete any message
// and every author to delete their own.
func CanDeleteMessage(actor Role, actorID, authorID int64) bool {
	if actor.Has(CapDeleteMessages) {
		return true
	}
	return actorID == authorID
}

// CanEditMessage allows only the author. Editing is never delegable.
func CanEditMessage(actorID, authorID int64) bool {
	return actorID == authorID
}

// Require returns a ForbiddenError naming cap when r lacks it.
func Require(r Role, cap Capability) error {
	if r.Has(cap) {
		return nil
	}
	return &ForbiddenError{Missing: []Capability{cap}}
}

// RequireAny returns a ForbiddenError listing caps when r holds none of them.
func RequireAny(r Role, caps ...Capability) error {
	if r.HasAny(caps...) {
		return nil
	}
	return &ForbiddenError{Missing: caps}
}

// RequireAll returns a ForbiddenError listing the capabilities r is missing.
func RequireAll(r Role, caps ...Capability) error {
	var missing []Capability
	for _, c := range caps {
		if !r.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ForbiddenError{Missing: missing}
}
