// Package rbac holds the role model and the authorization decision applied
// before every catalog mutation.
package rbac

type Role string
type Action string

const (
	RoleAdmin       Role = "admin"
	RoleContributor Role = "contributor"
	RoleCommenter   Role = "commenter"

	// RoleInvalid is the zero Role; any claim that does not resolve to one
	// of the roles above lands here and is denied everything.
	RoleInvalid Role = ""
)

const (
	ActionListResources  Action = "list_resources"
	ActionCreateResource Action = "create_resource"
	ActionDeleteResource Action = "delete_resource"
	ActionCreateChild    Action = "create_child"
	ActionDeleteChild    Action = "delete_child"
	ActionEditChild      Action = "edit_child"
)

// Resolve maps an external role claim to a system role. Unknown claims
// resolve to RoleInvalid, never to a permissive default.
func Resolve(claim string) Role {
	switch Role(claim) {
	case RoleAdmin, RoleContributor, RoleCommenter:
		return Role(claim)
	default:
		return RoleInvalid
	}
}

// Valid reports whether the role is one of the three system roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleContributor || r == RoleCommenter
}

// Can decides whether role may perform action on a record created by
// ownerID, acting as actorID. Pure function, no I/O. Role validity is
// checked before ownership, so an invalid role is denied even when
// ownerID happens to equal actorID.
func Can(role Role, action Action, ownerID, actorID int64) bool {
	if !role.Valid() {
		return false
	}
	switch action {
	case ActionListResources, ActionCreateChild:
		return true
	case ActionCreateResource:
		return role == RoleAdmin || role == RoleContributor
	case ActionDeleteResource:
		return role == RoleAdmin || (role == RoleContributor && ownerID == actorID)
	case ActionDeleteChild, ActionEditChild:
		return role == RoleAdmin || ownerID == actorID
	default:
		return false
	}
}
