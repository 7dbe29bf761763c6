package service

import (
	"fmt"

	"github.com/qcmhub/qcm-backend/internal/model"
)

// Caller is the authenticated identity a request acts as.
type Caller struct {
	UserID  int
	Role    model.Role
	ScopeID *int
}

// Action names a capability checked by Authorize.
type Action string

const (
	ActionCreateSession   Action = "session:create"
	ActionDeleteSession   Action = "session:delete"
	ActionTrackSession    Action = "session:track"
	ActionViewResults     Action = "session:results"
	ActionListOwnSessions Action = "session:list_own"
	ActionListAllSessions Action = "session:list_all"
	ActionJoinSession     Action = "session:join"
	ActionAccessAttempt   Action = "attempt:access"
)

// Resource carries the ownership and scope facts an action is checked against.
type Resource struct {
	OwnerID int
	ScopeID *int
}

var rolePermissions = map[model.Role][]Action{
	model.RoleStudent: {
		ActionJoinSession,
		ActionAccessAttempt,
	},
	model.RoleProfessor: {
		ActionCreateSession,
		ActionDeleteSession,
		ActionTrackSession,
		ActionViewResults,
		ActionListOwnSessions,
	},
	model.RoleManager: {
		ActionListAllSessions,
	},
	model.RoleAdmin: {
		ActionCreateSession,
		ActionDeleteSession,
		ActionTrackSession,
		ActionViewResults,
		ActionListOwnSessions,
		ActionListAllSessions,
	},
}

func hasPermission(role model.Role, action Action) bool {
	for _, a := range rolePermissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

// Authorize reports whether caller may perform action on res.
// Owner-bound actions require caller to be the resource owner even when the role grants them.
func Authorize(caller Caller, action Action, res Resource) error {
	if !hasPermission(caller.Role, action) {
		return fmt.Errorf("%w: role %q cannot %s", ErrForbidden, caller.Role, action)
	}

	switch action {
	case ActionDeleteSession, ActionTrackSession, ActionViewResults, ActionAccessAttempt:
		if caller.UserID != res.OwnerID {
			return fmt.Errorf("%w: not the owner", ErrForbidden)
		}
	case ActionJoinSession:
		if res.ScopeID != nil && (caller.ScopeID == nil || *caller.ScopeID != *res.ScopeID) {
			return fmt.Errorf("%w: session is restricted to another scope", ErrForbidden)
		}
	}
	return nil
}
