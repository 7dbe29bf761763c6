package service

import (
	"errors"
	"testing"

	"github.com/qcmhub/qcm-backend/internal/model"
)

func TestAuthorize(t *testing.T) {
	admin := Caller{UserID: 1, Role: model.RoleAdmin}
	manager := Caller{UserID: 2, Role: model.RoleManager}
	scoped := Caller{UserID: studentID, Role: model.RoleStudent, ScopeID: intPtr(3)}

	tests := []struct {
		name    string
		caller  Caller
		action  Action
		res     Resource
		allowed bool
	}{
		{"professor creates", professor, ActionCreateSession, Resource{}, true},
		{"student cannot create", student, ActionCreateSession, Resource{}, false},
		{"manager cannot create", manager, ActionCreateSession, Resource{}, false},
		{"owner deletes", professor, ActionDeleteSession, Resource{OwnerID: professorID}, true},
		{"other professor cannot delete", professor, ActionDeleteSession, Resource{OwnerID: professorID + 1}, false},
		{"admin is still owner bound", admin, ActionViewResults, Resource{OwnerID: professorID}, false},
		{"owner tracks", professor, ActionTrackSession, Resource{OwnerID: professorID}, true},
		{"student cannot track", student, ActionTrackSession, Resource{OwnerID: studentID}, false},
		{"manager lists all", manager, ActionListAllSessions, Resource{}, true},
		{"professor cannot list all", professor, ActionListAllSessions, Resource{}, false},
		{"admin lists all", admin, ActionListAllSessions, Resource{}, true},
		{"student joins unscoped", student, ActionJoinSession, Resource{}, true},
		{"unscoped student cannot join scoped", student, ActionJoinSession, Resource{ScopeID: intPtr(3)}, false},
		{"scoped student joins own scope", scoped, ActionJoinSession, Resource{ScopeID: intPtr(3)}, true},
		{"scoped student cannot join other scope", scoped, ActionJoinSession, Resource{ScopeID: intPtr(4)}, false},
		{"professor cannot join", professor, ActionJoinSession, Resource{}, false},
		{"student accesses own attempt", student, ActionAccessAttempt, Resource{OwnerID: studentID}, true},
		{"student cannot access another attempt", student, ActionAccessAttempt, Resource{OwnerID: studentID + 1}, false},
		{"unknown role", Caller{UserID: 9, Role: "guest"}, ActionJoinSession, Resource{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.caller, tc.action, tc.res)
			if tc.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}
