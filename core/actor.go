package core

import "github.com/pkg/errors"

// Role is the closed set of roles an Actor may hold.
type Role string

const (
	RoleTeacher       Role = "TEACHER"
	RoleCenterManager Role = "CENTER_MANAGER"
	RoleAdmin         Role = "ADMIN"
)

var (
	AllRoles = []Role{RoleTeacher, RoleCenterManager, RoleAdmin}

	errUnknownRole = errors.New("unknown role")
)

// ParseRole maps a role string to a Role.
func ParseRole(s string) (Role, error) {
	role := Role(CleanString(s, true /* upper */))
	for _, r := range AllRoles {
		if r == role {
			return role, nil
		}
	}
	return "", errors.Wrap(errUnknownRole, s)
}

func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// IsElevated reports whether the role bypasses center matching.
func (r Role) IsElevated() bool {
	return r == RoleAdmin
}

// Actor is the request-scoped identity supplied by the authentication layer.
// CenterCode is empty for ADMIN.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Role       Role   `json:"role"`
	CenterCode string `json:"center_code,omitempty"`
}

// SystemActor is used by internal tooling (eg. the admin CLI).
var SystemActor = Actor{ID: "system", Name: "System", Role: RoleAdmin}

func (a Actor) IsAdmin() bool {
	return a.Role.IsElevated()
}

// CanAccessCenter is the authorization rule shared by every operation.
func CanAccessCenter(role Role, actorCenter, targetCenter string) bool {
	if role.IsElevated() {
		return true
	}
	if !role.IsValid() || actorCenter == "" {
		return false
	}
	return actorCenter == targetCenter
}

func (a Actor) CanAccess(centerCode string) bool {
	return CanAccessCenter(a.Role, a.CenterCode, centerCode)
}

// Authorize returns ErrPermissionDenied if the actor cannot act on centerCode.
func (a Actor) Authorize(centerCode string) error {
	if !a.CanAccess(centerCode) {
		return errors.Wrapf(ErrPermissionDenied, "actor %q on center %q", a.ID, centerCode)
	}
	return nil
}

// ResolveCenter returns the center an actor operates on:
// an ADMIN uses the requested one, everybody else is bound to their own.
func (a Actor) ResolveCenter(requested string) string {
	if a.IsAdmin() {
		return CleanString(requested)
	}
	return a.CenterCode
}
