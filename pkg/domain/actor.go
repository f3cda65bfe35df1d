package domain

import dErrors "boxinator/pkg/domain-errors"

// Role is the canonical caller role at the core boundary. Mapping external
// role strings onto these values is the identity provider's job.
type Role string

const (
	RoleGuest          Role = "guest"
	RoleRegisteredUser Role = "registered_user"
	RoleAdministrator  Role = "administrator"
)

var validRoles = map[Role]bool{
	RoleGuest:          true,
	RoleRegisteredUser: true,
	RoleAdministrator:  true,
}

// ParseRole accepts only the canonical role values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Actor is the identity behind a request: an authenticated user or a guest.
//
// Invariants:
//   - a guest actor has a nil ID
//   - a registered user or administrator has a non-nil ID
type Actor struct {
	ID    UserID
	Role  Role
	Email string
}

// Guest returns the anonymous actor.
func Guest() Actor {
	return Actor{Role: RoleGuest}
}

// NewUserActor builds an authenticated actor.
func NewUserActor(userID UserID, role Role, email string) (Actor, error) {
	if userID.IsNil() {
		return Actor{}, dErrors.New(dErrors.CodeInvalidInput, "authenticated actor requires a user id")
	}
	if role != RoleRegisteredUser && role != RoleAdministrator {
		return Actor{}, dErrors.New(dErrors.CodeInvalidInput, "authenticated actor requires a user role")
	}
	return Actor{ID: userID, Role: role, Email: email}, nil
}

func (a Actor) IsGuest() bool { return a.Role == RoleGuest || a.ID.IsNil() }

func (a Actor) IsAdmin() bool { return a.Role == RoleAdministrator && !a.ID.IsNil() }

// ActorID returns the user id of an authenticated actor, nil for guests.
func (a Actor) ActorID() *UserID {
	if a.IsGuest() {
		return nil
	}
	id := a.ID
	return &id
}
