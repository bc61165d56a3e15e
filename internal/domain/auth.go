package domain

// Actor is the authenticated caller of an operation. Acting is the role
// the caller is exercising for this request, fixed by the portal it came
// through; it must be one of Roles.
type Actor struct {
	ID     string
	Roles  RoleSet
	Acting Role
}

// NewActor builds the actor for user acting as role.
func NewActor(user *User, acting Role) Actor {
	return Actor{ID: user.ID, Roles: user.Roles, Acting: acting}
}

// HoldsActingRole reports whether the acting role was actually granted.
func (a Actor) HoldsActingRole() bool {
	return a.Acting != "" && a.Roles.Has(a.Acting)
}
