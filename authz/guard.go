// Package authz holds the pure access decisions made after authentication.
package authz

// Principal is the authenticated identity resolved from the bearer token.
type Principal struct {
	ID    int
	Email string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

const (
	roleClient = "ROLE_CLIENT"
	roleAdmin  = "ROLE_ADMIN"
)

// CanAccessOrder decides whether the principal may read an order owned by
// ownerID: admins always can, clients only their own orders.
func CanAccessOrder(p Principal, ownerID int) bool {
	if p.HasRole(roleAdmin) {
		return true
	}
	if p.HasRole(roleClient) {
		return p.ID == ownerID
	}
	return false
}
