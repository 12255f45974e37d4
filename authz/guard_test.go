package authz

import "testing"

func TestCanAccessOrder_AdminBypassesOwnership(t *testing.T) {
	admin := Principal{ID: 2, Email: "alex@example.com", Roles: []string{"ROLE_ADMIN"}}

	if !CanAccessOrder(admin, 1) {
		t.Error("Expected admin to access any order")
	}
	if !CanAccessOrder(admin, 2) {
		t.Error("Expected admin to access own order")
	}
}

func TestCanAccessOrder_ClientOwnsOrder(t *testing.T) {
	client := Principal{ID: 1, Email: "maria@example.com", Roles: []string{"ROLE_CLIENT"}}

	if !CanAccessOrder(client, 1) {
		t.Error("Expected client to access own order")
	}
}

func TestCanAccessOrder_ClientDeniedForeignOrder(t *testing.T) {
	client := Principal{ID: 1, Email: "maria@example.com", Roles: []string{"ROLE_CLIENT"}}

	if CanAccessOrder(client, 2) {
		t.Error("Expected client to be denied another client's order")
	}
}

func TestCanAccessOrder_NoRolesDenied(t *testing.T) {
	p := Principal{ID: 1, Email: "nobody@example.com"}

	if CanAccessOrder(p, 1) {
		t.Error("Expected principal without roles to be denied")
	}
}

func TestHasRole(t *testing.T) {
	p := Principal{Roles: []string{"ROLE_CLIENT", "ROLE_ADMIN"}}

	if !p.HasRole("ROLE_ADMIN") {
		t.Error("Expected HasRole to find ROLE_ADMIN")
	}
	if p.HasRole("ROLE_OPERATOR") {
		t.Error("Expected HasRole to miss unknown role")
	}
}
