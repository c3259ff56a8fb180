// Package authz defines the request-scoped caller identity handed to services.
// Handlers build an Actor from the validated access token and pass it
// explicitly; services never read identity from ambient state.
package authz

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role names stored in user_roles and embedded in access tokens.
const (
	RoleAdmin          = "admin"
	RoleCSR            = "csr"
	RoleInspector      = "inspector"
	RoleClient         = "client"
	RoleProjectManager = "project_manager"
	RoleWarehouse      = "warehouse"
)

// AllRoles lists every assignable role.
var AllRoles = []string{RoleAdmin, RoleCSR, RoleInspector, RoleClient, RoleProjectManager, RoleWarehouse}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID    uuid.UUID
	Roles     []string
	ExpiresAt time.Time
}

// NewActor builds an actor for the given user.
func NewActor(userID uuid.UUID, roles []string, expiresAt time.Time) Actor {
	return Actor{UserID: userID, Roles: roles, ExpiresAt: expiresAt}
}

// System is the actor used by background jobs.
func System() Actor {
	return Actor{Roles: []string{RoleAdmin}}
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// HasAnyRole reports whether the actor carries at least one of roles.
func (a Actor) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// IsStaff reports whether the actor works for the company rather than being a client.
func (a Actor) IsStaff() bool {
	return a.HasAnyRole(RoleAdmin, RoleCSR, RoleInspector, RoleProjectManager, RoleWarehouse)
}

// Expired reports whether the credential backing the actor has lapsed at now.
// A zero ExpiresAt never expires.
func (a Actor) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// ValidRole reports whether role is one of AllRoles.
func ValidRole(role string) bool {
	return slices.Contains(AllRoles, role)
}
