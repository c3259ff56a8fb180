// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"
	"time"

	"interior_portal_backend/platform/authz"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity.
// Handlers use it to avoid reading raw gin context keys.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
	// Actor returns the request-scoped credential passed to services.
	Actor() authz.Actor
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	expiresAt     time.Time
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }

func (i *identity) Roles() []string { return i.roles }

func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }

func (i *identity) IsAuthenticated() bool { return i.authenticated }

func (i *identity) Actor() authz.Actor {
	return authz.NewActor(i.userID, i.roles, i.expiresAt)
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	var roles []string
	if v, ok := c.Get(ContextRolesKey); ok {
		roles, _ = v.([]string)
	}
	var expiresAt time.Time
	if v, ok := c.Get(ContextExpiresAtKey); ok {
		expiresAt, _ = v.(time.Time)
	}

	return &identity{
		userID:        uid,
		roles:         roles,
		expiresAt:     expiresAt,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}

// MustGetActor is MustGetIdentity followed by Actor. ok is false when the
// request has already been aborted.
func MustGetActor(c *gin.Context) (authz.Actor, bool) {
	id := MustGetIdentity(c)
	if id == nil {
		return authz.Actor{}, false
	}
	return id.Actor(), true
}
