package core

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Identity is the read-only authenticated context established once per
// request by the authentication middleware. It is never shared across
// requests and is discarded when the request ends.
type Identity struct {
	Subject string
	Roles   []Role
}

type contextKey int

const identityKey contextKey = iota

const identityGinKey = "identity"

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// SetIdentity attaches the identity to the gin context and the underlying
// request context. It is idempotent: an identity established upstream is
// never overwritten.
func SetIdentity(c *gin.Context, id *Identity) {
	if GetIdentity(c) != nil {
		return
	}
	c.Set(identityGinKey, id)
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
}

// GetIdentity retrieves the identity from the gin context, or nil when the
// request is unauthenticated.
func GetIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(identityGinKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
