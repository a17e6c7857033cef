package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/identity"
)

// Context keys
const (
	identityKey  = "identity"
	requestIDKey = "request_id"
)

// SetIdentity attaches p to the request. An identity is attached at most
// once; later calls are ignored and report false.
func SetIdentity(c *gin.Context, p *identity.Principal) bool {
	if p == nil {
		return false
	}
	if _, exists := c.Get(identityKey); exists {
		return false
	}
	c.Set(identityKey, p)
	return true
}

// Identity returns the principal attached to the request, if any.
func Identity(c *gin.Context) (*identity.Principal, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*identity.Principal)
	return p, ok
}

// MustIdentity returns the attached principal. Only call it behind
// AuthRequired or AuthAdmin.
func MustIdentity(c *gin.Context) *identity.Principal {
	p, ok := Identity(c)
	if !ok {
		panic("middleware: no identity attached; route is missing an auth stage")
	}
	return p
}

// GetRequestID returns the request id assigned by the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
