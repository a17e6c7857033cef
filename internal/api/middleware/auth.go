package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/user"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/identity"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
)

// AuthMode selects the identity gate applied to a route
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthOptional
	AuthRequired
	AuthAdmin
)

// String returns the mode name
func (m AuthMode) String() string {
	switch m {
	case AuthOptional:
		return "optional"
	case AuthRequired:
		return "required"
	case AuthAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Client-facing identity gate messages
const (
	MessageTokenRequired = "Access token required"
	MessageInvalidToken  = "Invalid or expired token"
	MessageUserNotFound  = "User not found"
	MessageAdminRequired = "Admin access required"
)

// UserLookup loads the user record behind a principal
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

// Authenticator builds identity gate middleware
type Authenticator struct {
	verifier identity.Verifier
	users    UserLookup
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(verifier identity.Verifier, users UserLookup, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, users: users, logger: logger}
}

// WithMetrics adds auth failure and provider latency tracking
func (a *Authenticator) WithMetrics(metrics *monitoring.Metrics) *Authenticator {
	a.metrics = metrics
	return a
}

// Handler returns the middleware for mode, or nil for AuthNone
func (a *Authenticator) Handler(mode AuthMode) gin.HandlerFunc {
	switch mode {
	case AuthOptional:
		return a.Optional()
	case AuthRequired:
		return a.Require()
	case AuthAdmin:
		return a.Admin()
	default:
		return nil
	}
}

// Require blocks requests without a verifiable bearer token
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// Optional attaches an identity when the token verifies and otherwise
// proceeds anonymously
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		if p, err := a.verify(c.Request.Context(), token); err == nil {
			SetIdentity(c, p)
		} else {
			logging.FromContext(c.Request.Context(), a.logger).Debug("Optional auth proceeding anonymously", zap.Error(err))
		}
		c.Next()
	}
}

// Admin requires a verified token, an existing user record and an admin
// role claim in either metadata site
func (a *Authenticator) Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := a.authenticate(c)
		if !ok {
			return
		}

		if _, err := a.users.FindByID(c.Request.Context(), p.Subject); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				a.fail(c, "user_not_found", apperror.NotFound(MessageUserNotFound))
				return
			}
			// A lookup failure is not the same as "not an admin"
			_ = c.Error(apperror.Fatal(fmt.Errorf("admin lookup for %s: %w", p.Subject, err)))
			c.Abort()
			return
		}

		if !p.IsAdmin() {
			a.fail(c, "not_admin", apperror.Forbidden(MessageAdminRequired))
			return
		}

		c.Next()
	}
}

// authenticate runs the required-auth state machine and aborts on failure
func (a *Authenticator) authenticate(c *gin.Context) (*identity.Principal, bool) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		a.fail(c, "missing_token", apperror.Unauthenticated(MessageTokenRequired))
		return nil, false
	}

	p, err := a.verify(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidToken) {
			logging.FromContext(c.Request.Context(), a.logger).Warn("Identity provider error", zap.Error(err))
		}
		a.fail(c, "invalid_token", apperror.Unauthenticated(MessageInvalidToken))
		return nil, false
	}

	if !SetIdentity(c, p) {
		// Keep the identity attached first
		p = MustIdentity(c)
	}
	return p, true
}

func (a *Authenticator) verify(ctx context.Context, token string) (*identity.Principal, error) {
	timer := monitoring.NewTimer(a.metrics, "identity", "verify")
	p, err := a.verifier.Verify(ctx, token)
	if err == nil && p == nil {
		err = identity.ErrInvalidToken
	}
	timer.Stop(err)
	return p, err
}

func (a *Authenticator) fail(c *gin.Context, reason string, err *apperror.Error) {
	a.metrics.RecordAuthFailure(reason)
	_ = c.Error(err)
	c.Abort()
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
