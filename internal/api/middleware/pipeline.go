package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/ratelimit"
)

// Policy describes the per-route stages
type Policy struct {
	// Name labels the rate limit bucket and metrics
	Name string
	// Limit is the fixed-window rule; nil disables per-route limiting
	Limit *ratelimit.Rule
	Auth  AuthMode
	// SkipAudit leaves the route out of the request log
	SkipAudit bool
}

// PipelineConfig holds the shared collaborators of every route chain
type PipelineConfig struct {
	Limiter       *ratelimit.Limiter
	Authenticator *Authenticator
	Audit         AuditSink
	MaxAuditBody  int
	Logger        *zap.Logger
	Metrics       *monitoring.Metrics
}

// Pipeline composes route chains from policies
type Pipeline struct {
	cfg          PipelineConfig
	errorHandler gin.HandlerFunc
	audit        gin.HandlerFunc
}

// NewPipeline creates a new pipeline
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxAuditBody <= 0 {
		cfg.MaxAuditBody = 4096
	}

	p := &Pipeline{
		cfg:          cfg,
		errorHandler: ErrorHandler(cfg.Logger),
	}
	if cfg.Audit != nil {
		p.audit = Audit(cfg.Audit, cfg.MaxAuditBody)
	}
	return p
}

// Wrap returns the chain for one route: audit, error handler, rate limit,
// auth, then the handlers. The audit stage sits outermost so it sees the
// status the error handler wrote.
func (p *Pipeline) Wrap(policy Policy, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, 4+len(handlers))

	if p.audit != nil && !policy.SkipAudit {
		chain = append(chain, p.audit)
	}
	chain = append(chain, p.errorHandler)

	if policy.Limit != nil && p.cfg.Limiter != nil {
		chain = append(chain, RateLimit(p.cfg.Limiter, policy.Name, *policy.Limit, p.cfg.Metrics))
	}

	if policy.Auth != AuthNone {
		if p.cfg.Authenticator == nil {
			panic("middleware: route " + policy.Name + " needs auth but no authenticator is configured")
		}
		chain = append(chain, p.cfg.Authenticator.Handler(policy.Auth))
	}

	return append(chain, handlers...)
}
