package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/QuakeAlert/backend/internal/api/http"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/api/middleware"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/audit"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/notification"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/user"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/identity"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/ratelimit"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// Deps overrides collaborators the server would otherwise build from config
type Deps struct {
	// Store is used as is and not closed on shutdown
	Store    *store.SQLStore
	Verifier identity.Verifier
	Logger   *logging.Logger
	Registry *prometheus.Registry
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	store     *store.SQLStore
	ownsStore bool
	recorder  *audit.Recorder
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a new server instance from configuration alone
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(loggerConfig(cfg.Logging))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return New(ctx, cfg, Deps{Logger: logger})
}

// New creates a server, building any collaborator deps leaves nil
func New(ctx context.Context, cfg *config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing QuakeAlert API",
		zap.String("port", cfg.Server.Port),
		zap.String("identity_mode", cfg.Identity.Mode),
		zap.String("database_driver", cfg.Database.Driver),
	)

	// Metrics first, everything else reports into them
	reg := deps.Registry
	if reg == nil {
		reg = monitoring.NewRegistry()
	}
	metrics := monitoring.NewMetrics(reg)

	verifier := deps.Verifier
	if verifier == nil {
		v, err := newVerifier(cfg.Identity)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	st, ownsStore := deps.Store, false
	if st == nil {
		opened, err := openStore(ctx, cfg.Database, logger.Logger)
		if err != nil {
			return nil, err
		}
		st, ownsStore = opened, true
		logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
	}

	users := user.NewDirectory(st).WithMetrics(metrics)
	engine := notification.NewEngine(st, users, logger.Logger).
		WithBatchSize(cfg.Notification.BatchSize).
		WithMetrics(metrics)
	inbox := notification.NewInbox(st)

	limiter := ratelimit.New(ratelimit.Options{SweepInterval: cfg.RateLimit.SweepInterval})

	var sink middleware.AuditSink
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(st, logger.Logger, audit.Options{
			WriteTimeout: cfg.Audit.WriteTimeout,
			Metrics:      metrics,
		})
		sink = recorder
	}

	pipeline := middleware.NewPipeline(middleware.PipelineConfig{
		Limiter:       limiter,
		Authenticator: middleware.NewAuthenticator(verifier, users, logger.Logger).WithMetrics(metrics),
		Audit:         sink,
		MaxAuditBody:  cfg.Audit.MaxBodyBytes,
		Logger:        logger.Logger,
		Metrics:       metrics,
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.UseJSONFieldNames()
	router := gin.New()
	router.HandleMethodNotAllowed = true
	if err := router.SetTrustedProxies(trustedProxies(cfg.Server.TrustedProxies)); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Add middleware
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins)))
	router.Use(middleware.RequestID(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled && cfg.RateLimit.GlobalRPS > 0 {
		logger.Info("Global rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.GlobalRPS),
			zap.Int("burst", cfg.RateLimit.GlobalBurst),
		)
		router.Use(middleware.GlobalRateLimit(cfg.RateLimit.GlobalRPS, cfg.RateLimit.GlobalBurst, metrics))
	}

	// Register routes
	handlers := api.NewHandlers(engine, inbox, st, logger.Logger)
	api.Register(router, pipeline, handlers, limits(cfg.RateLimit))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:     st,
		ownsStore: ownsStore,
		recorder:  recorder,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it is shut down
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones, waits for
// pending audit writes and closes the data store
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain http server: %w", err))
	}

	if s.recorder != nil {
		if err := s.recorder.Flush(ctx); err != nil {
			s.logger.Warn("Audit writes still pending at shutdown", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to flush audit writes: %w", err))
		}
	}

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			s.logger.Info("Closed database connection")
		}
	}

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}

// loggerConfig starts from the production or development preset and applies
// the configured level
func loggerConfig(cfg config.LogConfig) logging.Config {
	logCfg := logging.DefaultConfig()
	if cfg.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		logCfg.Level = cfg.Level
	}
	return logCfg
}

func newVerifier(cfg config.IdentityConfig) (identity.Verifier, error) {
	switch cfg.Mode {
	case config.IdentityRemote:
		return identity.NewRemoteVerifier(identity.RemoteConfig{
			BaseURL: cfg.AuthURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		}), nil
	case config.IdentityJWT:
		v, err := identity.NewJWTVerifier(identity.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Mode)
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.SQLStore, error) {
	st, err := store.Open(ctx, store.Config{
		Dialect:      store.Dialect(cfg.Driver),
		DSN:          cfg.URL,
		MaxOpenConns: cfg.MaxConns,
		MaxIdleConns: cfg.MaxConns,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, st); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// trustedProxies returns nil for an empty list so gin ignores forwarding
// headers instead of trusting every peer
func trustedProxies(proxies []string) []string {
	if len(proxies) == 0 {
		return nil
	}
	return proxies
}

// limits converts the configured policies into per-route rules
func limits(cfg config.RateLimitConfig) api.Limits {
	if !cfg.Enabled {
		return api.Limits{}
	}
	rule := func(p config.Policy) *ratelimit.Rule {
		return &ratelimit.Rule{Window: p.Window, Max: p.Max}
	}
	return api.Limits{
		Read:  rule(cfg.Read()),
		Write: rule(cfg.Write()),
		Admin: rule(cfg.Admin()),
	}
}
