package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/avdeev/owa-mcp/internal/analytics"
	"github.com/avdeev/owa-mcp/internal/availability"
	"github.com/avdeev/owa-mcp/internal/calendar"
	"github.com/avdeev/owa-mcp/internal/folders"
	"github.com/avdeev/owa-mcp/internal/instrumentation"
	"github.com/avdeev/owa-mcp/internal/mail"
	"github.com/avdeev/owa-mcp/internal/owa"
	"github.com/avdeev/owa-mcp/internal/people"
	"github.com/avdeev/owa-mcp/internal/session"
)

// ServerContext holds the shared state for the MCP server: the OWA
// client, the domain services built on top of it, and the observability
// plumbing. All services share one client and therefore one session.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	client *owa.Client

	mailService         *mail.Service
	calendarService     *calendar.Service
	availabilityService *availability.Service
	analyticsService    *analytics.Service
	foldersService      *folders.Service
	peopleService       *people.Service

	loginTask *session.LoginTask

	provider    *instrumentation.Provider
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context with all domain services
// wired to a single OWA client. Cookies are loaded lazily, so a missing
// cookie file does not fail here; the first tool call surfaces it.
func NewServerContext(ctx context.Context, cfg owa.Config) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	client, err := owa.NewClient(cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	availabilityService := availability.NewService(client, logger)

	return &ServerContext{
		ctx:                 shutdownCtx,
		cancel:              cancel,
		client:              client,
		mailService:         mail.NewService(client, logger),
		calendarService:     calendar.NewService(client, availabilityService, logger),
		availabilityService: availabilityService,
		analyticsService:    analytics.NewService(client, availabilityService, logger),
		foldersService:      folders.NewService(client, logger),
		peopleService:       people.NewService(client, logger),
		loginTask:           session.NewLoginTask(),
		logger:              logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Client returns the shared OWA client.
func (sc *ServerContext) Client() *owa.Client {
	return sc.client
}

// Mail returns the mail service.
func (sc *ServerContext) Mail() *mail.Service {
	return sc.mailService
}

// Calendar returns the calendar service.
func (sc *ServerContext) Calendar() *calendar.Service {
	return sc.calendarService
}

// Availability returns the availability service.
func (sc *ServerContext) Availability() *availability.Service {
	return sc.availabilityService
}

// Analytics returns the analytics service.
func (sc *ServerContext) Analytics() *analytics.Service {
	return sc.analyticsService
}

// Folders returns the folders service.
func (sc *ServerContext) Folders() *folders.Service {
	return sc.foldersService
}

// People returns the people service.
func (sc *ServerContext) People() *people.Service {
	return sc.peopleService
}

// LoginTask returns the handle for the background browser login flow.
func (sc *ServerContext) LoginTask() *session.LoginTask {
	return sc.loginTask
}

// Logger returns the structured logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetInstrumentation attaches the observability provider and audit logger.
// Both may be nil when instrumentation is disabled.
func (sc *ServerContext) SetInstrumentation(provider *instrumentation.Provider, audit *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.provider = provider
	if provider != nil {
		sc.metrics = provider.Metrics()
	}
	sc.auditLogger = audit
}

// SetMetrics sets the metrics recorder directly, bypassing the provider.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Provider returns the instrumentation provider, or nil when disabled.
func (sc *ServerContext) Provider() *instrumentation.Provider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.provider
}

// Metrics returns the metrics recorder, or nil when instrumentation is
// disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil when disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
