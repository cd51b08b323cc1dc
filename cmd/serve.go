package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/instrumentation"
	"github.com/avdeev/owa-mcp/internal/owa"
	"github.com/avdeev/owa-mcp/internal/resources"
	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/analytics_tools"
	"github.com/avdeev/owa-mcp/internal/tools/auth_tools"
	"github.com/avdeev/owa-mcp/internal/tools/availability_tools"
	"github.com/avdeev/owa-mcp/internal/tools/calendar_tools"
	"github.com/avdeev/owa-mcp/internal/tools/folder_tools"
	"github.com/avdeev/owa-mcp/internal/tools/mail_tools"
	"github.com/avdeev/owa-mcp/internal/tools/people_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveConfig collects everything runServe needs.
type serveConfig struct {
	Transport string
	HTTPAddr  string
	Yolo      bool

	OWAURL     string
	CookieFile string
	Timezone   string
	UserEmail  string

	Metrics MetricsConfig
}

func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server exposing mailbox, calendar, availability,
analytics, folder and directory tools over the Model Context Protocol.

The server talks to the OWA JSON API using an SSO cookie session. By
default all write tools are disabled; pass --yolo to enable sending
email, scheduling meetings and folder modifications.

Configuration can come from flags, environment variables or a .env
file in the working directory:
  OWA_URL          base URL of the OWA server (e.g. https://mail.example.com)
  OWA_COOKIE_FILE  path to the session cookie file
  OWA_TIMEZONE     Exchange timezone definition ID
  OWA_USER_EMAIL   mailbox owner email address`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine; explicit env vars win.
			_ = godotenv.Load()

			if cfg.OWAURL == "" {
				cfg.OWAURL = os.Getenv("OWA_URL")
			}
			if cfg.CookieFile == "" {
				cfg.CookieFile = os.Getenv("OWA_COOKIE_FILE")
			}
			if cfg.Timezone == "" {
				cfg.Timezone = os.Getenv("OWA_TIMEZONE")
			}
			if cfg.UserEmail == "" {
				cfg.UserEmail = os.Getenv("OWA_USER_EMAIL")
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.Transport, "transport", "t", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "Address for the streamable-http transport")
	cmd.Flags().BoolVar(&cfg.Yolo, "yolo", false, "Enable write operations (send email, schedule meetings, modify folders)")

	cmd.Flags().StringVar(&cfg.OWAURL, "owa-url", "", "Base URL of the OWA server. Can also use OWA_URL env var.")
	cmd.Flags().StringVar(&cfg.CookieFile, "cookie-file", "", "Path to the session cookie file. Can also use OWA_COOKIE_FILE env var.")
	cmd.Flags().StringVar(&cfg.Timezone, "timezone", "", "Exchange timezone definition ID. Can also use OWA_TIMEZONE env var.")
	cmd.Flags().StringVar(&cfg.UserEmail, "user-email", "", "Mailbox owner email address. Can also use OWA_USER_EMAIL env var.")

	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg serveConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load metrics config from environment if not set via flags
	if !cfg.Metrics.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			cfg.Metrics.Enabled = true
		}
	}
	if cfg.Metrics.Addr == "" || cfg.Metrics.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.Metrics.Addr = addr
		}
	}

	if cfg.OWAURL == "" {
		return fmt.Errorf("OWA base URL not configured (use --owa-url or OWA_URL)")
	}
	if cfg.CookieFile == "" {
		return fmt.Errorf("cookie file not configured (use --cookie-file or OWA_COOKIE_FILE)")
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if cfg.Transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if cfg.Transport != "stdio" && cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Create server context with the shared OWA client
	serverContext, err := server.NewServerContext(shutdownCtx, owa.Config{
		BaseURL:    cfg.OWAURL,
		CookieFile: cfg.CookieFile,
		Timezone:   cfg.Timezone,
		UserEmail:  cfg.UserEmail,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Attach metrics and audit logger for tool instrumentation
	if provider.Enabled() {
		serverContext.SetInstrumentation(provider,
			instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if cfg.Transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("owa-mcp", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	// readOnly is the inverse of yolo
	readOnly := !cfg.Yolo

	// Log the mode for visibility (only for non-stdio transports)
	if cfg.Transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Register all tools and resources
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	switch cfg.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		fmt.Printf("Starting owa-mcp server with %s transport on %s...\n", cfg.Transport, cfg.HTTPAddr)
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg.HTTPAddr)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(shutdownCtx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, addr string) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv)

	healthChecker := server.NewHealthChecker(sc)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	healthChecker.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()
	healthChecker.SetReady(true)

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
		healthChecker.SetReady(false)
		log.Println("Shutting down HTTP server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		return nil
	}
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Auth",
			register: func() error {
				return auth_tools.RegisterAuthTools(mcpSrv, ctx)
			},
		},
		{
			name: "Mail",
			register: func() error {
				return mail_tools.RegisterMailTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Availability",
			register: func() error {
				return availability_tools.RegisterAvailabilityTools(mcpSrv, ctx)
			},
		},
		{
			name: "Analytics",
			register: func() error {
				return analytics_tools.RegisterAnalyticsTools(mcpSrv, ctx)
			},
		},
		{
			name: "Folders",
			register: func() error {
				return folder_tools.RegisterFolderTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "People",
			register: func() error {
				return people_tools.RegisterPeopleTools(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	if err := resources.RegisterUserResources(mcpSrv, ctx); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	return nil
}
