package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpgateway/gateway/internal/gateway"
	"github.com/mcpgateway/gateway/internal/instrumentation"
	"github.com/mcpgateway/gateway/internal/logging"
	"github.com/mcpgateway/gateway/internal/server"
	"github.com/mcpgateway/gateway/internal/transport"
	"golang.org/x/sync/errgroup"
)

// Transport type constants for the MCP server.
const (
	transportStdio          = "stdio"
	transportSSE            = "sse"
	transportStreamableHTTP = "streamable-http"
)

// ServeConfig is every flag newServeCmd accepts, collected before runServe
// builds the gateway.Config it actually needs.
type ServeConfig struct {
	Transport       string
	HTTPAddr        string
	SSEEndpoint     string
	MessageEndpoint string
	HTTPEndpoint    string

	GatewayID      string
	DisplayName    string
	PostgresDSN    string
	RedisAddr      string
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	JWTTTL         time.Duration
	RESTMaxRetries int
	IdleTimeout    time.Duration
	DebugMode      bool

	A2ASigningKeySeed    string
	A2AKeyID             string
	EnableFederationPush bool

	AdminAddr         string
	InstrumentEnabled bool
	MetricsExporter   string
	TracingExporter   string
	OTLPEndpoint      string
	OTLPInsecure      bool
	TraceSamplingRate float64
}

// newServeCmd creates the Cobra command for starting the MCP gateway.
func newServeCmd() *cobra.Command {
	var config ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP gateway server",
		Long: `Start the MCP gateway server, presenting a single MCP endpoint to
clients while dispatching tool, resource, and prompt calls to the catalog
of upstream providers.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-Sent Events over HTTP
  - streamable-http: Streamable HTTP transport`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config)
		},
	}

	cmd.Flags().StringVar(&config.Transport, "transport", transportStdio, "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&config.SSEEndpoint, "sse-endpoint", "/sse", "SSE endpoint path (for sse transport)")
	cmd.Flags().StringVar(&config.MessageEndpoint, "message-endpoint", "/message", "Message endpoint path (for sse transport)")
	cmd.Flags().StringVar(&config.HTTPEndpoint, "http-endpoint", "/mcp", "Streamable HTTP endpoint path (for streamable-http transport)")

	cmd.Flags().StringVar(&config.GatewayID, "gateway-id", "", "This gateway's identifier, used for federation and catalog scoping (can also be set via GATEWAY_ID env var)")
	cmd.Flags().StringVar(&config.DisplayName, "display-name", "mcp-gateway", "Display name advertised to clients during initialize")
	cmd.Flags().StringVar(&config.PostgresDSN, "postgres-dsn", "", "Postgres connection string for the catalog store (can also be set via POSTGRES_DSN env var)")
	cmd.Flags().StringVar(&config.RedisAddr, "redis-addr", "", "Redis address for rate limiting and revocation caching; leave empty to disable (can also be set via REDIS_ADDR env var)")
	cmd.Flags().StringVar(&config.JWTSecret, "jwt-secret", "", "HMAC secret for signing session tokens (can also be set via JWT_SECRET env var)")
	cmd.Flags().StringVar(&config.JWTIssuer, "jwt-issuer", "mcp-gateway", "JWT issuer claim")
	cmd.Flags().StringVar(&config.JWTAudience, "jwt-audience", "mcp-gateway", "JWT audience claim")
	cmd.Flags().DurationVar(&config.JWTTTL, "jwt-ttl", time.Hour, "JWT token lifetime")
	cmd.Flags().IntVar(&config.RESTMaxRetries, "rest-max-retries", 3, "Max retries for REST-backed tool invocations")
	cmd.Flags().DurationVar(&config.IdleTimeout, "idle-timeout", 30*time.Minute, "Session idle timeout before the reaper closes it")
	cmd.Flags().BoolVar(&config.DebugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&config.A2ASigningKeySeed, "a2a-signing-key-seed", "", "Hex-encoded Ed25519 seed for signing outbound A2A requests; a fresh key is generated if unset (can also be set via A2A_SIGNING_KEY_SEED env var)")
	cmd.Flags().StringVar(&config.A2AKeyID, "a2a-key-id", "", "Key ID this gateway presents to A2A agents; defaults to gateway/<gateway-id>")
	cmd.Flags().BoolVar(&config.EnableFederationPush, "enable-federation-push", false, "Enable the optional WebSocket push channel that nudges federation peers to resync as soon as the catalog changes")

	cmd.Flags().StringVar(&config.AdminAddr, "admin-addr", ":9090", "Admin HTTP server address (health, readiness, metrics, platform-admin catalog API)")
	cmd.Flags().BoolVar(&config.InstrumentEnabled, "instrumentation-enabled", false, "Enable OpenTelemetry metrics and tracing (can also be set via INSTRUMENTATION_ENABLED env var)")
	cmd.Flags().StringVar(&config.MetricsExporter, "metrics-exporter", "prometheus", "Metrics exporter: prometheus, otlp, or stdout")
	cmd.Flags().StringVar(&config.TracingExporter, "tracing-exporter", "none", "Tracing exporter: otlp, stdout, or none")
	cmd.Flags().StringVar(&config.OTLPEndpoint, "otlp-endpoint", "", "OTLP collector endpoint, e.g. http://localhost:4318")
	cmd.Flags().BoolVar(&config.OTLPInsecure, "otlp-insecure", false, "Use insecure HTTP for OTLP export (development only)")
	cmd.Flags().Float64Var(&config.TraceSamplingRate, "trace-sampling-rate", 0.1, "Trace sampling rate, 0.0 to 1.0")

	return cmd
}

// runServe wires a gateway.AppState and runs it over the requested transport
// until SIGINT/SIGTERM.
func runServe(config ServeConfig) error {
	loadServeEnvVars(&config)

	level := slog.LevelInfo
	if config.DebugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.GatewayID == "" {
		return fmt.Errorf("--gateway-id is required")
	}
	if config.PostgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required")
	}

	appState, err := gateway.New(shutdownCtx, gateway.Config{
		GatewayID:            config.GatewayID,
		DisplayName:          config.DisplayName,
		ServerVersion:        rootCmd.Version,
		PostgresDSN:          config.PostgresDSN,
		RedisAddr:            config.RedisAddr,
		JWTSecret:            config.JWTSecret,
		JWTIssuer:            config.JWTIssuer,
		JWTAudience:          config.JWTAudience,
		JWTTTL:               config.JWTTTL,
		RESTMaxRetries:       config.RESTMaxRetries,
		Logger:               logger,
		A2ASigningKeySeed:    config.A2ASigningKeySeed,
		A2AKeyID:             config.A2AKeyID,
		EnableFederationPush: config.EnableFederationPush,
		Instrumentation: instrumentation.Config{
			ServiceName:       config.DisplayName,
			ServiceVersion:    rootCmd.Version,
			Enabled:           config.InstrumentEnabled,
			MetricsExporter:   config.MetricsExporter,
			TracingExporter:   config.TracingExporter,
			OTLPEndpoint:      config.OTLPEndpoint,
			OTLPInsecure:      config.OTLPInsecure,
			TraceSamplingRate: config.TraceSamplingRate,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	defer func() {
		if err := appState.Close(); err != nil {
			logger.Error("error during gateway shutdown", logging.Err(err))
		}
	}()

	if err := appState.RefreshTools(shutdownCtx); err != nil {
		return fmt.Errorf("failed to load initial tool catalog: %w", err)
	}

	reaper := transport.NewIdleReaper(shutdownCtx, appState.Transport.Sessions(), config.IdleTimeout, logger)
	defer reaper.Stop()

	group, groupCtx := errgroup.WithContext(shutdownCtx)

	adminServer := server.NewAdminServer(appState, server.AdminOptions{Addr: config.AdminAddr})
	group.Go(func() error {
		logger.Info("starting admin server", slog.String("addr", config.AdminAddr))
		return adminServer.Run(groupCtx)
	})

	group.Go(func() error {
		switch config.Transport {
		case transportStdio:
			return transport.RunStdio(groupCtx, appState.Transport, logger)
		case transportSSE:
			logger.Info("starting gateway", slog.String("transport", config.Transport), slog.String("addr", config.HTTPAddr))
			return transport.RunSSE(groupCtx, appState.Transport, transport.HTTPOptions{Addr: config.HTTPAddr}, config.SSEEndpoint, config.MessageEndpoint, logger)
		case transportStreamableHTTP:
			logger.Info("starting gateway", slog.String("transport", config.Transport), slog.String("addr", config.HTTPAddr))
			return transport.RunStreamableHTTP(groupCtx, appState.Transport, transport.HTTPOptions{Addr: config.HTTPAddr}, config.HTTPEndpoint, logger)
		default:
			return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", config.Transport)
		}
	})

	return group.Wait()
}

// loadServeEnvVars fills config fields from environment variables when the
// corresponding flag was left at its zero value.
func loadServeEnvVars(config *ServeConfig) {
	if config.GatewayID == "" {
		config.GatewayID = os.Getenv("GATEWAY_ID")
	}
	if config.PostgresDSN == "" {
		config.PostgresDSN = os.Getenv("POSTGRES_DSN")
	}
	if config.RedisAddr == "" {
		config.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if config.JWTSecret == "" {
		config.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if config.A2ASigningKeySeed == "" {
		config.A2ASigningKeySeed = os.Getenv("A2A_SIGNING_KEY_SEED")
	}
}
