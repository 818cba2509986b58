package gateway

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mcpgateway/gateway/internal/auth"
	"github.com/mcpgateway/gateway/internal/cache"
	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/catalog/pgstore"
	"github.com/mcpgateway/gateway/internal/dispatch"
	"github.com/mcpgateway/gateway/internal/federation"
	"github.com/mcpgateway/gateway/internal/instrumentation"
	"github.com/mcpgateway/gateway/internal/plugin"
	"github.com/mcpgateway/gateway/internal/protocol"
	"github.com/mcpgateway/gateway/internal/transport"
)

// Config is every knob AppState needs to boot. Flags/env parsing in
// cmd/serve.go populate this; nothing in this package reads the
// environment directly.
type Config struct {
	GatewayID       string
	DisplayName     string
	ServerVersion   string
	PostgresDSN     string
	RedisAddr       string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	JWTTTL          time.Duration
	RESTMaxRetries  int
	Logger          *slog.Logger
	Instrumentation instrumentation.Config

	// A2ASigningKeySeed is a hex-encoded 32-byte Ed25519 seed this gateway
	// signs outbound A2A requests with (spec §4.3 A2A integration type). If
	// empty, a fresh key pair is generated for the process lifetime — fine
	// for a single gateway instance, but federated agents that pin this
	// gateway's key across restarts need a fixed seed.
	A2ASigningKeySeed string
	// A2AKeyID identifies this gateway's signing key to agents, carried in
	// the httpsig keyId parameter.
	A2AKeyID string

	// EnableFederationPush turns on the optional WebSocket push channel
	// (spec §9) that nudges federation peers to resync as soon as the
	// local catalog changes, instead of waiting out their poll interval.
	EnableFederationPush bool
}

// AppState is the composition root: every long-lived dependency the
// gateway needs, built once at startup and torn down once on shutdown
// (mirrors the teacher's internal/server.ServerContext).
type AppState struct {
	Config Config
	Logger *slog.Logger

	pool *pgxpool.Pool

	AuthStore    *auth.PGStore
	Issuer       *auth.Issuer
	RedisClient  *redis.Client
	Limiter      cache.Limiter
	Revocations  *cache.RevocationCache
	Invalidator  *cache.CatalogInvalidator

	Catalog    *CatalogService
	Dispatcher *dispatch.Dispatcher
	Federation *federation.Manager
	PushHub    *federation.PushHub
	Plugins    *plugin.Registry

	Router    *protocol.Router
	Transport *transport.Server

	Instrumentation *instrumentation.Provider

	grpcInvoker *dispatch.GRPCInvoker
}

// New builds an AppState from cfg. Callers own its lifecycle and must call
// Close when done.
func New(ctx context.Context, cfg Config) (*AppState, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.JWTTTL == 0 {
		cfg.JWTTTL = time.Hour
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var redisClient *redis.Client
	var limiter cache.Limiter
	var revocations *cache.RevocationCache
	var invalidator *cache.CatalogInvalidator
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = cache.NewRedisLimiter(redisClient, "")
		revocations = cache.NewRevocationCache(redisClient, 0)
		invalidator = cache.NewCatalogInvalidator(redisClient)
	}

	issuer, err := auth.NewHMACIssuer(auth.AlgHS256, []byte(cfg.JWTSecret), cfg.JWTAudience, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build jwt issuer: %w", err)
	}

	instrumentationProvider, err := instrumentation.NewProvider(ctx, cfg.Instrumentation)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build instrumentation provider: %w", err)
	}
	metrics := instrumentationProvider.Metrics()

	catalogSvc := &CatalogService{
		Tools:     pgstore.NewToolStore(pool),
		Resources: pgstore.NewResourceStore(pool),
		Prompts:   pgstore.NewPromptStore(pool),
		Servers:   pgstore.NewServerStore(pool),
		Gateways:  pgstore.NewGatewayStore(pool),
		A2AAgents: pgstore.NewA2AAgentStore(pool),
		Metrics:   metrics,
	}

	restInvoker := dispatch.NewRESTInvoker(cfg.RESTMaxRetries, cfg.Logger)

	fedOpts := []federation.Option{federation.WithLogger(cfg.Logger)}
	var pushHub *federation.PushHub
	if cfg.EnableFederationPush {
		pushHub = federation.NewPushHub(cfg.GatewayID, cfg.Logger)
		fedOpts = append(fedOpts, federation.WithPushHub(pushHub))
	}
	fed := federation.NewManager(ctx, cfg.GatewayID, cfg.DisplayName, fedOpts...)

	plugins := plugin.NewRegistry(false, nil)
	plugins.SetMetrics(metrics)

	a2aKeyID, a2aPrivateKey, err := loadA2ASigningKey(cfg.A2ASigningKeySeed, cfg.A2AKeyID, cfg.GatewayID)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load a2a signing key: %w", err)
	}
	a2aClient, err := dispatch.NewA2AClient(a2aKeyID, a2aPrivateKey, dispatch.DefaultTimeout)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build a2a client: %w", err)
	}
	grpcInvoker := dispatch.NewGRPCInvoker()

	dispatchOpts := []dispatch.Option{
		dispatch.WithPeerInvoker(fed),
		dispatch.WithA2AInvoker(a2aClient, catalogSvc.A2AAgents),
		dispatch.WithGRPCBackend(grpcInvoker),
		dispatch.WithPlugins(plugins),
		dispatch.WithMetrics(metrics),
	}
	if limiter != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithRateLimiter(limiter))
	}
	dispatcher := dispatch.New(catalogSvc.Tools, restInvoker, dispatchOpts...)

	router := protocol.NewRouter()
	protocol.RegisterCoreHandlers(router, cfg.DisplayName, cfg.ServerVersion, catalogSvc, dispatcherInvoker{dispatcher})

	transportSrv := transport.New(cfg.DisplayName, cfg.ServerVersion, dispatcher)

	return &AppState{
		Config:          cfg,
		Logger:          cfg.Logger,
		pool:            pool,
		AuthStore:       auth.NewPGStore(pool),
		Issuer:          issuer,
		RedisClient:     redisClient,
		Limiter:         limiter,
		Revocations:     revocations,
		Invalidator:     invalidator,
		Catalog:         catalogSvc,
		Dispatcher:      dispatcher,
		Federation:      fed,
		PushHub:         pushHub,
		Plugins:         plugins,
		Router:          router,
		Transport:       transportSrv,
		Instrumentation: instrumentationProvider,
		grpcInvoker:     grpcInvoker,
	}, nil
}

// RefreshTools re-lists every tool in the catalog and syncs the transport
// layer's registered tool set to match.
func (a *AppState) RefreshTools(ctx context.Context) error {
	page, err := a.Catalog.Tools.List(ctx, catalog.Filter{EnabledOnly: true}, catalog.PageRequest{Size: catalog.MaxPageSize})
	if err != nil {
		return fmt.Errorf("list tools for sync: %w", err)
	}
	a.Transport.SyncTools(page.Data)
	return nil
}

// Close releases every resource AppState opened.
func (a *AppState) Close() error {
	if a.Instrumentation != nil {
		_ = a.Instrumentation.Shutdown(context.Background())
	}
	if a.Federation != nil {
		_ = a.Federation.Close()
	}
	if a.grpcInvoker != nil {
		_ = a.grpcInvoker.Close()
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// loadA2ASigningKey decodes a hex-encoded Ed25519 seed, or generates an
// ephemeral key pair when none is configured. keyID defaults to
// "gateway/<gatewayID>" if unset.
func loadA2ASigningKey(hexSeed, keyID, gatewayID string) (string, ed25519.PrivateKey, error) {
	if keyID == "" {
		keyID = "gateway/" + gatewayID
	}
	if hexSeed == "" {
		_, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return "", nil, fmt.Errorf("generate ephemeral a2a signing key: %w", err)
		}
		return keyID, privateKey, nil
	}
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return "", nil, fmt.Errorf("decode a2a signing key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return "", nil, fmt.Errorf("a2a signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return keyID, ed25519.NewKeyFromSeed(seed), nil
}

// Ping checks the catalog store's database connection, used by the admin
// server's /readyz handler (spec §6.3).
func (a *AppState) Ping(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

// dispatcherInvoker adapts *dispatch.Dispatcher to protocol.ToolInvoker,
// building the plugin pipeline's per-request Context from the session's
// authenticated identity so tool_pre_invoke/tool_post_invoke plugins see
// who's calling (spec §4.5).
type dispatcherInvoker struct {
	d *dispatch.Dispatcher
}

func (i dispatcherInvoker) Invoke(ctx context.Context, principal catalog.Principal, sess *protocol.Session, toolName string, arguments map[string]any) (map[string]any, error) {
	pctx := plugin.NewContext(uuid.NewString(), sess.ID)
	pctx.UserEmail = principal.Email()
	pctx.TenantID = sess.Identity.TenantID
	if teams := principal.TeamIDs(); len(teams) > 0 {
		pctx.TeamID = teams[0]
	}
	return i.d.Invoke(ctx, toolName, arguments, nil, pctx)
}
