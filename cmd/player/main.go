package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/api"
	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/auth"
	"github.com/agentleague/league/internal/player"
	tttstrategy "github.com/agentleague/league/internal/player/strategy/tictactoe"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	agentID         string
	httpAddr        string
	endpoint        string
	managerEndpoint string
	managerPubKey   string
	logLevel        string
	dataDir         string
	authEnabled     bool

	clockSkewSeconds int
	retryMax         int
	retryBackoffMS   int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "league-player",
		Short: "Player — registers with the League Manager and answers match traffic",
		Long: `league-player registers with the League Manager, then answers
GAME_INVITE, MOVE_REQUEST, and GAME_OVER synchronously, delegating move
selection to a per-game_type Strategy. It holds no global league state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.agentID, "agent-id", envOrDefault("PLAYER_AGENT_ID", ""), "This player's agent_id (required, unique among players)")
	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("PLAYER_HTTP_ADDR", ":9101"), "HTTP listen address for /mcp, /health, /metrics")
	root.PersistentFlags().StringVar(&cfg.endpoint, "endpoint", envOrDefault("PLAYER_ENDPOINT", "http://127.0.0.1:9101"), "This player's own externally-reachable endpoint, as registered with the Manager")
	root.PersistentFlags().StringVar(&cfg.managerEndpoint, "manager-endpoint", envOrDefault("PLAYER_MANAGER_ENDPOINT", "http://127.0.0.1:8080"), "League Manager's endpoint")
	root.PersistentFlags().StringVar(&cfg.managerPubKey, "manager-public-key", envOrDefault("PLAYER_MANAGER_PUBLIC_KEY", "./data/jwt_public.pem"), "Path to the Manager's PEM-encoded public key, for verifying inbound auth_tokens")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("PLAYER_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.dataDir, "data-dir", envOrDefault("PLAYER_DATA_DIR", "./data/player"), "Directory for this player's audit log")
	root.PersistentFlags().BoolVar(&cfg.authEnabled, "auth-enabled", envOrDefault("PLAYER_AUTH_ENABLED", "true") == "true", "Validate auth_token on inbound match traffic (disable for tests only)")
	root.PersistentFlags().IntVar(&cfg.clockSkewSeconds, "clock-skew-seconds", 120, "Envelope timestamp tolerance")
	root.PersistentFlags().IntVar(&cfg.retryMax, "retry-max", 3, "Registration retry count")
	root.PersistentFlags().IntVar(&cfg.retryBackoffMS, "retry-backoff-ms", 200, "Initial registration retry backoff")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("league-player %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	if cfg.agentID == "" {
		return fmt.Errorf("--agent-id is required")
	}

	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting player",
		zap.String("version", version),
		zap.String("agent_id", cfg.agentID),
		zap.String("endpoint", cfg.endpoint),
		zap.String("manager_endpoint", cfg.managerEndpoint),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// --- 1. Token verifier ---
	var verifier protocol.TokenVerifier
	if cfg.authEnabled {
		pemBytes, err := os.ReadFile(cfg.managerPubKey)
		if err != nil {
			return fmt.Errorf("failed to read --manager-public-key: %w", err)
		}
		v, err := auth.NewPublicVerifierFromPEM(pemBytes, "league-manager")
		if err != nil {
			return fmt.Errorf("failed to load manager public key: %w", err)
		}
		verifier = v
	}
	validator := protocol.NewValidator(protocol.SystemClock{}, time.Duration(cfg.clockSkewSeconds)*time.Second, verifier, cfg.authEnabled)

	// --- 2. Strategy registry ---
	strategies := player.NewStrategyRegistry()
	strategies.Register(tttstrategy.New())

	// --- 3. Audit log ---
	auditLogger, err := audit.Open(filepath.Join(cfg.dataDir, "audit.ndjson"), logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLogger.Close()

	// --- 4. Player agent ---
	p := player.New(player.Config{
		AgentID:         cfg.agentID,
		Endpoint:        cfg.endpoint,
		ManagerEndpoint: cfg.managerEndpoint,
	}, strategies, logger)

	// --- 5. Register with the Manager ---
	transportClient := transport.New(transport.Config{
		MaxAttempts:    cfg.retryMax + 1,
		InitialBackoff: time.Duration(cfg.retryBackoffMS) * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	})

	registerCtx, registerCancel := context.WithTimeout(ctx, 30*time.Second)
	err = p.Connect(registerCtx, transportClient)
	registerCancel()
	if err != nil {
		return fmt.Errorf("failed to register with manager: %w", err)
	}
	logger.Info("registered with manager", zap.String("league_id", p.LeagueID()))

	// --- 6. HTTP server ---
	router := api.NewPlayerRouter(api.PlayerRouterConfig{
		Player:    p,
		Validator: validator,
		Audit:     auditLogger,
		StartedAt: time.Now(),
		Logger:    logger,
	})

	httpSrv := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down player")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("player stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
