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
	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/game/tictactoe"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/referee"
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

	inviteTimeoutSeconds int
	moveTimeoutSeconds   int
	matchTimeoutSeconds  int
	retryMax             int
	retryBackoffMS       int
	clockSkewSeconds     int
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
		Use:   "league-referee",
		Short: "Referee — drives one match at a time to a reported result",
		Long: `league-referee registers with the League Manager, then for every
MATCH_ASSIGN it receives invites both players, runs the stepwise move
loop against the game adapter, and reports the authoritative result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.agentID, "agent-id", envOrDefault("REFEREE_AGENT_ID", ""), "This referee's agent_id (required, unique among referees)")
	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("REFEREE_HTTP_ADDR", ":9001"), "HTTP listen address for /mcp, /health, /metrics")
	root.PersistentFlags().StringVar(&cfg.endpoint, "endpoint", envOrDefault("REFEREE_ENDPOINT", "http://127.0.0.1:9001"), "This referee's own externally-reachable endpoint, as registered with the Manager")
	root.PersistentFlags().StringVar(&cfg.managerEndpoint, "manager-endpoint", envOrDefault("REFEREE_MANAGER_ENDPOINT", "http://127.0.0.1:8080"), "League Manager's endpoint")
	root.PersistentFlags().StringVar(&cfg.managerPubKey, "manager-public-key", envOrDefault("REFEREE_MANAGER_PUBLIC_KEY", "./data/jwt_public.pem"), "Path to the Manager's PEM-encoded public key, for verifying inbound auth_tokens")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("REFEREE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.dataDir, "data-dir", envOrDefault("REFEREE_DATA_DIR", "./data/referee"), "Directory for this referee's audit log")
	root.PersistentFlags().BoolVar(&cfg.authEnabled, "auth-enabled", envOrDefault("REFEREE_AUTH_ENABLED", "true") == "true", "Validate auth_token on inbound MATCH_ASSIGN (disable for tests only)")
	root.PersistentFlags().IntVar(&cfg.inviteTimeoutSeconds, "invite-timeout-seconds", 10, "Timeout waiting for INVITE_ACCEPT from both players")
	root.PersistentFlags().IntVar(&cfg.moveTimeoutSeconds, "move-timeout-seconds", 5, "Per-move timeout before the on-turn player forfeits")
	root.PersistentFlags().IntVar(&cfg.matchTimeoutSeconds, "match-timeout-seconds", 300, "Total wall-clock budget for one match")
	root.PersistentFlags().IntVar(&cfg.retryMax, "retry-max", 3, "RESULT_REPORT retry count")
	root.PersistentFlags().IntVar(&cfg.retryBackoffMS, "retry-backoff-ms", 200, "Initial RESULT_REPORT retry backoff")
	root.PersistentFlags().IntVar(&cfg.clockSkewSeconds, "clock-skew-seconds", 120, "Envelope timestamp tolerance")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("league-referee %s (commit: %s, built: %s)\n", version, commit, date)
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

	logger.Info("starting referee",
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

	// --- 2. Game registry ---
	games := game.NewRegistry()
	games.Register(tictactoe.New(), game.DefaultScoring)

	// --- 3. Audit log ---
	auditLogger, err := audit.Open(filepath.Join(cfg.dataDir, "audit.ndjson"), logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLogger.Close()

	// --- 4. Referee config ---
	refCfg := referee.DefaultConfig()
	refCfg.AgentID = cfg.agentID
	refCfg.Endpoint = cfg.endpoint
	refCfg.ManagerEndpoint = cfg.managerEndpoint
	refCfg.InviteTimeout = time.Duration(cfg.inviteTimeoutSeconds) * time.Second
	refCfg.MoveTimeout = time.Duration(cfg.moveTimeoutSeconds) * time.Second
	refCfg.MatchTimeout = time.Duration(cfg.matchTimeoutSeconds) * time.Second
	refCfg.RetryMax = cfg.retryMax
	refCfg.RetryBackoff = time.Duration(cfg.retryBackoffMS) * time.Millisecond

	ref := referee.New(refCfg, games, logger)

	// --- 5. Register with the Manager ---
	transportClient := transport.New(transport.Config{
		MaxAttempts:    cfg.retryMax + 1,
		InitialBackoff: time.Duration(cfg.retryBackoffMS) * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	})

	registerCtx, registerCancel := context.WithTimeout(ctx, 30*time.Second)
	err = ref.Connect(registerCtx, transportClient)
	registerCancel()
	if err != nil {
		return fmt.Errorf("failed to register with manager: %w", err)
	}
	logger.Info("registered with manager", zap.String("auth_token_bound_to", cfg.agentID))

	// --- 6. HTTP server ---
	router := api.NewRefereeRouter(api.RefereeRouterConfig{
		Referee:   ref,
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
	logger.Info("shutting down referee")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("referee stopped")
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
