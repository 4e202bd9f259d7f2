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
	gormlogger "gorm.io/gorm/logger"

	"github.com/agentleague/league/internal/api"
	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/auth"
	"github.com/agentleague/league/internal/db"
	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/game/tictactoe"
	"github.com/agentleague/league/internal/manager"
	"github.com/agentleague/league/internal/metrics"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/repositories"
	"github.com/agentleague/league/internal/scheduler"
	"github.com/agentleague/league/internal/transport"
	"github.com/agentleague/league/internal/websocket"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr    string
	dbDriver    string
	dbDSN       string
	logLevel    string
	dataDir     string
	auditPath   string
	gameType    string
	authEnabled bool
	minPlayers  int
	minReferees int
	regDeadline string

	clockSkewSeconds     int
	reassignCooldownSecs int
	retryMax             int
	retryBackoffMS       int
	maxAuthFailures      int
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
		Use:   "league-manager",
		Short: "League Manager — central authority for the agent league tournament",
		Long: `league-manager is the central authority of the Agent League System.
It registers referees and players, generates the round-robin schedule,
dispatches match assignments, ingests results, and publishes standings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("LEAGUE_HTTP_ADDR", ":8080"), "HTTP listen address for /mcp, /health, /metrics, /ws")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("LEAGUE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("LEAGUE_DB_DSN", "./league.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("LEAGUE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.dataDir, "data-dir", envOrDefault("LEAGUE_DATA_DIR", "./data"), "Directory for persistent data (JWT keys, audit log)")
	root.PersistentFlags().StringVar(&cfg.auditPath, "audit-log", envOrDefault("LEAGUE_AUDIT_LOG", ""), "Audit log NDJSON path (default: <data-dir>/audit.ndjson)")
	root.PersistentFlags().StringVar(&cfg.gameType, "game-type", envOrDefault("LEAGUE_GAME_TYPE", "tictactoe"), "game_type this league's matches are played with")
	root.PersistentFlags().BoolVar(&cfg.authEnabled, "auth-enabled", envOrDefault("LEAGUE_AUTH_ENABLED", "true") == "true", "Validate auth_token on post-registration messages (disable for tests only)")
	root.PersistentFlags().IntVar(&cfg.minPlayers, "min-players", 2, "Minimum registered players before close_registration is allowed")
	root.PersistentFlags().IntVar(&cfg.minReferees, "min-referees", 1, "Minimum registered referees before close_registration is allowed")
	root.PersistentFlags().StringVar(&cfg.regDeadline, "registration-deadline", "", "RFC3339 wall-clock cutoff that auto-closes registration (empty = administrative close only)")
	root.PersistentFlags().IntVar(&cfg.clockSkewSeconds, "clock-skew-seconds", 120, "Envelope timestamp tolerance")
	root.PersistentFlags().IntVar(&cfg.reassignCooldownSecs, "reassignment-cooldown-seconds", 30, "Cooldown before an ERRORED referee may be reassigned")
	root.PersistentFlags().IntVar(&cfg.retryMax, "retry-max", 3, "Outbound dispatch retry count")
	root.PersistentFlags().IntVar(&cfg.retryBackoffMS, "retry-backoff-ms", 200, "Initial outbound dispatch retry backoff")
	root.PersistentFlags().IntVar(&cfg.maxAuthFailures, "max-auth-failures", 5, "Consecutive AUTH_INVALID rejections before an agent is suspended (0 disables suspension)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("league-manager %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting league manager",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("game_type", cfg.gameType),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// --- 1. Database ---
	gormDB, err := db.New(db.Config{
		Driver:   cfg.dbDriver,
		DSN:      cfg.dbDSN,
		Logger:   logger,
		LogLevel: gormLogLevel(cfg.logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	// --- 2. Repositories ---
	leagueRepo := repositories.NewLeagueRepository(gormDB)
	agentRepo := repositories.NewAgentRepository(gormDB)
	tokenRepo := repositories.NewTokenRepository(gormDB)
	roundRepo := repositories.NewRoundRepository(gormDB)
	matchRepo := repositories.NewMatchRepository(gormDB)
	resultRepo := repositories.NewResultRepository(gormDB)
	standingsRepo := repositories.NewStandingsRepository(gormDB)
	conversationRepo := repositories.NewConversationRepository(gormDB)

	// --- 3. Auth tokens ---
	tokenManager, err := buildTokenManager(cfg.dataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	// --- 4. Protocol validator ---
	validator := protocol.NewValidator(protocol.SystemClock{}, time.Duration(cfg.clockSkewSeconds)*time.Second, tokenManager, cfg.authEnabled)

	// --- 5. Game registry ---
	games := game.NewRegistry()
	games.Register(tictactoe.New(), game.DefaultScoring)

	// --- 6. Metrics ---
	m := metrics.New("league_manager")

	// --- 7. Audit log ---
	auditPath := cfg.auditPath
	if auditPath == "" {
		auditPath = filepath.Join(cfg.dataDir, "audit.ndjson")
	}
	auditLogger, err := audit.Open(auditPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLogger.Close()

	// --- 8. Scheduler (registration deadline) ---
	sched, err := scheduler.New(logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Warn("scheduler shutdown error", zap.Error(err))
		}
	}()

	// --- 9. Outbound dispatch ---
	transportClient := transport.New(transport.Config{
		MaxAttempts:    cfg.retryMax + 1,
		InitialBackoff: time.Duration(cfg.retryBackoffMS) * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	})
	dispatcher := manager.NewHTTPDispatcher(transportClient)

	// --- 10. League config ---
	managerCfg := manager.DefaultConfig()
	managerCfg.GameType = cfg.gameType
	managerCfg.AuthEnabled = cfg.authEnabled
	managerCfg.MinPlayers = cfg.minPlayers
	managerCfg.MinReferees = cfg.minReferees
	managerCfg.ReassignmentCooldown = time.Duration(cfg.reassignCooldownSecs) * time.Second
	managerCfg.ClockSkew = time.Duration(cfg.clockSkewSeconds) * time.Second
	managerCfg.MaxConsecutiveAuthFailures = cfg.maxAuthFailures
	if cfg.regDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, cfg.regDeadline)
		if err != nil {
			return fmt.Errorf("invalid --registration-deadline: %w", err)
		}
		deadline = deadline.UTC()
		managerCfg.RegistrationDeadline = &deadline
	}

	// --- 11. Observer websocket hub ---
	hub := websocket.NewHub()

	// --- 12. Coordinator ---
	coord := manager.New(manager.Deps{
		Config:        managerCfg,
		Clock:         protocol.SystemClock{},
		Logger:        logger,
		Tokens:        tokenManager,
		Leagues:       leagueRepo,
		Agents:        agentRepo,
		TokenRepo:     tokenRepo,
		Rounds:        roundRepo,
		Matches:       matchRepo,
		Results:       resultRepo,
		Standings:     standingsRepo,
		Conversations: conversationRepo,
		Hub:           hub,
		Games:         games,
		Dispatcher:    dispatcher,
		Scheduler:     sched,
		Metrics:       m,
	})
	validator.Seq = coord

	if err := coord.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore coordinator state: %w", err)
	}

	coordCtx, coordCancel := context.WithCancel(ctx)
	defer coordCancel()
	go coord.Run(coordCtx)
	go hub.Run(coordCtx)

	leagueID := ""
	if current, err := leagueRepo.GetCurrent(ctx); err == nil {
		leagueID = current.ID.String()
	}

	// --- 13. HTTP server ---
	router := api.NewManagerRouter(api.ManagerRouterConfig{
		Coordinator: coord,
		Validator:   validator,
		Audit:       auditLogger,
		DB:          gormDB,
		Hub:         hub,
		LeagueID:    leagueID,
		StartedAt:   time.Now(),
		Logger:      logger,
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
	logger.Info("shutting down league manager")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Warn("coordinator shutdown error", zap.Error(err))
	}

	logger.Info("league manager stopped")
	return nil
}

// buildTokenManager loads RSA keys from the data directory if available,
// or generates ephemeral in-memory keys for development.
func buildTokenManager(dataDir string, logger *zap.Logger) (*auth.TokenManager, error) {
	privPath := filepath.Join(dataDir, "jwt_private.pem")
	pubPath := filepath.Join(dataDir, "jwt_public.pem")

	if _, err := os.Stat(privPath); err == nil {
		logger.Info("loading auth token keys from disk", zap.String("private", privPath))
		return auth.NewTokenManagerFromFiles(privPath, pubPath, "league-manager")
	}

	logger.Warn("auth token key files not found — using ephemeral in-memory keys (tokens invalidated on restart)",
		zap.String("expected_private", privPath),
	)
	return auth.NewTokenManagerGenerated("league-manager")
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
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
