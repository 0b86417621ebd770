package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"emolab/ai"
	"emolab/api"
	"emolab/concurrency"
	"emolab/internal"
	"emolab/moderation"
	"emolab/observability"
	"emolab/repositories"
	"emolab/runtime"
	"emolab/runtime/workers"
	"emolab/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// The pattern keeps every defer (database close, index flush) on the exit path
// and decouples initialization from the process entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, EngineMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories
	conversationRepo := repositories.NewConversationRepository(db, logger)
	turnRepo := repositories.NewTurnRepository(db, logger)
	messageRepo := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	versionRepo := repositories.NewVersionRepository(db, logger)
	whisperRepo := repositories.NewWhisperRepository(db, logger)
	searchRepo := repositories.NewSearchRepository(blugeWriter, logger, &config.SearchLimit, config.SearchBatchSize)
	userRepo := repositories.NewUserRepository(db)

	// 4. Moderation & AI capability
	wordList, err := moderation.LoadEmbedded()
	if err != nil {
		return exitRuntime, fmt.Errorf("wordlist loading failed: %w", err)
	}
	logger.Info("Moderation dictionary loaded",
		slog.Int("words", len(wordList.Words)),
		slog.String("languages", strings.Join(wordList.Languages, ",")))

	moderator, err := moderation.NewModerator(wordList.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator init failed: %w", err)
	}

	distiller := ai.NewGateway(logger, config.AIGatewayURL, config.AIGatewayKey,
		config.AIGatewayModel, config.GenerationTimeout)

	// 5. Supervision & Orchestration
	registry := prometheus.NewRegistry()
	monitoring := observability.NewMonitoringManager(logger, registry)
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, supervisor, runtime.NewRegistry(),
		monitoring, config.BufferSize, config.SinkTimeout,
		config.EffectMaxAttempts, config.EffectRetryDelay)

	// 6. Services
	locks := concurrency.NewKeyedMutex()
	turnService := services.NewTurnService(logger, conversationRepo, turnRepo, locks, orchestrator)
	pipelineService := services.NewPipelineService(logger, conversationRepo, messageRepo,
		versionRepo, searchRepo, distiller, moderator, orchestrator, orchestrator, monitoring, locks)
	whisperService := services.NewWhisperService(logger, conversationRepo, messageRepo,
		versionRepo, whisperRepo, distiller, orchestrator)
	conversationService := services.NewConversationService(logger, conversationRepo, messageRepo,
		versionRepo, searchRepo, locks, orchestrator)
	authService := services.NewAuthService(userRepo, config.AuthTokenDuration)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Start the engine. The publish effect worker runs the trailing
	// effects of an approval: whisper dispatch and floor release, each
	// attempted on every run so one failing effect never blocks the other.
	orchestrator.Start(ctx, services.PublishEffectRunner(messageRepo, whisperService, turnService))

	// 9. HTTP server
	apiServer := api.NewServer(logger, authService, conversationService, turnService,
		pipelineService, whisperService, orchestrator, monitoring, registry)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 11. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", slog.Any("error", err))
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// EngineMapper renders the engine's JSON records in the badger inspector.
func EngineMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	namespace, _, _ := strings.Cut(key, ":")
	row.Namespace = namespace

	var record map[string]any
	if err := json.Unmarshal(val, &record); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	switch namespace {
	case "conv":
		row.Type = "CONVERSATION"
		row.Detail = fmt.Sprintf("%v", record["Topic"])
	case "msg", "timeline":
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%v (%v)", record["AuthorID"], record["Status"])
	case "ver":
		row.Type = "VERSION"
		if facets, ok := record["Facets"].(map[string]any); ok {
			row.Detail = fmt.Sprintf("%v", facets["synopsis"])
		}
	case "whisper", "whisperid":
		row.Type = "WHISPER"
		row.Detail = fmt.Sprintf("to %v (revealed=%v)", record["RecipientID"], record["Revealed"])
	case "req", "reqdone":
		row.Type = "TURN"
		row.Detail = fmt.Sprintf("%v (%v)", record["RequesterID"], record["Status"])
	case "user", "userid":
		row.Type = "USER"
		row.Detail = fmt.Sprintf("%v", record["Username"])
	}
	return row
}
