package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/adapters"
	"github.com/satriahrh/voicejournal/adapters/llm"
	"github.com/satriahrh/voicejournal/adapters/memoryserver"
	"github.com/satriahrh/voicejournal/adapters/mongo"
	"github.com/satriahrh/voicejournal/adapters/stt"
	"github.com/satriahrh/voicejournal/adapters/tts"
	"github.com/satriahrh/voicejournal/domain/repositories"
	"github.com/satriahrh/voicejournal/internal/api"
	"github.com/satriahrh/voicejournal/internal/config"
	"github.com/satriahrh/voicejournal/internal/websocket"
	"github.com/satriahrh/voicejournal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
	}))

	// Initialize adapters
	var (
		languageModel repositories.LargeLanguageModel
		speechToText  repositories.SpeechToText
		textToSpeech  repositories.TextToSpeech
	)
	if cfg.UseMockProviders {
		logger.Info("Using mock providers")
		languageModel = llm.NewMockLLM()
		speechToText = stt.NewMockSpeechToText(logger)
		textToSpeech = tts.NewMockTextToSpeech(logger)
	} else {
		gemini, err := llm.NewGeminiLLM(ctx, cfg.Gemini, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
		languageModel = gemini

		google, err := stt.NewGoogleSpeechToText(ctx, cfg.Speech, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Google Speech-to-Text", zap.Error(err))
		}
		defer google.Close()
		speechToText = google

		elevenLabs, err := tts.NewElevenLabsTTS(cfg.ElevenLabs, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Eleven Labs", zap.Error(err))
		}
		textToSpeech = elevenLabs
	}

	var (
		journalRepo repositories.JournalRepository
		sessionRepo repositories.SessionRepository
	)
	switch cfg.StorageBackend {
	case config.StorageMongo:
		client, err := mongo.NewClient(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Close(context.Background())

		if journalRepo, err = mongo.NewJournalRepository(ctx, client.Database, logger); err != nil {
			logger.Fatal("Failed to initialize journal repository", zap.Error(err))
		}
		if sessionRepo, err = mongo.NewSessionRepository(ctx, client.Database, logger); err != nil {
			logger.Fatal("Failed to initialize session repository", zap.Error(err))
		}
	default:
		journalRepo = adapters.NewMemoryJournalRepository()
		sessionRepo = adapters.NewMemorySessionRepository()
	}

	var memory repositories.MemoryService
	if cfg.MemoryServer.BaseURL != "" {
		memory = memoryserver.NewClient(cfg.MemoryServer, logger)
	} else {
		logger.Info("Keeping memories in process")
		memory = memoryserver.NewInMemoryService()
	}

	// Initialize usecase services
	agent := usecase.NewAgentService(languageModel, memory, journalRepo, sessionRepo, logger)
	journal := usecase.NewJournalService(journalRepo, memory, cfg.DefaultLanguage, logger)
	turns := usecase.NewTurnService(agent, speechToText, textToSpeech, cfg.DefaultLanguage, logger)

	cleanup := usecase.NewSessionCleanupService(sessionRepo, cfg.SessionCleanupInterval, logger)
	cleanup.Start()

	// Initialize WebSocket hub
	hub := websocket.NewHub(turns, cfg.AllowedOrigins, logger)
	go hub.Run(ctx)

	// Initialize API routes
	api.InitRoutes(e, agent, journal, turns, hub, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice journal server started",
		zap.String("port", cfg.Port),
		zap.String("storage", cfg.StorageBackend),
		zap.Bool("mockProviders", cfg.UseMockProviders))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cleanup.Stop()
	agent.Wait()

	logger.Info("Server exited")
}
