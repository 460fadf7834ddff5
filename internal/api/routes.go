package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain"
	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
	"github.com/satriahrh/voicejournal/internal/frame"
	"github.com/satriahrh/voicejournal/internal/websocket"
	"github.com/satriahrh/voicejournal/usecase"
)

const (
	defaultModeSessionID = "default_session"
	defaultEntriesLimit  = 50
	maxEntriesLimit      = 500
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	agent *usecase.AgentService,
	journal *usecase.JournalService,
	turns *usecase.TurnService,
	hub *websocket.Hub,
	logger *zap.Logger,
) {
	e.GET("/api/health", func(c echo.Context) error {
		return health(c, agent)
	})

	a := e.Group("/api/agent")
	a.POST("/chat/stream", func(c echo.Context) error {
		return chatStream(c, turns, logger)
	})
	a.POST("/chat", func(c echo.Context) error {
		return chat(c, turns, logger)
	})
	a.GET("/mode", func(c echo.Context) error {
		return getMode(c, agent, logger)
	})
	a.POST("/mode", func(c echo.Context) error {
		return setMode(c, agent, logger)
	})

	m := e.Group("/api/memory")
	m.GET("/session/:session_id", func(c echo.Context) error {
		return sessionHistory(c, agent, logger)
	})
	m.DELETE("/session/:session_id", func(c echo.Context) error {
		return endSession(c, agent, logger)
	})

	e.POST("/api/transcribe", func(c echo.Context) error {
		return transcribe(c, turns, agent, logger)
	})
	e.POST("/api/tts", func(c echo.Context) error {
		return synthesize(c, turns, logger)
	})

	j := e.Group("/api/entries")
	j.GET("", func(c echo.Context) error {
		return listEntries(c, agent, logger)
	})
	j.POST("", func(c echo.Context) error {
		return createEntry(c, journal, logger)
	})
	j.GET("/:entry_id", func(c echo.Context) error {
		return getEntry(c, journal, logger)
	})
	j.PATCH("/:entry_id", func(c echo.Context) error {
		return updateEntry(c, journal, logger)
	})
	j.DELETE("/:entry_id", func(c echo.Context) error {
		return deleteEntry(c, journal, logger)
	})
	e.GET("/api/analytics", func(c echo.Context) error {
		return analytics(c, journal, logger)
	})

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func health(c echo.Context, agent *usecase.AgentService) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		MemoryServer: agent.MemoryHealthy(c.Request().Context()),
	})
}

// prepareTurn binds the request and runs everything that must succeed before a reply exists
func prepareTurn(c echo.Context, turns *usecase.TurnService, logger *zap.Logger) (*usecase.PreparedTurn, error) {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind turn request", zap.Error(err))
		return nil, c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	turn, err := req.ToTurn()
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	prepared, err := turns.Prepare(c.Request().Context(), turn)
	if err != nil {
		return nil, turnError(c, err)
	}
	return prepared, nil
}

// turnError maps a failed turn to its HTTP response
func turnError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidTurn):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, usecase.ErrTranscription):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "transcription_failed", Message: err.Error()})
	case errors.Is(err, usecase.ErrReplyGeneration):
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "reply_generation_failed", Message: "Failed to generate a reply"})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to process the turn"})
	}
}

// chatStream answers a turn as a newline-delimited record stream
func chatStream(c echo.Context, turns *usecase.TurnService, logger *zap.Logger) error {
	prepared, err := prepareTurn(c, turns, logger)
	if prepared == nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	res.Header().Set("X-Content-Type-Options", "nosniff")
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	if err := turns.Stream(c.Request().Context(), prepared, frame.NewWriter(res)); err != nil {
		// Status and records are already on the wire; the client sees a stream without done
		logger.Warn("Turn stream aborted",
			zap.String("sessionID", prepared.Metadata.SessionID),
			zap.Error(err))
	}
	return nil
}

// chat answers a turn with a single JSON response
func chat(c echo.Context, turns *usecase.TurnService, logger *zap.Logger) error {
	prepared, err := prepareTurn(c, turns, logger)
	if prepared == nil {
		return err
	}

	response, err := turns.Respond(c.Request().Context(), prepared)
	if err != nil {
		logger.Error("Failed to build turn response", zap.Error(err))
		return turnError(c, err)
	}
	return c.JSON(http.StatusOK, response)
}

func modeParams(c echo.Context) (userID, sessionID string) {
	userID = c.QueryParam("user_id")
	if userID == "" {
		userID = entities.DefaultUserID
	}
	sessionID = c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = defaultModeSessionID
	}
	return userID, sessionID
}

func getMode(c echo.Context, agent *usecase.AgentService, logger *zap.Logger) error {
	userID, sessionID := modeParams(c)

	mode, err := agent.Mode(c.Request().Context(), userID, sessionID)
	if err != nil {
		logger.Error("Failed to get mode", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to load session"})
	}
	return c.JSON(http.StatusOK, ModeResponse{Mode: mode, UserID: userID, SessionID: sessionID})
}

func setMode(c echo.Context, agent *usecase.AgentService, logger *zap.Logger) error {
	userID, sessionID := modeParams(c)

	raw := c.QueryParam("mode")
	if raw == "" {
		raw = string(entities.ModeLog)
	}
	mode, err := entities.ParseMode(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_mode", Message: "Mode must be 'log' or 'chat'"})
	}

	if err := agent.SetMode(c.Request().Context(), userID, sessionID, mode); err != nil {
		logger.Error("Failed to set mode", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to save session"})
	}
	return c.JSON(http.StatusOK, ModeResponse{Mode: mode, UserID: userID, SessionID: sessionID})
}

func sessionHistory(c echo.Context, agent *usecase.AgentService, logger *zap.Logger) error {
	sessionID := c.Param("session_id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = entities.DefaultUserID
	}

	messages, err := agent.SessionHistory(c.Request().Context(), userID, sessionID)
	if err != nil {
		logger.Error("Failed to load session history", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to load session"})
	}
	return c.JSON(http.StatusOK, SessionHistoryResponse{SessionID: sessionID, Messages: messages, Count: len(messages)})
}

func endSession(c echo.Context, agent *usecase.AgentService, logger *zap.Logger) error {
	sessionID := c.Param("session_id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = entities.DefaultUserID
	}

	if err := agent.EndSession(c.Request().Context(), userID, sessionID); err != nil {
		logger.Error("Failed to end session", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to end session"})
	}
	return c.JSON(http.StatusOK, SessionEndedResponse{Status: "session_ended", SessionID: sessionID})
}

func transcribe(c echo.Context, turns *usecase.TurnService, agent *usecase.AgentService, logger *zap.Logger) error {
	var req TranscribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "audio_base64 must be non-empty base64"})
	}

	ctx := c.Request().Context()
	transcript, err := turns.Transcribe(ctx, audio, req.LanguageCode)
	if err != nil {
		logger.Warn("Transcription failed", zap.Error(err))
		return turnError(c, err)
	}

	userID := req.UserID
	if userID == "" {
		userID = entities.DefaultUserID
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = entities.NewSessionID()
	}

	stored := false
	if req.StoreInMemory == nil || *req.StoreInMemory {
		if err := agent.StoreTranscript(ctx, userID, sessionID, transcript.Text); err != nil {
			logger.Warn("Failed to store transcript in memory", zap.String("sessionID", sessionID), zap.Error(err))
		} else {
			stored = true
		}
	}

	return c.JSON(http.StatusOK, TranscribeResponse{
		Transcript:     transcript.Text,
		LanguageCode:   transcript.LanguageCode,
		SessionID:      sessionID,
		StoredInMemory: stored,
	})
}

func listEntries(c echo.Context, agent *usecase.AgentService, logger *zap.Logger) error {
	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		userID = entities.DefaultUserID
	}

	limit := defaultEntriesLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_limit", Message: "limit must be a positive integer"})
		}
		limit = min(parsed, maxEntriesLimit)
	}

	entries, total, err := agent.Entries(c.Request().Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to list entries", zap.String("userID", userID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to list entries"})
	}
	if entries == nil {
		entries = []*entities.JournalEntry{}
	}
	return c.JSON(http.StatusOK, EntriesResponse{Entries: entries, Total: total})
}

// entryError maps a failed entry operation to its HTTP response
func entryError(c echo.Context, err error, logger *zap.Logger) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Entry not found"})
	case errors.Is(err, usecase.ErrInvalidEntry):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_entry", Message: err.Error()})
	default:
		logger.Error("Entry operation failed", zap.String("entryID", c.Param("entry_id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to process the entry"})
	}
}

func createEntry(c echo.Context, journal *usecase.JournalService, logger *zap.Logger) error {
	var req CreateEntryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}

	entry, err := journal.CreateEntry(c.Request().Context(), usecase.EntryInput{
		UserID:          strings.TrimSpace(req.UserID),
		SessionID:       req.SessionID,
		Transcript:      req.Transcript,
		LanguageCode:    req.LanguageCode,
		Mood:            req.Mood,
		Tags:            req.Tags,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		return entryError(c, err, logger)
	}
	return c.JSON(http.StatusCreated, entry)
}

func getEntry(c echo.Context, journal *usecase.JournalService, logger *zap.Logger) error {
	entry, err := journal.GetEntry(c.Request().Context(), c.Param("entry_id"))
	if err != nil {
		return entryError(c, err, logger)
	}
	return c.JSON(http.StatusOK, entry)
}

func updateEntry(c echo.Context, journal *usecase.JournalService, logger *zap.Logger) error {
	var req UpdateEntryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}

	entry, err := journal.UpdateEntry(c.Request().Context(), c.Param("entry_id"), usecase.EntryChanges{
		Transcript: req.Transcript,
		Mood:       req.Mood,
		Tags:       req.Tags,
	})
	if err != nil {
		return entryError(c, err, logger)
	}
	return c.JSON(http.StatusOK, entry)
}

func deleteEntry(c echo.Context, journal *usecase.JournalService, logger *zap.Logger) error {
	entryID := c.Param("entry_id")
	if err := journal.DeleteEntry(c.Request().Context(), entryID); err != nil {
		return entryError(c, err, logger)
	}
	return c.JSON(http.StatusOK, EntryDeletedResponse{Status: "deleted", EntryID: entryID})
}

func analytics(c echo.Context, journal *usecase.JournalService, logger *zap.Logger) error {
	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		userID = entities.DefaultUserID
	}

	result, err := journal.Analytics(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to compute analytics", zap.String("userID", userID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to compute analytics"})
	}
	return c.JSON(http.StatusOK, result)
}

func synthesize(c echo.Context, turns *usecase.TurnService, logger *zap.Logger) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}

	audio, err := turns.Synthesize(c.Request().Context(), req.Text)
	switch {
	case errors.Is(err, usecase.ErrInvalidTurn):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "text is required"})
	case err != nil:
		logger.Error("Synthesis failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "synthesis_failed", Message: "Failed to synthesize speech"})
	}
	return c.JSON(http.StatusOK, SynthesizeResponse{AudioBase64: base64.StdEncoding.EncodeToString(audio)})
}
