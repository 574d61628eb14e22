package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tovald/pageflow/internal/app/service"
	"github.com/tovald/pageflow/internal/tracker"
	"go.uber.org/zap"
)

// CacheHeader carries the signed identity token between tracking calls.
const CacheHeader = "x-pageflow-cache"

// Ingestor is the slice of the ingestion service the handler needs.
type Ingestor interface {
	Ingest(ctx context.Context, req service.Request) (*service.Result, error)
}

// SendDeps groups dependencies required by the collection handler.
type SendDeps struct {
	Logger *zap.Logger
	Ingest Ingestor
}

// SendHandler implements the public collection endpoint.
type SendHandler struct {
	logger *zap.Logger
	ingest Ingestor
}

// NewSendHandler creates the collection handler with the provided dependencies.
func NewSendHandler(deps SendDeps) *SendHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendHandler{
		logger: logger,
		ingest: deps.Ingest,
	}
}

// Register wires the collection routes onto the provided router.
func (h *SendHandler) Register(router fiber.Router) {
	router.Post("/api/send", h.Send)
	router.Get("/health", h.Health)
}

// sendResponse is the success body. The field names are part of the wire
// contract with the snippet.
type sendResponse struct {
	Cache     string `json:"cache"`
	SessionID string `json:"sessionId"`
	VisitID   string `json:"visitId"`
}

// Send handles POST /api/send
func (h *SendHandler) Send(c *fiber.Ctx) error {
	var envelope tracker.Envelope
	if err := c.BodyParser(&envelope); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "invalid request body",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.ingest.Ingest(ctx, service.Request{
		Envelope:        envelope,
		CacheHeader:     c.Get(CacheHeader),
		RemoteIP:        c.IP(),
		ForwardedFor:    c.Get("X-Forwarded-For"),
		UserAgentHeader: c.Get("User-Agent"),
	})
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": err.Error(),
			})
		case errors.Is(err, service.ErrUnknownWebsite):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "unknown website",
			})
		case errors.Is(err, service.ErrBlockedIP):
			return c.SendStatus(fiber.StatusForbidden)
		default:
			h.logger.Error("ingest failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "internal server error",
			})
		}
	}

	// Bots get a plausible 200 so they have nothing to adapt to.
	if result.BotFiltered {
		return c.JSON(fiber.Map{"beep": "boop"})
	}

	return c.JSON(sendResponse{
		Cache:     result.CacheToken,
		SessionID: result.SessionID,
		VisitID:   result.VisitID,
	})
}

// Health handles GET /health
func (h *SendHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
