package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tovald/pageflow/internal/http/view"
	"go.uber.org/zap"
)

// ScriptDeps groups dependencies required by the snippet handler.
type ScriptDeps struct {
	Logger *zap.Logger

	// PublicEndpoint is the absolute URL customers' pages post hits to,
	// e.g. https://track.example.com/api/send.
	PublicEndpoint string
}

// ScriptHandler serves the embeddable tracking snippet. The script is
// rendered once at startup; only the endpoint and header name vary by
// deployment.
type ScriptHandler struct {
	logger *zap.Logger
	script string
}

// NewScriptHandler renders the snippet for the configured endpoint.
func NewScriptHandler(deps ScriptDeps) (*ScriptHandler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	script, err := view.RenderTrackerScript(view.TrackerScriptData{
		Endpoint:    deps.PublicEndpoint,
		CacheHeader: CacheHeader,
	})
	if err != nil {
		return nil, err
	}

	return &ScriptHandler{
		logger: logger,
		script: script,
	}, nil
}

// Register wires the snippet route onto the provided router.
func (h *ScriptHandler) Register(router fiber.Router) {
	router.Get("/pageflow.js", h.Serve)
}

// Serve handles GET /pageflow.js
func (h *ScriptHandler) Serve(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.SendString(h.script)
}
