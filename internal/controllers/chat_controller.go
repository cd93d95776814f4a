package controllers

import (
	"bufio"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/internal/orchestrator"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

// ChatController serves the chat surface: synchronous turns, SSE streaming
// turns, and the per-user history.
type ChatController struct {
	orchestrator *orchestrator.Orchestrator
}

type ChatControllerDependencies struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewChatController(deps ChatControllerDependencies) *ChatController {
	return &ChatController{orchestrator: deps.Orchestrator}
}

// Chat runs a turn to completion and returns the aggregate response.
func (c *ChatController) Chat(ctx fiber.Ctx) error {
	var req orchestrator.ChatRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := c.orchestrator.ChatSync(ctx.RequestCtx(), req, callerID(ctx))
	if err != nil {
		return chatError(err)
	}
	return ctx.JSON(result)
}

// ChatStream runs a turn and delivers it as server-sent events: one
// `{"type":"chunk"}` frame per text block, then the explicit
// `{"type":"end"}` marker.
func (c *ChatController) ChatStream(ctx fiber.Ctx) error {
	var req orchestrator.ChatRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	userID := callerID(ctx)
	events, err := c.orchestrator.ChatStream(ctx.RequestCtx(), req, userID)
	if err != nil {
		return chatError(err)
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	return ctx.SendStreamWriter(func(w *bufio.Writer) {
		for ev := range events {
			var frame map[string]any

			switch e := ev.(type) {
			case *types.TextDeltaEvent:
				frame = map[string]any{"type": "chunk", "content": e.Delta}
			case *types.ToolProgressEvent:
				frame = map[string]any{"type": "chunk", "content": e.Text}
			case *types.StreamErrorEvent:
				frame = map[string]any{"type": "error", "message": e.Message}
			case *types.TurnCompleteEvent:
				frame = map[string]any{"type": "end"}
			default:
				continue
			}

			if !writeFrame(w, frame) {
				// Client gone. Keep draining so the turn finalizes.
				for range events {
				}
				return
			}
		}
	})
}

// History returns the caller's recent turns, most-recent-last.
func (c *ChatController) History(ctx fiber.Ctx) error {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	entries := c.orchestrator.History().Tail(callerID(ctx), limit)
	return ctx.JSON(fiber.Map{"history": entries})
}

func writeFrame(w *bufio.Writer, frame map[string]any) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("encoding stream frame")
		return true
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

func chatError(err error) error {
	var denied *orchestrator.AccessDeniedError
	if errors.As(err, &denied) {
		return fiber.NewError(fiber.StatusForbidden, denied.Error())
	}
	if errors.Is(err, orchestrator.ErrEmptyMessage) || errors.Is(err, orchestrator.ErrEmptyProvider) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
