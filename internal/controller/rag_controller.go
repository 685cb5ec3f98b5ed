package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"video-rag-be/internal/dto"
	"video-rag-be/internal/pkg/logger"
	"video-rag-be/internal/pkg/serverutils"
	"video-rag-be/internal/service"
	"video-rag-be/pkg/progress"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const ServiceName = "video-rag-be"

type IRagController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Stream(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type ragController struct {
	service service.IRagService
	logger  logger.ILogger
}

func NewRagController(service service.IRagService, log logger.ILogger) IRagController {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ragController{service: service, logger: log}
}

func (c *ragController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/rag/v1")
	h.Post("/stream", auth, c.Stream)
	h.Get("/history/:videoId", auth, c.History)
}

// Stream answers one question as server-sent events, ending with [DONE].
func (c *ragController) Stream(ctx *fiber.Ctx) error {
	var req dto.QueryPayload
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber ctx is recycled once the handler returns; the stream
	// writer runs after that.
	parent := context.WithoutCancel(ctx.UserContext())

	var writer fasthttp.StreamWriter = func(w *bufio.Writer) {
		emit := func(ev progress.Event) error {
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return err
			}
			return w.Flush()
		}

		if err := c.service.Stream(parent, &req, emit); err != nil {
			c.logger.Warn("RAG_CONTROLLER", "Stream ended early", map[string]interface{}{"error": err.Error()})
			return
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
		_ = w.Flush()
	}
	ctx.Context().SetBodyStreamWriter(writer)

	return nil
}

func (c *ragController) History(ctx *fiber.Ctx) error {
	videoID := ctx.Params("videoId")
	limit := ctx.QueryInt("limit", 20)

	res, err := c.service.History(ctx.UserContext(), videoID, limit)
	if err != nil {
		if errors.Is(err, service.ErrHistoryDisabled) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Answer history is disabled")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *ragController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(dto.HealthResponse{Status: "ok", Service: ServiceName})
}
