package handler

import (
	"context"

	"video-rag-be/internal/dto"
	"video-rag-be/internal/pkg/logger"
	"video-rag-be/internal/pkg/serverutils"
	"video-rag-be/internal/service"
	internalWS "video-rag-be/internal/websocket"
	"video-rag-be/pkg/progress"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const module = "STREAM_HANDLER"

// StreamHandler serves the question/answer exchange over a websocket for
// clients that cannot consume server-sent events.
type StreamHandler struct {
	service service.IRagService
	logger  logger.ILogger
}

func NewStreamHandler(service service.IRagService, log logger.ILogger) *StreamHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StreamHandler{service: service, logger: log}
}

func (h *StreamHandler) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Get("/rag/v1/ws", auth, h.ServeWs)
}

// ServeWs upgrades the request. The first client message is the query
// payload; every progress event is sent back as a JSON text message and
// the exchange ends with "[DONE]".
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.serve(internalWS.NewSession(conn))
	})(c)
}

func (h *StreamHandler) serve(sess *internalWS.Session) {
	go sess.WritePump()
	defer sess.Close()

	var req dto.QueryPayload
	if err := sess.ReadPayload(&req); err != nil {
		h.logger.Warn(module, "Unreadable payload", map[string]interface{}{"error": err.Error()})
		_ = sess.SendJSON(progress.Failure("Invalid request payload"))
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		_ = sess.SendJSON(progress.Failure(err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.ReadPump(cancel)

	emit := func(ev progress.Event) error { return sess.SendJSON(ev) }
	if err := h.service.Stream(ctx, &req, emit); err != nil {
		h.logger.Info(module, "Client left before the answer", map[string]interface{}{"error": err.Error()})
		return
	}
	_ = sess.SendText([]byte("[DONE]"))
}
