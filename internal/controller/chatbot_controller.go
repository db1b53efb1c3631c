package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"second-brain/internal/dto"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/pkg/serverutils"
	"second-brain/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

const (
	streamTimeout  = 5 * time.Minute
	maxMessageSize = 16 * 1024
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	CreateSession(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	ListModels(ctx *fiber.Ctx) error
	ServeWs(conn *websocket.Conn)
}

type chatbotController struct {
	chatbotService service.IChatbotService
	logger         logger.ILogger
}

func NewChatbotController(chatbotService service.IChatbotService, log logger.ILogger) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		logger:         log,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat/v1")
	h.Use(auth)
	h.Get("models", c.ListModels)
	h.Post("sessions", c.CreateSession)
	h.Post("sessions/:id/messages", c.SendChat)
	h.Delete("sessions/:id", c.ClearSession)
	h.Get("ws/:id", upgradeOnly, websocket.New(c.ServeWs))
}

func upgradeOnly(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (c *chatbotController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatbotService.CreateSession(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create chat session", res))
}

func (c *chatbotController) ClearSession(ctx *fiber.Ctx) error {
	if err := c.chatbotService.ClearSession(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success clear chat session", nil))
}

func (c *chatbotController) ListModels(ctx *fiber.Ctx) error {
	res, err := c.chatbotService.ListModels(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list models", res))
}

// SendChat answers with JSON, or with a server-sent event stream when the client
// accepts text/event-stream or passes ?stream=true.
func (c *chatbotController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	sessionId := ctx.Params("id")

	if !wantsStream(ctx) {
		res, err := c.chatbotService.SendChat(ctx.UserContext(), sessionId, &req, nil)
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber ctx is recycled once the handler returns; the writer runs after that.
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		streamCtx, cancel := context.WithTimeout(context.Background(), streamTimeout)
		defer cancel()

		res, err := c.chatbotService.SendChat(streamCtx, sessionId, &req, func(chunk string) error {
			return writeEvent(w, dto.ChatStreamFrame{Type: "chunk", Content: chunk})
		})
		if err != nil {
			c.logger.Warn("ChatbotController", "chat stream ended with error", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
			_ = writeEvent(w, dto.ChatStreamFrame{Type: "error", Error: err.Error()})
			return
		}
		_ = writeEvent(w, dto.ChatStreamFrame{Type: "done", Content: res.Reply})
	}))
	return nil
}

func wantsStream(ctx *fiber.Ctx) bool {
	if ctx.QueryBool("stream", false) {
		return true
	}
	return strings.Contains(ctx.Get(fiber.HeaderAccept), "text/event-stream")
}

// writeEvent flushes one SSE frame. A flush error means the client went away.
func writeEvent(w *bufio.Writer, frame dto.ChatStreamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

// ServeWs reads prompts from the socket and streams each answer back as frames.
// A frame is either a JSON SendChatRequest or plain prompt text.
func (c *chatbotController) ServeWs(conn *websocket.Conn) {
	sessionId := conn.Params("id")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadLimit(maxMessageSize)

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ChatbotController", "websocket closed unexpectedly", map[string]interface{}{
					"session_id": sessionId,
					"error":      err.Error(),
				})
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		req := parseWsRequest(raw)
		if err := serverutils.ValidateRequest(req); err != nil {
			_ = conn.WriteJSON(dto.ChatStreamFrame{Type: "error", Error: err.Error()})
			continue
		}

		res, err := c.chatbotService.SendChat(ctx, sessionId, &req, func(chunk string) error {
			return conn.WriteJSON(dto.ChatStreamFrame{Type: "chunk", Content: chunk})
		})
		if err != nil {
			if werr := conn.WriteJSON(dto.ChatStreamFrame{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(dto.ChatStreamFrame{Type: "done", Content: res.Reply}); err != nil {
			return
		}
	}
}

func parseWsRequest(raw []byte) dto.SendChatRequest {
	var req dto.SendChatRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.Chat != "" {
		return req
	}
	return dto.SendChatRequest{Chat: strings.TrimSpace(string(raw))}
}
