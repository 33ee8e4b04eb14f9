package controller

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/dto"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/serverutils"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/service"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/stream"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	StartTurn(ctx *fiber.Ctx) error
	StreamSSE(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	broker      *stream.Broker
}

func NewChatController(chatService service.IChatService, broker *stream.Broker) IChatController {
	return &chatController{
		chatService: chatService,
		broker:      broker,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("turn", c.StartTurn)
	h.Get("stream/:streamId", c.StreamSSE)
	h.Get("stream/:streamId/ws", websocketUpgrade, websocket.New(c.streamWS))
	h.Get("history/:sessionId", c.GetHistory)
	h.Get("sessions", c.ListSessions)
	h.Delete("session/:sessionId", c.DeleteSession)
}

// StartTurn accepts a multipart form with an optional message, optional
// session_id and zero or more files, and responds with the stream id before
// the turn's work begins.
func (c *chatController) StartTurn(ctx *fiber.Ctx) error {
	req := dto.StartTurnRequest{
		SessionId: ctx.FormValue("session_id"),
		Message:   ctx.FormValue("message"),
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	var files []ingest.UploadedFile
	form, err := ctx.MultipartForm()
	if err == nil && form != nil {
		for _, header := range form.File["files"] {
			f, err := header.Open()
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Cannot open upload %s", header.Filename))
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Cannot read upload %s", header.Filename))
			}
			files = append(files, ingest.UploadedFile{
				Name:     header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Data:     data,
			})
		}
	}

	if req.Message == "" && len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "A message or at least one file is required")
	}

	res, err := c.chatService.StartTurn(ctx.Context(), &req, files)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Turn started", res))
}

// StreamSSE replays a turn's stream as server-sent events: zero or more
// token events followed by exactly one done or error event.
func (c *chatController) StreamSSE(ctx *fiber.Ctx) error {
	streamId := ctx.Params("streamId")

	events, release, err := c.broker.Subscribe(streamId)
	if err != nil {
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// Releasing on exit detaches this consumer, so a client that went
		// away mid-stream does not pin the dispatcher or its backlog.
		defer release()
		for ev := range events {
			if err := writeSSE(w, ev); err != nil {
				return
			}
		}
	}))

	return nil
}

func writeSSE(w *bufio.Writer, ev stream.Event) error {
	switch ev.Kind {
	case stream.KindToken:
		data, err := json.Marshal(fiber.Map{"content": ev.Content})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: token\ndata: %s\n\n", data); err != nil {
			return err
		}
	case stream.KindDone:
		if _, err := fmt.Fprint(w, "event: done\ndata: {}\n\n"); err != nil {
			return err
		}
	case stream.KindError:
		message := "turn failed"
		if ev.Err != nil {
			message = ev.Err.Error()
		}
		data, err := json.Marshal(fiber.Map{"message": message})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", data); err != nil {
			return err
		}
	}
	return w.Flush()
}

func websocketUpgrade(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

type wsStreamMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// streamWS is the websocket twin of StreamSSE for clients that cannot
// consume SSE.
func (c *chatController) streamWS(conn *websocket.Conn) {
	defer conn.Close()

	streamId := conn.Params("streamId")
	events, release, err := c.broker.Subscribe(streamId)
	if err != nil {
		conn.WriteJSON(wsStreamMessage{Type: "error", Message: err.Error()})
		return
	}
	defer release()

	for ev := range events {
		var msg wsStreamMessage
		switch ev.Kind {
		case stream.KindToken:
			msg = wsStreamMessage{Type: "token", Content: ev.Content}
		case stream.KindDone:
			msg = wsStreamMessage{Type: "done"}
		case stream.KindError:
			msg = wsStreamMessage{Type: "error", Message: "turn failed"}
			if ev.Err != nil {
				msg.Message = ev.Err.Error()
			}
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")

	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}

	res, err := c.chatService.GetHistory(ctx.Context(), sessionId, limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	ownerId := ctx.Query("owner_id", "")

	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(ctx, "offset")
	if err != nil {
		return err
	}

	res, err := c.chatService.ListSessions(ctx.Context(), ownerId, limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

// DeleteSession removes a session's metadata row, its indexed chunks and its
// history blob.
func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")

	if err := c.chatService.DeleteSession(ctx.Context(), sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session deleted", sessionId))
}

func queryInt(ctx *fiber.Ctx, name string) (int, error) {
	raw := ctx.Query(name, "")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return parsed, nil
}
