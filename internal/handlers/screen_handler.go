package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/middleware"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/services"
	chatws "github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/websocket"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	screenChat          = "chat"
	screenNotifications = "notifications"
)

type screenOpener interface {
	OpenThread(ctx context.Context, selfID uuid.UUID, conversationID uuid.UUID, push func(models.Thread)) (*services.ThreadScreen, error)
	OpenNotifications(ctx context.Context, userID uuid.UUID, tab models.FeedTab, filter string, push func([]models.Section)) (*services.NotificationScreen, error)
}

type messageSender interface {
	Send(ctx context.Context, selfID uuid.UUID, conversationID uuid.UUID, recipientID uuid.UUID, content string) (*models.Message, error)
}

// ScreenHandler serves live screens over a websocket. The socket carries the
// screen's refreshed view-model every time one of its tables changes.
type ScreenHandler struct {
	screens   screenOpener
	sender    messageSender
	hub       *chatws.Hub
	jwtSecret string
}

func NewScreenHandler(screens screenOpener, sender messageSender, hub *chatws.Hub, jwtSecret string) *ScreenHandler {
	return &ScreenHandler{
		screens:   screens,
		sender:    sender,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// WebSocketAuth checks the token and the screen parameters before the
// upgrade so that bad requests get a plain HTTP error.
func (h *ScreenHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	screen := strings.TrimSpace(c.Query("screen", screenChat))
	switch screen {
	case screenChat:
		if _, err := uuid.Parse(c.Query("conversation_id")); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "conversation_id must be a valid id"})
		}
	case screenNotifications:
		tab := c.Query("tab", string(models.FeedTabAppointment))
		if _, ok := services.ParseFeedTab(tab); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tab must be appointment or regular"})
		}
		if !services.ValidAppointmentFilter(c.Query("filter")) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment filter"})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "screen must be chat or notifications"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ScreenHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := chatws.NewClient(h.hub, conn, userIDStr)
	h.hub.Register(client)
	go client.WritePump()
	// Both screen loops unregister the client before returning, so the
	// queue closes and the pump drains any final error frame.
	defer client.Wait()

	switch conn.Query("screen", screenChat) {
	case screenNotifications:
		h.serveNotifications(ctx, client, userID, conn)
	default:
		h.serveThread(ctx, client, userID, conn)
	}
}

func (h *ScreenHandler) serveThread(ctx context.Context, client *chatws.Client, userID uuid.UUID, conn *websocket.Conn) {
	conversationID, _ := uuid.Parse(conn.Query("conversation_id"))

	screen, err := h.screens.OpenThread(ctx, userID, conversationID, func(thread models.Thread) {
		client.Push(chatws.EnvelopeThread, thread)
	})
	if err != nil {
		client.PushError(screenErrorMessage(err))
		h.hub.Unregister(client)
		return
	}
	defer screen.Close()

	client.ReadPump(ctx, func(ctx context.Context, incoming chatws.Inbound) {
		switch incoming.Type {
		case "message":
			current := screen.Current()
			if current == nil {
				client.PushError("conversation is not loaded")
				return
			}
			if _, err := h.sender.Send(ctx, userID, conversationID, current.RecipientID, incoming.Content); err != nil {
				client.PushError(screenErrorMessage(err))
			}
		case "refresh":
			if err := screen.Refresh(ctx); err != nil {
				client.PushError(screenErrorMessage(err))
			}
		default:
			client.PushError("unsupported message type")
		}
	})
}

func (h *ScreenHandler) serveNotifications(ctx context.Context, client *chatws.Client, userID uuid.UUID, conn *websocket.Conn) {
	tab := models.FeedTab(conn.Query("tab", string(models.FeedTabAppointment)))

	screen, err := h.screens.OpenNotifications(ctx, userID, tab, conn.Query("filter"), func(sections []models.Section) {
		client.Push(chatws.EnvelopeSections, sections)
	})
	if err != nil {
		client.PushError(screenErrorMessage(err))
		h.hub.Unregister(client)
		return
	}
	defer screen.Close()

	client.ReadPump(ctx, func(ctx context.Context, incoming chatws.Inbound) {
		switch incoming.Type {
		case "view":
			if err := screen.SetView(models.FeedTab(incoming.Tab), incoming.Filter); err != nil {
				client.PushError(screenErrorMessage(err))
			}
		case "refresh":
			screen.Refresh(ctx)
		default:
			client.PushError("unsupported message type")
		}
	})
}

func (h *ScreenHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		if bearer, ok := middleware.BearerToken(c.Get("Authorization")); ok {
			tokenString = bearer
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func screenErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		return "conversation not found"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid request"
	case errors.Is(err, services.ErrWriteFailure):
		return "message could not be saved"
	default:
		log.Printf("screens: %v", err)
		return "failed to process request"
	}
}
