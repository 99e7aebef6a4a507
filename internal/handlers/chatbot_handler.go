package handlers

import (
	"context"
	"errors"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type chatbotApplicationService interface {
	Reply(ctx context.Context, userID uuid.UUID, message string) (string, error)
}

type ChatbotHandler struct {
	service chatbotApplicationService
}

type chatbotRequest struct {
	Message string `json:"message"`
}

func NewChatbotHandler(service chatbotApplicationService) *ChatbotHandler {
	return &ChatbotHandler{service: service}
}

func (h *ChatbotHandler) Reply(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req chatbotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	reply, err := h.service.Reply(c.Context(), userID, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message must not be empty"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reach the assistant"})
	}

	return c.JSON(fiber.Map{"reply": reply})
}
