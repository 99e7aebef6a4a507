package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type notificationApplicationService interface {
	Feed(ctx context.Context, userID uuid.UUID, tab models.FeedTab, appointmentFilter string) []models.Section
	MarkRead(ctx context.Context, userID uuid.UUID, notificationID uuid.UUID) error
}

type NotificationHandler struct {
	service notificationApplicationService
}

func NewNotificationHandler(service notificationApplicationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListNotifications renders one tab of the notification screen. The tab
// defaults to appointment and the filter to all.
func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	tab, ok := services.ParseFeedTab(strings.TrimSpace(c.Query("tab", string(models.FeedTabAppointment))))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tab must be appointment or regular"})
	}
	filter := strings.TrimSpace(c.Query("filter", services.AppointmentFilterAll))
	if !services.ValidAppointmentFilter(filter) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment filter"})
	}

	sections := h.service.Feed(c.Context(), userID, tab, filter)
	return c.JSON(fiber.Map{
		"tab":      tab,
		"filter":   filter,
		"sections": sections,
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification id"})
	}

	if err := h.service.MarkRead(c.Context(), userID, notificationID); err != nil {
		return mapNotificationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func mapNotificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotificationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process notification request"})
	}
}
