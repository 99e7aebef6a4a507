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

type bookingApplicationService interface {
	ListSlots(ctx context.Context, counselorID *uuid.UUID) ([]models.AvailabilitySchedule, error)
	BookSlot(ctx context.Context, userID uuid.UUID, slotID uuid.UUID, input services.BookSlotInput) (*models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, counselorID uuid.UUID, appointmentID uuid.UUID, input services.UpdateAppointmentStatusInput) (*models.Appointment, error)
	AddGroupMember(ctx context.Context, counselorID uuid.UUID, appointmentID uuid.UUID, userID uuid.UUID) (*models.GroupAppointmentMember, error)
}

type BookingHandler struct {
	service bookingApplicationService
}

func NewBookingHandler(service bookingApplicationService) *BookingHandler {
	return &BookingHandler{service: service}
}

type bookSlotRequest struct {
	AppointmentType string  `json:"appointment_type"`
	Reason          *string `json:"reason"`
	IsGroupEligible bool    `json:"is_group_eligible"`
}

type updateAppointmentStatusRequest struct {
	Status     string  `json:"status"`
	ScheduleID *string `json:"availability_schedule_id"`
}

type addGroupMemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *BookingHandler) ListSlots(c *fiber.Ctx) error {
	if _, err := parseActorID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var counselorID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("counselor_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "counselor_id must be a valid id"})
		}
		counselorID = &parsed
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	slots, err := h.service.ListSlots(c.Context(), counselorID)
	if err != nil {
		return mapBookingError(c, err)
	}
	pageSlots, meta := paginate(slots, page, limit)
	return c.JSON(fiber.Map{
		"slots":      pageSlots,
		"pagination": meta,
	})
}

func (h *BookingHandler) BookSlot(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid slot id"})
	}

	var req bookSlotRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if req.Reason != nil && strings.TrimSpace(*req.Reason) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason must not be empty"})
	}

	appointment, err := h.service.BookSlot(c.Context(), userID, slotID, services.BookSlotInput{
		AppointmentType: req.AppointmentType,
		Reason:          req.Reason,
		IsGroupEligible: req.IsGroupEligible,
	})
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"appointment": appointment})
}

func (h *BookingHandler) UpdateAppointmentStatus(c *fiber.Ctx) error {
	counselorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req updateAppointmentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	input := services.UpdateAppointmentStatusInput{Status: req.Status}
	if req.ScheduleID != nil {
		scheduleID, err := uuid.Parse(strings.TrimSpace(*req.ScheduleID))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "availability_schedule_id must be a valid id"})
		}
		input.ScheduleID = &scheduleID
	}

	appointment, err := h.service.UpdateAppointmentStatus(c.Context(), counselorID, appointmentID, input)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}

func (h *BookingHandler) AddGroupMember(c *fiber.Ctx) error {
	counselorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req addGroupMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id must be a valid id"})
	}

	member, err := h.service.AddGroupMember(c.Context(), counselorID, appointmentID, userID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"member": member})
}

func mapBookingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSlotUnavailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This time slot is no longer available"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSlotNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Slot not found"})
	case errors.Is(err, services.ErrAppointmentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process booking request"})
	}
}
