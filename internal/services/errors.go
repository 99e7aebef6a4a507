package services

import (
	"context"
	"errors"
	"time"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrSlotNotFound           = errors.New("slot not found")
	ErrAppointmentNotFound    = errors.New("appointment not found")
	ErrNotificationNotFound   = errors.New("notification not found")

	// ErrSlotUnavailable is the booking conflict: the slot was taken between
	// the user seeing it and submitting.
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrWriteFailure    = errors.New("write failure")

	// ErrJoinFailure and ErrQueryFailure only ever reach the log.
	ErrJoinFailure  = errors.New("join failure")
	ErrQueryFailure = errors.New("query failure")
)

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
