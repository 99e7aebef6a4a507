package repository

import (
	"context"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(
	ctx context.Context,
	userID uuid.UUID,
	content string,
) (*models.RegularNotification, error) {
	query := `
		INSERT INTO notifications (user_id, notification_content, status, sent_at)
		VALUES ($1, $2, 'sent', NOW())
		RETURNING notification_id, user_id, notification_content, status, sent_at
	`
	return scanNotification(r.db.QueryRow(ctx, query, userID, content))
}

func (r *NotificationRepository) ListSent(
	ctx context.Context,
	userID uuid.UUID,
) ([]models.RegularNotification, error) {
	query := `
		SELECT notification_id, user_id, notification_content, status, sent_at
		FROM notifications
		WHERE user_id = $1 AND status = 'sent'
		ORDER BY sent_at DESC, notification_id ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.RegularNotification, 0)
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead moves a sent notification to read. pgx.ErrNoRows means it does
// not exist, belongs to someone else, or was already read.
func (r *NotificationRepository) MarkRead(
	ctx context.Context,
	notificationID uuid.UUID,
	userID uuid.UUID,
) (*models.RegularNotification, error) {
	query := `
		UPDATE notifications
		SET status = 'read'
		WHERE notification_id = $1 AND user_id = $2 AND status = 'sent'
		RETURNING notification_id, user_id, notification_content, status, sent_at
	`
	return scanNotification(r.db.QueryRow(ctx, query, notificationID, userID))
}

func scanNotification(row rowScanner) (*models.RegularNotification, error) {
	var notification models.RegularNotification
	err := row.Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Content,
		&notification.Status,
		&notification.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}
