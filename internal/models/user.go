package models

import (
	"time"

	"github.com/google/uuid"
)

// Values of users.user_type.
const (
	RoleUser      = "user"
	RoleCounselor = "counselor"
)

type User struct {
	ID        uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"user_type"`
	CreatedAt time.Time `json:"created_at"`
}
