package entities

import (
	"github.com/google/uuid"
	"time"
)

type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SpotifyId   string    `json:"spotify_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_users_spotify_id"`
	DisplayName *string   `json:"display_name" gorm:"type:varchar(255)"`
	Email       *string   `json:"email" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string {
	return "users"
}
