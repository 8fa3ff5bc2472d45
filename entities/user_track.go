package entities

import (
	"github.com/google/uuid"
	"time"
)

type UserTrack struct {
	UserId     uuid.UUID `json:"user_id" gorm:"type:uuid;primary_key"`
	TrackId    uuid.UUID `json:"track_id" gorm:"type:uuid;primary_key"`
	AddedAt    time.Time `json:"added_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	PlayCount  int       `json:"play_count" gorm:"type:integer;not null;default:0"`
	IsFavorite bool      `json:"is_favorite" gorm:"not null;default:false"`
}

func (UserTrack) TableName() string {
	return "user_tracks"
}
