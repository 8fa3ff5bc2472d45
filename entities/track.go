package entities

import (
	"github.com/google/uuid"
	"time"
)

type Track struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SpotifyId    string    `json:"spotify_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_tracks_spotify_id"`
	Name         string    `json:"name" gorm:"type:varchar(512);not null"`
	Artist       *string   `json:"artist" gorm:"type:varchar(512)"`
	Album        *string   `json:"album" gorm:"type:varchar(512)"`
	DurationMs   *int      `json:"duration_ms" gorm:"type:integer"`
	PreviewUrl   *string   `json:"preview_url" gorm:"type:text"`
	HasEmbedding bool      `json:"has_embedding" gorm:"not null;default:false;index:idx_tracks_has_embedding"`
	CreatedAt    time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Track) TableName() string {
	return "tracks"
}
