package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"library-encoder/entities"
)

type TrackRepository interface {
	UpsertUser(ctx context.Context, spotifyId string) (*entities.User, error)
	UpsertTrack(ctx context.Context, track *entities.Track) (*entities.Track, error)
	LinkUserTrack(ctx context.Context, userId, trackId uuid.UUID, addedAt time.Time) error
	EmbeddedTrackIds(ctx context.Context, spotifyIds []string) (map[string]struct{}, error)
	MarkTrackEmbedded(ctx context.Context, spotifyId string) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) TrackRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) UpsertUser(ctx context.Context, spotifyId string) (*entities.User, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "spotify_id"}},
		DoNothing: true,
	}).Create(&entities.User{SpotifyId: spotifyId}).Error
	if err != nil {
		return nil, err
	}

	user := &entities.User{}
	if err := r.db.WithContext(ctx).First(user, "spotify_id = ?", spotifyId).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// UpsertTrack inserts the track or refreshes its metadata when the spotify
// id already exists. The has_embedding flag is intentionally left out of
// the update set so a resync never clears it.
func (r *repo) UpsertTrack(ctx context.Context, track *entities.Track) (*entities.Track, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "spotify_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "artist", "album", "duration_ms", "preview_url", "updated_at"}),
	}).Create(track).Error
	if err != nil {
		return nil, err
	}

	stored := &entities.Track{}
	if err := r.db.WithContext(ctx).First(stored, "spotify_id = ?", track.SpotifyId).Error; err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *repo) LinkUserTrack(ctx context.Context, userId, trackId uuid.UUID, addedAt time.Time) error {
	link := &entities.UserTrack{
		UserId:  userId,
		TrackId: trackId,
		AddedAt: addedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "track_id"}},
		DoNothing: true,
	}).Create(link).Error
	if err != nil {
		return err
	}
	return nil
}

// EmbeddedTrackIds returns which of the given spotify ids already carry an
// embedding, so the coordinator can exclude them from the work set.
func (r *repo) EmbeddedTrackIds(ctx context.Context, spotifyIds []string) (map[string]struct{}, error) {
	if len(spotifyIds) == 0 {
		return map[string]struct{}{}, nil
	}

	var embedded []string
	err := r.db.WithContext(ctx).Model(&entities.Track{}).
		Where("spotify_id IN ? AND has_embedding = ?", spotifyIds, true).
		Pluck("spotify_id", &embedded).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(embedded))
	for _, id := range embedded {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *repo) MarkTrackEmbedded(ctx context.Context, spotifyId string) error {
	track := &entities.Track{}
	err := r.db.WithContext(ctx).Model(track).Where("spotify_id = ?", spotifyId).Update("has_embedding", true).Error
	if err != nil {
		return err
	}
	return nil
}
