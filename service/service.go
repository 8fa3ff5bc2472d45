package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"library-encoder/constant"
	"library-encoder/dto"
	"library-encoder/pkg/embedding"
	"library-encoder/pkg/spotify"
	"library-encoder/registry"
	"library-encoder/repository"
)

var ErrCatalogFetch = errors.New("catalog fetch failed")

// CatalogClient is the provider-side collaborator: one logical call that
// returns the user's complete ordered catalog.
type CatalogClient interface {
	SavedTracks(ctx context.Context, accessToken string) ([]spotify.SavedTrack, error)
}

// VectorIndex is the upsert-by-id contract the pipeline needs from the
// vector database.
type VectorIndex interface {
	Upsert(ctx context.Context, trackId string, vector []float32, payload map[string]any) error
}

// Publisher schedules accepted jobs for asynchronous processing.
type Publisher interface {
	PublishEncodeJob(ctx context.Context, msg dto.EncodeJobMessage) error
}

// Service is the job coordinator: it owns the job lifecycle from accepted
// request to terminal status snapshot.
type Service interface {
	StartEncoding(ctx context.Context, userId, accessToken string) (uuid.UUID, error)
	GetStatus(jobId uuid.UUID) (*registry.Snapshot, error)
	Process(ctx context.Context, msg dto.EncodeJobMessage) error
}

type service struct {
	repo     repository.TrackRepository
	catalog  CatalogClient
	embedder embedding.Embedder
	index    VectorIndex
	jobs     *registry.Registry
	pub      Publisher
	workers  int
}

func NewService(
	repo repository.TrackRepository,
	catalog CatalogClient,
	embedder embedding.Embedder,
	index VectorIndex,
	jobs *registry.Registry,
	pub Publisher,
	workers int,
) Service {
	if workers < 1 {
		workers = 1
	}
	return &service{
		repo:     repo,
		catalog:  catalog,
		embedder: embedder,
		index:    index,
		jobs:     jobs,
		pub:      pub,
		workers:  workers,
	}
}

// StartEncoding registers a PENDING job and enqueues it. Returns
// registry.ErrJobAlreadyActive when the user already has a non-terminal
// job. The heavy work happens on the consumer side; this call never
// blocks on it.
func (s *service) StartEncoding(ctx context.Context, userId, accessToken string) (uuid.UUID, error) {
	snap, err := s.jobs.Create(userId)
	if err != nil {
		return uuid.Nil, err
	}

	msg := dto.EncodeJobMessage{
		JobId:       snap.JobId,
		UserId:      userId,
		AccessToken: accessToken,
	}
	if err := s.pub.PublishEncodeJob(ctx, msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", snap.JobId.String()).Msg("failed to publish encode job")
		s.finishFailed(snap, 0, 0, nil, "failed to schedule encoding job")
		return uuid.Nil, err
	}

	zerolog.Ctx(ctx).Info().Str("job_id", snap.JobId.String()).Str("user_id", userId).Msg("encoding job accepted")
	return snap.JobId, nil
}

func (s *service) GetStatus(jobId uuid.UUID) (*registry.Snapshot, error) {
	return s.jobs.Get(jobId)
}

func (s *service) finishFailed(snap *registry.Snapshot, total, processed int, failed []registry.TrackFailure, message string) {
	s.jobs.Publish(&registry.Snapshot{
		JobId:      snap.JobId,
		UserId:     snap.UserId,
		State:      constant.JobStateFailed,
		Total:      total,
		Processed:  processed,
		Progress:   100,
		Message:    message,
		Failed:     failed,
		StartedAt:  snap.StartedAt,
		FinishedAt: time.Now().UTC(),
	})
}
