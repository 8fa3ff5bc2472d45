package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"library-encoder/constant"
	"library-encoder/dto"
	"library-encoder/entities"
	"library-encoder/pkg/embedding"
	"library-encoder/pkg/spotify"
	"library-encoder/registry"
)

type workItem struct {
	track entities.Track
}

type trackResult struct {
	trackId string
	err     error
}

// Process runs one encoding job end to end: catalog fetch, library sync,
// work-set computation, fan-out to the embedding pool and aggregation into
// the status registry. Per-track failures are recorded and skipped; only a
// catalog-level outage or every single track failing makes the job FAILED.
// Always returns nil once a terminal snapshot has been published, so the
// message is acked and never replayed against a finished job.
func (s *service) Process(ctx context.Context, msg dto.EncodeJobMessage) error {
	log := zerolog.Ctx(ctx).With().Str("job_id", msg.JobId.String()).Str("user_id", msg.UserId).Logger()
	ctx = log.WithContext(ctx)

	snap, err := s.jobs.Get(msg.JobId)
	if err != nil {
		log.Warn().Msg("received message for unknown job")
		return nil
	}
	if snap.State.Terminal() {
		log.Info().Msg("job already finished, skipping redelivery")
		return nil
	}

	log.Info().Msg("processing encoding job")

	catalog, err := s.catalog.SavedTracks(ctx, msg.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("catalog fetch failed")
		s.finishFailed(snap, 0, 0, nil, fmt.Sprintf("%v: %v", ErrCatalogFetch, err))
		return nil
	}
	if len(catalog) == 0 {
		s.finishFailed(snap, 0, 0, nil, "no saved tracks in library")
		return nil
	}

	user, err := s.repo.UpsertUser(ctx, msg.UserId)
	if err != nil {
		log.Error().Err(err).Msg("failed to upsert user")
		s.finishFailed(snap, 0, 0, nil, fmt.Sprintf("failed to store user: %v", err))
		return nil
	}

	// Library sync: every catalog track is persisted and linked to the
	// user before any embedding work starts. A track that cannot even be
	// stored is accounted as a per-track failure, not a dead job.
	var synced []workItem
	var syncFailed []registry.TrackFailure
	for _, saved := range catalog {
		if saved.Track.ID == "" {
			continue
		}
		item, err := s.syncTrack(ctx, user, saved)
		if err != nil {
			log.Warn().Err(err).Str("track_id", saved.Track.ID).Msg("failed to sync track")
			syncFailed = append(syncFailed, registry.TrackFailure{TrackId: saved.Track.ID, Reason: err.Error()})
			continue
		}
		synced = append(synced, item)
	}

	ids := make([]string, 0, len(synced))
	for _, item := range synced {
		ids = append(ids, item.track.SpotifyId)
	}
	embedded, err := s.repo.EmbeddedTrackIds(ctx, ids)
	if err != nil {
		log.Error().Err(err).Msg("failed to compute work set")
		s.finishFailed(snap, 0, 0, nil, fmt.Sprintf("failed to compute work set: %v", err))
		return nil
	}

	var pending []workItem
	for _, item := range synced {
		if _, ok := embedded[item.track.SpotifyId]; ok {
			continue
		}
		pending = append(pending, item)
	}

	total := len(pending) + len(syncFailed)
	if total == 0 {
		log.Info().Int("catalog_size", len(catalog)).Msg("library already encoded")
		s.jobs.Publish(&registry.Snapshot{
			JobId:      snap.JobId,
			UserId:     snap.UserId,
			State:      constant.JobStateSuccess,
			Progress:   100,
			Message:    "library already encoded",
			Result:     &dto.JobResult{},
			StartedAt:  snap.StartedAt,
			FinishedAt: time.Now().UTC(),
		})
		return nil
	}

	processed := len(syncFailed)
	generated := 0
	failed := append([]registry.TrackFailure(nil), syncFailed...)
	s.publishRunning(snap, total, processed, failed, fmt.Sprintf("encoding %d tracks", total))

	// Fan-out/fan-in: a bounded pool embeds and persists tracks while this
	// goroutine is the only writer of the job's counters and snapshots.
	tracks := make(chan workItem)
	results := make(chan trackResult, s.workers)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tracks {
				results <- s.encodeTrack(ctx, item)
			}
		}()
	}
	go func() {
		for _, item := range pending {
			tracks <- item
		}
		close(tracks)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		processed++
		if res.err != nil {
			log.Warn().Err(res.err).Str("track_id", res.trackId).Msg("track encoding failed")
			failed = append(failed, registry.TrackFailure{TrackId: res.trackId, Reason: res.err.Error()})
		} else {
			generated++
		}
		s.publishRunning(snap, total, processed, failed, fmt.Sprintf("encoded %d of %d tracks", processed, total))
	}

	if len(failed) == total {
		log.Error().Int("total", total).Msg("encoding job failed for every track")
		s.finishFailed(snap, total, processed, failed, fmt.Sprintf("all %d tracks failed to encode", total))
		return nil
	}

	result := &dto.JobResult{
		TracksProcessed:     total,
		EmbeddingsGenerated: generated,
	}
	log.Info().Int("tracks_processed", result.TracksProcessed).Int("embeddings_generated", result.EmbeddingsGenerated).Msg("encoding job completed")
	s.jobs.Publish(&registry.Snapshot{
		JobId:      snap.JobId,
		UserId:     snap.UserId,
		State:      constant.JobStateSuccess,
		Total:      total,
		Processed:  processed,
		Progress:   100,
		Message:    "library encoding complete",
		Failed:     failed,
		Result:     result,
		StartedAt:  snap.StartedAt,
		FinishedAt: time.Now().UTC(),
	})
	return nil
}

func (s *service) syncTrack(ctx context.Context, user *entities.User, saved spotify.SavedTrack) (workItem, error) {
	track := &entities.Track{
		SpotifyId: saved.Track.ID,
		Name:      saved.Track.Name,
	}
	if artist := saved.Track.ArtistName(); artist != "" {
		track.Artist = &artist
	}
	if saved.Track.Album.Name != "" {
		album := saved.Track.Album.Name
		track.Album = &album
	}
	if saved.Track.DurationMs > 0 {
		duration := saved.Track.DurationMs
		track.DurationMs = &duration
	}
	if saved.Track.PreviewUrl != "" {
		preview := saved.Track.PreviewUrl
		track.PreviewUrl = &preview
	}

	stored, err := s.repo.UpsertTrack(ctx, track)
	if err != nil {
		return workItem{}, fmt.Errorf("upsert track: %w", err)
	}
	if err := s.repo.LinkUserTrack(ctx, user.ID, stored.ID, saved.AddedAt); err != nil {
		return workItem{}, fmt.Errorf("link user track: %w", err)
	}
	return workItem{track: *stored}, nil
}

// encodeTrack runs the per-track pipeline: embed, upsert the vector, mark
// the track embedded. Exactly one attempt; whatever fails is reported back
// to the aggregator as this track's failure.
func (s *service) encodeTrack(ctx context.Context, item workItem) trackResult {
	track := embedding.Track{
		Id:   item.track.SpotifyId,
		Name: item.track.Name,
	}
	if item.track.Artist != nil {
		track.Artist = *item.track.Artist
	}
	if item.track.PreviewUrl != nil {
		track.PreviewUrl = *item.track.PreviewUrl
	}

	vector, err := s.embedder.Embed(ctx, track)
	if err != nil {
		return trackResult{trackId: track.Id, err: err}
	}

	payload := map[string]any{
		"track_id": item.track.SpotifyId,
		"name":     item.track.Name,
	}
	if item.track.Artist != nil {
		payload["artist"] = *item.track.Artist
	}
	if item.track.Album != nil {
		payload["album"] = *item.track.Album
	}
	if err := s.index.Upsert(ctx, item.track.SpotifyId, vector, payload); err != nil {
		return trackResult{trackId: track.Id, err: fmt.Errorf("vector upsert: %w", err)}
	}

	if err := s.repo.MarkTrackEmbedded(ctx, item.track.SpotifyId); err != nil {
		return trackResult{trackId: track.Id, err: fmt.Errorf("mark embedded: %w", err)}
	}
	return trackResult{trackId: track.Id}
}

func (s *service) publishRunning(snap *registry.Snapshot, total, processed int, failed []registry.TrackFailure, message string) {
	s.jobs.Publish(&registry.Snapshot{
		JobId:     snap.JobId,
		UserId:    snap.UserId,
		State:     constant.JobStateRunning,
		Total:     total,
		Processed: processed,
		Progress:  progressPercent(processed, total),
		Message:   message,
		Failed:    append([]registry.TrackFailure(nil), failed...),
		StartedAt: snap.StartedAt,
	})
}

func progressPercent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}
