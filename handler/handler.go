package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"library-encoder/dto"
	"library-encoder/service"
)

type ServiceDependencies struct {
	EncodeService service.Service
}

func EncodeJobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.EncodeJobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal encode job message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", job.JobId.String()).
		Str("user_id", job.UserId).
		Msg("received encode job message")

	err := deps.EncodeService.Process(ctx, job)
	if err != nil {
		return err
	}

	return nil
}
