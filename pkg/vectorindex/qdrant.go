// Qdrant adapter for the track embedding index. One point per track,
// upsert-by-id semantics, transient failures retried with exponential
// backoff.
package vectorindex

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

// Qdrant point ids must be UUIDs or integers, so track ids are mapped to
// deterministic UUIDs under this namespace. Identical track id, identical
// point id, which is what makes Upsert idempotent.
var pointNamespace = uuid.MustParse("7d3f2a90-61c4-4a0e-9f3e-1f2b7c5d8a46")

type Index struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
	maxRetries uint
}

func New(client *qdrant.Client, collection string, dimension uint64) *Index {
	return &Index{
		client:     client,
		collection: collection,
		dimension:  dimension,
		maxRetries: 3,
	}
}

// EnsureCollection creates the collection when it is missing. Cosine
// distance matches how similarity queries will consume the vectors later.
func (i *Index) EnsureCollection(ctx context.Context) error {
	operation := func() (struct{}, error) {
		exists, err := i.client.CollectionExists(ctx, i.collection)
		if err != nil {
			return struct{}{}, err
		}
		if exists {
			return struct{}{}, nil
		}
		return struct{}{}, i.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: i.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     i.dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(i.maxRetries))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("collection", i.collection).Msg("failed to ensure qdrant collection")
		return err
	}
	return nil
}

// Upsert stores the vector for the track, replacing any prior one.
func (i *Index) Upsert(ctx context.Context, trackId string, vector []float32, payload map[string]any) error {
	operation := func() (struct{}, error) {
		_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: i.collection,
			Wait:           qdrant.PtrOf(true),
			Points: []*qdrant.PointStruct{
				{
					Id:      pointId(trackId),
					Vectors: qdrant.NewVectors(vector...),
					Payload: qdrant.NewValueMap(payload),
				},
			},
		})
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(i.maxRetries))
	return err
}

// Has reports whether the track already owns a point in the collection.
func (i *Index) Has(ctx context.Context, trackId string) (bool, error) {
	points, err := i.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: i.collection,
		Ids:            []*qdrant.PointId{pointId(trackId)},
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return false, err
	}
	return len(points) > 0, nil
}

func pointId(trackId string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(trackId)).String())
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	return bo
}
