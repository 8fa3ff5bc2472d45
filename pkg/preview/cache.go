// MinIO-backed cache of downloaded preview audio, so re-encoding runs do
// not hit the provider's CDN for tracks that were fetched before.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

type Cache struct {
	client *minio.Client
	bucket string
}

func NewCache(client *minio.Client, bucket string) *Cache {
	return &Cache{
		client: client,
		bucket: bucket,
	}
}

// EnsureBucket creates the cache bucket if it does not exist yet.
func (c *Cache) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
}

func (c *Cache) Get(ctx context.Context, trackId string) ([]byte, bool) {
	obj, err := c.client.GetObject(ctx, c.bucket, objectName(trackId), minio.GetObjectOptions{})
	if err != nil {
		return nil, false
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) Put(ctx context.Context, trackId string, data []byte) {
	_, err := c.client.PutObject(ctx, c.bucket, objectName(trackId), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "audio/mpeg"})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("track_id", trackId).Msg("failed to cache preview audio")
	}
}

func objectName(trackId string) string {
	return fmt.Sprintf("previews/%s.mp3", trackId)
}
