package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"reverbfm/config"
	"reverbfm/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectExists is returned by Put when the target key is already taken.
// Writes never silently replace an existing object.
var ErrObjectExists = errors.New("storage: object already exists")

// URLExpiry is how long a resolved playback URL stays valid.
const URLExpiry = time.Hour

// Client wraps the MinIO client for the two asset buckets.
type Client struct {
	mc          *minio.Client
	songBucket  string
	imageBucket string
	region      string
}

// NewClient connects to MinIO and makes sure both asset buckets exist.
func NewClient(cfg *config.Config) (*Client, error) {
	mc, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	c := &Client{
		mc:          mc,
		songBucket:  cfg.MinioSongBucket,
		imageBucket: cfg.MinioImageBucket,
		region:      cfg.MinioRegion,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, bucket := range []string{c.songBucket, c.imageBucket} {
		if err := c.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	logger.Info("MinIO client initialized",
		logger.String("songBucket", c.songBucket),
		logger.String("imageBucket", c.imageBucket))
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		err = c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.region})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logger.Info("Created bucket", logger.String("bucket", bucket))
	}
	return nil
}

// SongBucket returns the name of the songs bucket.
func (c *Client) SongBucket() string { return c.songBucket }

// ImageBucket returns the name of the images bucket.
func (c *Client) ImageBucket() string { return c.imageBucket }

// Put stores payload under key in the given bucket with non-overwriting
// semantics: a conditional write fails with ErrObjectExists if the key is
// already taken. Returns the stored object key.
func (c *Client) Put(ctx context.Context, bucket, key string, payload []byte, contentType string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	}
	// If-None-Match: *; the write is rejected if the object exists.
	opts.SetMatchETagExcept("*")

	_, err := c.mc.PutObject(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)), opts)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusPreconditionFailed || resp.Code == "PreconditionFailed" {
			return "", ErrObjectExists
		}
		return "", fmt.Errorf("failed to upload to bucket %s: %w", bucket, err)
	}
	return key, nil
}

// PutSong stores an audio payload in the songs bucket.
func (c *Client) PutSong(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	return c.Put(ctx, c.songBucket, key, payload, contentType)
}

// PutImage stores a cover image payload in the images bucket.
func (c *Client) PutImage(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	return c.Put(ctx, c.imageBucket, key, payload, contentType)
}

// SongURL resolves a stored song key into a directly fetchable URL.
func (c *Client) SongURL(ctx context.Context, key string) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.songBucket, key, URLExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign song %s: %w", key, err)
	}
	return u.String(), nil
}

// ImageURL resolves a stored image key into a directly fetchable URL.
func (c *Client) ImageURL(ctx context.Context, key string) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.imageBucket, key, URLExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign image %s: %w", key, err)
	}
	return u.String(), nil
}
