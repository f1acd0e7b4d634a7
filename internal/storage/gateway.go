// Package storage implements the object store gateway that owns image bytes.
// It validates and re-encodes uploads, writes them to an S3-compatible
// backend, and deletes them by reference key. Deletes are best-effort by
// design: they back compensating cleanup paths and must never abort a
// caller's broader operation.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/imaging"
	"github.com/swapwithus/listing-service/internal/logging"
)

const (
	// MaxUploadBytes is the raw upload size ceiling, checked before any
	// decoding or network I/O.
	MaxUploadBytes = 5 * 1000 * 1000

	// DefaultCallTimeout bounds each object-store network call. A timed-out
	// upload is indistinguishable from a failed one to callers.
	DefaultCallTimeout = 30 * time.Second
)

// Seams for tests, following the usual pattern for AWS SDK wiring.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	timeNow = time.Now
)

// s3API is the slice of the S3 client the gateway uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures a Gateway.
type Options struct {
	// S3-compatible backend settings (MinIO in development).
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string

	// Re-encoding policy knobs; zero values take imaging defaults.
	MaxWidth int
	Quality  int

	// CallTimeout bounds each put/delete; zero takes DefaultCallTimeout.
	CallTimeout time.Duration
}

// Gateway uploads re-encoded images to the object store and deletes them by
// reference key.
type Gateway struct {
	client   s3API
	bucket   string
	maxWidth int
	quality  int
	timeout  time.Duration
	logger   logging.Logger
}

// NewGateway builds a Gateway backed by an S3 client with static credentials
// and an explicit base endpoint, the shape MinIO and most S3-compatible
// stores expect.
func NewGateway(ctx context.Context, opts Options, logger logging.Logger) (*Gateway, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newGatewayWithClient(client, opts, logger), nil
}

func newGatewayWithClient(client s3API, opts Options, logger logging.Logger) *Gateway {
	g := &Gateway{
		client:   client,
		bucket:   opts.Bucket,
		maxWidth: opts.MaxWidth,
		quality:  opts.Quality,
		timeout:  opts.CallTimeout,
		logger:   logger,
	}
	if g.maxWidth <= 0 {
		g.maxWidth = imaging.DefaultMaxWidth
	}
	if g.quality <= 0 {
		g.quality = imaging.DefaultQuality
	}
	if g.timeout <= 0 {
		g.timeout = DefaultCallTimeout
	}
	return g
}

// Put validates, re-encodes and uploads one image, returning its durable
// reference key. Validation failures are reported before any network I/O.
func (g *Gateway) Put(ctx context.Context, raw []byte, contentType, listingID, category string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: only image files are allowed, got %q", common.ErrValidation, contentType)
	}
	if len(raw) > MaxUploadBytes {
		return "", fmt.Errorf("%w: file size %d exceeds %d bytes", common.ErrValidation, len(raw), MaxUploadBytes)
	}

	res, err := imaging.Optimize(raw, contentType, g.maxWidth, g.quality)
	if err != nil {
		return "", fmt.Errorf("%w: unreadable image data", common.ErrValidation)
	}

	key := objectKey(category, listingID, res.Ext)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(res.Data),
		ContentType: aws.String(res.ContentType),
	})
	if err != nil {
		g.logger.Error(ctx, "object upload failed", "key", key, "error", err)
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}

	g.logger.Info(ctx, "object uploaded", "key", key, "bytes", len(res.Data), "content_type", res.ContentType)
	return key, nil
}

// Delete removes an object by reference key. It returns false on any
// failure instead of an error: deletion is always a compensating or cleanup
// action and must never abort the caller.
func (g *Gateway) Delete(ctx context.Context, ref string) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		g.logger.Warn(ctx, "object delete failed", "key", ref, "error", err)
		return false
	}
	return true
}

// objectKey builds a globally unique key that encodes category and listing
// for operational traceability: {category}/{listing_id}_{yyyymmdd}_{rand}.{ext}.
// The random component makes collisions practically impossible, so there is
// no uniqueness retry.
func objectKey(category, listingID, ext string) string {
	return fmt.Sprintf("%s/%s_%s_%s.%s",
		strings.ToLower(category),
		listingID,
		timeNow().Format("20060102"),
		uuid.New().String()[:12],
		ext,
	)
}
