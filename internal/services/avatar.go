package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"lunchly-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// MaxAvatarBytes bounds an uploaded avatar
const MaxAvatarBytes = 5 << 20

// ObjectUploader is the subset of the S3 client used for avatars
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AvatarService stores profile photos in object storage
type AvatarService struct {
	users         UserStore
	uploader      ObjectUploader
	bucket        string
	region        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3Client builds an S3 client from the avatar storage settings.
// Static keys and a custom endpoint are used when configured.
func NewS3Client(ctx context.Context, cfg config.AWSConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewAvatarService creates a new avatar service
func NewAvatarService(users UserStore, uploader ObjectUploader, cfg config.AWSConfig) *AvatarService {
	return &AvatarService{
		users:         users,
		uploader:      uploader,
		bucket:        cfg.S3Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           time.Now,
	}
}

// ObjectKey returns the storage key for an avatar uploaded at t
func ObjectKey(userID string, t time.Time) string {
	return fmt.Sprintf("avatars/%s-%d.jpg", userID, t.UnixMilli())
}

// PublicURL returns the address clients load the object from
func (s *AvatarService) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Upload stores the image and records its public URL on the profile
func (s *AvatarService) Upload(ctx context.Context, userID, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrValidation)
	}
	if len(data) > MaxAvatarBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", ErrValidation, MaxAvatarBytes)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: content type must be an image", ErrValidation)
	}
	if s.uploader == nil {
		return "", fmt.Errorf("avatar storage is not configured")
	}

	now := s.now()
	key := ObjectKey(userID, now)
	_, err := s.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	url := s.PublicURL(key)
	if err := s.users.UpdateAvatar(ctx, userID, url, now); err != nil {
		return "", fmt.Errorf("failed to save avatar url: %w", err)
	}

	log.Info().Str("user_id", userID).Str("key", key).Msg("Avatar uploaded")
	return url, nil
}
