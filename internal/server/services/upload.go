package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/server/config"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// videoExtensions maps the accepted upload content types to key suffixes.
var videoExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// UploadService hands out presigned S3 URLs for workout videos. The server
// never proxies video bytes.
type UploadService struct {
	config *config.Config
	now    func() time.Time
}

func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{config: cfg, now: time.Now}
}

func videoPrefix(userID string) string {
	return "videos/" + userID + "/"
}

// VideoKey builds the object key for a new upload.
func VideoKey(userID, contentType string) (string, error) {
	ext, ok := videoExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", common.ErrInvalidInput, contentType)
	}
	return videoPrefix(userID) + uuid.NewString() + ext, nil
}

func (s *UploadService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignVideoUpload returns a PUT URL for a new video of the user.
func (s *UploadService) PresignVideoUpload(ctx context.Context, userID, contentType string) (*models.VideoUpload, error) {
	key, err := VideoKey(userID, contentType)
	if err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	ttl := s.config.UploadURLValidityDuration
	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &models.VideoUpload{Key: key, URL: req.URL, ExpiresAt: s.now().Add(ttl)}, nil
}

// PresignVideoDownload returns a GET URL for one of the user's videos.
// Keys outside the user's prefix are treated as missing.
func (s *UploadService) PresignVideoDownload(ctx context.Context, userID, key string) (*models.VideoUpload, error) {
	if !strings.HasPrefix(key, videoPrefix(userID)) || strings.Contains(key, "..") {
		return nil, common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	ttl := s.config.UploadURLValidityDuration
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get: %w", err)
	}

	return &models.VideoUpload{Key: key, URL: req.URL, ExpiresAt: s.now().Add(ttl)}, nil
}
