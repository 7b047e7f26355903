package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// Uploader pushes edited clips into an S3-compatible bucket and hands back
// signed GET URLs. Both hosted backends share it; the sqlite backend skips
// uploads entirely.
type Uploader struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	urlExpiry     time.Duration
	logger        logger.Logger
}

// Configured reports whether the media bucket settings are present.
func Configured(cfg *config.Config) bool {
	return cfg.Storage.Bucket != ""
}

func New(cfg *config.Config, log logger.Logger) (*Uploader, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Storage.Region))
	if cfg.Storage.AccessKey != "" && cfg.Storage.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Storage.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			// Path style is required for MinIO and most S3-compatible storage.
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &Uploader{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Storage.Bucket,
		urlExpiry:     cfg.Storage.URLExpiry,
		logger:        log,
	}, nil
}

// Upload stores the file under clips/<basename> and returns a signed GET
// URL. The URL expires after the configured window; renewal is the
// dashboard's job, not ours.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	key := "clips/" + filepath.Base(localPath)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	req, err := u.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	u.logger.Info("Uploaded media", "bucket", u.bucket, "key", key)
	return req.URL, nil
}
