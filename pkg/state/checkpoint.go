package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
)

func (s *Store) s3Enabled() bool {
	return s.cfg.Checkpoint.Enabled && s.cfg.Checkpoint.S3.Enabled
}

// checkpointKey is the object key of this store's checkpoint.
func (s *Store) checkpointKey() string {
	return fmt.Sprintf("%s%s.badger.gz", s.cfg.Checkpoint.S3.Prefix, s.name)
}

// Checkpoint uploads a full backup of the store to S3. It is a no-op unless
// S3 checkpoints are enabled.
func (s *Store) Checkpoint(ctx context.Context) error {
	if !s.s3Enabled() {
		return nil
	}

	var buf bytes.Buffer
	if err := s.Backup(&buf); err != nil {
		return err
	}

	client, err := newS3Client(ctx, s.cfg.Checkpoint.S3)
	if err != nil {
		return err
	}
	uploader := manager.NewUploader(client)
	res, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Checkpoint.S3.Bucket),
		Key:    aws.String(s.checkpointKey()),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload checkpoint: %w", err)
	}
	s.logger.Info("checkpoint uploaded", zap.String("location", res.Location), zap.Int("bytes", buf.Len()))
	return nil
}

// Restore loads the S3 checkpoint into the store if one exists. A missing
// object is not an error: the pipeline simply starts from scratch.
func (s *Store) Restore(ctx context.Context) error {
	if !s.s3Enabled() {
		return nil
	}

	client, err := newS3Client(ctx, s.cfg.Checkpoint.S3)
	if err != nil {
		return err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Checkpoint.S3.Bucket),
		Key:    aws.String(s.checkpointKey()),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			s.logger.Info("no checkpoint found in S3", zap.String("key", s.checkpointKey()))
			return nil
		}
		return fmt.Errorf("download checkpoint: %w", err)
	}
	defer resp.Body.Close()

	s.logger.Info("restoring checkpoint from S3", zap.String("key", s.checkpointKey()))
	return s.LoadBackup(resp.Body)
}

func newS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
