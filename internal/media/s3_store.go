package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store sube avatares a un bucket S3 compatible (MinIO incluido).
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

type S3Config struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	PublicBaseURL string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
	})

	publicBase := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBase == "" && cfg.BaseEndpoint != "" {
		publicBase = strings.TrimSuffix(cfg.BaseEndpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: publicBase,
	}, nil
}

// Upload acepta una imagen como data-URI o base64 plano y la guarda bajo avatars/.
func (s *S3Store) Upload(ctx context.Context, payload string) (Asset, error) {
	data, contentType, err := decodePayload(payload)
	if err != nil {
		return Asset{}, err
	}

	key := avatarKey()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return Asset{}, err
	}

	return Asset{
		PublicID: key,
		URL:      s.publicBaseURL + "/" + key,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &publicID,
	})
	return err
}

func avatarKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("avatars/%d/%d/%d/%s", d.Year(), d.Month(), d.Day(), uuid.NewString())
}

func decodePayload(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", fmt.Errorf("empty avatar payload")
	}

	contentType := "application/octet-stream"
	if strings.HasPrefix(payload, "data:") {
		// data:image/png;base64,xxxx
		rest := payload[len("data:"):]
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return nil, "", fmt.Errorf("unsupported data uri")
		}
		contentType = rest[:semi]
		payload = rest[semi+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode avatar payload: %w", err)
	}
	return data, contentType, nil
}
