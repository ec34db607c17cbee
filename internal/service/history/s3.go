package history

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config — параметры подключения к S3-совместимому хранилищу архива.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // пусто для AWS, адрес для MinIO и совместимых
	PathStyle bool
	Prefix    string
}

// S3Archive выгружает снимки размещений в бакет как best-effort копию
// основной истории.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive строит архив поверх стандартной цепочки AWS-конфигурации.
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive: bucket is required")
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put кладёт снимок под заданным ключом.
func (a *S3Archive) Put(ctx context.Context, key string, data []byte) error {
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 archive: put %q: %w", key, err)
	}
	return nil
}

var _ Archive = (*S3Archive)(nil)
