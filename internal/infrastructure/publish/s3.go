package publish

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// S3Config параметры зеркала в объектном хранилище
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// PutObjectAPI часть клиента S3, нужная публикатору
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher кладёт артефакты в bucket под фиксированными ключами prefix/<имя>.
type S3Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    *zap.Logger
}

// NewS3Client собирает клиент S3; для MinIO и аналогов задаётся Endpoint.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Publisher создаёт публикатор поверх клиента
func NewS3Publisher(client PutObjectAPI, bucket, prefix string, log *zap.Logger) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix, log: log}
}

// Key ключ объекта для имени артефакта
func (p *S3Publisher) Key(name string) string {
	return path.Join(p.prefix, name)
}

// Publish загружает все артефакты; останавливается на первой ошибке.
func (p *S3Publisher) Publish(ctx context.Context, artifacts []entity.Artifact) error {
	for _, a := range artifacts {
		if err := p.put(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (p *S3Publisher) put(ctx context.Context, a entity.Artifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.Name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", a.Name, err)
	}

	key := p.Key(a.Name)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(a.ContentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		p.log.Error("Failed to upload artifact to S3",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("put %s: %w", key, err)
	}

	p.log.Info("Artifact uploaded to S3",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size()))
	return nil
}

var _ port.Publisher = (*S3Publisher)(nil)
