package mapping

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iurnickita/topuprouter/internal/mapping/config"
)

// Source отдаёт актуальные таблицы. Вызывается на каждое решение, кэша нет.
type Source interface {
	Load(ctx context.Context) (*Tables, error)
}

func NewSource(ctx context.Context, cfg config.Config) (Source, error) {
	switch cfg.Source {
	case config.SourceFile, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("mapping file path required")
		}
		return &FileSource{Path: cfg.Path}, nil
	case config.SourceS3:
		return NewS3Source(ctx, cfg.S3Bucket, cfg.S3Key)
	default:
		return nil, fmt.Errorf("unknown mapping source %q", cfg.Source)
	}
}

// FileSource - YAML-файл на диске, перечитывается при каждом Load.
type FileSource struct {
	Path string
}

func (s *FileSource) Load(_ context.Context) (*Tables, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	return Parse(data)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3Source - YAML-объект в S3, скачивается при каждом Load.
type S3Source struct {
	bucket     string
	key        string
	downloader downloader
}

// Регион и ключи доступа берутся из окружения (AWS_REGION, AWS_PROFILE, ...).
func NewS3Source(ctx context.Context, bucket string, key string) (*S3Source, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 bucket and key required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Source{
		bucket:     bucket,
		key:        key,
		downloader: manager.NewDownloader(s3.NewFromConfig(cfg)),
	}, nil
}

func (s *S3Source) Load(ctx context.Context) (*Tables, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return Parse(buf.Bytes())
}
