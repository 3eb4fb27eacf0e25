package config

const (
	SourceFile = "file"
	SourceS3   = "s3"
)

type Config struct {
	Source   string
	Path     string
	S3Bucket string
	S3Key    string
}
