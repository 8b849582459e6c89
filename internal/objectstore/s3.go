package objectstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"milletsmon/internal/model"
)

// Config 对象存储配置（storage.mode = s3 时生效）
type Config struct {
	Mode           string        `yaml:"mode"`
	Bucket         string        `yaml:"bucket"`
	Region         string        `yaml:"region"`
	Endpoint       string        `yaml:"endpoint"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	PublicBaseURL  string        `yaml:"public_base_url"`
	PresignTTL     time.Duration `yaml:"presign_ttl"`
	ForcePathStyle bool          `yaml:"force_path_style"`
}

const (
	ModeBackend = "backend"
	ModeS3      = "s3"
)

// S3Signer 门户自己的对象存储代理：签发预签名 PUT 地址并按 key 删除
type S3Signer struct {
	svc     s3iface.S3API
	bucket  string
	baseURL string
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewS3Signer(cfg Config, logger *zap.Logger) (*S3Signer, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("objectstore: bucket and region are required")
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return newS3Signer(s3.New(sess), cfg, logger), nil
}

func newS3Signer(svc s3iface.S3API, cfg Config, logger *zap.Logger) *S3Signer {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Signer{
		svc:     svc,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// ObjectKey {folder}/{uuid}{ext}
func ObjectKey(folder, fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return folder + "/" + uuid.NewString() + ext
}

// SignUpload token 不使用：调用方已经通过门户鉴权
func (s *S3Signer) SignUpload(ctx context.Context, _ string, req model.UploadRequest) (*model.SignedUpload, error) {
	key := ObjectKey(req.Folder, req.FileName, req.ContentType)

	put, _ := s.svc.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	})
	put.SetContext(ctx)

	signedURL, err := put.Presign(s.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}

	return &model.SignedUpload{
		UploadURL: signedURL,
		FileURL:   s.baseURL + "/" + key,
		Key:       key,
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}

// DeleteObject awserr.RequestFailure 带 StatusCode，可直接用于重试判断
func (s *S3Signer) DeleteObject(ctx context.Context, _ string, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	s.logger.Info("Object deleted", zap.String("bucket", s.bucket), zap.String("key", key))
	return nil
}
