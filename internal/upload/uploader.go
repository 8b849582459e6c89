package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"milletsmon/internal/model"
	"milletsmon/pkg/metrics"
	"milletsmon/pkg/otel"
	"milletsmon/pkg/util"
)

const defaultMaxUploadBytes = 10 << 20

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrMissingKey      = errors.New("file key is required")
	ErrInvalidFolder   = errors.New("invalid folder")
)

// AllowedContentTypes 允许上传的类型：图片与 PDF
var AllowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// Signer 签发直传地址并删除对象；backend.Client 与 objectstore.S3Signer 均实现
type Signer interface {
	SignUpload(ctx context.Context, token string, req model.UploadRequest) (*model.SignedUpload, error)
	DeleteObject(ctx context.Context, token, key string) error
}

// PutError 直传返回非 2xx
type PutError struct {
	Status int
}

func (e *PutError) Error() string   { return fmt.Sprintf("signed upload returned %d", e.Status) }
func (e *PutError) StatusCode() int { return e.Status }

// Uploader 通过签名地址上传文件
type Uploader struct {
	signer     Signer
	httpClient *http.Client
	backoff    util.Backoff
	maxBytes   int64
	logger     *zap.Logger
}

type Option func(*Uploader)

func WithHTTPClient(hc *http.Client) Option {
	return func(u *Uploader) { u.httpClient = hc }
}

func WithBackoff(b util.Backoff) Option {
	return func(u *Uploader) { u.backoff = b }
}

func WithMaxBytes(n int64) Option {
	return func(u *Uploader) { u.maxBytes = n }
}

func NewUploader(signer Signer, logger *zap.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		signer: signer,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otel.NewTransport(nil),
		},
		backoff:  util.DefaultBackoff(),
		maxBytes: defaultMaxUploadBytes,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Uploader) MaxBytes() int64 { return u.maxBytes }

// NormalizeContentType 去掉参数部分并转小写
func NormalizeContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// ValidateFolder 目录只允许一层简单名称
func ValidateFolder(folder string) error {
	if folder == "" || strings.ContainsAny(folder, `/\`) || folder == "." || folder == ".." {
		return ErrInvalidFolder
	}
	return nil
}

// Upload 申请签名地址后直接 PUT 文件内容
func (u *Uploader) Upload(ctx context.Context, token, folder, fileName, contentType string, body []byte) (*model.StoredFile, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(body)) > u.maxBytes {
		return nil, ErrFileTooLarge
	}
	ct := NormalizeContentType(contentType)
	if _, ok := AllowedContentTypes[ct]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if err := ValidateFolder(folder); err != nil {
		return nil, err
	}

	signed, err := u.signer.SignUpload(ctx, token, model.UploadRequest{
		FileName:    path.Base(fileName),
		ContentType: ct,
		Folder:      folder,
	})
	if err != nil {
		metrics.IncrementUpload("sign", "error")
		return nil, fmt.Errorf("sign upload: %w", err)
	}

	if err := u.put(ctx, signed.UploadURL, ct, body); err != nil {
		metrics.IncrementUpload("put", "error")
		u.logger.Warn("Signed upload failed",
			zap.String("key", signed.Key),
			zap.Error(err))
		return nil, err
	}

	metrics.IncrementUpload("put", "success")
	u.logger.Info("File uploaded",
		zap.String("key", signed.Key),
		zap.String("content_type", ct),
		zap.Int("size", len(body)))
	return &model.StoredFile{FileURL: signed.FileURL, Key: signed.Key}, nil
}

func (u *Uploader) put(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put signed url: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PutError{Status: resp.StatusCode}
	}
	return nil
}

// Delete 删除对象；可重试错误按退避重试，404 视为已删除
func (u *Uploader) Delete(ctx context.Context, token, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingKey
	}

	err := util.Retry(ctx, u.backoff, func(ctx context.Context) error {
		err := u.signer.DeleteObject(ctx, token, key)
		if isNotFound(err) {
			return nil
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		u.logger.Warn("Retrying file delete",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		metrics.IncrementUpload("delete", "error")
		return fmt.Errorf("delete %s: %w", key, err)
	}

	metrics.IncrementUpload("delete", "success")
	return nil
}

func isNotFound(err error) bool {
	var sc util.StatusCoder
	return errors.As(err, &sc) && sc.StatusCode() == http.StatusNotFound
}
