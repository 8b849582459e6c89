package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"milletsmon/internal/model"
	"milletsmon/pkg/util"
)

type statusErr int

func (e statusErr) Error() string   { return http.StatusText(int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

type fakeSigner struct {
	uploadURL string
	signReqs  []model.UploadRequest
	deletes   atomic.Int32
	deleteErr []error
}

func (f *fakeSigner) SignUpload(_ context.Context, _ string, req model.UploadRequest) (*model.SignedUpload, error) {
	f.signReqs = append(f.signReqs, req)
	return &model.SignedUpload{
		UploadURL: f.uploadURL,
		FileURL:   "https://cdn.example.in/" + req.Folder + "/k1.jpg",
		Key:       req.Folder + "/k1.jpg",
	}, nil
}

func (f *fakeSigner) DeleteObject(context.Context, string, string) error {
	n := int(f.deletes.Add(1))
	if n <= len(f.deleteErr) {
		return f.deleteErr[n-1]
	}
	return nil
}

func fastBackoff() util.Backoff {
	return util.Backoff{MaxAttempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}
}

func TestUploadPutsToSignedURL(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	signer := &fakeSigner{uploadURL: srv.URL + "/bucket/gallery/k1.jpg?sig=abc"}
	u := NewUploader(signer, zap.NewNop())

	file, err := u.Upload(context.Background(), "tok", "gallery", "../field day.jpg", "image/jpeg; charset=binary", []byte("jpegbytes"))

	require.NoError(t, err)
	assert.Equal(t, "gallery/k1.jpg", file.Key)
	assert.Equal(t, "https://cdn.example.in/gallery/k1.jpg", file.FileURL)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "jpegbytes", string(gotBody))
	require.Len(t, signer.signReqs, 1)
	assert.Equal(t, "field day.jpg", signer.signReqs[0].FileName)
}

func TestUploadRejectsBeforeAnyCall(t *testing.T) {
	signer := &fakeSigner{}
	u := NewUploader(signer, zap.NewNop(), WithMaxBytes(4))
	ctx := context.Background()

	_, err := u.Upload(ctx, "tok", "gallery", "a.jpg", "image/jpeg", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = u.Upload(ctx, "tok", "gallery", "a.exe", "application/x-msdownload", []byte("MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = u.Upload(ctx, "tok", "gallery", "a.jpg", "image/jpeg", []byte("too big"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = u.Upload(ctx, "tok", "../etc", "a.pdf", "application/pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrInvalidFolder)

	assert.Empty(t, signer.signReqs)
}

func TestUploadSurfacesStorageStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	u := NewUploader(&fakeSigner{uploadURL: srv.URL}, zap.NewNop())
	_, err := u.Upload(context.Background(), "tok", "publications", "r.pdf", "application/pdf", []byte("%PDF"))

	var putErr *PutError
	require.True(t, errors.As(err, &putErr))
	assert.Equal(t, http.StatusForbidden, putErr.Status)
}

func TestDeleteRetriesRetryableFailures(t *testing.T) {
	signer := &fakeSigner{deleteErr: []error{statusErr(http.StatusBadGateway), statusErr(http.StatusServiceUnavailable)}}
	u := NewUploader(signer, zap.NewNop(), WithBackoff(fastBackoff()))

	require.NoError(t, u.Delete(context.Background(), "tok", "gallery/k1.jpg"))
	assert.Equal(t, int32(3), signer.deletes.Load())
}

func TestDeleteGivesUpAfterMaxAttempts(t *testing.T) {
	boom := statusErr(http.StatusInternalServerError)
	signer := &fakeSigner{deleteErr: []error{boom, boom, boom, boom}}
	u := NewUploader(signer, zap.NewNop(), WithBackoff(fastBackoff()))

	err := u.Delete(context.Background(), "tok", "gallery/k1.jpg")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), signer.deletes.Load())
}

func TestDeleteDoesNotRetryClientErrors(t *testing.T) {
	signer := &fakeSigner{deleteErr: []error{statusErr(http.StatusForbidden)}}
	u := NewUploader(signer, zap.NewNop(), WithBackoff(fastBackoff()))

	require.Error(t, u.Delete(context.Background(), "tok", "gallery/k1.jpg"))
	assert.Equal(t, int32(1), signer.deletes.Load())
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	signer := &fakeSigner{deleteErr: []error{statusErr(http.StatusNotFound)}}
	u := NewUploader(signer, zap.NewNop(), WithBackoff(fastBackoff()))

	require.NoError(t, u.Delete(context.Background(), "tok", "gallery/gone.jpg"))
	assert.Equal(t, int32(1), signer.deletes.Load())
}

func TestDeleteStopsOnCancel(t *testing.T) {
	signer := &fakeSigner{deleteErr: []error{statusErr(http.StatusBadGateway), statusErr(http.StatusBadGateway)}}
	u := NewUploader(signer, zap.NewNop(), WithBackoff(util.Backoff{MaxAttempts: 3, Base: time.Hour, Max: time.Hour}))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := u.Delete(ctx, "tok", "gallery/k1.jpg")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), signer.deletes.Load())
}

func TestDeleteRequiresKey(t *testing.T) {
	u := NewUploader(&fakeSigner{}, zap.NewNop())
	assert.ErrorIs(t, u.Delete(context.Background(), "tok", " "), ErrMissingKey)
}
