package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"messenger-backend/internal/blobstore"
	"messenger-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const imagesPrefix = "images/"

// UploadState is a step of an upload
type UploadState string

const (
	UploadPending      UploadState = "pending"
	UploadUploading    UploadState = "uploading"
	UploadUploaded     UploadState = "uploaded"
	UploadResolvingURL UploadState = "resolving_url"
	UploadResolved     UploadState = "resolved"
	UploadFailed       UploadState = "upload_failed"
	UploadResolveFail  UploadState = "resolve_failed"
)

// UploadError is the failure of an upload or of the URL lookup after it.
// errors.Is matches models.ErrUploadFailed or models.ErrURLResolutionFailed
// depending on State.
type UploadError struct {
	State UploadState
	Path  string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.State, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	switch target {
	case models.ErrUploadFailed:
		return e.State == UploadFailed
	case models.ErrURLResolutionFailed:
		return e.State == UploadResolveFail
	}
	return false
}

// MediaService uploads blobs and resolves their download URLs
type MediaService struct {
	storage   blobstore.Storage
	urlExpiry time.Duration
}

// NewMediaService creates a new media service
func NewMediaService(storage blobstore.Storage, urlExpiry time.Duration) *MediaService {
	return &MediaService{
		storage:   storage,
		urlExpiry: urlExpiry,
	}
}

// UploadProfilePicture stores a profile picture under images/<fileName>
func (s *MediaService) UploadProfilePicture(ctx context.Context, data []byte, fileName string) (string, error) {
	return s.upload(ctx, imagesPrefix+fileName, bytes.NewReader(data), int64(len(data)), "image/png")
}

// UploadMessagePhoto stores a photo attachment under images/<fileName>
func (s *MediaService) UploadMessagePhoto(ctx context.Context, data []byte, fileName string) (string, error) {
	return s.upload(ctx, imagesPrefix+fileName, bytes.NewReader(data), int64(len(data)), "image/png")
}

// UploadMessageVideo streams a video attachment under images/<fileName>.
// size is -1 when unknown.
func (s *MediaService) UploadMessageVideo(ctx context.Context, r io.Reader, size int64, fileName string) (string, error) {
	return s.upload(ctx, imagesPrefix+fileName, r, size, "video/quicktime")
}

// UploadMessageVideoFile uploads a video read from a local file
func (s *MediaService) UploadMessageVideoFile(ctx context.Context, filePath, fileName string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", &UploadError{State: UploadFailed, Path: imagesPrefix + fileName, Err: err}
	}
	defer file.Close()

	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	return s.UploadMessageVideo(ctx, file, size, fileName)
}

// DownloadURL resolves the download URL of an already stored path
func (s *MediaService) DownloadURL(ctx context.Context, path string) (string, error) {
	url, err := s.storage.GetURL(ctx, path, s.urlExpiry)
	if err != nil {
		return "", &UploadError{State: UploadResolveFail, Path: path, Err: err}
	}
	return url, nil
}

// upload writes the blob and then resolves its URL in a second call.
// Neither step is retried; a failed resolution leaves the blob in place.
func (s *MediaService) upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	logger := log.With().Str("path", path).Logger()
	logger.Debug().Str("state", string(UploadPending)).Msg("Upload state")

	logger.Debug().Str("state", string(UploadUploading)).Msg("Upload state")
	if err := s.storage.Write(ctx, path, r, size, contentType); err != nil {
		logger.Error().Err(err).Str("state", string(UploadFailed)).Msg("Failed to upload blob")
		return "", &UploadError{State: UploadFailed, Path: path, Err: err}
	}
	logger.Debug().Str("state", string(UploadUploaded)).Msg("Upload state")

	logger.Debug().Str("state", string(UploadResolvingURL)).Msg("Upload state")
	url, err := s.storage.GetURL(ctx, path, s.urlExpiry)
	if err != nil {
		logger.Error().Err(err).Str("state", string(UploadResolveFail)).Msg("Failed to get download url")
		return "", &UploadError{State: UploadResolveFail, Path: path, Err: err}
	}

	logger.Info().Str("state", string(UploadResolved)).Str("url", url).Msg("Download url returned")
	return url, nil
}
