package service

import (
	"context"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/threadflow/internal/models"
)

const defaultContentType = "image/jpeg"

var extensionContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
}

type MediaService interface {
	Transfer(ctx context.Context, x XClient, mediaURL string, kind models.MediaKind) (string, error)
}

type mediaService struct {
	http *resty.Client
	r2   *R2Service
}

// NewMediaService builds the media transfer. r2 may be nil, in which case every URL is
// fetched over HTTP.
func NewMediaService(timeout time.Duration, r2 *R2Service) MediaService {
	return &mediaService{
		http: resty.New().SetTimeout(timeout),
		r2:   r2,
	}
}

// Transfer downloads one asset and uploads it to X, returning the media id.
func (s *mediaService) Transfer(ctx context.Context, x XClient, mediaURL string, kind models.MediaKind) (string, error) {
	data, header, err := s.download(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	contentType := detectContentType(header, mediaURL, data)
	mediaID, err := x.UploadMedia(ctx, data, contentType, kind)
	if err != nil {
		return "", &TransferError{URL: mediaURL, Err: err}
	}

	slog.Debug("media transferred", "url", mediaURL, "kind", kind, "content_type", contentType, "bytes", len(data))
	return mediaID, nil
}

func (s *mediaService) download(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if s.r2 != nil {
		if key, ok := s.r2.ObjectKey(mediaURL); ok {
			data, contentType, err := s.r2.Download(ctx, key)
			if err != nil {
				return nil, "", &TransferError{URL: mediaURL, Err: err}
			}
			return data, contentType, nil
		}
	}

	resp, err := s.http.R().SetContext(ctx).Get(mediaURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, "", &TransferError{URL: mediaURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, "", &TransferError{URL: mediaURL, Status: resp.StatusCode()}
	}

	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

// detectContentType prefers the response header, then the URL extension, then the
// leading bytes of the file, and finally falls back to image/jpeg.
func detectContentType(header, mediaURL string, data []byte) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil {
			if mediaType != "application/octet-stream" && mediaType != "binary/octet-stream" {
				return mediaType
			}
		}
	}

	if u, err := url.Parse(mediaURL); err == nil {
		if ct, ok := extensionContentTypes[strings.ToLower(path.Ext(u.Path))]; ok {
			return ct
		}
	}

	if kind, err := filetype.Match(data); err == nil && kind != types.Unknown {
		return kind.MIME.Value
	}

	return defaultContentType
}
