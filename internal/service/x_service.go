package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

const (
	createPostPath     = "/2/tweets"
	mediaUploadPath    = "/1.1/media/upload.json"
	mediaMetadataPath  = "/1.1/media/metadata/create.json"
	maxStatusChecks    = 60
	defaultCheckAfter  = 1
	defaultUploadChunk = 4 * 1024 * 1024
)

// XClient is an X API client authenticated as one account.
type XClient interface {
	CreatePost(ctx context.Context, req *transfer.CreatePostRequest) (string, error)
	UploadMedia(ctx context.Context, data []byte, mimeType string, kind models.MediaKind) (string, error)
	SetAltText(ctx context.Context, mediaID, altText string) error
}

type xClient struct {
	http       *resty.Client
	apiBase    string
	uploadBase string
	chunkSize  int
	// waitUnit scales the server supplied check_after_secs while media is processing.
	waitUnit time.Duration
}

func NewXClient(cfg config.X, accessToken string, timeout time.Duration, chunkSize int) XClient {
	if chunkSize <= 0 {
		chunkSize = defaultUploadChunk
	}
	return &xClient{
		http:       resty.New().SetTimeout(timeout).SetAuthToken(accessToken),
		apiBase:    cfg.APIBaseURL,
		uploadBase: cfg.UploadBaseURL,
		chunkSize:  chunkSize,
		waitUnit:   time.Second,
	}
}

func (c *xClient) CreatePost(ctx context.Context, req *transfer.CreatePostRequest) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.apiBase + createPostPath)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("create post: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{Op: "create post", Status: resp.StatusCode(), Body: resp.String()}
	}

	var out transfer.CreatePostResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode create post response: %w", err)
	}
	if out.Data.ID == "" {
		return "", &APIError{Op: "create post", Status: resp.StatusCode(), Body: resp.String()}
	}

	return out.Data.ID, nil
}

// UploadMedia uploads one asset and returns its media id. Video goes through the
// chunked INIT/APPEND/FINALIZE flow, everything else through a single multipart request.
func (c *xClient) UploadMedia(ctx context.Context, data []byte, mimeType string, kind models.MediaKind) (string, error) {
	if kind == models.MediaKindVideo {
		return c.uploadChunked(ctx, data, mimeType)
	}
	return c.uploadSimple(ctx, data, mimeType, mediaCategory(kind))
}

func (c *xClient) SetAltText(ctx context.Context, mediaID, altText string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(transfer.MediaMetadataRequest{MediaID: mediaID, AltText: transfer.AltTextField{Text: altText}}).
		Post(c.uploadBase + mediaMetadataPath)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("set alt text: %w", err)
	}
	if resp.IsError() {
		return &APIError{Op: "set alt text", Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func mediaCategory(kind models.MediaKind) string {
	switch kind {
	case models.MediaKindVideo:
		return "tweet_video"
	case models.MediaKindAnimatedImage:
		return "tweet_gif"
	default:
		return "tweet_image"
	}
}

func (c *xClient) uploadSimple(ctx context.Context, data []byte, mimeType, category string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("media", "media", mimeType, bytes.NewReader(data)).
		SetMultipartFormData(map[string]string{"media_category": category}).
		Post(c.uploadBase + mediaUploadPath)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("upload media: %w", err)
	}

	out, err := decodeUpload("upload media", resp)
	if err != nil {
		return "", err
	}
	return out.MediaIDString, nil
}

func (c *xClient) uploadChunked(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"command":        "INIT",
			"total_bytes":    strconv.Itoa(len(data)),
			"media_type":     mimeType,
			"media_category": mediaCategory(models.MediaKindVideo),
		}).
		Post(c.uploadBase + mediaUploadPath)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("upload init: %w", err)
	}
	initOut, err := decodeUpload("upload init", resp)
	if err != nil {
		return "", err
	}
	mediaID := initOut.MediaIDString

	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+c.chunkSize {
		end := offset + c.chunkSize
		if end > len(data) {
			end = len(data)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetMultipartField("media", "chunk", "application/octet-stream", bytes.NewReader(data[offset:end])).
			SetMultipartFormData(map[string]string{
				"command":       "APPEND",
				"media_id":      mediaID,
				"segment_index": strconv.Itoa(segment),
			}).
			Post(c.uploadBase + mediaUploadPath)
		if err != nil {
			slog.Info(err.Error())
			return "", fmt.Errorf("upload append segment %d: %w", segment, err)
		}
		if resp.IsError() {
			return "", &APIError{Op: "upload append", Status: resp.StatusCode(), Body: resp.String()}
		}
	}

	resp, err = c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"command": "FINALIZE", "media_id": mediaID}).
		Post(c.uploadBase + mediaUploadPath)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("upload finalize: %w", err)
	}
	finalOut, err := decodeUpload("upload finalize", resp)
	if err != nil {
		return "", err
	}

	if err := c.awaitProcessing(ctx, mediaID, finalOut.ProcessingInfo); err != nil {
		return "", err
	}
	return mediaID, nil
}

// awaitProcessing polls STATUS until the uploaded video is usable.
func (c *xClient) awaitProcessing(ctx context.Context, mediaID string, info *transfer.ProcessingInfo) error {
	for checks := 0; info != nil; checks++ {
		switch info.State {
		case "succeeded":
			return nil
		case "failed":
			body := "media processing failed"
			if info.Error != nil {
				body = info.Error.Message
			}
			return &APIError{Op: "media processing", Body: body}
		}

		if checks >= maxStatusChecks {
			return fmt.Errorf("media %s still processing after %d checks", mediaID, checks)
		}

		wait := info.CheckAfterSecs
		if wait <= 0 {
			wait = defaultCheckAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(wait) * c.waitUnit):
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"command": "STATUS", "media_id": mediaID}).
			Get(c.uploadBase + mediaUploadPath)
		if err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("upload status: %w", err)
		}
		out, err := decodeUpload("upload status", resp)
		if err != nil {
			return err
		}
		info = out.ProcessingInfo
	}
	return nil
}

func decodeUpload(op string, resp *resty.Response) (*transfer.MediaUploadResponse, error) {
	if resp.IsError() {
		return nil, &APIError{Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}

	var out transfer.MediaUploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	if out.MediaIDString == "" && out.MediaID != 0 {
		out.MediaIDString = strconv.FormatInt(out.MediaID, 10)
	}
	if out.MediaIDString == "" {
		return nil, &APIError{Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}
	return &out, nil
}
