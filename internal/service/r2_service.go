package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/threadflow/configs"
)

const r2Scheme = "r2://"

// R2Service reads media objects stored in the Cloudflare R2 bucket.
type R2Service struct {
	config cfg.R2
	client *s3.Client
}

func NewR2Service(ctx context.Context, r2 cfg.R2) (*R2Service, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKey, r2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: r2 client: %v", ErrConfig, err)
	}

	endpoint := r2.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Service{config: r2, client: client}, nil
}

// ObjectKey maps a media URL to a bucket key. Both r2://key and URLs under the
// public bucket URL are recognised.
func (r *R2Service) ObjectKey(url string) (string, bool) {
	if key, ok := strings.CutPrefix(url, r2Scheme); ok && key != "" {
		return key, true
	}
	if r.config.PublicURL == "" {
		return "", false
	}
	prefix := strings.TrimSuffix(r.config.PublicURL, "/") + "/"
	if key, ok := strings.CutPrefix(url, prefix); ok && key != "" {
		if i := strings.IndexAny(key, "?#"); i >= 0 {
			key = key[:i]
		}
		return key, true
	}
	return "", false
}

// Download returns the object body and its stored content type.
func (r *R2Service) Download(ctx context.Context, key string) ([]byte, string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}

	return data, aws.ToString(out.ContentType), nil
}
