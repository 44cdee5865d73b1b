package providers

import (
	"bytes"
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/config"
	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
)

// S3BlobUploader stores character reference photos and similar assets in S3
// and hands back the public URL the generation providers can fetch.
type S3BlobUploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3BlobUploader(ctx context.Context, cfg appconfig.StorageConfig) (*S3BlobUploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
	if err != nil {
		return nil, err
	}
	return &S3BlobUploader{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.S3.Bucket,
		publicURL: cfg.S3.PublicURL,
	}, nil
}

func (u *S3BlobUploader) UploadBlob(ctx context.Context, data []byte, mimeType string) (string, error) {
	key := "uploads/" + uuid.NewString() + extensionFor(mimeType)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mimeType,
	})
	if err != nil {
		return "", apperrors.NewInternalError("blob upload: " + err.Error())
	}

	return fmt.Sprintf("%s/%s", u.publicURL, key), nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ""
	}
}
