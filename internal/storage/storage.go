// Package storage puts uploaded files in an S3-compatible bucket and hands
// back the URL they are served from.
package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/config"
)

var (
	ErrTooLarge    = apperr.Invalid("file exceeds the upload size limit")
	ErrEmpty       = apperr.Invalid("file is empty")
	ErrUnsupported = apperr.Invalid("file type not allowed; use jpeg, png, webp, gif or pdf")
)

// allowed maps sniffed content types to the extension objects get.
var allowed = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// File describes a stored object.
type File struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Name        string `json:"name"`
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client   putter
	bucket   string
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

// New builds an uploader from cfg. A custom endpoint (MinIO, R2, LocalStack)
// switches the client to path-style addressing.
func New(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newUploader(client, cfg), nil
}

func newUploader(client putter, cfg config.StorageConfig) *Uploader {
	base := strings.TrimRight(cfg.PublicURL, "/")
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		base = "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com"
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Uploader{client: client, bucket: cfg.Bucket, baseURL: base, maxBytes: maxBytes, now: time.Now}
}

func (u *Uploader) MaxBytes() int64 { return u.maxBytes }

// Upload stores body under a fresh key. The content type is sniffed from the
// bytes, not taken from the client.
func (u *Uploader) Upload(ctx context.Context, name string, body io.Reader) (*File, error) {
	data, err := io.ReadAll(io.LimitReader(body, u.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	switch {
	case len(data) == 0:
		return nil, ErrEmpty
	case int64(len(data)) > u.maxBytes:
		return nil, ErrTooLarge
	}
	ctype := sniff(data)
	ext, ok := allowed[ctype]
	if !ok {
		return nil, ErrUnsupported
	}

	key := path.Join("uploads", u.now().UTC().Format("2006/01"), uuid.NewString()+ext)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ctype),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "put object")
	}
	return &File{
		Key:         key,
		URL:         u.baseURL + "/" + key,
		ContentType: ctype,
		Size:        int64(len(data)),
		Name:        path.Base(name),
	}, nil
}

func sniff(data []byte) string {
	ctype := http.DetectContentType(data)
	if i := strings.IndexByte(ctype, ';'); i >= 0 {
		ctype = ctype[:i]
	}
	return ctype
}
