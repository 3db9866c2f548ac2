package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// putObjectAPI is the slice of *s3.Client the publisher uses. Tests inject a
// stub.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3Publisher.
type S3Config struct {
	Bucket string
	Region string

	// KeyPrefix is prepended to every object key, e.g. "receipts".
	KeyPrefix string

	// Endpoint overrides the S3 endpoint for S3-compatible stores (MinIO, R2).
	// Path-style addressing is used when it is set.
	Endpoint string

	// PublicBaseURL, when set, replaces the virtual-hosted S3 URL in returned
	// links, e.g. a CDN in front of the bucket.
	PublicBaseURL string
}

// S3Publisher uploads receipts with PutObject.
type S3Publisher struct {
	client putObjectAPI
	cfg    S3Config
}

// NewS3Publisher loads the default AWS credential chain for cfg.Region and
// returns a publisher for cfg.Bucket.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("asset: s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("asset: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Publisher(client, cfg), nil
}

func newS3Publisher(client putObjectAPI, cfg S3Config) *S3Publisher {
	return &S3Publisher{client: client, cfg: cfg}
}

// Publish stores u under KeyPrefix/Filename and returns its public URL.
func (p *S3Publisher) Publish(ctx context.Context, u Upload) (string, error) {
	key := p.key(u.Filename)
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(p.cfg.Bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(u.Body),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", u.Filename)),
	})
	if err != nil {
		return "", &UploadError{Op: "s3 put " + key, StatusCode: s3StatusCode(err), Err: err}
	}

	return p.objectURL(key), nil
}

func (p *S3Publisher) key(filename string) string {
	if p.cfg.KeyPrefix == "" {
		return filename
	}
	return path.Join(p.cfg.KeyPrefix, filename)
}

func (p *S3Publisher) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case p.cfg.PublicBaseURL != "":
		return strings.TrimRight(p.cfg.PublicBaseURL, "/") + "/" + escaped
	case p.cfg.Endpoint != "":
		return strings.TrimRight(p.cfg.Endpoint, "/") + "/" + p.cfg.Bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, escaped)
	}
}

// s3StatusCode digs the HTTP status out of an SDK error, 0 if there was none.
func s3StatusCode(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return 403
		}
	}
	return 0
}
