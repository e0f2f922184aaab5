// Package storage signs direct-to-bucket uploads for avatars and attachments.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dailydrop/server/internal/apierr"
)

const uploadExpiry = time.Hour

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a signed PUT url and the public url the object will be served from
type Upload struct {
	SignedURL string `json:"signedUrl"`
	URL       string `json:"url"`
}

type S3Uploader struct {
	presigner presigner
	bucket    string
	domain    string
}

// NewS3Uploader loads AWS credentials from the default chain
func NewS3Uploader(ctx context.Context, region, bucket, domain string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Uploader{
		presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket:    bucket,
		domain:    strings.TrimSuffix(domain, "/"),
	}, nil
}

// SignedUploadURL signs a public-read PUT of fileName valid for one hour
func (u *S3Uploader) SignedUploadURL(ctx context.Context, fileName, fileType string) (*Upload, error) {
	if fileName == "" || fileType == "" {
		return nil, apierr.ErrBadRequest.WithMessage("fileName and fileType are required")
	}

	req, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(fileName),
		ContentType: aws.String(fileType),
		ACL:         types.ObjectCannedACLPublicRead,
	}, s3.WithPresignExpires(uploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &Upload{
		SignedURL: req.URL,
		URL:       "https://" + u.domain + "/" + (&url.URL{Path: fileName}).EscapedPath(),
	}, nil
}
