package upload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"montoit/internal/platform/config"
	"montoit/internal/verification"
)

// S3Gateway stores evidence in an S3 bucket. Keys are prefixed by the caller's
// hint and suffixed with a random component so repeated attempts never
// overwrite earlier evidence.
type S3Gateway struct {
	client *s3.S3
	bucket string
	region string
}

var _ Gateway = (*S3Gateway)(nil)

func NewS3Gateway(cfg config.Upload) (*S3Gateway, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Gateway{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

func (g *S3Gateway) Upload(ctx context.Context, blob []byte, keyHint string, opts Options) (*Result, error) {
	contentType, err := validate(blob, opts)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%d-%s", keyHint, time.Now().UnixNano(), uuid.NewString())
	_, err = g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrUploadFailed, "store evidence", err)
	}

	return &Result{
		URL:         fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", g.bucket, g.region, key),
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(blob)),
	}, nil
}
