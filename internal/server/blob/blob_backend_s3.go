package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Backend struct {
	s3Client    *s3.Client
	s3Presigner *s3.PresignClient
	config      *Config
}

func NewS3Backend(s3Client *s3.Client, config *Config) *S3Backend {
	return &S3Backend{
		s3Client:    s3Client,
		s3Presigner: s3.NewPresignClient(s3Client),
		config:      config,
	}
}

func NewS3BackendWithConfig(ctx context.Context, cfg *Config) (*S3Backend, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Backend(awsClient, cfg), nil
}

func (s *S3Backend) Name() string {
	return BackendS3
}

// ===================================================================================================

func (s *S3Backend) CreateMultipartUpload(ctx context.Context, params *CreateMultipartParams) (*CreateMultipartResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}
	if err := params.Encryption.Validate(); err != nil {
		return nil, err
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket:   &s.config.BucketName,
		Key:      &params.Key,
		Metadata: params.Metadata,
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}
	if enc := params.Encryption; enc != nil {
		input.ServerSideEncryption = types.ServerSideEncryption(enc.Algorithm)
		if enc.KMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(enc.KMSKeyID)
		}
	}

	result, err := s.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, err
	}

	return &CreateMultipartResponse{
		Key:      params.Key,
		UploadID: aws.ToString(result.UploadId),
	}, nil
}

func (s *S3Backend) PresignUploadPart(ctx context.Context, params *PresignPartParams) (string, error) {
	if !ValidateKey(params.Key) {
		return "", ErrInvalidKey
	}

	req, err := s.s3Presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     &s.config.BucketName,
		Key:        &params.Key,
		UploadId:   &params.UploadID,
		PartNumber: aws.Int32(int32(params.PartNumber)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.config.uploadExpiry()
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Backend) CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartParams) (*CompleteMultipartResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}
	if len(params.Parts) == 0 {
		return nil, ErrInvalidPartList
	}

	completedParts := make([]types.CompletedPart, len(params.Parts))
	for i, part := range params.Parts {
		completedParts[i] = types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(int32(part.PartNumber)),
		}
	}

	res, err := s.s3Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &s.config.BucketName,
		Key:      &params.Key,
		UploadId: &params.UploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return nil, mapS3Error(err)
	}

	return &CompleteMultipartResponse{
		Key:          params.Key,
		Version:      aws.ToString(res.VersionId),
		ETag:         cleanETag(aws.ToString(res.ETag)),
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *S3Backend) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if !ValidateKey(key) {
		return ErrInvalidKey
	}

	_, err := s.s3Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &s.config.BucketName,
		Key:      &key,
		UploadId: &uploadID,
	})
	return mapS3Error(err)
}

// ===================================================================================================

func (s *S3Backend) PresignUpload(ctx context.Context, params *PresignUploadParams) (*PresignUploadResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}

	input := &s3.PutObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &params.Key,
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}

	req, err := s.s3Presigner.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.config.uploadExpiry()
	})
	if err != nil {
		return nil, err
	}

	// the client sets Host itself
	headers := req.SignedHeader.Clone()
	headers.Del("Host")

	return &PresignUploadResponse{URL: req.URL, Headers: headers}, nil
}

func (s *S3Backend) PresignDownload(ctx context.Context, key string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}

	req, err := s.s3Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.config.downloadExpiry()
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Backend) ObjectExists(ctx context.Context, key string) (bool, error) {
	if !ValidateKey(key) {
		return false, ErrInvalidKey
	}

	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Backend) DeleteObject(ctx context.Context, key string) (bool, error) {
	if !ValidateKey(key) {
		return false, ErrInvalidKey
	}

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ===================================================================================================

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return fmt.Errorf("%w: %w", ErrUploadNotFound, err)
	}
	return err
}

func cleanETag(etag string) string {
	return strings.ReplaceAll(etag, "\"", "")
}

var _ Backend = (*S3Backend)(nil)
