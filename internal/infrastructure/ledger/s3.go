package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client the ledger uses
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Ledger keeps one JSON object per row at {prefix}{table}/{id}.json. The
// object's LastModified is the row's remote modification time.
type S3Ledger struct {
	client S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Ledger creates an S3 ledger from configuration. Static credentials
// are used when set, otherwise the default AWS credential chain.
func NewS3Ledger(ctx context.Context, cfg config.RemoteS3Config, logger *zap.Logger) (*S3Ledger, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("ledger bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3LedgerWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3LedgerWithClient creates an S3 ledger over an existing client
func NewS3LedgerWithClient(client S3API, bucket, prefix string, logger *zap.Logger) *S3Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Ledger{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

type s3Object struct {
	Fields map[string]any `json:"fields"`
}

// ListRows reads every row object of table
func (l *S3Ledger) ListRows(ctx context.Context, table string) ([]ledger.RemoteRow, error) {
	dir := l.prefix + table + "/"
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(dir),
	})

	var rows []ledger.RemoteRow
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, mapS3Error(ctx, err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id, ok := strings.CutSuffix(strings.TrimPrefix(key, dir), ".json")
			if !ok || id == "" || strings.Contains(id, "/") {
				continue
			}
			row, err := l.getRow(ctx, key, id)
			if err != nil {
				return nil, fmt.Errorf("read %s/%s: %w", table, id, err)
			}
			if row != nil {
				rows = append(rows, *row)
			}
		}
	}
	return rows, nil
}

func (l *S3Ledger) getRow(ctx context.Context, key, id string) (*ledger.RemoteRow, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			// deleted between list and get
			return nil, nil
		}
		return nil, mapS3Error(ctx, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, mapS3Error(ctx, err)
	}
	row := &ledger.RemoteRow{ID: id}
	if out.LastModified != nil {
		row.ModifiedAt = out.LastModified.UTC()
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj s3Object
	if err := dec.Decode(&obj); err != nil {
		row.Malformed = fmt.Errorf("malformed object %s: %w", key, err)
		return row, nil
	}
	fields, err := record.DecodeWire(obj.Fields)
	if err != nil {
		row.Malformed = fmt.Errorf("object %s: %w", key, err)
		return row, nil
	}
	row.Fields = fields
	return row, nil
}

// UpsertRow writes the row object. S3 objects are replaced whole, so fields
// not carried by this write are dropped from the object.
func (l *S3Ledger) UpsertRow(ctx context.Context, table, id string, fields record.Fields) error {
	body, err := json.Marshal(s3Object{Fields: record.EncodeWire(fields)})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", table, id, err)
	}
	_, err = l.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.bucket),
		Key:         aws.String(l.key(table, id)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, mapS3Error(ctx, err))
	}
	return nil
}

// DeleteRow removes the row object; S3 deletes of missing keys succeed
func (l *S3Ledger) DeleteRow(ctx context.Context, table, id string) error {
	_, err := l.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key(table, id)),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, mapS3Error(ctx, err))
	}
	return nil
}

func (l *S3Ledger) key(table, id string) string {
	return l.prefix + table + "/" + id + ".json"
}

var s3Throttling = map[string]bool{
	"SlowDown":                               true,
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"TooManyRequests":                        true,
	"RequestThrottled":                       true,
	"ProvisionedThroughputExceededException": true,
}

var s3Unavailable = map[string]bool{
	"InternalError":      true,
	"ServiceUnavailable": true,
	"RequestTimeout":     true,
}

// mapS3Error maps an SDK error onto the ledger failure modes. Errors that
// carry no API code never reached the service.
func mapS3Error(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	switch code := apiErr.ErrorCode(); {
	case s3Throttling[code]:
		return fmt.Errorf("%w: %s", ledger.ErrRateLimited, code)
	case s3Unavailable[code]:
		return fmt.Errorf("%w: %s", ledger.ErrUnavailable, code)
	default:
		return errors.Join(ledger.ErrRemoteRejected, err)
	}
}

var _ ledger.Adapter = (*S3Ledger)(nil)
