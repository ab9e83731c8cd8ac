package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const s3Scheme = "s3://"

// GetObjectAPI is the subset of the S3 client used to read sources.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener opens corpus sources from the local filesystem or S3 and
// transparently decompresses them based on their file suffix.
type Opener struct {
	s3     GetObjectAPI
	logger *slog.Logger
}

// Option configures an Opener.
type Option func(*Opener)

// WithS3Client sets the S3 client used for s3:// sources.
// By default a client is built from the default AWS configuration on first use.
func WithS3Client(client GetObjectAPI) Option {
	return func(o *Opener) {
		o.s3 = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Opener) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOpener creates an Opener.
func NewOpener(opts ...Option) *Opener {
	o := &Opener{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "source")
	return o
}

// Open returns a reader over the decompressed contents of uri.
// uri is either a local path or s3://bucket/key.
func (o *Opener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if uri == "" {
		return nil, ErrEmptyURI
	}

	var (
		raw io.ReadCloser
		err error
	)
	if strings.HasPrefix(uri, s3Scheme) {
		raw, err = o.openS3(ctx, uri)
	} else {
		o.logger.Debug("opening local source", "path", uri)
		raw, err = os.Open(uri)
	}
	if err != nil {
		return nil, err
	}

	rc, err := decompress(uri, raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return rc, nil
}

func (o *Opener) openS3(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	if o.s3 == nil {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		o.s3 = s3.NewFromConfig(awsCfg)
	}

	o.logger.Debug("opening s3 source", "bucket", bucket, "key", key)
	out, err := o.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", uri, err)
	}
	return out.Body, nil
}

// ParseS3URI splits s3://bucket/key into its bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidS3URI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidS3URI, uri)
	}
	return bucket, key, nil
}

// decompress wraps raw in a decoder chosen by the suffix of name.
func decompress(name string, raw io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case strings.HasSuffix(name, ".zst"):
		dec, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &stackedReader{Reader: dec, closers: []io.Closer{dec.IOReadCloser(), raw}}, nil
	case strings.HasSuffix(name, ".lz4"):
		return &stackedReader{Reader: lz4.NewReader(raw), closers: []io.Closer{raw}}, nil
	default:
		return raw, nil
	}
}

// stackedReader reads from a decoder and closes it along with the underlying source.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
