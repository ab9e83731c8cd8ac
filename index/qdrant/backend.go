package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultPort is the Qdrant gRPC port.
const DefaultPort = 6334

// DefaultTimeout bounds each backend call.
const DefaultTimeout = 10 * time.Second

// Client is the subset of *qdrant.Client used by Backend.
type Client interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Backend implements index.Backend on a Qdrant server.
type Backend struct {
	client  Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ index.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend) error

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative: %s", d)
		}
		b.timeout = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) error {
		b.logger = logger.With("component", "qdrant-backend")
		return nil
	}
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, opts ...Option) (*Backend, error) {
	b := &Backend{
		client:  client,
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "qdrant-backend"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// New connects to the Qdrant server at rawURL (http(s)://host[:port]).
func New(rawURL, apiKey string, opts ...Option) (*Backend, error) {
	cfg, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = apiKey

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s: %w", rawURL, err)
	}
	b, err := NewWithClient(client, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	b.logger.Info("connected", "host", cfg.Host, "port", cfg.Port, "tls", cfg.UseTLS)
	return b, nil
}

// ParseURL converts http(s)://host[:port] into a client config.
func ParseURL(rawURL string) (*qdrant.Config, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", index.ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", index.ErrInvalidURL)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad port %q", index.ErrInvalidURL, p)
		}
	}
	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https",
	}, nil
}

func (b *Backend) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(ctx, b.timeout)
	}
	return context.WithCancel(ctx)
}

// ListCollections returns the names of all collections.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := b.callContext(ctx)
	defer cancel()
	return b.client.ListCollections(ctx)
}

// CreateCollection creates a multi-vector collection.
func (b *Backend) CreateCollection(ctx context.Context, spec core.CollectionSpec) error {
	if err := core.ValidateCollectionSpec(spec); err != nil {
		return err
	}
	params, err := vectorParams(spec)
	if err != nil {
		return err
	}

	ctx, cancel := b.callContext(ctx)
	defer cancel()
	return b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig:  qdrant.NewVectorsConfig(params),
	})
}

func vectorParams(spec core.CollectionSpec) (*qdrant.VectorParams, error) {
	if spec.Distance != core.DistanceCosine {
		return nil, fmt.Errorf("unsupported distance %q", spec.Distance)
	}
	if spec.Comparator != core.ComparatorMaxSim {
		return nil, fmt.Errorf("unsupported comparator %q", spec.Comparator)
	}
	return &qdrant.VectorParams{
		Size:     uint64(spec.VectorSize),
		Distance: qdrant.Distance_Cosine,
		MultivectorConfig: &qdrant.MultiVectorConfig{
			Comparator: qdrant.MultiVectorComparator_MaxSim,
		},
	}, nil
}

// UpsertPoints writes points and waits for the server to apply them.
func (b *Backend) UpsertPoints(ctx context.Context, collection string, points []core.IndexPoint) error {
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := qdrant.TryValueMap(toAnyMap(p.Payload))
		if err != nil {
			return fmt.Errorf("point %d payload: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectorsMulti(p.Vector),
			Payload: payload,
		}
	}

	ctx, cancel := b.callContext(ctx)
	defer cancel()
	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	return err
}

// Query runs a multi-vector nearest neighbour query.
func (b *Backend) Query(ctx context.Context, collection string, query core.MultiVector, limit int) ([]index.ScoredPoint, error) {
	if limit <= 0 {
		return nil, index.ErrInvalidLimit
	}

	ctx, cancel := b.callContext(ctx)
	defer cancel()
	results, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryMulti(query),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	points := make([]index.ScoredPoint, len(results))
	for i, r := range results {
		points[i] = index.ScoredPoint{
			ID:      core.PointID(r.GetId().GetNum()),
			Score:   r.GetScore(),
			Payload: fromValueMap(r.GetPayload()),
		}
	}
	return points, nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}

func toAnyMap(payload core.Payload) map[string]any {
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = v
	}
	return m
}

func fromValueMap(values map[string]*qdrant.Value) core.Payload {
	payload := make(core.Payload, len(values))
	for k, v := range values {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			payload[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			payload[k] = strconv.FormatInt(kind.IntegerValue, 10)
		case *qdrant.Value_DoubleValue:
			payload[k] = strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
		case *qdrant.Value_BoolValue:
			payload[k] = strconv.FormatBool(kind.BoolValue)
		}
	}
	return payload
}
