package odatatable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

var (
	DefaultMetadataQueryKey  = QueryKey{"ODATA", "METADATA"}
	DefaultMetadataStaleTime = 10 * time.Minute
)

var ErrNoContext = errors.New("service document has no @odata.context")

// MetadataLoader resolves a metadata URL to parsed metadata.
type MetadataLoader interface {
	Get(ctx context.Context, url string) (*Metadata, error)
}

type MetadataOptions struct {
	Fetcher   Fetcher
	Parse     ParseFunc
	QueryKey  QueryKey
	StaleTime time.Duration
	Client    *QueryClient
	Logger    *zap.SugaredLogger
}

// MetadataQuery fetches, parses and caches metadata documents.
type MetadataQuery struct {
	opts       MetadataOptions
	ownsClient bool
}

// BindMetadataQuery fills unset options with defaults: an XML HTTP
// fetcher, ParseCSDL, the ODATA/METADATA key and a ten minute stale time.
func BindMetadataQuery(opts MetadataOptions) *MetadataQuery {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Fetcher == nil {
		cfg := DefaultHTTPFetcherConfig()
		cfg.Accept = AcceptXML
		cfg.Logger = opts.Logger
		opts.Fetcher = NewHTTPFetcher(cfg)
	}
	if opts.Parse == nil {
		opts.Parse = ParseCSDL
	}
	if len(opts.QueryKey) == 0 {
		opts.QueryKey = DefaultMetadataQueryKey
	}
	if opts.StaleTime == 0 {
		opts.StaleTime = DefaultMetadataStaleTime
	}
	ownsClient := opts.Client == nil
	if ownsClient {
		opts.Client = NewQueryClient(nil, opts.Logger)
	}
	return &MetadataQuery{opts: opts, ownsClient: ownsClient}
}

// Close releases the query client created by BindMetadataQuery.
func (q *MetadataQuery) Close() error {
	if !q.ownsClient {
		return nil
	}
	return q.opts.Client.Close()
}

// Key is the query key for url.
func (q *MetadataQuery) Key(url string) QueryKey {
	return q.opts.QueryKey.Append(url)
}

func (q *MetadataQuery) Get(ctx context.Context, url string) (*Metadata, error) {
	u, err := RequiredURL(url)
	if err != nil {
		return nil, err
	}
	data, err := q.opts.Client.Fetch(ctx, q.Key(u), q.opts.StaleTime, func(ctx context.Context) ([]byte, error) {
		doc, err := q.opts.Fetcher.Fetch(ctx, u)
		if err != nil {
			return nil, err
		}
		md, err := q.opts.Parse(doc)
		if err != nil {
			return nil, err
		}
		q.opts.Logger.Debugf("parsed metadata from %s: %d schemas", u, len(md.DataServices.Schemas))
		return msgpack.Marshal(md)
	})
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", u, err)
	}
	var md Metadata
	if err := msgpack.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decoding cached metadata for %s: %w", u, err)
	}
	return &md, nil
}

type DiscoverOptions struct {
	BaseAddress string
	Fetcher     Fetcher
	Client      *QueryClient
	QueryKey    QueryKey
	StaleTime   time.Duration
}

// DiscoverMetadata probes BaseAddress with $top=0 and returns the metadata
// URL named by the response's @odata.context.
func DiscoverMetadata(ctx context.Context, opts DiscoverOptions) (string, error) {
	base, err := RequiredURL(opts.BaseAddress)
	if err != nil {
		return "", err
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(DefaultHTTPFetcherConfig())
	}
	if opts.Client == nil {
		// private to this call
		opts.Client = NewQueryClient(nil, nil)
		defer opts.Client.Close()
	}
	if len(opts.QueryKey) == 0 {
		opts.QueryKey = DefaultQueryKey.Append(base)
	}
	if opts.StaleTime == 0 {
		opts.StaleTime = DefaultStaleTime
	}

	probe := base + DiscoveryProbe
	data, err := opts.Client.Fetch(ctx, opts.QueryKey.Append(DiscoveryProbe), opts.StaleTime, func(ctx context.Context) ([]byte, error) {
		return opts.Fetcher.Fetch(ctx, probe)
	})
	if err != nil {
		return "", fmt.Errorf("discovering metadata for %s: %w", base, err)
	}
	doc, err := decodeServiceDocument(data)
	if err != nil {
		return "", err
	}
	if doc.Context == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContext, probe)
	}
	return doc.MetadataURL(), nil
}
