package odatatable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Accept headers for data and metadata requests
const (
	AcceptJSON = "application/json;odata.metadata=minimal"
	AcceptXML  = "application/xml"
)

// DiscoveryProbe is appended to a resource address to read its context
// without fetching rows.
const DiscoveryProbe = "?$top=0"

var ErrURLRequired = errors.New("url is required")

// RequiredURL rejects an empty URL before anything is fetched.
func RequiredURL(url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", ErrURLRequired
	}
	return url, nil
}

// Fetcher retrieves the body behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

type HTTPFetcherConfig struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Accept       string
	Logger       *zap.SugaredLogger
}

func DefaultHTTPFetcherConfig() HTTPFetcherConfig {
	return HTTPFetcherConfig{
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		Timeout:      30 * time.Second,
		Accept:       AcceptJSON,
	}
}

// HTTPFetcher performs GETs with retries on transient failures.
type HTTPFetcher struct {
	client *retryablehttp.Client
	accept string
}

func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.Logger = retryLogger{logger}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &HTTPFetcher{client: client, accept: cfg.Accept}
}

// WithAccept returns a fetcher sharing the same client with another Accept header.
func (f *HTTPFetcher) WithAccept(accept string) *HTTPFetcher {
	return &HTTPFetcher{client: f.client, accept: accept}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	if f.accept != "" {
		req.Header.Set("Accept", f.accept)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// retryLogger routes retryablehttp's leveled logging into zap.
type retryLogger struct {
	logger *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}

// Count is @odata.count, which services send as a number or, with
// IEEE754Compatible, as a string.
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*c = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Count(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("@odata.count %s: %w", string(data), err)
	}
	*c = Count(f)
	return nil
}

// ServiceDocument is an OData JSON collection response.
type ServiceDocument struct {
	Context  string                   `json:"@odata.context,omitempty"`
	Count    *Count                   `json:"@odata.count,omitempty"`
	NextLink string                   `json:"@odata.nextLink,omitempty"`
	Value    []map[string]interface{} `json:"value"`
}

// MetadataURL is the context URL without its fragment.
func (d ServiceDocument) MetadataURL() string {
	if idx := strings.Index(d.Context, "#"); idx >= 0 {
		return d.Context[:idx]
	}
	return d.Context
}

func decodeServiceDocument(data []byte) (*ServiceDocument, error) {
	var doc ServiceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding service document: %w", err)
	}
	return &doc, nil
}
