package odatatable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataQueryGet(t *testing.T) {
	svc := newFakeService(t)
	query := BindMetadataQuery(MetadataOptions{Fetcher: testFetcher().WithAccept(AcceptXML)})
	url := svc.URL + "/odata/$metadata"

	md, err := query.Get(context.Background(), url)
	require.NoError(t, err)
	_, ok := md.FindEntityType("ODataDemo.Product")
	assert.True(t, ok)

	again, err := query.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, md.DataServices, again.DataServices)
	assert.Equal(t, 1, svc.hits("$metadata"))
	assert.Equal(t, QueryKey{"ODATA", "METADATA", url}, query.Key(url))
}

func TestMetadataQueryRequiresURL(t *testing.T) {
	fetched := false
	query := BindMetadataQuery(MetadataOptions{Fetcher: FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		fetched = true
		return nil, nil
	})})
	_, err := query.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrURLRequired)
	assert.False(t, fetched)
}

func TestMetadataQueryCustomParse(t *testing.T) {
	calls := 0
	query := BindMetadataQuery(MetadataOptions{
		Fetcher: FetchFunc(func(ctx context.Context, url string) ([]byte, error) { return []byte("ignored"), nil }),
		Parse: func(doc []byte) (*Metadata, error) {
			calls++
			return &Metadata{Version: "custom"}, nil
		},
	})
	md, err := query.Get(context.Background(), "http://host/$metadata")
	require.NoError(t, err)
	assert.Equal(t, "custom", md.Version)
	assert.Equal(t, 1, calls)
}

func TestMetadataQueryParseError(t *testing.T) {
	query := BindMetadataQuery(MetadataOptions{
		Fetcher: FetchFunc(func(ctx context.Context, url string) ([]byte, error) { return []byte("<broken"), nil }),
	})
	_, err := query.Get(context.Background(), "http://host/$metadata")
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestDiscoverMetadata(t *testing.T) {
	svc := newFakeService(t)
	client := NewQueryClient(nil, nil)
	opts := DiscoverOptions{BaseAddress: svc.URL + "/odata/Products", Fetcher: testFetcher(), Client: client}

	url, err := DiscoverMetadata(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, svc.URL+"/odata/$metadata", url)

	_, err = DiscoverMetadata(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.hits("$top=0"))
}

func TestDiscoverMetadataErrors(t *testing.T) {
	_, err := DiscoverMetadata(context.Background(), DiscoverOptions{})
	assert.ErrorIs(t, err, ErrURLRequired)

	noContext := FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(`{"value": []}`), nil
	})
	_, err = DiscoverMetadata(context.Background(), DiscoverOptions{BaseAddress: "http://host/odata/X", Fetcher: noContext})
	assert.ErrorIs(t, err, ErrNoContext)

	svc := newFakeService(t)
	_, err = DiscoverMetadata(context.Background(), DiscoverOptions{BaseAddress: svc.URL + "/odata/Missing", Fetcher: testFetcher()})
	var httpErr *HTTPError
	assert.ErrorAs(t, err, &httpErr)
}
