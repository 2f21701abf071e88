package odatatable

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func demoMetadataDoc(t *testing.T) []byte {
	t.Helper()
	doc, err := os.ReadFile("testdata/demo_metadata.xml")
	require.NoError(t, err)
	return doc
}

func demoMetadata(t *testing.T) *Metadata {
	t.Helper()
	md, err := ParseCSDL(demoMetadataDoc(t))
	require.NoError(t, err)
	return md
}

func demoProduct(t *testing.T) *EntityType {
	t.Helper()
	root, err := BuildTypeRoot(demoMetadata(t), "ODataDemo.Product", 1)
	require.NoError(t, err)
	return root
}

var demoRows = []map[string]interface{}{
	{
		"ID": 0, "Name": "Bread", "Description": "Whole grain bread",
		"ReleaseDate": "1992-01-01T00:00:00Z", "DiscontinuedDate": nil,
		"Rating": 4, "Price": 2.5,
		"Categories": []interface{}{map[string]interface{}{"ID": 0, "Name": "Food"}},
		"Supplier": map[string]interface{}{
			"ID": 1, "Name": "Tokyo Traders", "Concurrency": 0,
			"Address": map[string]interface{}{"Street": "NE 40th", "City": "Redmond", "State": "WA", "ZipCode": "98052", "Country": "USA"},
		},
	},
	{
		"ID": 1, "Name": "Milk", "Description": "Low fat milk",
		"ReleaseDate": "1995-10-01T00:00:00Z", "DiscontinuedDate": nil,
		"Rating": 3, "Price": 3.5,
		"Categories": []interface{}{
			map[string]interface{}{"ID": 0, "Name": "Food"},
			map[string]interface{}{"ID": 1, "Name": "Beverages"},
		},
		"Supplier": map[string]interface{}{"ID": 0, "Name": "Exotic Liquids", "Concurrency": 0},
	},
}

// fakeService is a minimal OData service for the demo model.
type fakeService struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
	total    int
	noCount  bool
	// Accept header of the last $metadata request
	metadataAccept string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	doc := demoMetadataDoc(t)
	fs := &fakeService{total: 11}
	mux := http.NewServeMux()
	mux.HandleFunc("/odata/$metadata", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		fs.mu.Lock()
		fs.metadataAccept = r.Header.Get("Accept")
		fs.mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
		w.Write(doc)
	})
	mux.HandleFunc("/odata/Products", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		q := r.URL.Query()
		resp := map[string]interface{}{
			"@odata.context": fs.URL + "/odata/$metadata#Products",
		}
		switch {
		case q.Get("$count") == "true":
			if !fs.noCount {
				resp["@odata.count"] = fs.total
			}
			resp["value"] = []interface{}{}
		case q.Get("$top") == "0":
			resp["value"] = []interface{}{}
		default:
			resp["value"] = demoRows
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/odata/Missing", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		http.Error(w, "not found", http.StatusNotFound)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeService) record(r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.requests = append(fs.requests, r.URL.RequestURI())
}

// hits counts requests whose URI contains substr.
func (fs *fakeService) hits(substr string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, req := range fs.requests {
		if strings.Contains(req, substr) {
			n++
		}
	}
	return n
}

func testFetcher() *HTTPFetcher {
	cfg := DefaultHTTPFetcherConfig()
	cfg.RetryMax = 0
	return NewHTTPFetcher(cfg)
}
