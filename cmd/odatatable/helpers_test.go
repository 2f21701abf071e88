package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newDemoService(t *testing.T) *httptest.Server {
	t.Helper()
	doc, err := os.ReadFile("../../testdata/demo_metadata.xml")
	require.NoError(t, err)

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/odata/$metadata", func(w http.ResponseWriter, r *http.Request) {
		w.Write(doc)
	})
	mux.HandleFunc("/odata/Products", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"@odata.context": srv.URL + "/odata/$metadata#Products",
			"value":          []interface{}{},
		}
		q := r.URL.Query()
		if q.Get("$count") == "true" {
			resp["@odata.count"] = 3
		} else if q.Get("$top") != "0" {
			resp["value"] = []map[string]interface{}{
				{"ID": 0, "Name": "Bread", "Rating": 4, "Price": 2.5},
				{"ID": 1, "Name": "Milk", "Rating": 3, "Price": 3.5},
				{"ID": 2, "Name": "Vint soda", "Rating": 3, "Price": 20.9},
			}
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runCommand executes the CLI and returns what it wrote to stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}
