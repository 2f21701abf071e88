package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radiochild/odatatable"
)

func newTestRouter(t *testing.T, load bool) (http.Handler, *odatatable.Source) {
	t.Helper()
	srv := newDemoService(t)
	cfg := odatatable.DefaultHTTPFetcherConfig()
	cfg.RetryMax = 0
	source := odatatable.NewSource(odatatable.SourceOptions{
		BaseAddress: srv.URL + "/odata/Products",
		EntityType:  "ODataDemo.Product",
		Fetcher:     odatatable.NewHTTPFetcher(cfg),
		FilterFunc:  odatatable.NewSpecFilterFunc(nil),
	})
	t.Cleanup(func() { source.Close() })
	if load {
		require.NoError(t, source.Load(context.Background()))
	}
	return newRouter(source, zap.NewNop().Sugar()), source
}

func serveJSON(t *testing.T, h http.Handler, method, path, body string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestServeColumns(t *testing.T) {
	h, _ := newTestRouter(t, true)

	var res columnsResponse
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodGet, "/columns", "", &res))
	assert.Equal(t, "ODataDemo.Product", res.EntityType)
	assert.Len(t, res.Columns, 21)
	assert.Equal(t, odatatable.ColumnIDs(res.Columns), res.Visible)
}

func TestServeNotReady(t *testing.T) {
	h, _ := newTestRouter(t, false)

	var res map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, serveJSON(t, h, http.MethodGet, "/columns", "", &res))
	assert.Contains(t, res["error"], "not loaded")
	assert.Equal(t, http.StatusServiceUnavailable, serveJSON(t, h, http.MethodGet, "/rows", "", &res))
}

func TestServeQuery(t *testing.T) {
	h, source := newTestRouter(t, true)

	var res queryResponse
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodGet, "/query", "", &res))
	assert.Equal(t, source.QueryString(), res.QueryString)

	body := `{"pagination":{"pageIndex":2,"pageSize":5},"columnFilters":[{"id":"Name","value":["b","contains(Name,'b')"]}]}`
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPost, "/query", body, &res))
	assert.True(t, strings.HasSuffix(res.QueryString, "&$top=5&$skip=10"))
	assert.Contains(t, res.QueryString, "$filter=contains(Name,'b')")
	assert.Equal(t, "?$filter=contains(Name,'b')&$count=true&$top=0", res.CountQueryString)
	// posting a state does not change the source
	assert.Equal(t, 0, source.State().Pagination.PageIndex)

	assert.Equal(t, http.StatusBadRequest, serveJSON(t, h, http.MethodPost, "/query", "{", nil))
}

func TestServeQueryStructuredFilter(t *testing.T) {
	h, _ := newTestRouter(t, true)

	var res queryResponse
	body := `{"columnFilters":[{"id":"Rating","value":{"op":"ge","values":["3"]}},{"id":"Name","value":{"op":"prefix","values":["Br"]}}]}`
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPost, "/query", body, &res))
	assert.Equal(t, "?$filter=(Rating ge 3) and (startswith(Name,'Br'))&$count=true&$top=0", res.CountQueryString)

	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPost, "/query", "", &res))
	assert.NotContains(t, res.CountQueryString, "$filter")
}

func TestServeStateClearsSearch(t *testing.T) {
	h, source := newTestRouter(t, true)

	var st odatatable.TableState
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPut, "/state", `{"globalFilter":"milk"}`, &st))
	assert.Equal(t, "milk", source.State().GlobalFilter)
	assert.Contains(t, source.QueryString(), "$search=milk")

	// leaving the field out keeps the search
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPut, "/state", `{"pagination":{"pageIndex":1,"pageSize":10}}`, &st))
	assert.Equal(t, "milk", source.State().GlobalFilter)

	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPut, "/state", `{"globalFilter":""}`, &st))
	assert.Empty(t, source.State().GlobalFilter)
	assert.NotContains(t, source.QueryString(), "$search")
}

func TestServeState(t *testing.T) {
	h, source := newTestRouter(t, true)

	var st odatatable.TableState
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPut, "/state", `{"sorting":[{"id":"Price","desc":true}]}`, &st))
	assert.Equal(t, []odatatable.ColumnSort{{ID: "Price", Desc: true}}, st.Sorting)
	assert.Equal(t, st.Sorting, source.State().Sorting)

	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodGet, "/state", "", &st))
	assert.Equal(t, 10, st.Pagination.PageSize)
}

func TestServeRows(t *testing.T) {
	h, _ := newTestRouter(t, true)

	var page odatatable.Page
	assert.Equal(t, http.StatusOK, serveJSON(t, h, http.MethodPost, "/rows", `{"pagination":{"pageIndex":0,"pageSize":2}}`, &page))
	assert.Len(t, page.Rows, 3)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageCount)
	assert.Equal(t, 2, page.PageSize)
}
