package odatatable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	DefaultQueryKey  = QueryKey{"ODATA"}
	DefaultStaleTime = 5 * time.Minute
)

// ErrNotReady is returned when rows are requested before metadata is loaded.
var ErrNotReady = errors.New("source metadata not loaded")

// Bool returns a pointer to v, for optional flags in SourceOptions.
func Bool(v bool) *bool {
	return &v
}

type SourceOptions struct {
	BaseAddress string
	// EntityType is the qualified type name (or entity set name) of the rows.
	EntityType string
	// MetadataURL skips discovery when set.
	MetadataURL string
	// IncludeNavigation defaults to true.
	IncludeNavigation *bool
	SelectAll         bool
	NavigationDepth   int
	InitialState      *TableState
	FilterFunc        FilterFunc
	Fetcher           Fetcher
	Client            *QueryClient
	QueryKey          QueryKey
	StaleTime         time.Duration
	ColumnFunc        ColumnFunc
	CustomColumns     []Column
	Metadata          MetadataLoader
	Logger            *zap.SugaredLogger
}

// MergeSourceOptions overlays the non-zero fields of over onto base.
func MergeSourceOptions(base, over SourceOptions) SourceOptions {
	merged := base
	if over.BaseAddress != "" {
		merged.BaseAddress = over.BaseAddress
	}
	if over.EntityType != "" {
		merged.EntityType = over.EntityType
	}
	if over.MetadataURL != "" {
		merged.MetadataURL = over.MetadataURL
	}
	if over.IncludeNavigation != nil {
		merged.IncludeNavigation = over.IncludeNavigation
	}
	if over.SelectAll {
		merged.SelectAll = true
	}
	if over.NavigationDepth != 0 {
		merged.NavigationDepth = over.NavigationDepth
	}
	if over.InitialState != nil {
		merged.InitialState = over.InitialState
	}
	if over.FilterFunc != nil {
		merged.FilterFunc = over.FilterFunc
	}
	if over.Fetcher != nil {
		merged.Fetcher = over.Fetcher
	}
	if over.Client != nil {
		merged.Client = over.Client
	}
	if len(over.QueryKey) > 0 {
		merged.QueryKey = over.QueryKey
	}
	if over.StaleTime != 0 {
		merged.StaleTime = over.StaleTime
	}
	if over.ColumnFunc != nil {
		merged.ColumnFunc = over.ColumnFunc
	}
	if over.CustomColumns != nil {
		merged.CustomColumns = over.CustomColumns
	}
	if over.Metadata != nil {
		merged.Metadata = over.Metadata
	}
	if over.Logger != nil {
		merged.Logger = over.Logger
	}
	return merged
}

func (o SourceOptions) withDefaults() SourceOptions {
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.IncludeNavigation == nil {
		o.IncludeNavigation = Bool(true)
	}
	if o.NavigationDepth <= 0 {
		o.NavigationDepth = DefaultNavigationDepth
	}
	if o.FilterFunc == nil {
		o.FilterFunc = SimpleFilterFunc
	}
	if o.ColumnFunc == nil {
		o.ColumnFunc = DefaultColumnFunc
	}
	if len(o.QueryKey) == 0 {
		o.QueryKey = DefaultQueryKey
	}
	if o.StaleTime == 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.Client == nil {
		o.Client = NewQueryClient(nil, o.Logger)
	}
	if o.Fetcher == nil {
		cfg := DefaultHTTPFetcherConfig()
		cfg.Logger = o.Logger
		o.Fetcher = NewHTTPFetcher(cfg)
	}
	if o.Metadata == nil {
		fetcher := o.Fetcher
		if hf, ok := fetcher.(*HTTPFetcher); ok {
			fetcher = hf.WithAccept(AcceptXML)
		}
		o.Metadata = BindMetadataQuery(MetadataOptions{Fetcher: fetcher, Client: o.Client, Logger: o.Logger})
	}
	return o
}

// Page is one fetched page of rows.
type Page struct {
	Rows        []map[string]interface{} `json:"rows"`
	Total       int                      `json:"total"`
	PageCount   int                      `json:"pageCount"`
	PageIndex   int                      `json:"pageIndex"`
	PageSize    int                      `json:"pageSize"`
	QueryString string                   `json:"queryString"`
}

type Status struct {
	IsLoading  bool `json:"isLoading"`
	IsFetching bool `json:"isFetching"`
}

// Source binds table state, entity metadata and the query client into a
// single data source for one entity collection.
type Source struct {
	opts       SourceOptions
	ownsClient bool

	mu          sync.RWMutex
	state       TableState
	metadataURL string
	typeRoot    *EntityType
	columns     []Column
	total       int
	pageCount   int
	inFlight    int32
}

// NewSource applies defaults to opts. When opts has no Client the source
// creates one; call Close to release it.
func NewSource(opts SourceOptions) *Source {
	ownsClient := opts.Client == nil
	opts = opts.withDefaults()
	return &Source{
		opts:        opts,
		ownsClient:  ownsClient,
		state:       MergeTableState(DefaultTableState(), opts.InitialState),
		metadataURL: opts.MetadataURL,
		pageCount:   -1,
	}
}

// Close releases the query client the source created for itself.
func (s *Source) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.opts.Client.Close()
}

// BoundQueryKey is QueryKey + [BaseAddress, EntityType].
func (s *Source) BoundQueryKey() QueryKey {
	return s.opts.QueryKey.Append(s.opts.BaseAddress, s.opts.EntityType)
}

// Load resolves metadata (discovering its URL when none was configured)
// and builds the type root and columns. The column order is reset to the
// built columns.
func (s *Source) Load(ctx context.Context) error {
	s.begin()
	defer s.end()

	url := s.MetadataURL()
	if url == "" {
		discovered, err := DiscoverMetadata(ctx, DiscoverOptions{
			BaseAddress: s.opts.BaseAddress,
			Fetcher:     s.opts.Fetcher,
			Client:      s.opts.Client,
			QueryKey:    s.BoundQueryKey(),
			StaleTime:   s.opts.StaleTime,
		})
		if err != nil {
			return err
		}
		s.opts.Logger.Debugf("discovered metadata %s for %s", discovered, s.opts.BaseAddress)
		url = discovered
	}

	md, err := s.opts.Metadata.Get(ctx, url)
	if err != nil {
		return err
	}
	root, err := BuildTypeRoot(md, s.opts.EntityType, s.opts.NavigationDepth)
	if err != nil {
		return err
	}
	built := BuildColumns(*s.opts.IncludeNavigation, s.opts.ColumnFunc, root)
	columns := MergeColumns(built, s.opts.CustomColumns)

	s.mu.Lock()
	s.metadataURL = url
	s.typeRoot = root
	s.columns = columns
	s.state.ColumnOrder = ColumnIDs(built)
	s.mu.Unlock()

	s.opts.Logger.Infof("loaded %s: %d columns", root.Type, len(columns))
	return nil
}

func (s *Source) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typeRoot != nil
}

func (s *Source) MetadataURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadataURL
}

func (s *Source) TypeRoot() *EntityType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typeRoot
}

func (s *Source) Columns() []Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Column{}, s.columns...)
}

// VisibleColumns lists the shown columns following the state's column
// order; columns missing from the order come last.
func (s *Source) VisibleColumns() []Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := make(map[string]Column, len(s.columns))
	for _, col := range s.columns {
		byID[col.ID] = col
	}
	visible := func(id string) bool {
		shown, ok := s.state.ColumnVisibility[id]
		return !ok || shown
	}
	out := []Column{}
	placed := map[string]bool{}
	for _, id := range s.state.ColumnOrder {
		if col, ok := byID[id]; ok && !placed[id] {
			placed[id] = true
			if visible(id) {
				out = append(out, col)
			}
		}
	}
	for _, col := range s.columns {
		if !placed[col.ID] && visible(col.ID) {
			out = append(out, col)
		}
	}
	return out
}

// State returns a copy of the current table state.
func (s *Source) State() TableState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Source) SetState(state TableState) {
	s.UpdateState(func(TableState) TableState { return state })
}

// UpdateState applies fn to a copy of the state and stores the result.
func (s *Source) UpdateState(fn func(TableState) TableState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.state.Clone()).normalized()
	if next.Pagination.PageSize != s.state.Pagination.PageSize && s.pageCount >= 0 {
		s.pageCount = PageCount(s.total, next.Pagination.PageSize)
	}
	s.state = next
}

func (s *Source) SetColumnFilters(filters []ColumnFilter) {
	s.UpdateState(func(st TableState) TableState {
		st.ColumnFilters = append([]ColumnFilter{}, filters...)
		return st
	})
}

// Total is the last known @odata.count.
func (s *Source) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// PageCount is -1 until a count has been fetched.
func (s *Source) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageCount
}

func (s *Source) Status() Status {
	fetching := atomic.LoadInt32(&s.inFlight) > 0
	return Status{
		IsLoading:  fetching && !s.Ready(),
		IsFetching: fetching,
	}
}

func (s *Source) begin() { atomic.AddInt32(&s.inFlight, 1) }
func (s *Source) end()   { atomic.AddInt32(&s.inFlight, -1) }

// filterOptions resolves FilterSpec literal types from the columns before
// running the filter func.
func (s *Source) filterOptions(filters []ColumnFilter) QueryOptions {
	s.mu.RLock()
	columns := s.columns
	s.mu.RUnlock()

	resolved := make([]ColumnFilter, 0, len(filters))
	for _, f := range filters {
		if spec, ok := f.Value.(FilterSpec); ok && spec.Type == "" {
			name := spec.FldName
			if name == "" {
				name = f.ID
			}
			if _, col := ColumnNamed(columns, name); col != nil {
				spec.Type = col.ODataType
				f.Value = spec
			}
		}
		resolved = append(resolved, f)
	}
	return BuildFilter(s.opts.FilterFunc, resolved)
}

// QueryOptionsFor maps a table state to query options. Select and expand
// need the type root and are left out before Load. $select is only sent
// when some top-level property is hidden.
func (s *Source) QueryOptionsFor(st TableState) QueryOptions {
	st = st.normalized()
	parts := []QueryOptions{s.filterOptions(st.ColumnFilters)}

	if root := s.TypeRoot(); root != nil {
		hidden := BuildHidden(st.ColumnVisibility)
		if *s.opts.IncludeNavigation {
			parts = append(parts, BuildExpand(hidden, root))
		}
		if !s.opts.SelectAll {
			sel := BuildSelect(hidden, root)
			// selecting every property is the same as no $select
			if len(sel.Select) < len(root.Properties) {
				parts = append(parts, sel)
			}
		}
	}
	parts = append(parts, BuildSort(st.Sorting), BuildPaging(st.Pagination), BuildSearch(st.GlobalFilter))
	return MergeQueryOptions(parts...)
}

func (s *Source) QueryStringFor(st TableState) string {
	return s.QueryOptionsFor(st).String()
}

// QueryString is the live query string for the current state.
func (s *Source) QueryString() string {
	return s.QueryStringFor(s.State())
}

func (s *Source) countOptionsFor(st TableState) QueryOptions {
	return MergeQueryOptions(s.filterOptions(st.ColumnFilters), QueryOptions{Count: true, Top: intPtr(0)})
}

// CountQueryStringFor is the query used for @odata.count: filters only.
func (s *Source) CountQueryStringFor(st TableState) string {
	return s.countOptionsFor(st).String()
}

func (s *Source) CountQueryString() string {
	return s.CountQueryStringFor(s.State())
}

// Fetch loads the current page and updates Total and PageCount.
func (s *Source) Fetch(ctx context.Context) (*Page, error) {
	page, err := s.FetchState(ctx, s.State())
	if err != nil {
		return nil, err
	}
	if page.Total >= 0 {
		s.mu.Lock()
		s.total = page.Total
		s.pageCount = page.PageCount
		s.mu.Unlock()
	}
	return page, nil
}

// FetchState runs the count and data queries for st concurrently. Total and
// PageCount are -1 when the service returns no count.
func (s *Source) FetchState(ctx context.Context, st TableState) (*Page, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	s.begin()
	defer s.end()

	st = st.normalized()
	dataOpts := s.QueryOptionsFor(st)
	countOpts := s.countOptionsFor(st)
	filterKey, err := json.Marshal(QueryOptions{Filter: countOpts.Filter})
	if err != nil {
		return nil, err
	}

	page := &Page{
		PageIndex:   st.Pagination.PageIndex,
		PageSize:    st.Pagination.PageSize,
		QueryString: dataOpts.String(),
		Total:       -1,
		PageCount:   -1,
	}
	bound := s.BoundQueryKey()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.query(gctx, bound.Append(string(filterKey)), countOpts)
		if err != nil {
			return fmt.Errorf("count query: %w", err)
		}
		if doc.Count == nil {
			s.opts.Logger.Warnf("no @odata.count from %s", s.opts.BaseAddress)
			return nil
		}
		page.Total = int(*doc.Count)
		page.PageCount = PageCount(page.Total, st.Pagination.PageSize)
		return nil
	})
	g.Go(func() error {
		doc, err := s.query(gctx, bound.Append(page.QueryString), dataOpts)
		if err != nil {
			return fmt.Errorf("data query: %w", err)
		}
		page.Rows = doc.Value
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if page.Rows == nil {
		page.Rows = []map[string]interface{}{}
	}
	return page, nil
}

func (s *Source) query(ctx context.Context, key QueryKey, opts QueryOptions) (*ServiceDocument, error) {
	url := RequestURL(s.opts.BaseAddress, opts)
	data, err := s.opts.Client.Fetch(ctx, key, s.opts.StaleTime, func(ctx context.Context) ([]byte, error) {
		s.opts.Logger.Debugf("GET %s", url)
		return s.opts.Fetcher.Fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return decodeServiceDocument(data)
}

// Binder carries options shared by many sources.
type Binder struct {
	bound SourceOptions
}

// NewBinder keeps only the shared options (filter, fetch, cache, key,
// columns, stale time, metadata, logger) of bound.
func NewBinder(bound SourceOptions) *Binder {
	return &Binder{bound: SourceOptions{
		FilterFunc: bound.FilterFunc,
		Fetcher:    bound.Fetcher,
		Client:     bound.Client,
		QueryKey:   bound.QueryKey,
		ColumnFunc: bound.ColumnFunc,
		StaleTime:  bound.StaleTime,
		Metadata:   bound.Metadata,
		Logger:     bound.Logger,
	}}
}

// Bind creates a source from the bound options overlaid with opts.
func (b *Binder) Bind(opts SourceOptions) *Source {
	return NewSource(MergeSourceOptions(b.bound, opts))
}
