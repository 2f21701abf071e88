package odatatable

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	reptext "github.com/radiochild/utils/text"
	"go.uber.org/zap"
)

// TableSpec is a saved table view read from a JSON file.
type TableSpec struct {
	BaseAddress string       `json:"baseAddress"`
	EntityType  string       `json:"entityType"`
	MetadataURL string       `json:"metadataUrl,omitempty"`
	Columns     []string     `json:"columns,omitempty"`
	Sorting     []ColumnSort `json:"sorting,omitempty"`
	Filters     []FilterSpec `json:"filters,omitempty"`
	Search      string       `json:"search,omitempty"`
	PageIndex   int          `json:"pageIndex,omitempty"`
	PageSize    int          `json:"pageSize,omitempty"`
}

func ReadTableSpec(filename string) (*TableSpec, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var spec TableSpec
	if err := json.Unmarshal(file, &spec); err != nil {
		return nil, fmt.Errorf("table spec %s: %w", filename, err)
	}
	return &spec, nil
}

// ColumnFilters turns Filters into column filters keyed by field.
func (spec *TableSpec) ColumnFilters() []ColumnFilter {
	filters := make([]ColumnFilter, 0, len(spec.Filters))
	for _, fs := range spec.Filters {
		filters = append(filters, ColumnFilter{ID: fs.FldName, Value: fs})
	}
	return filters
}

// TableState applies the file to base. When Columns is set, every other
// column id in allColumns is hidden.
func (spec *TableSpec) TableState(base TableState, allColumns []string) TableState {
	st := base.Clone()
	if len(spec.Columns) > 0 {
		shown := reptext.FromStrings(spec.Columns)
		st.ColumnVisibility = VisibilityState{}
		for _, id := range allColumns {
			if !shown.Contains(id) {
				st.ColumnVisibility[id] = false
			}
		}
	}
	if spec.Sorting != nil {
		st.Sorting = append([]ColumnSort{}, spec.Sorting...)
	}
	if len(spec.Filters) > 0 {
		st.ColumnFilters = spec.ColumnFilters()
	}
	if spec.Search != "" {
		st.GlobalFilter = spec.Search
	}
	if spec.PageSize > 0 {
		st.Pagination.PageSize = spec.PageSize
	}
	if spec.PageIndex > 0 {
		st.Pagination.PageIndex = spec.PageIndex
	}
	return st.normalized()
}

func ShowTableSpec(spec *TableSpec, logger *zap.SugaredLogger) {
	logger.Infof("Source %q %s", spec.EntityType, spec.BaseAddress)
	if spec.MetadataURL != "" {
		logger.Infof("Metadata: %s", spec.MetadataURL)
	}
	logger.Infof("Columns: %v", spec.Columns)
	var sorts []string
	for _, s := range spec.Sorting {
		sorts = append(sorts, OrderByTerm(s))
	}
	logger.Infof("Sorting: %s", strings.Join(sorts, ", "))
	logger.Infof("Filters: %v", spec.Filters)
}
