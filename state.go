package odatatable

import (
	"fmt"
	"strings"
)

// DefaultPageSize is used whenever a page size below 1 is given.
const DefaultPageSize = 10

type ColumnSort struct {
	ID   string `json:"id"`
	Desc bool   `json:"desc"`
}

type PaginationState struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

// VisibilityState maps column ids to visibility; missing ids are visible.
type VisibilityState map[string]bool

// TableState is the part of a table's interactive state that drives queries.
type TableState struct {
	Sorting          []ColumnSort    `json:"sorting"`
	Pagination       PaginationState `json:"pagination"`
	ColumnVisibility VisibilityState `json:"columnVisibility"`
	ColumnFilters    []ColumnFilter  `json:"columnFilters"`
	ColumnOrder      []string        `json:"columnOrder"`
	GlobalFilter     string          `json:"globalFilter,omitempty"`
}

func DefaultTableState() TableState {
	return TableState{
		Sorting:          []ColumnSort{},
		Pagination:       PaginationState{PageIndex: 0, PageSize: DefaultPageSize},
		ColumnVisibility: VisibilityState{},
		ColumnFilters:    []ColumnFilter{},
		ColumnOrder:      []string{},
	}
}

// MergeTableState overlays the non-zero fields of partial onto base.
func MergeTableState(base TableState, partial *TableState) TableState {
	merged := base.Clone()
	if partial == nil {
		return merged.normalized()
	}
	if partial.Sorting != nil {
		merged.Sorting = append([]ColumnSort{}, partial.Sorting...)
	}
	if partial.Pagination != (PaginationState{}) {
		merged.Pagination = partial.Pagination
	}
	if partial.ColumnVisibility != nil {
		merged.ColumnVisibility = copyVisibility(partial.ColumnVisibility)
	}
	if partial.ColumnFilters != nil {
		merged.ColumnFilters = append([]ColumnFilter{}, partial.ColumnFilters...)
	}
	if partial.ColumnOrder != nil {
		merged.ColumnOrder = append([]string{}, partial.ColumnOrder...)
	}
	if partial.GlobalFilter != "" {
		merged.GlobalFilter = partial.GlobalFilter
	}
	return merged.normalized()
}

// Clone deep-copies the slices and map so callers cannot alias source state.
func (s TableState) Clone() TableState {
	out := s
	out.Sorting = append([]ColumnSort{}, s.Sorting...)
	out.ColumnVisibility = copyVisibility(s.ColumnVisibility)
	out.ColumnFilters = append([]ColumnFilter{}, s.ColumnFilters...)
	out.ColumnOrder = append([]string{}, s.ColumnOrder...)
	return out
}

func (s TableState) normalized() TableState {
	if s.Pagination.PageSize < 1 {
		s.Pagination.PageSize = DefaultPageSize
	}
	if s.Pagination.PageIndex < 0 {
		s.Pagination.PageIndex = 0
	}
	return s
}

func (s TableState) String() string {
	var sorts []string
	for _, sort := range s.Sorting {
		sorts = append(sorts, OrderByTerm(sort))
	}
	return fmt.Sprintf("page %d size %d sort [%s] hidden %v filters %d", s.Pagination.PageIndex, s.Pagination.PageSize,
		strings.Join(sorts, ", "), BuildHidden(s.ColumnVisibility), len(s.ColumnFilters))
}

func copyVisibility(v VisibilityState) VisibilityState {
	out := make(VisibilityState, len(v))
	for k, visible := range v {
		out[k] = visible
	}
	return out
}

// PageCount is ceil(total/pageSize).
func PageCount(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
