package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"radiochild/odatatable"
)

// tableFlags describe one source and the table state to query it with.
type tableFlags struct {
	baseAddress  string
	entityType   string
	metadataURL  string
	specFile     string
	sorts        []string
	hide         []string
	show         []string
	filters      []string
	search       string
	page         int
	pageSize     int
	selectAll    bool
	noNavigation bool
	depth        int

	spec *odatatable.TableSpec
}

func (tf *tableFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&tf.baseAddress, "url", "", "OData resource address, e.g. https://host/odata/Products")
	flags.StringVar(&tf.entityType, "entity", "", "entity type or entity set name of the rows")
	flags.StringVar(&tf.metadataURL, "metadata", "", "metadata document URL (discovered when empty)")
	flags.StringVar(&tf.specFile, "spec", "", "JSON table spec file")
	flags.StringArrayVar(&tf.sorts, "sort", nil, "sort column, prefix with - for descending (repeatable)")
	flags.StringArrayVar(&tf.hide, "hide", nil, "hide a column (repeatable)")
	flags.StringArrayVar(&tf.show, "show", nil, "show only these columns (repeatable)")
	flags.StringArrayVar(&tf.filters, "filter", nil, "column filter field:op[:v1|v2], op may be negated with ! (repeatable)")
	flags.StringVar(&tf.search, "search", "", "free text $search")
	flags.IntVar(&tf.page, "page", 0, "zero based page index")
	flags.IntVar(&tf.pageSize, "page-size", 0, "rows per page (config table.page_size when 0)")
	flags.BoolVar(&tf.selectAll, "select-all", false, "never emit $select")
	flags.BoolVar(&tf.noNavigation, "no-nav", false, "do not follow navigation properties")
	flags.IntVar(&tf.depth, "depth", 0, "navigation depth (config query.navigation_depth when 0)")
}

// applySpec takes the source from spec for anything not set by flags.
func (tf *tableFlags) applySpec(spec *odatatable.TableSpec) {
	tf.spec = spec
	if tf.baseAddress == "" {
		tf.baseAddress = spec.BaseAddress
	}
	if tf.entityType == "" {
		tf.entityType = spec.EntityType
	}
	if tf.metadataURL == "" {
		tf.metadataURL = spec.MetadataURL
	}
}

// apply layers the table spec file and then the flags onto st.
func (tf *tableFlags) apply(st odatatable.TableState, allColumns []string) (odatatable.TableState, error) {
	if tf.spec != nil {
		st = tf.spec.TableState(st, allColumns)
	}
	if len(tf.show) > 0 {
		shown := map[string]bool{}
		for _, id := range tf.show {
			shown[id] = true
		}
		st.ColumnVisibility = odatatable.VisibilityState{}
		for _, id := range allColumns {
			if !shown[id] {
				st.ColumnVisibility[id] = false
			}
		}
	}
	for _, id := range tf.hide {
		if st.ColumnVisibility == nil {
			st.ColumnVisibility = odatatable.VisibilityState{}
		}
		st.ColumnVisibility[id] = false
	}
	if len(tf.sorts) > 0 {
		st.Sorting = nil
		for _, s := range tf.sorts {
			st.Sorting = append(st.Sorting, parseSort(s))
		}
	}
	for _, s := range tf.filters {
		f, err := parseFilter(s)
		if err != nil {
			return st, err
		}
		st.ColumnFilters = append(st.ColumnFilters, f)
	}
	if tf.search != "" {
		st.GlobalFilter = tf.search
	}
	if tf.pageSize > 0 {
		st.Pagination.PageSize = tf.pageSize
	}
	if tf.page > 0 {
		st.Pagination.PageIndex = tf.page
	}
	return st, nil
}

// parseSort reads "Name" or "-Name".
func parseSort(s string) odatatable.ColumnSort {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return odatatable.ColumnSort{ID: s[1:], Desc: true}
	}
	return odatatable.ColumnSort{ID: strings.TrimPrefix(s, "+")}
}

// parseFilter reads "field:op:value", values separated by "|".
// "Rating:!range:1|3" negates, "Description:exists" takes no value.
func parseFilter(s string) (odatatable.ColumnFilter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return odatatable.ColumnFilter{}, fmt.Errorf("filter %q: want field:op[:values]", s)
	}
	spec := odatatable.FilterSpec{FldName: parts[0], Op: parts[1]}
	if strings.HasPrefix(spec.Op, "!") {
		spec.Op = spec.Op[1:]
		spec.Options = []string{"not"}
	}
	if _, err := odatatable.OpCodeOData(spec.Op, false); err != nil {
		return odatatable.ColumnFilter{}, fmt.Errorf("filter %q: %w", s, err)
	}
	if len(parts) == 3 {
		spec.Values = strings.Split(parts[2], "|")
	}
	return odatatable.ColumnFilter{ID: spec.FldName, Value: spec}, nil
}
