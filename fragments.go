package odatatable

import (
	"fmt"
	"sort"
	"strings"

	reptext "github.com/radiochild/utils/text"
)

// ReplaceDot turns a dotted column id into an OData property path.
func ReplaceDot(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

// OrderByTerm renders one sort as "<path> asc|desc".
func OrderByTerm(s ColumnSort) string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return fmt.Sprintf("%s %s", ReplaceDot(s.ID), dir)
}

// BuildPaging maps pagination to $top, and $skip past the first page.
func BuildPaging(p PaginationState) QueryOptions {
	opts := QueryOptions{Top: intPtr(p.PageSize)}
	if p.PageIndex > 0 {
		opts.Skip = intPtr(p.PageIndex * p.PageSize)
	}
	return opts
}

func BuildSort(sorting []ColumnSort) QueryOptions {
	terms := make([]string, 0, len(sorting))
	for _, s := range sorting {
		terms = append(terms, OrderByTerm(s))
	}
	return QueryOptions{OrderBy: terms}
}

// BuildHidden returns the ids of hidden columns, sorted.
func BuildHidden(visibility VisibilityState) []string {
	hidden := []string{}
	for id, visible := range visibility {
		if !visible {
			hidden = append(hidden, id)
		}
	}
	sort.Strings(hidden)
	return hidden
}

// BuildSelect lists the root's top-level properties that still have a
// visible column.
func BuildSelect(hidden []string, root *EntityType) QueryOptions {
	if root == nil {
		return QueryOptions{}
	}
	hiddenSet := reptext.FromStrings(hidden)
	return QueryOptions{Select: visibleNames(hiddenSet.Contains, root.Properties)}
}

// BuildExpand computes the $expand tree for the entity's navigation
// properties given the hidden column ids.
func BuildExpand(hidden []string, entity *EntityType) QueryOptions {
	if entity == nil {
		return QueryOptions{}
	}
	hiddenSet := reptext.FromStrings(hidden)
	return QueryOptions{Expand: expandNavigations(hiddenSet.Contains, entity.NavigationProperties)}
}

func expandNavigations(isHidden func(string) bool, navs []*EntityType) []ExpandItem {
	items := []ExpandItem{}
	for _, nav := range navs {
		if item := expandEntity(isHidden, nav); item != nil {
			items = append(items, *item)
		}
	}
	return items
}

// expandEntity expands a navigated entity unless every one of its columns
// is hidden and nothing below it needs expanding. A strict subset of
// visible properties is expressed as a nested $select.
func expandEntity(isHidden func(string) bool, entity *EntityType) *ExpandItem {
	nested := expandNavigations(isHidden, entity.NavigationProperties)
	visible := visibleNames(isHidden, entity.Properties)
	allHidden := len(visible) == 0
	if allHidden && len(nested) == 0 {
		return nil
	}
	item := &ExpandItem{Name: entity.Name}
	if len(nested) > 0 {
		item.Expand = nested
	}
	if !allHidden && len(visible) < len(entity.Properties) {
		item.Select = visible
	}
	return item
}

func visibleNames(isHidden func(string) bool, props []*Property) []string {
	names := []string{}
	for _, p := range props {
		if propertyVisible(isHidden, p) {
			names = append(names, p.Name)
		}
	}
	return names
}

// propertyVisible is true when the property's column or any nested member column is shown.
func propertyVisible(isHidden func(string) bool, p *Property) bool {
	if !isHidden(p.PathName) {
		return true
	}
	for _, child := range p.Properties {
		if propertyVisible(isHidden, child) {
			return true
		}
	}
	return false
}

// BuildSearch maps the table's global filter to $search.
func BuildSearch(globalFilter string) QueryOptions {
	return QueryOptions{Search: strings.TrimSpace(globalFilter)}
}
