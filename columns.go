package odatatable

import (
	"fmt"
)

// Column is the table column definition a UI consumes.
type Column struct {
	ID                 string   `json:"id"`
	Header             string   `json:"header"`
	ODataType          string   `json:"odataType,omitempty"`
	Path               []string `json:"path,omitempty"`
	IsCollection       bool     `json:"isCollection,omitempty"`
	EnableColumnFilter bool     `json:"enableColumnFilter,omitempty"`

	// Accessor overrides the path lookup when set.
	Accessor func(row map[string]interface{}) interface{} `json:"-"`
	// Format overrides FormatCell when set.
	Format func(v interface{}) string `json:"-"`
}

// ColumnFunc maps a processed property to a column.
type ColumnFunc func(p *Property) Column

func (col Column) String() string {
	return fmt.Sprintf("%s %q (%s) Collection: %t", col.ID, col.Header, col.ODataType, col.IsCollection)
}

// Value extracts the column's raw value from a result row.
func (col Column) Value(row map[string]interface{}) interface{} {
	if col.Accessor != nil {
		return col.Accessor(row)
	}
	return ValueAt(row, col.Path)
}

// Cell returns the display text of the column for a row.
func (col Column) Cell(row map[string]interface{}) string {
	v := col.Value(row)
	if col.Format != nil {
		return col.Format(v)
	}
	return FormatCell(v, col.ODataType)
}

// DefaultColumnFunc builds a column keyed by the property's dotted path.
func DefaultColumnFunc(p *Property) Column {
	return Column{
		ID:           p.PathName,
		Header:       p.Name,
		ODataType:    p.Type,
		Path:         p.Path,
		IsCollection: p.IsCollection,
	}
}

// ValueAt walks path through decoded JSON. Arrays met on the way are
// fanned out, so a path through a collection yields one value per element.
func ValueAt(v interface{}, path []string) interface{} {
	if len(path) == 0 {
		return v
	}
	switch t := v.(type) {
	case map[string]interface{}:
		return ValueAt(t[path[0]], path[1:])
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, item := range t {
			out = append(out, ValueAt(item, path))
		}
		return out
	}
	return nil
}

// AllProperties lists an entity's properties followed by every nested
// complex member, depth first.
func AllProperties(entity *EntityType) []*Property {
	if entity == nil {
		return nil
	}
	return allProps(entity.Properties)
}

func allProps(props []*Property) []*Property {
	all := append([]*Property{}, props...)
	for _, p := range props {
		all = append(all, allProps(p.Properties)...)
	}
	return all
}

// BuildColumns builds columns for the entity's properties and, when
// followNav is set, for every navigated entity below it.
func BuildColumns(followNav bool, fn ColumnFunc, entity *EntityType) []Column {
	if entity == nil {
		return nil
	}
	if fn == nil {
		fn = DefaultColumnFunc
	}
	var cols []Column
	for _, p := range AllProperties(entity) {
		cols = append(cols, fn(p))
	}
	if followNav {
		for _, nav := range entity.NavigationProperties {
			cols = append(cols, BuildColumns(followNav, fn, nav)...)
		}
	}
	return cols
}

// MergeColumns overlays custom columns onto built ones matched by ID.
// Non-zero custom fields win; custom IDs that were not built are appended.
func MergeColumns(built []Column, custom []Column) []Column {
	merged := make([]Column, len(built))
	copy(merged, built)
	index := make(map[string]int, len(merged))
	for idx, col := range merged {
		index[col.ID] = idx
	}
	for _, c := range custom {
		idx, ok := index[c.ID]
		if !ok {
			index[c.ID] = len(merged)
			merged = append(merged, c)
			continue
		}
		merged[idx] = mergeColumn(merged[idx], c)
	}
	return merged
}

func mergeColumn(base, over Column) Column {
	if over.Header != "" {
		base.Header = over.Header
	}
	if over.ODataType != "" {
		base.ODataType = over.ODataType
	}
	if len(over.Path) > 0 {
		base.Path = over.Path
	}
	if over.IsCollection {
		base.IsCollection = true
	}
	if over.EnableColumnFilter {
		base.EnableColumnFilter = true
	}
	if over.Accessor != nil {
		base.Accessor = over.Accessor
	}
	if over.Format != nil {
		base.Format = over.Format
	}
	return base
}

func ColumnIDs(cols []Column) []string {
	ids := make([]string, 0, len(cols))
	for _, col := range cols {
		ids = append(ids, col.ID)
	}
	return ids
}

// ColumnNamed returns the index and column with the given id, or -1.
func ColumnNamed(cols []Column, id string) (int, *Column) {
	for idx := range cols {
		if cols[idx].ID == id {
			return idx, &cols[idx]
		}
	}
	return -1, nil
}
