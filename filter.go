package odatatable

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var ErrUnknownOperator = errors.New("unknown filter operator")

// ColumnFilter is the filter state of a single column.
type ColumnFilter struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// UnmarshalJSON decodes an object value carrying "op" as a FilterSpec, so
// structured filters survive a JSON round trip. Other values decode as
// plain JSON.
func (f *ColumnFilter) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string          `json:"id"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.ID = raw.ID
	f.Value = nil
	if len(raw.Value) == 0 {
		return nil
	}

	var tagged struct {
		Op *string `json:"op"`
	}
	if json.Unmarshal(raw.Value, &tagged) == nil && tagged.Op != nil {
		var spec FilterSpec
		if err := json.Unmarshal(raw.Value, &spec); err != nil {
			return fmt.Errorf("filter %s: %w", raw.ID, err)
		}
		f.Value = spec
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw.Value, &v); err != nil {
		return fmt.Errorf("filter %s: %w", raw.ID, err)
	}
	f.Value = v
	return nil
}

// FilterFunc maps a column filter to an OData expression. ok=false drops it.
type FilterFunc func(f ColumnFilter) (expr string, ok bool)

// ------------------------------------------------------------
// Structured filters
//   op: 'lt' | 'le' | 'gt' | 'ge' | 'eq' | 'ne' | 'prefix' | 'suffix'
//       | 'contains' | 'exists' | 'range' | 'in'
//   options: 'not' negates the term
// ------------------------------------------------------------

type FilterSpec struct {
	FldName string   `json:"fldName"`
	Op      string   `json:"op"`
	Values  []string `json:"values,omitempty"`
	Options []string `json:"options,omitempty"`
	// Type is the Edm type used to format literals; Edm.String when empty.
	Type string `json:"type,omitempty"`
}

func (fs FilterSpec) String() string {
	allValues := strings.Join(fs.Values, ", ")
	return fmt.Sprintf("%s %q %s", fs.FldName, fs.Op, allValues)
}

// QuoteLiteral renders an OData string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatLiteral renders value as a literal of the given Edm type.
func FormatLiteral(value string, edmType string) string {
	inner, _ := collectionOf(edmType)
	switch inner {
	case "Edm.Int16", "Edm.Int32", "Edm.Int64", "Edm.Byte", "Edm.SByte",
		"Edm.Single", "Edm.Double", "Edm.Decimal", "Edm.Boolean",
		"Edm.Date", "Edm.DateTimeOffset", "Edm.TimeOfDay", "Edm.Guid":
		return value
	case "Edm.Duration":
		return "duration" + QuoteLiteral(value)
	}
	return QuoteLiteral(value)
}

// Term renders the filter as an OData expression.
func (fs FilterSpec) Term() (string, error) {
	if fs.FldName == "" {
		return "", fmt.Errorf("filter %q has no field name", fs.Op)
	}
	format, err := OpCodeOData(fs.Op, fs.HasOption("not"))
	if err != nil {
		return "", err
	}
	name := ReplaceDot(fs.FldName)

	// is there a value expected for this term?
	expectsValue := fs.Op != "exists"
	hasValue := len(fs.Values) > 0
	if hasValue != expectsValue {
		return "", fmt.Errorf("Value expected for opcode %q: %t  Value provided %t", fs.Op, expectsValue, hasValue)
	}

	switch fs.Op {
	case "exists":
		return fmt.Sprintf(format, name), nil
	case "range":
		if len(fs.Values) != 2 {
			return "", fmt.Errorf("range filter on %q needs 2 values, got %d", fs.FldName, len(fs.Values))
		}
		return fmt.Sprintf(format, name, FormatLiteral(fs.Values[0], fs.Type), name, FormatLiteral(fs.Values[1], fs.Type)), nil
	case "in":
		allVals := make([]string, 0, len(fs.Values))
		for _, value := range fs.Values {
			allVals = append(allVals, FormatLiteral(value, fs.Type))
		}
		return fmt.Sprintf(format, name, strings.Join(allVals, ",")), nil
	case "prefix", "suffix", "contains":
		return fmt.Sprintf(format, name, QuoteLiteral(fs.Values[0])), nil
	}
	return fmt.Sprintf(format, name, FormatLiteral(fs.Values[0], fs.Type)), nil
}

// OpCodeOData returns the expression format for op.
func OpCodeOData(op string, shouldNegate bool) (string, error) {
	format := ""
	switch op {
	case "lt":
		format = "%s lt %s"
		if shouldNegate {
			format = "%s ge %s"
		}
	case "gt":
		format = "%s gt %s"
		if shouldNegate {
			format = "%s le %s"
		}
	case "le":
		format = "%s le %s"
		if shouldNegate {
			format = "%s gt %s"
		}
	case "ge":
		format = "%s ge %s"
		if shouldNegate {
			format = "%s lt %s"
		}
	case "eq":
		format = "%s eq %s"
		if shouldNegate {
			format = "%s ne %s"
		}
	case "ne":
		format = "%s ne %s"
		if shouldNegate {
			format = "%s eq %s"
		}
	case "prefix":
		format = "startswith(%s,%s)"
		if shouldNegate {
			format = "not startswith(%s,%s)"
		}
	case "suffix":
		format = "endswith(%s,%s)"
		if shouldNegate {
			format = "not endswith(%s,%s)"
		}
	case "contains":
		format = "contains(%s,%s)"
		if shouldNegate {
			format = "not contains(%s,%s)"
		}
	case "exists":
		format = "%s ne null"
		if shouldNegate {
			format = "%s eq null"
		}
	case "range":
		format = "(%s ge %s and %s le %s)"
		if shouldNegate {
			format = "(%s lt %s or %s gt %s)"
		}
	case "in":
		format = "%s in (%s)"
		if shouldNegate {
			format = "not (%s in (%s))"
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	return format, nil
}

func (fs FilterSpec) HasOption(s string) bool {
	for _, opt := range fs.Options {
		if strings.EqualFold(s, opt) {
			return true
		}
	}
	return false
}

// SimpleFilterFunc expects the value pair [display, expression] and returns
// the expression.
func SimpleFilterFunc(f ColumnFilter) (string, bool) {
	switch v := f.Value.(type) {
	case []string:
		if len(v) > 1 && v[1] != "" {
			return v[1], true
		}
	case []interface{}:
		if len(v) > 1 {
			if expr, ok := v[1].(string); ok && expr != "" {
				return expr, true
			}
		}
	}
	return "", false
}

// NewSpecFilterFunc handles FilterSpec values and falls back to
// SimpleFilterFunc for anything else. Invalid specs are logged and dropped.
func NewSpecFilterFunc(logger *zap.SugaredLogger) FilterFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return func(f ColumnFilter) (string, bool) {
		var spec FilterSpec
		switch v := f.Value.(type) {
		case FilterSpec:
			spec = v
		case *FilterSpec:
			if v == nil {
				return "", false
			}
			spec = *v
		default:
			expr, ok := SimpleFilterFunc(f)
			if !ok {
				logger.Debugf("filter on %s dropped: unsupported value %T", f.ID, f.Value)
			}
			return expr, ok
		}
		if spec.FldName == "" {
			spec.FldName = f.ID
		}
		term, err := spec.Term()
		if err != nil {
			logger.Warnf("%s", err.Error())
			return "", false
		}
		return term, true
	}
}

// BuildFilter runs every column filter through fn.
func BuildFilter(fn FilterFunc, filters []ColumnFilter) QueryOptions {
	if fn == nil {
		fn = SimpleFilterFunc
	}
	exprs := []string{}
	for _, f := range filters {
		if expr, ok := fn(f); ok {
			exprs = append(exprs, expr)
		}
	}
	return QueryOptions{Filter: exprs}
}

// ContainsFilter builds contains(<path>, '<value>').
func ContainsFilter(id string, value string) string {
	return fmt.Sprintf("contains(%s, %s)", ReplaceDot(id), QuoteLiteral(value))
}

// EqualsFilter builds "<path> eq <value>" with value used verbatim.
func EqualsFilter(id string, value string) string {
	return fmt.Sprintf("%s eq %s", ReplaceDot(id), value)
}

func StringEqualsFilter(id string, value string) string {
	return fmt.Sprintf("%s eq %s", ReplaceDot(id), QuoteLiteral(value))
}
