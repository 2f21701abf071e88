package odatatable

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CellKind int

const (
	CKNone CellKind = iota
	CKText
	CKInt
	CKFloat
	CKDecimal
	CKBoolean
	CKDate
	CKList
)

// CellValue is a single decoded JSON value typed by its column's Edm type.
type CellValue struct {
	Kind  CellKind
	Valid bool
	Text  string
	Int   int64
	Float float64
	Bool  bool
	List  []*CellValue
}

func ToCellKind(edmType string) CellKind {
	inner, isColl := collectionOf(edmType)
	if isColl {
		return CKList
	}
	switch inner {
	case "Edm.Int16", "Edm.Int32", "Edm.Int64", "Edm.Byte", "Edm.SByte":
		return CKInt
	case "Edm.Single", "Edm.Double":
		return CKFloat
	case "Edm.Decimal":
		return CKDecimal
	case "Edm.Boolean":
		return CKBoolean
	case "Edm.Date", "Edm.DateTimeOffset":
		return CKDate
	case "":
		return CKNone
	}
	return CKText
}

func (k CellKind) String() string {
	switch k {
	case CKText:
		return "CKText"
	case CKInt:
		return "CKInt"
	case CKFloat:
		return "CKFloat"
	case CKDecimal:
		return "CKDecimal"
	case CKBoolean:
		return "CKBoolean"
	case CKDate:
		return "CKDate"
	case CKList:
		return "CKList"
	}
	return "CKNone"
}

// IsNumeric reports whether values of this kind can be totalled.
func (k CellKind) IsNumeric() bool {
	return k == CKInt || k == CKFloat || k == CKDecimal
}

// NewCellValue converts v, as produced by encoding/json, into a cell of the
// kind implied by edmType. A nil v gives an invalid (empty) cell.
func NewCellValue(v interface{}, edmType string) *CellValue {
	kind := ToCellKind(edmType)
	if kind == CKList {
		inner, _ := collectionOf(edmType)
		cv := &CellValue{Kind: CKList, Valid: v != nil}
		if items, ok := v.([]interface{}); ok {
			for _, item := range items {
				cv.List = append(cv.List, NewCellValue(item, inner))
			}
		}
		return cv
	}
	if items, ok := v.([]interface{}); ok {
		// a path through a collection fans out
		cv := &CellValue{Kind: CKList, Valid: true}
		for _, item := range items {
			cv.List = append(cv.List, NewCellValue(item, edmType))
		}
		return cv
	}

	cv := &CellValue{Kind: kind}
	if v == nil {
		return cv
	}
	cv.Valid = true
	switch kind {
	case CKInt:
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				cv.Int = n
				return cv
			}
		}
		if n, ok := toFloat(v); ok {
			cv.Int = int64(n)
			return cv
		}
	case CKFloat, CKDecimal:
		if n, ok := toFloat(v); ok {
			cv.Float = n
			return cv
		}
	case CKBoolean:
		if b, ok := v.(bool); ok {
			cv.Bool = b
			return cv
		}
	case CKDate:
		if s, ok := v.(string); ok {
			cv.Text = s
			return cv
		}
	}
	cv.Kind = CKText
	cv.Text = textOf(v)
	return cv
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		// IEEE754Compatible services send Int64 and Decimal as strings
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

func (cv *CellValue) String() string {
	if cv == nil || !cv.Valid {
		return ""
	}
	switch cv.Kind {
	case CKInt:
		return strconv.FormatInt(cv.Int, 10)
	case CKFloat:
		return strconv.FormatFloat(cv.Float, 'f', -1, 64)
	case CKDecimal:
		return fmt.Sprintf("%.2f", cv.Float)
	case CKBoolean:
		return strconv.FormatBool(cv.Bool)
	case CKDate:
		if t, err := time.Parse(time.RFC3339, cv.Text); err == nil && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02")
		}
		return cv.Text
	case CKList:
		parts := make([]string, 0, len(cv.List))
		for _, item := range cv.List {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ", ")
	}
	return cv.Text
}

// FormatCell renders a raw row value as display text for its Edm type.
func FormatCell(v interface{}, edmType string) string {
	return NewCellValue(v, edmType).String()
}

// Reset zeroes a numeric cell so it can start accumulating again.
func (cv *CellValue) Reset() {
	cv.Int = 0
	cv.Float = 0
	cv.Valid = cv.Kind.IsNumeric()
}

// DidAccumulate adds other into cv when both are numeric cells of one kind.
func (cv *CellValue) DidAccumulate(other *CellValue) bool {
	if other == nil || cv.Kind != other.Kind || !cv.Kind.IsNumeric() {
		return false
	}
	if !other.Valid {
		return true
	}
	switch cv.Kind {
	case CKInt:
		cv.Int += other.Int
	case CKFloat, CKDecimal:
		cv.Float += other.Float
	}
	cv.Valid = true
	return true
}
