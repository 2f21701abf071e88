package odatatable

import (
	"strconv"
	"strings"

	reptext "github.com/radiochild/utils/text"
)

// DataRow holds one result row's cells in column order.
type DataRow []*CellValue

func NewDataRow(columns []Column, row map[string]interface{}) DataRow {
	dR := make(DataRow, 0, len(columns))
	for _, col := range columns {
		cv := NewCellValue(col.Value(row), col.ODataType)
		if col.Format != nil {
			// custom formatting wins; keep the text, drop the numeric kind
			cv = &CellValue{Kind: CKText, Valid: true, Text: col.Format(col.Value(row))}
		}
		dR = append(dR, cv)
	}
	return dR
}

// NewTotalsRow starts an all-zero row for the numeric columns.
func NewTotalsRow(columns []Column) DataRow {
	dR := make(DataRow, 0, len(columns))
	for _, col := range columns {
		cv := &CellValue{Kind: ToCellKind(col.ODataType)}
		if col.IsCollection || col.Format != nil {
			cv.Kind = CKNone
		}
		cv.Reset()
		dR = append(dR, cv)
	}
	return dR
}

func (dR DataRow) ResetNumerics() {
	for _, cv := range dR {
		if cv.Kind.IsNumeric() {
			cv.Reset()
		}
	}
}

func (dR DataRow) ValueAtIndex(fldIdx int) string {
	if fldIdx < 0 || fldIdx >= len(dR) {
		return ""
	}
	return dR[fldIdx].String()
}

func (dR DataRow) TabString() string {
	return reptext.TabString(dR.AllValues())
}

func (dR DataRow) String() string {
	var sb strings.Builder
	for idx, cv := range dR {
		if idx > 0 {
			sb.WriteString(", ")
		}
		s := cv.String()
		if cv.Kind == CKText || cv.Kind == CKDate {
			sb.WriteString(strconv.Quote(s))
		} else {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (dR DataRow) AllValues() []string {
	allVals := make([]string, 0, len(dR))
	for _, cv := range dR {
		allVals = append(allVals, cv.String())
	}
	return allVals
}
