package odatatable

import (
	"fmt"
)

// PageTotals accumulates the numeric columns of the rows written so far.
type PageTotals struct {
	Totals   DataRow
	TotCount int64
}

func NewPageTotals(columns []Column) *PageTotals {
	return &PageTotals{Totals: NewTotalsRow(columns)}
}

func (pt *PageTotals) DidAccumulate(row DataRow) bool {
	if len(row) != len(pt.Totals) {
		return false
	}
	didSucceed := true
	for idx, total := range pt.Totals {
		if total.Kind.IsNumeric() && !total.DidAccumulate(row[idx]) {
			didSucceed = false
		}
	}
	if didSucceed {
		pt.TotCount++
	}
	return didSucceed
}

func (pt *PageTotals) AllTotals() []string {
	return pt.Totals.AllValues()
}

func (pt *PageTotals) ResetNumerics() {
	pt.Totals.ResetNumerics()
	pt.TotCount = 0
}

func (pt *PageTotals) String() string {
	return fmt.Sprintf("Totals [%d]: %s", pt.TotCount, pt.Totals)
}
