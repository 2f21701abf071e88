package odatatable

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	reptext "github.com/radiochild/utils/text"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

type OutputType int

const (
	OTText OutputType = iota
	OTJSON
	OTMessagePack
)

func ParseOutputType(s string) (OutputType, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return OTText, nil
	case "json":
		return OTJSON, nil
	case "msgpack":
		return OTMessagePack, nil
	}
	return OTText, fmt.Errorf("unknown output format %q", s)
}

func (ot OutputType) String() string {
	switch ot {
	case OTJSON:
		return "json"
	case OTMessagePack:
		return "msgpack"
	}
	return "text"
}

// ContentType is the MIME type of the rendered output.
func (ot OutputType) ContentType() string {
	switch ot {
	case OTJSON:
		return "application/x-ndjson"
	case OTMessagePack:
		return "application/msgpack"
	}
	return "text/plain; charset=utf-8"
}

// PageWriter renders fetched pages as header, detail and total rows.
type PageWriter struct {
	logger     *zap.SugaredLogger
	outwriter  io.Writer
	outputType OutputType
	columns    []Column
	totals     *PageTotals
	wantDashes bool
	rowsOut    int
}

type PageRow struct {
	RowType  string   `json:"typ" msgpack:"typ"`
	RowIndex int      `json:"idx" msgpack:"idx"`
	Values   []string `json:"val" msgpack:"val"`
}

func NewPageWriter(logger *zap.SugaredLogger, wx io.Writer, outputType OutputType, columns []Column) *PageWriter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	pW := &PageWriter{
		logger:     logger,
		outwriter:  wx,
		outputType: outputType,
		columns:    columns,
		totals:     NewPageTotals(columns),
	}
	if outputType == OTText {
		// minwidth, tabwidth, padding, padChar
		pW.outwriter = tabwriter.NewWriter(wx, 8, 8, 2, ' ', 0)
		pW.wantDashes = true
	}
	return pW
}

func (pW *PageWriter) EmitRow(rowType string, rowIndex int, values []string) error {
	rOut := PageRow{
		RowType:  rowType,
		RowIndex: rowIndex,
		Values:   values,
	}
	switch pW.outputType {
	case OTText:
		if _, err := fmt.Fprintf(pW.outwriter, "%s\t\n", reptext.TabString(rOut.Values)); err != nil {
			return err
		}
	case OTJSON:
		data, err := json.Marshal(rOut)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(pW.outwriter, "%s\n", string(data)); err != nil {
			return err
		}
	case OTMessagePack:
		data, err := msgpack.Marshal(rOut)
		if err != nil {
			return err
		}
		if _, err := pW.outwriter.Write(data); err != nil {
			return err
		}
	}
	pW.rowsOut++
	return nil
}

func (pW *PageWriter) ColumnDisplayNames() []string {
	names := make([]string, 0, len(pW.columns))
	for _, col := range pW.columns {
		name := col.Header
		if name == "" {
			name = col.ID
		}
		names = append(names, name)
	}
	return names
}

func (pW *PageWriter) WriteHeader() error {
	titles := pW.ColumnDisplayNames()
	if err := pW.EmitRow("HDR", 0, titles); err != nil {
		return err
	}
	if pW.wantDashes {
		return pW.EmitRow("HDR", 0, reptext.AllToChar(titles, '-'))
	}
	return nil
}

// WriteRows emits one detail row per result row and accumulates totals.
func (pW *PageWriter) WriteRows(startIndex int, rows []map[string]interface{}) error {
	for idx, row := range rows {
		dR := NewDataRow(pW.columns, row)
		if err := pW.EmitRow("DET", startIndex+idx, dR.AllValues()); err != nil {
			return err
		}
		if !pW.totals.DidAccumulate(dR) {
			pW.logger.Debugf("row %d not added to totals", startIndex+idx)
		}
	}
	return nil
}

func (pW *PageWriter) WriteTotals() error {
	sums := pW.totals.AllTotals()
	if pW.wantDashes {
		if err := pW.EmitRow("TOT", 0, reptext.AllToChar(sums, '-')); err != nil {
			return err
		}
	}
	if err := pW.EmitRow("TOT", int(pW.totals.TotCount), sums); err != nil {
		return err
	}
	if pW.wantDashes {
		return pW.EmitRow("TOT", 0, reptext.AllToChar(sums, '='))
	}
	return nil
}

// WritePage writes a complete page: header, details, totals.
func (pW *PageWriter) WritePage(page *Page) error {
	if err := pW.WriteHeader(); err != nil {
		return err
	}
	if err := pW.WriteRows(page.PageIndex*page.PageSize, page.Rows); err != nil {
		return err
	}
	if err := pW.WriteTotals(); err != nil {
		return err
	}
	if pW.outputType == OTText && page.Total >= 0 {
		summary := fmt.Sprintf("page %d of %d", page.PageIndex+1, page.PageCount)
		if _, err := fmt.Fprintf(pW.outwriter, "%s\n", reptext.AppendText(summary, fmt.Sprintf("(%d rows)", page.Total), "")); err != nil {
			return err
		}
	}
	return pW.Flush()
}

func (pW *PageWriter) Flush() error {
	if tW, ok := pW.outwriter.(*tabwriter.Writer); ok {
		return tW.Flush()
	}
	return nil
}

func (pW *PageWriter) Totals() *PageTotals {
	return pW.totals
}

func (pW *PageWriter) RowsWritten() int {
	return pW.rowsOut
}
