package table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/record"
)

var ErrNoData = errors.New("no data to export")

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ExportFunc writes a custom CSV for rows.
type ExportFunc func(w io.Writer, rows []record.Record) error

const (
	exportPageSize = 100
	// MaxExportRows bounds a scope=all export.
	MaxExportRows = 10000
)

// Filename is "<title>_<YYYY-MM-DD>.<ext>" with the title lower-cased.
func Filename(title string, f Format, now time.Time) string {
	base := strings.Join(strings.Fields(strings.ToLower(title)), "_")
	return fmt.Sprintf("%s_%s.%s", base, now.Format("2006-01-02"), f)
}

// QuoteCSV quotes one field, doubling embedded quotes.
func QuoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV writes a header row and one line per record, every field quoted and
// lines joined by "\n".
func WriteCSV(w io.Writer, columns []Column, rows []record.Record) error {
	lines := make([]string, 0, len(rows)+1)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = QuoteCSV(c.Header)
	}
	lines = append(lines, strings.Join(header, ","))

	for _, r := range rows {
		fields := make([]string, len(columns))
		for i, c := range columns {
			fields[i] = QuoteCSV(c.ExportText(r))
		}
		lines = append(lines, strings.Join(fields, ","))
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// WriteXLSX writes one sheet with a bold header row. Numeric values stay numeric.
func WriteXLSX(w io.Writer, sheet string, columns []Column, rows []record.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Export"
	}
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.Header
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("apply header style: %w", err)
		}
	}

	for i, r := range rows {
		values := make([]any, len(columns))
		for j, c := range columns {
			values[j] = xlsxValue(c, r)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	return f.Write(w)
}

func xlsxValue(c Column, r record.Record) any {
	if c.Export == nil && !c.Accessor.IsZero() {
		switch v := c.Accessor.Value(r).(type) {
		case float64, int, int64, bool:
			return v
		}
	}
	return c.ExportText(r)
}

// Export writes the currently loaded page. An empty table shows a warning and
// returns ErrNoData. A configured ExportFunc replaces the default CSV writer.
func (e *Engine) Export(ctx context.Context, w io.Writer, f Format) error {
	rows := e.State().Data
	return e.export(ctx, w, f, rows)
}

// ExportAll pages through every record matching the current filters and sort,
// up to MaxExportRows, and writes them.
func (e *Engine) ExportAll(ctx context.Context, w io.Writer, f Format) error {
	rows, err := e.collectAll(ctx)
	if err != nil {
		return err
	}
	return e.export(ctx, w, f, rows)
}

func (e *Engine) export(ctx context.Context, w io.Writer, f Format, rows []record.Record) error {
	if len(rows) == 0 {
		_ = notifications.Warn(ctx, e.notifier, "No data to export")
		return ErrNoData
	}

	var err error
	switch {
	case f == XLSX:
		err = WriteXLSX(w, e.cfg.Title, e.cfg.Columns, rows)
	case e.cfg.Export != nil:
		err = e.cfg.Export(w, rows)
	default:
		err = WriteCSV(w, e.cfg.Columns, rows)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", f, err)
	}

	msg := fmt.Sprintf("Exported %d records to %s", len(rows), strings.ToUpper(string(f)))
	if f == CSV && e.cfg.ExportMessage != nil {
		msg = e.cfg.ExportMessage(len(rows))
	}
	_ = notifications.Success(ctx, e.notifier, msg)
	return nil
}

func (e *Engine) collectAll(ctx context.Context) ([]record.Record, error) {
	q := e.State().Query.WithLimit(exportPageSize)

	var all []record.Record
	for {
		raw, err := e.cfg.Fetch(ctx, q.Params())
		if err != nil {
			return nil, fmt.Errorf("export page %d: %w", q.Page, err)
		}
		page, err := Normalize(raw, e.cfg.EntityKey)
		if err != nil {
			return nil, fmt.Errorf("export page %d: %w", q.Page, err)
		}

		all = append(all, page.Items...)
		if len(all) >= MaxExportRows {
			return all[:MaxExportRows], nil
		}
		if q.Page >= page.TotalPages || len(page.Items) == 0 {
			return all, nil
		}
		q = q.WithPage(q.Page + 1)
	}
}
