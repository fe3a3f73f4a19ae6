// Package paymentexport renders ledger entries as CSV or XLSX for the
// accounts team.
package paymentexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"labdesk/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query value to a Format. An empty value means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", domain.NewValidationError("format", "unsupported export format %q; use csv or xlsx", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// BOM is the UTF-8 byte order mark Excel on Windows needs to detect UTF-8 CSV.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns is the header row shared by both formats.
var columns = []string{
	"Test Request ID",
	"Payment ID",
	"Recorded At",
	"Amount",
	"Method",
	"Transaction ID",
	"Status",
	"Remote Confirmed",
	"Recorded By",
	"Receipt",
	"Notes",
}

// CSVWriter wraps csv.Writer for exporting ledger entries.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteEntries converts entries to rows and writes them.
func (w *CSVWriter) WriteEntries(entries []domain.LedgerEntry) error {
	for i := range entries {
		if err := w.csv.Write(entryToRow(&entries[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// WriteCSV writes a complete CSV export, BOM included.
func WriteCSV(out io.Writer, entries []domain.LedgerEntry) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewCSVWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteEntries(entries); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func entryToRow(e *domain.LedgerEntry) []string {
	ev := e.Event
	recordedBy := ""
	if ev.RecordedBy != uuid.Nil {
		recordedBy = ev.RecordedBy.String()
	}
	return []string{
		e.BillID,
		ev.ID,
		ev.Timestamp.UTC().Format(time.RFC3339),
		ev.Amount.StringFixed(2),
		string(ev.Method),
		sanitizeCell(ev.TransactionID),
		string(ev.Status),
		formatBool(ev.RemoteConfirmed),
		recordedBy,
		ev.ReceiptRef,
		sanitizeCell(ev.Notes),
	}
}

// sanitizeCell neutralizes spreadsheet formulas in free-text fields.
func sanitizeCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// BuildFilename returns the attachment filename for an export taken at now.
// Format: payments_{YYYY-MM-DD}.{ext}
func BuildFilename(f Format, now time.Time) string {
	return fmt.Sprintf("payments_%s.%s", now.Format("2006-01-02"), f)
}
