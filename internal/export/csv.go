// Package export renders the ledger for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"finagent/internal/core"
)

// CSVHeader is the first row of every export.
var CSVHeader = []string{"id", "timestamp", "amount", "category", "note"}

// WriteCSV writes expenses in the order given. Amounts keep the precision
// they were recorded with and timestamps are RFC 3339 in UTC.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Amount.String(),
			e.Category,
			e.Note,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write expense %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
