package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

var csvHeader = []string{
	"po_number", "url", "vendor", "order_date", "expected_arrival", "status", "currency", "total_amount",
	"line_no", "product", "quantity", "unit_price", "taxes", "subtotal", "error",
}

// CSVSink writes one row per line item. Orders without line items and failure
// records get a single row with empty line columns.
type CSVSink struct {
	path string
}

// NewCSVSink creates a CSV sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Save implements Sink.
func (s *CSVSink) Save(records []models.Record, _ int) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		head := []string{r.ItemID, r.SourceURL}
		for _, key := range models.HeaderFields {
			head = append(head, r.Fields[key])
		}

		if len(r.LineItems) == 0 {
			row := append(append([]string{}, head...), "", "", "", "", "", "", r.Error)
			if err := writer.Write(row); err != nil {
				return "", fmt.Errorf("write csv record: %w", err)
			}
			continue
		}

		for i, li := range r.LineItems {
			row := append(append([]string{}, head...),
				strconv.Itoa(i+1),
				li.Product,
				formatFloat(li.Quantity),
				formatFloat(li.UnitPrice),
				li.Taxes,
				formatFloat(li.Subtotal),
				r.Error,
			)
			if err := writer.Write(row); err != nil {
				return "", fmt.Errorf("write csv record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush csv records: %w", err)
	}

	if err := utils.WriteFileAtomic(s.path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return s.path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
