package storage

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		{
			ItemID:     "PO001",
			SourceURL:  "http://localhost:8069/odoo/purchase/1",
			Fields:     map[string]string{models.FieldVendor: "Azure Interior", models.FieldCurrency: "USD", models.FieldTotalAmount: "99.00"},
			LineItems:  []models.LineItem{{Product: "Lamp", Quantity: 2, UnitPrice: 40, Subtotal: 80}, {Product: "Desk", Quantity: 1, UnitPrice: 19, Subtotal: 19}},
			OriginPage: 1,
		},
		models.NewFailureRecord("PO002", os.ErrDeadlineExceeded),
	}
}

func TestJSONSink_Overwrites(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out", "odoo_purchase_orders")
	sink := NewJSONSink(base, false, false, "run-1")

	records := sampleRecords()
	loc, err := sink.Save(records[:1], 1)
	require.NoError(t, err)
	assert.Equal(t, base+".json", loc)

	_, err = sink.Save(records, 2)
	require.NoError(t, err)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "PO001", out[0]["po_number"])
	assert.Equal(t, "Azure Interior", out[0]["vendor"])
	assert.NotEmpty(t, out[1]["error"])
}

func TestJSONSink_EmptyIsArray(t *testing.T) {
	base := filepath.Join(t.TempDir(), "empty")
	loc, err := NewJSONSink(base, false, false, "").Save(nil, 0)
	require.NoError(t, err)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestJSONSink_CheckpointMetaAndCompression(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cp")
	sink := NewJSONSink(base, true, true, "run-42")

	loc, err := sink.Save(sampleRecords(), 1)
	require.NoError(t, err)
	assert.Equal(t, base+".json.br", loc)

	raw, err := os.ReadFile(loc)
	require.NoError(t, err)
	data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)

	var cp struct {
		RunID          string            `json:"run_id"`
		PagesCommitted int               `json:"pages_committed"`
		Total          int               `json:"total"`
		Records        []json.RawMessage `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &cp))
	assert.Equal(t, "run-42", cp.RunID)
	assert.Equal(t, 1, cp.PagesCommitted)
	assert.Equal(t, 2, cp.Total)
	assert.Len(t, cp.Records, 2)
}

func TestJSONSink_CheckpointCountsEmptyPages(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cp")
	sink := NewJSONSink(base, false, true, "run-7")

	records := sampleRecords()
	for page := 1; page <= 3; page++ {
		// pages 2 and 3 add nothing
		_, err := sink.Save(records, page)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	var cp struct {
		PagesCommitted int `json:"pages_committed"`
		Total          int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &cp))
	assert.Equal(t, 3, cp.PagesCommitted)
	assert.Equal(t, 2, cp.Total)
}

type failingSink struct{ calls int }

func (f *failingSink) Save([]models.Record, int) (string, error) {
	f.calls++
	return "", errors.New("disk full")
}

func TestMultiSink_SavesEverySinkAndJoinsErrors(t *testing.T) {
	dir := t.TempDir()
	failing := &failingSink{}
	js := NewJSONSink(filepath.Join(dir, "po"), false, false, "")
	m := MultiSink{failing, js}

	_, err := m.Save(sampleRecords(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, failing.calls)

	_, statErr := os.Stat(js.Path())
	assert.NoError(t, statErr, "sinks after the failing one still write")
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink := NewCSVSink(path)

	_, err := sink.Save(sampleRecords(), 1)
	require.NoError(t, err)
	_, err = sink.Save(sampleRecords(), 2)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// header + 2 line rows for PO001 + 1 failure row, not doubled by the second save
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "PO001", rows[1][0])
	assert.Equal(t, "Lamp", rows[1][9])
	assert.Equal(t, "2", rows[2][8])
	assert.Equal(t, "PO002", rows[3][0])
	assert.NotEmpty(t, rows[3][len(csvHeader)-1])
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	sink, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer sink.Close()

	_, err = sink.Save(sampleRecords(), 1)
	require.NoError(t, err)
	_, err = sink.Save(sampleRecords()[:1], 2)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var orders, lines int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM purchase_orders`).Scan(&orders))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM line_items`).Scan(&lines))
	assert.Equal(t, 1, orders)
	assert.Equal(t, 2, lines)

	var vendor sql.NullString
	var status sql.NullString
	require.NoError(t, db.QueryRow(`SELECT vendor, status FROM purchase_orders WHERE po_number = ?`, "PO001").Scan(&vendor, &status))
	assert.Equal(t, "Azure Interior", vendor.String)
	assert.False(t, status.Valid, "absent fields are NULL")
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	sink, err := New(Options{Dir: dir, Basename: "po"}, "run")
	require.NoError(t, err)
	_, ok := sink.(*JSONSink)
	assert.True(t, ok, "single format returns the sink itself")

	multi, err := New(Options{Dir: dir, Basename: "po", Formats: []string{"json", "CSV", "json", "sqlite"}}, "run")
	require.NoError(t, err)
	m, ok := multi.(MultiSink)
	require.True(t, ok)
	assert.Len(t, m, 3)
	defer m.Close()

	loc, err := m.Save(sampleRecords(), 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "po.json"), loc)
	for _, name := range []string{"po.json", "po.csv", "po.db"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	_, err = New(Options{Dir: dir, Basename: "po", Formats: []string{"xml"}}, "run")
	assert.Error(t, err)
	_, err = New(Options{Dir: dir}, "run")
	assert.Error(t, err)
}
