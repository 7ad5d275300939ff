package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    float64
		wantErr bool
	}{
		{"dollar with thousands", "$1,234.50", 1234.50, false},
		{"plain", "99.00", 99, false},
		{"trailing symbol", "1,000.00 €", 1000, false},
		{"nbsp", "$ 400.00", 400, false},
		{"currency code", "USD 12.5", 12.5, false},
		{"negative", "-12.00", -12, false},
		{"integer", "3", 3, false},
		{"empty", "", 0, true},
		{"letters only", "N/A", 0, true},
		{"two dots", "1.2.3", 0, true},
		{"unit suffix", "3.00 Units", 3, false},
		{"exponent is not a number", "1.5e3", 0, true},
		{"words between digits", "2 of 3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.text)
			if tt.wantErr {
				var fpe *models.FieldParseError
				assert.True(t, errors.As(err, &fpe), "want FieldParseError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSplitCurrency(t *testing.T) {
	tests := []struct {
		text         string
		wantCurrency string
		wantAmount   string
	}{
		{"USD 99.00", "USD", "99.00"},
		{"  EUR   1,200.00 ", "EUR", "1,200.00"},
		{"$ 99.00", "$", "99.00"},
		{"99.00", "", "99.00"},
		{"1 2 3", "", "1 2 3"},
		{"1,000.00 €", "€", "1,000.00"},
		{"99.00 EUR", "EUR", "99.00"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			currency, amount := SplitCurrency(tt.text)
			assert.Equal(t, tt.wantCurrency, currency)
			assert.Equal(t, tt.wantAmount, amount)
		})
	}
}

func listSelectors() ListSelectors {
	return ListSelectors{Row: "tr.o_data_row", ID: `td[name="name"]`, Pager: ".o_pager_value"}
}

func TestParseListPage(t *testing.T) {
	html := loadFixture(t, "list_page.html")

	page, err := ParseListPage(html, listSelectors())
	require.NoError(t, err)
	assert.Equal(t, []string{"PO001", "PO003", "PO002"}, page.ItemIDs)
	assert.Equal(t, "1-3", page.DisplayedRange)

	again, err := ParseListPage(html, listSelectors())
	require.NoError(t, err)
	assert.Equal(t, page.ItemIDs, again.ItemIDs, "same html yields same ids")
}

func TestParseListPage_Empty(t *testing.T) {
	page, err := ParseListPage("<html><body><table></table></body></html>", listSelectors())
	require.NoError(t, err)
	assert.Empty(t, page.ItemIDs)
	assert.Equal(t, "", page.DisplayedRange)

	_, err = ParseListPage("<html></html>", ListSelectors{})
	assert.Error(t, err)
}

func TestSelectorRules_Extract(t *testing.T) {
	rules := NewSelectorRules(DefaultDetailSelectors())

	fields, items, err := rules.Extract(loadFixture(t, "purchase_order.html"))
	require.NoError(t, err)

	assert.Equal(t, "Azure Interior", fields[models.FieldVendor])
	assert.Equal(t, "01/15/2025 10:30:00", fields[models.FieldOrderDate])
	assert.Equal(t, "01/20/2025", fields[models.FieldExpectedArrival])
	assert.Equal(t, "Purchase Order", fields[models.FieldStatus])
	assert.Equal(t, "USD", fields[models.FieldCurrency])
	assert.Equal(t, "3,234.50", fields[models.FieldTotalAmount])

	require.Len(t, items, 2, "section row without known cells is skipped")
	assert.Equal(t, models.LineItem{
		Product:   "[FURN_8888] Office Lamp",
		Quantity:  10,
		UnitPrice: 40,
		Taxes:     "15%",
		Subtotal:  400,
	}, items[0])
	assert.Equal(t, 1417.25, items[1].UnitPrice)
	assert.Equal(t, 2834.50, items[1].Subtotal)
	assert.Equal(t, "", items[1].Taxes)
}

func TestSelectorRules_OptionalFieldsAbsent(t *testing.T) {
	rules := NewSelectorRules(DefaultDetailSelectors())

	fields, items, err := rules.Extract(`<html><body><span name="amount_total">pending</span></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, hasVendor := fields[models.FieldVendor]
	assert.False(t, hasVendor)
	_, hasTotal := fields[models.FieldTotalAmount]
	assert.False(t, hasTotal, "unparseable total is treated as absent")
	_, hasCurrency := fields[models.FieldCurrency]
	assert.False(t, hasCurrency)
}

func TestSelectorRules_TotalWithoutCurrency(t *testing.T) {
	rules := NewSelectorRules(DefaultDetailSelectors())

	fields, _, err := rules.Extract(`<html><body><span name="amount_total">$99.00</span></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "$99.00", fields[models.FieldTotalAmount])
	_, hasCurrency := fields[models.FieldCurrency]
	assert.False(t, hasCurrency)
}

func TestSelectorRules_TotalWithTrailingCurrency(t *testing.T) {
	rules := NewSelectorRules(DefaultDetailSelectors())

	fields, _, err := rules.Extract(`<html><body><span name="amount_total">1,000.00 €</span></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "1,000.00", fields[models.FieldTotalAmount])
	assert.Equal(t, "€", fields[models.FieldCurrency])
}

func TestSelectorRules_LineItemErrors(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		field string
	}{
		{"bad quantity", `<td name="product_qty">lots</td>`, "quantity"},
		{"negative unit price", `<td name="price_unit">-1.00</td>`, "unit_price"},
		{"bad subtotal", `<td name="price_subtotal">n/a</td>`, "subtotal"},
		{"quantity with words inside", `<td name="product_qty">2 of 3</td>`, "quantity"},
	}

	rules := NewSelectorRules(DefaultDetailSelectors())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<html><body><table><tbody class="ui-sortable"><tr class="o_data_row">` +
				tt.row + `</tr></tbody></table></body></html>`
			_, _, err := rules.Extract(html)
			require.Error(t, err)

			var fpe *models.FieldParseError
			require.True(t, errors.As(err, &fpe))
			assert.Equal(t, tt.field, fpe.Field)
		})
	}
}
