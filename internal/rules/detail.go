package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

var errNegative = errors.New("negative value")

// RuleSet turns a rendered detail page into header fields and line items.
// A returned error fails the record; missing optional fields are simply absent.
type RuleSet interface {
	Extract(htmlContent string) (map[string]string, []models.LineItem, error)
}

// DetailSelectors locate the fields of a purchase order form.
type DetailSelectors struct {
	Vendor          string `mapstructure:"vendor"`
	OrderDate       string `mapstructure:"order_date"`
	ExpectedArrival string `mapstructure:"expected_arrival"`
	Status          string `mapstructure:"status"`
	Total           string `mapstructure:"total"`

	LineRow   string `mapstructure:"line_row"`
	Product   string `mapstructure:"product"`
	Quantity  string `mapstructure:"quantity"`
	UnitPrice string `mapstructure:"unit_price"`
	Taxes     string `mapstructure:"taxes"`
	Subtotal  string `mapstructure:"subtotal"`
}

// DefaultDetailSelectors match the Odoo 17 purchase order form.
func DefaultDetailSelectors() DetailSelectors {
	return DetailSelectors{
		Vendor:          ".o_field_res_partner_many2one .align-bottom",
		OrderDate:       `div[name="date_approve"] .o_field_datetime`,
		ExpectedArrival: `button[data-field="date_planned"]`,
		Status:          ".o_statusbar_status .o_arrow_button_current",
		Total:           `span[name="amount_total"]`,
		LineRow:         "tbody.ui-sortable tr.o_data_row",
		Product:         `td[name="product_id"] a`,
		Quantity:        `td[name="product_qty"]`,
		UnitPrice:       `td[name="price_unit"]`,
		Taxes:           `td[name="tax_ids"] .o_tag_badge_text`,
		Subtotal:        `td[name="price_subtotal"]`,
	}
}

// SelectorRules is the CSS-selector RuleSet.
type SelectorRules struct {
	sel DetailSelectors
}

// NewSelectorRules creates a RuleSet from selectors.
func NewSelectorRules(sel DetailSelectors) *SelectorRules {
	return &SelectorRules{sel: sel}
}

// Extract implements RuleSet.
func (r *SelectorRules) Extract(htmlContent string) (map[string]string, []models.LineItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, nil, fmt.Errorf("parse detail html: %w", err)
	}
	root := doc.Selection

	fields := make(map[string]string)
	for key, selector := range map[string]string{
		models.FieldVendor:          r.sel.Vendor,
		models.FieldOrderDate:       r.sel.OrderDate,
		models.FieldExpectedArrival: r.sel.ExpectedArrival,
		models.FieldStatus:          r.sel.Status,
	} {
		if text, ok := firstText(root, selector); ok {
			fields[key] = text
		}
	}

	if text, ok := firstText(root, r.sel.Total); ok {
		currency, amount := SplitCurrency(text)
		// an unparseable total leaves both fields absent
		if _, err := ParseAmount(amount); err == nil {
			fields[models.FieldTotalAmount] = amount
			if currency != "" {
				fields[models.FieldCurrency] = currency
			}
		}
	}

	items, err := r.lineItems(root)
	if err != nil {
		return nil, nil, err
	}
	return fields, items, nil
}

func (r *SelectorRules) lineItems(root *goquery.Selection) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0)
	if r.sel.LineRow == "" {
		return items, nil
	}

	var rowErr error
	root.Find(r.sel.LineRow).EachWithBreak(func(i int, row *goquery.Selection) bool {
		item, found, err := r.lineItem(row)
		if err != nil {
			rowErr = fmt.Errorf("line %d: %w", i+1, err)
			return false
		}
		if found {
			items = append(items, item)
		}
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return items, nil
}

// lineItem reads one row. found is false when the row has none of the known cells.
func (r *SelectorRules) lineItem(row *goquery.Selection) (item models.LineItem, found bool, err error) {
	if text, ok := firstText(row, r.sel.Product); ok {
		item.Product = text
		found = true
	}
	if text, ok := firstText(row, r.sel.Taxes); ok {
		item.Taxes = text
		found = true
	}

	numeric := []struct {
		field       string
		selector    string
		dst         *float64
		nonNegative bool
	}{
		{"quantity", r.sel.Quantity, &item.Quantity, true},
		{"unit_price", r.sel.UnitPrice, &item.UnitPrice, true},
		{"subtotal", r.sel.Subtotal, &item.Subtotal, false},
	}
	for _, n := range numeric {
		text, ok := firstText(row, n.selector)
		if !ok {
			continue
		}
		found = true
		v, err := parseField(n.field, text)
		if err != nil {
			return item, found, err
		}
		if n.nonNegative && v < 0 {
			return item, found, &models.FieldParseError{Field: n.field, Text: text, Cause: errNegative}
		}
		*n.dst = v
	}
	return item, found, nil
}
