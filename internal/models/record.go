package models

import (
	"encoding/json"
	"sort"
)

// Field keys of a purchase order header
const (
	FieldVendor          = "vendor"
	FieldOrderDate       = "order_date"
	FieldExpectedArrival = "expected_arrival"
	FieldStatus          = "status"
	FieldCurrency        = "currency"
	FieldTotalAmount     = "total_amount"
)

// HeaderFields lists the header keys in output order.
var HeaderFields = []string{
	FieldVendor,
	FieldOrderDate,
	FieldExpectedArrival,
	FieldStatus,
	FieldCurrency,
	FieldTotalAmount,
}

// LineItem is one product row of a purchase order.
type LineItem struct {
	Product   string  `json:"product,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Taxes     string  `json:"taxes,omitempty"`
	Subtotal  float64 `json:"subtotal"`
}

// Record is the outcome of one extraction task: a success record or a failure record.
type Record struct {
	ItemID    string            // purchase order number
	SourceURL string            // detail page URL (success only)
	Fields    map[string]string // header fields found on the page; absent fields are omitted
	LineItems []LineItem        // DOM order
	Error     string            // non-empty for failure records
	ErrorType string            // ErrorLabel of the failure, not serialized

	// OriginPage is the list page the item was discovered on. Not serialized.
	OriginPage int
}

// NewFailureRecord builds a failure record for itemID.
func NewFailureRecord(itemID string, err error) Record {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Record{ItemID: itemID, Error: msg, ErrorType: ErrorLabel(err)}
}

// Failed reports whether the record is a failure record.
func (r Record) Failed() bool {
	return r.Error != ""
}

// Field returns a header field and whether it was present.
func (r Record) Field(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// MarshalJSON flattens the header fields next to po_number so the output
// keeps one flat object per order.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+3)
	out["po_number"] = r.ItemID
	if r.Failed() {
		out["error"] = r.Error
		return json.Marshal(out)
	}
	if r.SourceURL != "" {
		out["url"] = r.SourceURL
	}
	for k, v := range r.Fields {
		out[k] = v
	}
	items := r.LineItems
	if items == nil {
		items = []LineItem{}
	}
	out["line_items"] = items
	return json.Marshal(out)
}

// SortByItemID sorts records ascending by ItemID. Stable, so duplicate ids keep completion order.
func SortByItemID(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ItemID < records[j].ItemID
	})
}
