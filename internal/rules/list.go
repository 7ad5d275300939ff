package rules

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListSelectors locate the rows of the list view.
type ListSelectors struct {
	Row   string `mapstructure:"row"`   // one row per item
	ID    string `mapstructure:"id"`    // identifier cell inside a row
	Pager string `mapstructure:"pager"` // displayed range, e.g. "1-80 / 243"
}

// ListPage is what the list view shows for one page.
type ListPage struct {
	ItemIDs        []string
	DisplayedRange string
}

// ParseListPage reads item identifiers in row order. Rows without an identifier cell
// or with an empty one are skipped.
func ParseListPage(htmlContent string, sel ListSelectors) (*ListPage, error) {
	if sel.Row == "" || sel.ID == "" {
		return nil, fmt.Errorf("row and id selectors are required")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse list html: %w", err)
	}

	page := &ListPage{ItemIDs: make([]string, 0)}
	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		if id, ok := firstText(row, sel.ID); ok && id != "" {
			page.ItemIDs = append(page.ItemIDs, id)
		}
	})

	if text, ok := firstText(doc.Selection, sel.Pager); ok {
		page.DisplayedRange = text
	}

	return page, nil
}
