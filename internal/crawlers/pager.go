package crawlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

// pagerChangedJS is true once the pager shows a different range and rows are rendered.
const pagerChangedJS = `(pagerSel, rowSel, previous) => {
	const pager = document.querySelector(pagerSel);
	if (!pager) return false;
	const current = (pager.innerText || pager.textContent || "").trim();
	return current !== previous && document.querySelectorAll(rowSel).length > 0;
}`

// waitForRows waits until at least one list row is rendered.
func waitForRows(page *rod.Page, sel Selectors, timeout time.Duration) error {
	p := page.Timeout(timeout)
	defer p.CancelTimeout()

	if _, err := p.Element(sel.Row); err != nil {
		return wrapWait("list rows", err)
	}
	return nil
}

// Paginate advances the list view by clicks pages. Each step clicks the next
// control and then waits for the pager text to change with rows present, so a
// stale DOM is never read.
func Paginate(page *rod.Page, sel Selectors, clicks int, timeout time.Duration) error {
	for i := 0; i < clicks; i++ {
		previous, err := pagerText(page, sel, timeout)
		if err != nil {
			return err
		}

		next, err := page.Timeout(timeout).Element(sel.Next)
		if err != nil {
			return wrapWait("next control", err)
		}
		next = next.CancelTimeout()
		if disabled, _ := next.Attribute("disabled"); disabled != nil {
			return fmt.Errorf("no page after range %q", previous)
		}
		if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click next: %w", err)
		}

		p := page.Timeout(timeout)
		err = p.Wait(rod.Eval(pagerChangedJS, sel.Pager, sel.Row, previous))
		p.CancelTimeout()
		if err != nil {
			return wrapWait(fmt.Sprintf("pager change after %q", previous), err)
		}
	}
	return nil
}

func pagerText(page *rod.Page, sel Selectors, timeout time.Duration) (string, error) {
	p := page.Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.Element(sel.Pager)
	if err != nil {
		return "", wrapWait("pager", err)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read pager: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// wrapWait tags deadline errors with models.ErrTimeout.
func wrapWait(what string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("waiting for %s: %w", what, models.ErrTimeout)
	}
	return fmt.Errorf("waiting for %s: %w", what, err)
}
