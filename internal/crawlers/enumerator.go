package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/rules"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

// PageEnumerator reads the item identifiers shown on one list page.
type PageEnumerator struct {
	browser   *rod.Browser
	target    Target
	selectors Selectors
	timeouts  Timeouts
	headers   http.Header
	block     bool
	metrics   *utils.Metrics
	logger    zerolog.Logger
	debugDir  string
}

// NewPageEnumerator creates an enumerator on a shared browser.
func NewPageEnumerator(browser *rod.Browser, target Target, selectors Selectors, timeouts Timeouts, headers http.Header, block bool, metrics *utils.Metrics, logger zerolog.Logger) *PageEnumerator {
	return &PageEnumerator{
		browser:   browser,
		target:    target,
		selectors: selectors,
		timeouts:  timeouts,
		headers:   headers,
		block:     block,
		metrics:   metrics,
		logger:    logger,
	}
}

// WithDebugDir saves a screenshot into dir whenever the list cannot be opened.
func (e *PageEnumerator) WithDebugDir(dir string) *PageEnumerator {
	e.debugDir = dir
	return e
}

// Enumerate opens the list in a fresh context, pages to pageNumber and returns
// its identifiers in row order. Failures are *models.NavigationError.
func (e *PageEnumerator) Enumerate(ctx context.Context, session *models.Session, pageNumber int) (desc *models.PageDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			desc, err = nil, &models.NavigationError{Page: pageNumber, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if pageNumber < 1 {
		return nil, &models.NavigationError{Page: pageNumber, Cause: fmt.Errorf("page numbers start at 1")}
	}

	ip, err := openIsolatedPage(ctx, e.browser, session, e.headers, e.block, e.metrics.IncBlocked, e.logger)
	if err != nil {
		return nil, &models.NavigationError{Page: pageNumber, Cause: err}
	}
	defer ip.Close()

	e.logger.Debug().Int("page", pageNumber).Str("url", e.target.ListURL).Msg("opening list")
	if err := ip.openList(e.target.ListURL, pageNumber, e.selectors, e.timeouts); err != nil {
		e.captureFailure(ip.page, pageNumber, err)
		return nil, &models.NavigationError{Page: pageNumber, Cause: err}
	}

	html, err := ip.page.HTML()
	if err != nil {
		return nil, &models.NavigationError{Page: pageNumber, Cause: fmt.Errorf("read list html: %w", err)}
	}

	list, err := rules.ParseListPage(html, rules.ListSelectors{
		Row:   e.selectors.Row,
		ID:    e.selectors.ID,
		Pager: e.selectors.Pager,
	})
	if err != nil {
		return nil, &models.NavigationError{Page: pageNumber, Cause: err}
	}

	e.logger.Info().
		Int("page", pageNumber).
		Str("range", list.DisplayedRange).
		Int("items", len(list.ItemIDs)).
		Msgf("📄 range %s, %d purchase orders found", list.DisplayedRange, len(list.ItemIDs))

	return &models.PageDescriptor{
		PageNumber:     pageNumber,
		ItemIDs:        list.ItemIDs,
		DisplayedRange: list.DisplayedRange,
	}, nil
}

// captureFailure logs where the browser ended up and saves a screenshot of it.
func (e *PageEnumerator) captureFailure(page *rod.Page, pageNumber int, cause error) {
	event := e.logger.Error().Err(cause).Int("page", pageNumber)
	if info, err := page.Info(); err == nil {
		event = event.Str("url", info.URL).Str("title", info.Title)
	}
	event.Msg("list rows did not appear")

	if e.debugDir == "" {
		return
	}
	shot, err := page.Screenshot(true, nil)
	if err != nil {
		e.logger.Warn().Err(err).Msg("debug screenshot failed")
		return
	}
	path := debugShotPath(e.debugDir, pageNumber, time.Now())
	if err := utils.WriteFileAtomic(path, shot, 0644); err != nil {
		e.logger.Warn().Err(err).Msg("debug screenshot failed")
		return
	}
	e.logger.Info().Str("path", path).Msg("📸 debug screenshot saved")
}

func debugShotPath(dir string, pageNumber int, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("debug_list_page_%d_%s.png", pageNumber, at.Format("20060102_150405")))
}
