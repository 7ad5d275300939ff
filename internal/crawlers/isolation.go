package crawlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

// isolatedPage is a page inside its own incognito browser context.
// Cookies, storage and cache are not shared with any other isolatedPage.
type isolatedPage struct {
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	logger    zerolog.Logger
}

// openIsolatedPage creates an incognito context carrying a copy of the session
// cookies and a filtered page in it.
func openIsolatedPage(ctx context.Context, browser *rod.Browser, session *models.Session, headers http.Header, block bool, onBlocked func(), logger zerolog.Logger) (*isolatedPage, error) {
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	ip := &isolatedPage{incognito: incognito, logger: logger}

	if err := incognito.SetCookies(session.CookieParams()); err != nil {
		ip.Close()
		return nil, fmt.Errorf("apply session cookies: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		ip.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	ip.page = page.Context(ctx)

	router, err := InstallRequestFilter(ip.page, headers, block, onBlocked)
	if err != nil {
		ip.Close()
		return nil, fmt.Errorf("install request filter: %w", err)
	}
	ip.router = router

	return ip, nil
}

// Close stops the router and disposes the browser context with all its pages.
func (ip *isolatedPage) Close() {
	if ip.router != nil {
		if err := ip.router.Stop(); err != nil {
			ip.logger.Debug().Err(err).Msg("stop request router")
		}
	}
	if ip.incognito != nil {
		if err := ip.incognito.Close(); err != nil {
			ip.logger.Debug().Err(err).Msg("dispose browser context")
		}
	}
}

// openList navigates to listURL and pages forward to pageNumber.
func (ip *isolatedPage) openList(listURL string, pageNumber int, sel Selectors, timeouts Timeouts) error {
	p := ip.page.Timeout(timeouts.List)
	err := p.Navigate(listURL)
	p.CancelTimeout()
	if err != nil {
		return wrapWait("list page", err)
	}

	if err := waitForRows(ip.page, sel, timeouts.List); err != nil {
		return err
	}

	return Paginate(ip.page, sel, pageNumber-1, timeouts.Pager)
}
