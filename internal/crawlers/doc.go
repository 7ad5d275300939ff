// Package crawlers drives a headless browser (go-rod) against the ERP web UI.
//
// # Overview
//
// One login produces a models.Session. Every later unit of work opens its own
// incognito browser context, applies a copy of the session cookies, installs the
// request filter and closes the context when it is done. No page, cookie jar or
// cache is shared between units of work.
//
// # Components
//
// ## SessionProvider
//
// Launches a throwaway browser, fills the login form and exports the cookies.
// An optional colly Preflight GETs the login page first.
//
//	sp := NewSessionProvider(browserCfg, target, creds, selectors, timeouts, preflight, logger)
//	session, err := sp.Acquire(ctx)
//
// ## PageEnumerator
//
// Opens the list, pages forward with Paginate and reads the row identifiers.
// Any failure is a *models.NavigationError.
//
// ## DetailExtractor
//
// Re-paginates to the task's page, clicks the identifier and applies a
// rules.RuleSet to the rendered form. Extract never returns an error; failures
// become failure records. Navigation failures are retried with linear backoff.
//
// ## WorkerPool
//
// Fixed number of goroutines fed by a buffered channel. Results are returned in
// completion order; an optional rate limiter paces task starts.
//
//	pool := NewWorkerPool(8, 0, logger)
//	records := pool.Run(ctx, tasks, extractor.Extract)
//
// ## ResourceMonitor
//
// Clamps the configured worker count to what available memory (gopsutil) and
// CPU count allow.
//
// # Pagination
//
// The list is client-rendered, so a click on "next" returns before the rows are
// replaced. Paginate records the pager text, clicks, then waits until the pager
// text differs and rows are present. Fixed sleeps are never used.
package crawlers
