package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/rules"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

// ExtractorConfig holds the retry knobs of the detail extractor.
type ExtractorConfig struct {
	MaxAttempts  int           // attempts per item, navigation failures only
	RetryBackoff time.Duration // multiplied by the attempt number
}

// DetailExtractor turns one task into one record, each in its own browser context.
type DetailExtractor struct {
	browser   *rod.Browser
	target    Target
	selectors Selectors
	timeouts  Timeouts
	headers   http.Header
	block     bool
	rules     rules.RuleSet
	cfg       ExtractorConfig
	metrics   *utils.Metrics
	logger    zerolog.Logger
}

// NewDetailExtractor creates an extractor on a shared browser.
func NewDetailExtractor(browser *rod.Browser, target Target, selectors Selectors, timeouts Timeouts, headers http.Header, block bool, ruleSet rules.RuleSet, cfg ExtractorConfig, metrics *utils.Metrics, logger zerolog.Logger) *DetailExtractor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &DetailExtractor{
		browser:   browser,
		target:    target,
		selectors: selectors,
		timeouts:  timeouts,
		headers:   headers,
		block:     block,
		rules:     ruleSet,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// ruleError marks failures of the rule set. They are deterministic and not retried.
type ruleError struct{ err error }

func (e *ruleError) Error() string { return e.err.Error() }
func (e *ruleError) Unwrap() error { return e.err }

// Extract never returns an error: every failure becomes a failure record.
func (x *DetailExtractor) Extract(ctx context.Context, session *models.Session, task models.ExtractionTask) models.Record {
	rec := retryExtract(ctx, task, x.cfg, x.metrics, x.logger, func() (models.Record, error) {
		return x.attempt(ctx, session, task)
	})
	if !rec.Failed() {
		x.logger.Info().Msgf("%s: %d items", task, len(rec.LineItems))
	}
	return rec
}

// retryExtract runs attempt until it succeeds, fails with a ruleError, or
// MaxAttempts is used up. Panics inside attempt count as failed attempts.
func retryExtract(ctx context.Context, task models.ExtractionTask, cfg ExtractorConfig, metrics *utils.Metrics, logger zerolog.Logger, attempt func() (models.Record, error)) models.Record {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0

retry:
	for n := 1; ; n++ {
		attempts = n
		rec, err := safeAttempt(attempt)
		if err == nil {
			return rec
		}
		lastErr = err

		var re *ruleError
		if errors.As(err, &re) || n >= maxAttempts {
			break
		}

		metrics.IncRetries()
		logger.Warn().Err(err).Msgf("%s: retrying (%d/%d)", task, n+1, maxAttempts)
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(cfg.RetryBackoff * time.Duration(n)):
		}
	}

	extractErr := &models.ItemExtractionError{ItemID: task.ItemID, Attempts: attempts, Cause: unwrapRule(lastErr)}
	logger.Error().Err(extractErr).Msgf("%s: extraction failed", task)
	metrics.IncError(models.ErrorLabel(extractErr))

	rec := models.NewFailureRecord(task.ItemID, extractErr)
	rec.OriginPage = task.OriginPage
	return rec
}

func safeAttempt(attempt func() (models.Record, error)) (rec models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return attempt()
}

func unwrapRule(err error) error {
	var re *ruleError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}

// attempt runs one isolated extraction. The browser context is closed on every path.
func (x *DetailExtractor) attempt(ctx context.Context, session *models.Session, task models.ExtractionTask) (rec models.Record, err error) {
	if x.timeouts.Item > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeouts.Item)
		defer cancel()
	}

	ip, err := openIsolatedPage(ctx, x.browser, session, x.headers, x.block, x.metrics.IncBlocked, x.logger)
	if err != nil {
		return rec, err
	}
	defer ip.Close()

	if err := ip.openList(x.target.ListURL, task.OriginPage, x.selectors, x.timeouts); err != nil {
		return rec, err
	}

	if err := x.openItem(ip.page, task.ItemID); err != nil {
		return rec, err
	}

	html, err := ip.page.HTML()
	if err != nil {
		return rec, fmt.Errorf("read detail html: %w", err)
	}
	info, err := ip.page.Info()
	if err != nil {
		return rec, fmt.Errorf("read detail url: %w", err)
	}

	fields, items, err := x.rules.Extract(html)
	if err != nil {
		return rec, &ruleError{err: err}
	}

	return models.Record{
		ItemID:     task.ItemID,
		SourceURL:  info.URL,
		Fields:     fields,
		LineItems:  items,
		OriginPage: task.OriginPage,
	}, nil
}

// openItem clicks the identifier cell whose text equals id and waits for the form.
func (x *DetailExtractor) openItem(page *rod.Page, id string) error {
	p := page.Timeout(x.timeouts.Detail)
	defer p.CancelTimeout()

	cell, err := p.ElementR(x.selectors.ID, `^\s*`+regexp.QuoteMeta(id)+`\s*$`)
	if err != nil {
		return wrapWait("item "+id, err)
	}
	if err := cell.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click item %s: %w", id, err)
	}

	if _, err := p.Element(x.selectors.DetailMarker); err != nil {
		return wrapWait("detail form", err)
	}
	return nil
}
