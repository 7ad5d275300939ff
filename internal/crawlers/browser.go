package crawlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
)

// ErrMaxRetriesReached is returned when the browser cannot be started.
var ErrMaxRetriesReached = errors.New("maximum browser launch attempts reached")

// BrowserConfig configures the Chromium process.
type BrowserConfig struct {
	Headless         bool   `mapstructure:"headless"`
	Bin              string `mapstructure:"bin"`                // empty: rod downloads or finds a browser
	IgnoreCertErrors bool   `mapstructure:"ignore_cert_errors"` // self-signed intranet instances
	BlockResources   bool   `mapstructure:"block_resources"`    // install the resource filter
	LaunchRetries    int    `mapstructure:"launch_retries"`
}

// LaunchBrowser starts and connects a browser, retrying failed launches.
func LaunchBrowser(ctx context.Context, cfg BrowserConfig, logger zerolog.Logger) (*rod.Browser, error) {
	retries := cfg.LaunchRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Msgf("browser launch failed, restarting (%d/%d)", attempt, retries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}

		browser, err := launchOnce(cfg, logger)
		if err == nil {
			return browser.Context(ctx), nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesReached, lastErr)
}

func launchOnce(cfg BrowserConfig, logger zerolog.Logger) (*rod.Browser, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
		logger.Warn().Msg("browser ignores TLS certificate errors")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Debug().Str("control_url", controlURL).Msg("browser started")
	return browser, nil
}

// CloseBrowser closes b and logs failures.
func CloseBrowser(b *rod.Browser, logger zerolog.Logger) {
	if b == nil {
		return
	}
	if err := b.Close(); err != nil {
		logger.Debug().Err(err).Msg("close browser")
	}
}
