package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

// SessionProvider logs in once and exports the cookie jar.
type SessionProvider struct {
	browserCfg  BrowserConfig
	target      Target
	credentials Credentials
	selectors   Selectors
	timeouts    Timeouts
	preflight   *Preflight // nil disables the static check
	logger      zerolog.Logger
}

// NewSessionProvider creates a provider. preflight may be nil.
func NewSessionProvider(browserCfg BrowserConfig, target Target, credentials Credentials, selectors Selectors, timeouts Timeouts, preflight *Preflight, logger zerolog.Logger) *SessionProvider {
	return &SessionProvider{
		browserCfg:  browserCfg,
		target:      target,
		credentials: credentials,
		selectors:   selectors,
		timeouts:    timeouts,
		preflight:   preflight,
		logger:      logger,
	}
}

// Acquire performs the login in a dedicated browser and returns the session.
// Every failure is an *models.AuthenticationError.
func (sp *SessionProvider) Acquire(ctx context.Context) (*models.Session, error) {
	if sp.credentials.Username == "" || sp.credentials.Password == "" {
		return nil, &models.AuthenticationError{Stage: "credentials", Cause: errors.New("username and password are required")}
	}

	if sp.preflight != nil {
		if err := sp.preflight.Check(ctx, sp.target.LoginURL); err != nil {
			return nil, &models.AuthenticationError{Stage: "preflight", Cause: err}
		}
	}

	sp.logger.Info().Str("url", sp.target.LoginURL).Msg("🔐 performing login")

	browser, err := LaunchBrowser(ctx, sp.browserCfg, sp.logger)
	if err != nil {
		return nil, &models.AuthenticationError{Stage: "browser", Cause: err}
	}
	defer CloseBrowser(browser, sp.logger)

	cookies, err := sp.login(browser)
	if err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, &models.AuthenticationError{Stage: "cookies", Cause: errors.New("no cookies after login")}
	}

	session := models.NewSession(sp.target.LoginURL, cookies)
	sp.logger.Info().Int("cookies", session.Len()).Msg("✅ login successful")
	return session, nil
}

func (sp *SessionProvider) login(browser *rod.Browser) (cookies []*proto.NetworkCookie, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &models.AuthenticationError{Stage: "panic", Cause: fmt.Errorf("%v", r)}
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &models.AuthenticationError{Stage: "page", Cause: err}
	}
	p := page.Timeout(sp.timeouts.Login)
	defer p.CancelTimeout()

	if err := p.Navigate(sp.target.LoginURL); err != nil {
		return nil, &models.AuthenticationError{Stage: "navigate", Cause: wrapWait("login page", err)}
	}
	if err := p.WaitLoad(); err != nil {
		return nil, &models.AuthenticationError{Stage: "navigate", Cause: wrapWait("login page load", err)}
	}

	fields := []struct {
		selector string
		value    string
	}{
		{sp.selectors.LoginField, sp.credentials.Username},
		{sp.selectors.PasswordField, sp.credentials.Password},
	}
	for _, f := range fields {
		el, err := p.Element(f.selector)
		if err != nil {
			return nil, &models.AuthenticationError{Stage: "form", Cause: wrapWait(f.selector, err)}
		}
		if err := el.Input(f.value); err != nil {
			return nil, &models.AuthenticationError{Stage: "form", Cause: err}
		}
	}

	submit, err := p.Element(sp.selectors.Submit)
	if err != nil {
		return nil, &models.AuthenticationError{Stage: "submit", Cause: wrapWait(sp.selectors.Submit, err)}
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, &models.AuthenticationError{Stage: "submit", Cause: err}
	}

	if _, err := p.Element(sp.selectors.Landing); err != nil {
		return nil, &models.AuthenticationError{Stage: "landing", Cause: wrapWait(sp.selectors.Landing, err)}
	}

	cookies, err = browser.GetCookies()
	if err != nil {
		return nil, &models.AuthenticationError{Stage: "cookies", Cause: err}
	}
	return cookies, nil
}
