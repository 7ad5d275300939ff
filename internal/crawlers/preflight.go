package crawlers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Preflight fetches the login page over plain HTTP before a browser is started,
// so an unreachable host or a wrong URL fails in milliseconds.
type Preflight struct {
	loginSelector string
	timeout       time.Duration
	transport     http.RoundTripper
}

// NewPreflight creates a check expecting loginSelector on the login page.
func NewPreflight(loginSelector string, timeout time.Duration, insecure bool) *Preflight {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Preflight{
		loginSelector: loginSelector,
		timeout:       timeout,
		transport:     transport,
	}
}

// WithTransport replaces the HTTP transport.
func (p *Preflight) WithTransport(rt http.RoundTripper) *Preflight {
	p.transport = rt
	return p
}

// Check GETs loginURL and verifies the status and the login field.
func (p *Preflight) Check(ctx context.Context, loginURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := colly.NewCollector()
	c.WithTransport(p.transport)
	if p.timeout > 0 {
		c.SetRequestTimeout(p.timeout)
	}

	var (
		found   bool
		status  int
		lastErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnHTML(p.loginSelector, func(_ *colly.HTMLElement) {
		found = true
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		lastErr = err
	})

	if err := c.Visit(loginURL); err != nil && lastErr == nil {
		lastErr = err
	}
	c.Wait()

	if lastErr != nil {
		if status != 0 {
			return fmt.Errorf("login page returned HTTP %d: %w", status, lastErr)
		}
		return fmt.Errorf("login page unreachable: %w", lastErr)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("login page returned HTTP %d", status)
	}
	if !found {
		return errors.New("login form not found at " + loginURL)
	}
	return nil
}
