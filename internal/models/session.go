package models

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Session is the authenticated credential shared by every browser context of a run.
// It is immutable once acquired; contexts receive copies through CookieParams.
type Session struct {
	Cookies    []*proto.NetworkCookie `json:"cookies"`     // cookie jar snapshot after login
	Origin     string                 `json:"origin"`      // login URL the session was acquired against
	AcquiredAt time.Time              `json:"acquired_at"` // login time
}

// NewSession copies cookies into a new Session.
func NewSession(origin string, cookies []*proto.NetworkCookie) *Session {
	copied := make([]*proto.NetworkCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cc := *c
		copied = append(copied, &cc)
	}
	return &Session{
		Cookies:    copied,
		Origin:     origin,
		AcquiredAt: time.Now(),
	}
}

// CookieParams returns a fresh copy of the cookie jar, ready for Browser.SetCookies.
// Every call allocates new params so no two contexts share mutable state.
func (s *Session) CookieParams() []*proto.NetworkCookieParam {
	if s == nil {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if !c.Session && c.Expires > 0 {
			p.Expires = c.Expires
		}
		params = append(params, p)
	}
	return params
}

// Len returns the number of cookies in the jar.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Cookies)
}

// SaveToFile writes the session as JSON. The file holds live credentials, hence 0600.
func (s *Session) SaveToFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadSessionFromFile reads a session written by SaveToFile.
func LoadSessionFromFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return &s, nil
}
