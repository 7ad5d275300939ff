// Package storage persists the accumulated result set. Every Save replaces the
// previous output entirely, so the latest file always holds the full set.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

// Sink persists the full result set after page has been extracted and
// returns where it went.
type Sink interface {
	Save(records []models.Record, page int) (string, error)
}

// Options configures the sinks built by New.
type Options struct {
	Dir            string   `mapstructure:"dir"`
	Basename       string   `mapstructure:"basename"`
	Formats        []string `mapstructure:"formats"`         // json, csv, sqlite
	Compress       bool     `mapstructure:"compress"`        // brotli-compress the JSON file
	CheckpointMeta bool     `mapstructure:"checkpoint_meta"` // wrap JSON in a models.Checkpoint envelope
}

// New builds one sink per configured format. runID is recorded in checkpoint metadata.
func New(opts Options, runID string) (Sink, error) {
	if opts.Basename == "" {
		return nil, errors.New("output basename is required")
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"json"}
	}

	base := filepath.Join(opts.Dir, opts.Basename)
	sinks := make(MultiSink, 0, len(formats))
	seen := make(map[string]bool)
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if seen[f] {
			continue
		}
		seen[f] = true

		switch f {
		case "json":
			sinks = append(sinks, NewJSONSink(base, opts.Compress, opts.CheckpointMeta, runID))
		case "csv":
			sinks = append(sinks, NewCSVSink(base+".csv"))
		case "sqlite":
			s, err := NewSQLiteSink(base + ".db")
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, s)
		default:
			return nil, fmt.Errorf("unsupported output format %q", f)
		}
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// MultiSink saves to every sink in order, also after one of them failed,
// and joins the errors. A failed save leaves the sinks that succeeded one
// page ahead of the committed set; a later save overwrites them.
// The returned location is the first sink's.
type MultiSink []Sink

// Save implements Sink.
func (m MultiSink) Save(records []models.Record, page int) (string, error) {
	var first string
	var errs []error
	for i, s := range m {
		loc, err := s.Save(records, page)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			first = loc
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return first, nil
}

// Close releases sinks holding resources.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
