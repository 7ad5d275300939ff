package models

import (
	"encoding/json"
	"time"
)

// Checkpoint is the envelope written when checkpoint metadata is enabled.
// Without metadata the JSON sink writes the bare record array.
type Checkpoint struct {
	RunID          string    `json:"run_id"`          // run the snapshot belongs to
	PagesCommitted int       `json:"pages_committed"` // last committed page
	Total          int       `json:"total"`           // len(Records)
	Records        []Record  `json:"records"`         // full result set, page order then id order
	UpdatedAt      time.Time `json:"updated_at"`      // time of the write
}

// NewCheckpoint snapshots the current result set.
func NewCheckpoint(runID string, pages int, records []Record) *Checkpoint {
	return &Checkpoint{
		RunID:          runID,
		PagesCommitted: pages,
		Total:          len(records),
		Records:        records,
		UpdatedAt:      time.Now(),
	}
}

// ToJSON serializes the checkpoint.
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
