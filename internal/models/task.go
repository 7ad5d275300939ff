package models

import (
	"fmt"
	"time"
)

// RunState is a state of the orchestrator state machine.
type RunState string

const (
	StateIdle            RunState = "idle"             // nothing done yet
	StateSessionAcquired RunState = "session_acquired" // logged in, no page started
	StatePageInProgress  RunState = "page_in_progress" // enumerating or extracting page k
	StatePageCommitted   RunState = "page_committed"   // page k persisted
	StateDone            RunState = "done"             // all pages committed
	StateAborted         RunState = "aborted"          // fatal error, terminal
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// PageDescriptor is the result of enumerating one list page.
type PageDescriptor struct {
	PageNumber     int      `json:"page_number"`
	ItemIDs        []string `json:"item_ids"`        // row order
	DisplayedRange string   `json:"displayed_range"` // pager text, e.g. "1-80 / 243"
}

// ExtractionTask is one unit of work for the worker pool.
type ExtractionTask struct {
	ItemID     string // identifier as shown in the list
	OriginPage int    // list page the id was discovered on
	Sequence   int    // 1-based position within the page
	Total      int    // number of ids on the page
}

// String is used as log prefix, e.g. "[3/80] P00042".
func (t ExtractionTask) String() string {
	return fmt.Sprintf("[%d/%d] %s", t.Sequence, t.Total, t.ItemID)
}

// NewTasks builds the tasks for a page, preserving row order.
func NewTasks(page *PageDescriptor) []ExtractionTask {
	if page == nil {
		return nil
	}
	total := len(page.ItemIDs)
	tasks := make([]ExtractionTask, 0, total)
	for i, id := range page.ItemIDs {
		tasks = append(tasks, ExtractionTask{
			ItemID:     id,
			OriginPage: page.PageNumber,
			Sequence:   i + 1,
			Total:      total,
		})
	}
	return tasks
}

// RunConfig holds the orchestration knobs of a run.
type RunConfig struct {
	Pages        int           `mapstructure:"pages" json:"pages"`                 // number of list pages to process (default 3)
	Workers      int           `mapstructure:"workers" json:"workers"`             // concurrent detail extractions (default 8)
	MaxAttempts  int           `mapstructure:"max_attempts" json:"max_attempts"`   // attempts per item on navigation failure (default 2)
	RetryBackoff time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"` // linear backoff between attempts
	DispatchRate float64       `mapstructure:"dispatch_rate" json:"dispatch_rate"` // task starts per second, 0 = unlimited
}

// Validate checks the configured bounds.
func (c *RunConfig) Validate() error {
	if c.Pages < 0 || c.Pages > 10000 {
		return fmt.Errorf("pages must be between 0 and 10000")
	}
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64")
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("max_attempts must be between 1 and 10")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff cannot be negative")
	}
	if c.DispatchRate < 0 {
		return fmt.Errorf("dispatch_rate cannot be negative")
	}
	return nil
}
