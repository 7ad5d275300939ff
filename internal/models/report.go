package models

import (
	"encoding/json"
	"time"
)

// RunSummary is computed once at the end of a run from the final result set.
type RunSummary struct {
	RunID                 string   `json:"run_id"`
	State                 RunState `json:"state"`
	PagesCommitted        int      `json:"pages_committed"`
	Total                 int      `json:"total"`
	Succeeded             int      `json:"succeeded"`
	Failed                int      `json:"failed"`
	ElapsedSeconds        float64  `json:"elapsed_seconds"`
	AverageSecondsPerItem float64  `json:"average_seconds_per_item"` // 0 when Total is 0
	FailedIDs             []string `json:"failed_ids,omitempty"`     // ids worth re-running
	OutputLocation        string   `json:"output_location,omitempty"`
}

// Summarize counts outcomes in records.
func Summarize(runID string, state RunState, pages int, records []Record, elapsed time.Duration) *RunSummary {
	s := &RunSummary{
		RunID:          runID,
		State:          state,
		PagesCommitted: pages,
		Total:          len(records),
		ElapsedSeconds: elapsed.Seconds(),
	}
	for _, r := range records {
		if r.Failed() {
			s.Failed++
			s.FailedIDs = append(s.FailedIDs, r.ItemID)
		} else {
			s.Succeeded++
		}
	}
	if s.Total > 0 {
		s.AverageSecondsPerItem = s.ElapsedSeconds / float64(s.Total)
	}
	return s
}

// RunReport is written to reports/run_report.json at the end of a run.
type RunReport struct {
	Summary   *RunSummary            `json:"summary"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Error     string                 `json:"error,omitempty"` // fatal error for aborted runs
	Failures  []FailedItemInfo       `json:"failures"`
	Config    map[string]interface{} `json:"config"` // redacted config snapshot
}

// FailedItemInfo describes one failure record.
type FailedItemInfo struct {
	ItemID    string `json:"po_number"`
	Page      int    `json:"page,omitempty"`
	ErrorType string `json:"error_type"` // timeout, navigation, item_extraction ...
	ErrorMsg  string `json:"error_msg"`
}

// ToJSON serializes the report.
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
