package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reporter writes the end-of-run reports.
type Reporter struct {
	outputDir string
	logger    zerolog.Logger
}

// NewReporter creates a reporter writing under outputDir/reports.
func NewReporter(outputDir string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// GenerateReport writes run_report.json and failed_items.json and returns the reports directory.
func (r *Reporter) GenerateReport(report *models.RunReport, records []models.Record) (string, error) {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("create reports directory: %w", err)
	}

	failures := make([]models.FailedItemInfo, 0)
	for _, rec := range records {
		if !rec.Failed() {
			continue
		}
		failures = append(failures, models.FailedItemInfo{
			ItemID:    rec.ItemID,
			Page:      rec.OriginPage,
			ErrorType: rec.ErrorType,
			ErrorMsg:  rec.Error,
		})
	}
	report.Failures = failures

	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("serialize run report: %w", err)
	}
	if err := WriteFileAtomic(filepath.Join(reportsDir, "run_report.json"), data, 0644); err != nil {
		return "", err
	}

	if err := r.saveJSONReport(reportsDir, "failed_items.json", failures); err != nil {
		return "", err
	}

	r.logger.Info().Str("dir", reportsDir).Msg("✅ reports written")
	return reportsDir, nil
}

func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	path := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize %s: %w", filename, err)
	}

	if err := WriteFileAtomic(path, jsonData, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}

	r.logger.Debug().Str("path", path).Msg("report saved")
	return nil
}

// PrintSummary renders the run summary as a table.
func PrintSummary(w io.Writer, s *models.RunSummary) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("Run summary")

	t.AppendRows([]table.Row{
		{"Run ID", s.RunID},
		{"State", string(s.State)},
		{"Pages committed", s.PagesCommitted},
		{"Total", s.Total},
		{"Succeeded", s.Succeeded},
		{"Failed", s.Failed},
		{"Elapsed", fmt.Sprintf("%.1fs", s.ElapsedSeconds)},
		{"Avg per item", fmt.Sprintf("%.2fs", s.AverageSecondsPerItem)},
	})
	if s.OutputLocation != "" {
		t.AppendRow(table.Row{"Output", s.OutputLocation})
	}
	t.Render()
}

// NewProgressBar creates the per-page progress bar.
func NewProgressBar(max int, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("po"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
