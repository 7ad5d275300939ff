package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/poharvest/internal/crawlers"
	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/storage"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

// SessionSource performs the single login of a run.
type SessionSource interface {
	Acquire(ctx context.Context) (*models.Session, error)
}

// Enumerator lists the identifiers of one list page.
type Enumerator interface {
	Enumerate(ctx context.Context, session *models.Session, pageNumber int) (*models.PageDescriptor, error)
}

// Extractor turns a task into a record. It never fails; failures are failure records.
type Extractor interface {
	Extract(ctx context.Context, session *models.Session, task models.ExtractionTask) models.Record
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Sessions   SessionSource
	Enumerator Enumerator
	Extractor  Extractor
	Sink       storage.Sink
	Metrics    *utils.Metrics // optional
}

// Orchestrator drives a run page by page:
// Idle → SessionAcquired → PageInProgress(k) → PageCommitted(k) → … → Done, or Aborted.
type Orchestrator struct {
	cfg    models.RunConfig
	deps   Deps
	pool   *crawlers.WorkerPool
	runID  string
	logger zerolog.Logger

	progress io.Writer // nil disables the progress bar
	bar      *progressbar.ProgressBar

	mu    sync.RWMutex
	state models.RunState
	page  int // page of the current state, 0 before the first page

	results        []models.Record
	committed      map[string]int // item id -> page that committed it
	pagesCommitted int
	location       string
}

// NewOrchestrator creates an orchestrator in state Idle.
func NewOrchestrator(cfg models.RunConfig, deps Deps, runID string, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		pool:      crawlers.NewWorkerPool(cfg.Workers, cfg.DispatchRate, logger),
		runID:     runID,
		logger:    logger,
		state:     models.StateIdle,
		committed: make(map[string]int),
	}
	o.pool.OnResult(o.onResult)
	return o
}

// WithProgress renders a per-page progress bar on w.
func (o *Orchestrator) WithProgress(w io.Writer) *Orchestrator {
	o.progress = w
	return o
}

// State returns the current state and the page it refers to.
func (o *Orchestrator) State() (models.RunState, int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state, o.page
}

func (o *Orchestrator) setState(state models.RunState, page int) {
	o.mu.Lock()
	if current := o.state; current.Terminal() {
		o.mu.Unlock()
		o.logger.Warn().Str("state", string(current)).Str("rejected", string(state)).Msg("run already finished, state unchanged")
		return
	}
	o.state, o.page = state, page
	o.mu.Unlock()
	o.logger.Debug().Str("state", string(state)).Int("page", page).Msg("state transition")
}

// Records returns a copy of the committed result set.
func (o *Orchestrator) Records() []models.Record {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]models.Record(nil), o.results...)
}

// Run executes the whole run. The summary is returned in every case, also
// together with a non-nil error when the run did not reach Done.
// Cancellation of ctx is honored between pages only: the current page drains.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	start := time.Now()
	o.logger.Info().
		Str("run_id", o.runID).
		Int("pages", o.cfg.Pages).
		Int("workers", o.pool.Workers()).
		Msg("🚀 run started")

	session, err := o.deps.Sessions.Acquire(ctx)
	if err != nil {
		o.deps.Metrics.IncError(models.ErrorLabel(err))
		o.logger.Error().Err(err).Msg("❌ login failed")
		return o.summary(start), fmt.Errorf("acquire session: %w", err)
	}
	o.setState(models.StateSessionAcquired, 0)
	o.logger.Info().Int("cookies", session.Len()).Str("origin", session.Origin).Msg("session acquired")

	for k := 1; k <= o.cfg.Pages; k++ {
		if err := ctx.Err(); err != nil {
			return o.abort(start, fmt.Errorf("interrupted before page %d: %w", k, err))
		}
		if err := o.runPage(ctx, session, k); err != nil {
			return o.abort(start, err)
		}
	}

	_, page := o.State()
	o.setState(models.StateDone, page)
	summary := o.summary(start)
	o.logger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Str("elapsed", utils.FormatDuration(time.Since(start))).
		Msg("✅ run complete")
	return summary, nil
}

func (o *Orchestrator) abort(start time.Time, err error) (*models.RunSummary, error) {
	_, page := o.State()
	o.setState(models.StateAborted, page)
	o.deps.Metrics.IncError(models.ErrorLabel(err))
	o.logger.Error().Err(err).Msg("❌ run aborted")
	return o.summary(start), err
}

func (o *Orchestrator) summary(start time.Time) *models.RunSummary {
	state, _ := o.State()
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := models.Summarize(o.runID, state, o.pagesCommitted, o.results, time.Since(start))
	s.OutputLocation = o.location
	return s
}

// runPage enumerates, extracts and commits page k.
func (o *Orchestrator) runPage(ctx context.Context, session *models.Session, k int) error {
	o.setState(models.StatePageInProgress, k)

	desc, err := o.deps.Enumerator.Enumerate(ctx, session, k)
	if err != nil {
		var navErr *models.NavigationError
		if !errors.As(err, &navErr) {
			err = &models.NavigationError{Page: k, Cause: err}
		}
		return fmt.Errorf("enumerate page %d: %w", k, err)
	}
	o.logger.Debug().Int("page", k).Int("items", len(desc.ItemIDs)).Msg("page enumerated")

	tasks := models.NewTasks(o.dropCommitted(desc))

	if o.progress != nil && len(tasks) > 0 {
		o.bar = utils.NewProgressBar(len(tasks), fmt.Sprintf("page %d", k), o.progress)
	}
	// in-flight tasks finish even when ctx is cancelled
	records := o.pool.Run(context.WithoutCancel(ctx), tasks, func(taskCtx context.Context, task models.ExtractionTask) models.Record {
		return o.deps.Extractor.Extract(taskCtx, session, task)
	})
	if o.bar != nil {
		_ = o.bar.Finish()
		o.bar = nil
	}

	models.SortByItemID(records)

	for i := range records {
		records[i].OriginPage = k
	}

	o.mu.RLock()
	snapshot := make([]models.Record, 0, len(o.results)+len(records))
	snapshot = append(append(snapshot, o.results...), records...)
	o.mu.RUnlock()

	location, err := o.deps.Sink.Save(snapshot, k)
	if err != nil {
		return fmt.Errorf("checkpoint page %d: %w", k, err)
	}

	o.mu.Lock()
	for _, r := range records {
		o.committed[r.ItemID] = k
	}
	o.results = snapshot
	o.location = location
	o.pagesCommitted = k
	o.mu.Unlock()
	o.setState(models.StatePageCommitted, k)
	o.deps.Metrics.SetPagesCommitted(k)

	failed := 0
	for _, r := range records {
		if r.Failed() {
			failed++
		}
	}
	o.logger.Info().
		Int("page", k).
		Int("succeeded", len(records)-failed).
		Int("failed", failed).
		Int("total_records", len(snapshot)).
		Msg("page committed")
	o.logger.Info().Str("location", location).Msgf("💾 checkpoint written after page %d", k)
	return nil
}

// dropCommitted removes identifiers committed by an earlier page, and repeats
// within the page, keeping the first occurrence.
func (o *Orchestrator) dropCommitted(desc *models.PageDescriptor) *models.PageDescriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()

	seen := make(map[string]bool, len(desc.ItemIDs))
	ids := make([]string, 0, len(desc.ItemIDs))
	for _, id := range desc.ItemIDs {
		if page, ok := o.committed[id]; ok {
			o.logger.Warn().Str("id", id).Int("page", desc.PageNumber).Int("committed_on", page).Msg("pagination drift, id already committed")
			continue
		}
		if seen[id] {
			o.logger.Warn().Str("id", id).Int("page", desc.PageNumber).Msg("duplicate id on page")
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	out := *desc
	out.ItemIDs = ids
	return &out
}

func (o *Orchestrator) onResult(task models.ExtractionTask, rec models.Record, elapsed time.Duration) {
	o.deps.Metrics.ObserveItem(rec.Failed(), elapsed)
	if o.bar != nil {
		_ = o.bar.Add(1)
	}
}
