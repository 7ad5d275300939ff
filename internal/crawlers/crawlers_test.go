package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

func TestShouldAllow(t *testing.T) {
	tests := []struct {
		kind proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeImage, false},
		{proto.NetworkResourceTypeFont, false},
		{proto.NetworkResourceTypeMedia, false},
		{proto.NetworkResourceTypeDocument, true},
		{proto.NetworkResourceTypeScript, true},
		{proto.NetworkResourceTypeXHR, true},
		{proto.NetworkResourceTypeFetch, true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAllow(tt.kind))
		})
	}
}

func pageTasks(ids ...string) []models.ExtractionTask {
	return models.NewTasks(&models.PageDescriptor{PageNumber: 1, ItemIDs: ids})
}

func TestWorkerPool_RunsEveryTask(t *testing.T) {
	pool := NewWorkerPool(3, 0, zerolog.Nop())

	var inFlight, maxInFlight int32
	handler := func(ctx context.Context, task models.ExtractionTask) models.Record {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return models.Record{ItemID: task.ItemID, OriginPage: task.OriginPage}
	}

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("PO%03d", i)
	}
	records := pool.Run(context.Background(), pageTasks(ids...), handler)

	require.Len(t, records, 10)
	got := make([]string, 0, len(records))
	for _, r := range records {
		got = append(got, r.ItemID)
	}
	sort.Strings(got)
	assert.Equal(t, ids, got)
	assert.LessOrEqual(t, maxInFlight, int32(3))
}

func TestWorkerPool_CompletionOrder(t *testing.T) {
	pool := NewWorkerPool(2, 0, zerolog.Nop())

	delays := map[string]time.Duration{"PO001": 80 * time.Millisecond, "PO002": 5 * time.Millisecond}
	records := pool.Run(context.Background(), pageTasks("PO001", "PO002"), func(ctx context.Context, task models.ExtractionTask) models.Record {
		time.Sleep(delays[task.ItemID])
		return models.Record{ItemID: task.ItemID}
	})

	require.Len(t, records, 2)
	assert.Equal(t, "PO002", records[0].ItemID)
	assert.Equal(t, "PO001", records[1].ItemID)
}

func TestWorkerPool_PartialFailure(t *testing.T) {
	pool := NewWorkerPool(4, 0, zerolog.Nop())

	var mu sync.Mutex
	var observed []string
	pool.OnResult(func(task models.ExtractionTask, rec models.Record, _ time.Duration) {
		mu.Lock()
		observed = append(observed, rec.ItemID)
		mu.Unlock()
	})

	records := pool.Run(context.Background(), pageTasks("PO001", "PO002", "PO003", "PO004"), func(ctx context.Context, task models.ExtractionTask) models.Record {
		switch task.ItemID {
		case "PO002":
			return models.NewFailureRecord(task.ItemID, fmt.Errorf("wait: %w", models.ErrTimeout))
		case "PO003":
			panic("boom")
		}
		return models.Record{ItemID: task.ItemID}
	})

	require.Len(t, records, 4)
	failed := 0
	for _, r := range records {
		if r.Failed() {
			failed++
			assert.NotEmpty(t, r.Error)
		}
	}
	assert.Equal(t, 2, failed)
	assert.Len(t, observed, 4)
}

func TestWorkerPool_Empty(t *testing.T) {
	pool := NewWorkerPool(0, 0, zerolog.Nop())
	assert.Equal(t, DefaultWorkers, pool.Workers())

	records := pool.Run(context.Background(), nil, func(ctx context.Context, task models.ExtractionTask) models.Record {
		t.Fatal("handler must not run")
		return models.Record{}
	})
	assert.Empty(t, records)
}

func TestWorkerPool_DispatchRate(t *testing.T) {
	pool := NewWorkerPool(4, 20, zerolog.Nop())

	start := time.Now()
	records := pool.Run(context.Background(), pageTasks("A", "B", "C", "D", "E"), func(ctx context.Context, task models.ExtractionTask) models.Record {
		return models.Record{ItemID: task.ItemID}
	})

	assert.Len(t, records, 5)
	// burst of 1 then 4 more at 20/s
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestResourceMonitor_RecommendWorkers(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		availableMB uint64
		cpus        int
		memErr      error
		requested   int
		want        int
		wantReason  bool
	}{
		{"disabled keeps request", false, 100, 1, nil, 8, 8, false},
		{"plenty of memory", true, 16 * 1024, 16, nil, 8, 8, false},
		{"memory bound", true, 1024 + 450, 16, nil, 8, 3, true},
		{"never below one", true, 512, 16, nil, 8, 1, true},
		{"cpu bound", true, 64 * 1024, 2, nil, 8, 4, true},
		{"memory read error", true, 0, 16, errors.New("no /proc"), 8, 8, false},
		{"zero request", true, 16 * 1024, 16, nil, 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewResourceMonitor(ResourceConfig{Enabled: tt.enabled, ContextMemoryMB: 150, SafetyReserveMB: 1024}, zerolog.Nop())
			rm.virtualMem = func() (*mem.VirtualMemoryStat, error) {
				if tt.memErr != nil {
					return nil, tt.memErr
				}
				return &mem.VirtualMemoryStat{Available: tt.availableMB * mb}, nil
			}
			rm.numCPU = func() int { return tt.cpus }

			got, reason := rm.RecommendWorkers(tt.requested)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason != "", "reason %q", reason)
		})
	}
}

const loginHTML = `<html><body><form><input name="login"/><input name="password" type="password"/><button type="submit">Log in</button></form></body></html>`

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestPreflight_Check(t *testing.T) {
	const loginURL = "http://erp.test/web/login"

	tests := []struct {
		name      string
		responder httpmock.Responder
		wantErr   string
	}{
		{"login form present", htmlResponder(200, loginHTML), ""},
		{"server error", htmlResponder(503, "down"), "HTTP 503"},
		{"not found", htmlResponder(404, "missing"), "HTTP 404"},
		{"no login form", htmlResponder(200, "<html><body>Welcome</body></html>"), "login form not found"},
		{"unreachable", httpmock.NewErrorResponder(errors.New("connection refused")), "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder(http.MethodGet, loginURL, tt.responder)

			p := NewPreflight(`input[name="login"]`, time.Second, false).WithTransport(transport)
			err := p.Check(context.Background(), loginURL)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPreflight_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPreflight("input", time.Second, false).Check(ctx, "http://erp.test/web/login")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrapWait(t *testing.T) {
	err := wrapWait("rows", context.DeadlineExceeded)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Equal(t, "timeout", models.ErrorLabel(err))

	other := wrapWait("rows", errors.New("detached"))
	assert.NotErrorIs(t, other, models.ErrTimeout)
}

func TestRetryExtract(t *testing.T) {
	task := models.ExtractionTask{ItemID: "PO002", OriginPage: 2}
	okRecord := models.Record{ItemID: "PO002", OriginPage: 2}
	navErr := &models.NavigationError{Page: 2, Cause: models.ErrTimeout}

	tests := []struct {
		name         string
		maxAttempts  int
		outcomes     []error // per attempt, nil for success
		panicOn      int     // attempt that panics, 0 for none
		wantCalls    int
		wantFailed   bool
		wantErrParts []string
	}{
		{
			name:        "success on second attempt",
			maxAttempts: 3,
			outcomes:    []error{navErr, nil},
			wantCalls:   2,
		},
		{
			name:         "rule error is not retried",
			maxAttempts:  3,
			outcomes:     []error{&ruleError{err: &models.FieldParseError{Field: "quantity", Text: "lots"}}},
			wantCalls:    1,
			wantFailed:   true,
			wantErrParts: []string{"PO002", "quantity"},
		},
		{
			name:         "attempts exhausted",
			maxAttempts:  3,
			outcomes:     []error{navErr, navErr, navErr},
			wantCalls:    3,
			wantFailed:   true,
			wantErrParts: []string{"PO002", "after 3 attempts"},
		},
		{
			name:         "panic becomes a failed attempt",
			maxAttempts:  1,
			panicOn:      1,
			wantCalls:    1,
			wantFailed:   true,
			wantErrParts: []string{"panic: boom"},
		},
		{
			name:        "zero max attempts still runs once",
			maxAttempts: 0,
			outcomes:    []error{nil},
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cfg := ExtractorConfig{MaxAttempts: tt.maxAttempts, RetryBackoff: time.Millisecond}

			rec := retryExtract(context.Background(), task, cfg, nil, zerolog.Nop(), func() (models.Record, error) {
				calls++
				if calls == tt.panicOn {
					panic("boom")
				}
				if err := tt.outcomes[calls-1]; err != nil {
					return models.Record{}, err
				}
				return okRecord, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantFailed, rec.Failed())
			assert.Equal(t, "PO002", rec.ItemID)
			assert.Equal(t, 2, rec.OriginPage)
			for _, part := range tt.wantErrParts {
				assert.Contains(t, rec.Error, part)
			}
		})
	}
}

func TestRetryExtract_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	cfg := ExtractorConfig{MaxAttempts: 5, RetryBackoff: time.Hour}
	rec := retryExtract(ctx, models.ExtractionTask{ItemID: "PO009", OriginPage: 1}, cfg, nil, zerolog.Nop(), func() (models.Record, error) {
		calls++
		return models.Record{}, &models.NavigationError{Page: 1, Cause: models.ErrTimeout}
	})

	assert.Equal(t, 1, calls)
	assert.True(t, rec.Failed())
	assert.Equal(t, "timeout", rec.ErrorType)
}

func TestDebugShotPath(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 5, 0, time.UTC)
	got := debugShotPath("output", 3, at)
	assert.Equal(t, filepath.Join("output", "debug_list_page_3_20240501_093005.png"), got)
}
