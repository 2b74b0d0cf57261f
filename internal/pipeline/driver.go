package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ddihound/ddihound/internal/artifacts"
	"github.com/ddihound/ddihound/internal/browser"
	"github.com/ddihound/ddihound/internal/checkpoint"
	"github.com/ddihound/ddihound/internal/dataset"
	"github.com/ddihound/ddihound/internal/logger"
	"github.com/ddihound/ddihound/internal/source"
)

// maxConsecutiveErrors aborts the run when this many Error outcomes
// arrive back to back: the collaborator is unusable and continuing would
// burn the delay budget emitting an all-Error dataset.
const maxConsecutiveErrors = 5

// Runner executes one work item and exposes the page state of its last
// attempt for artifact capture.
type Runner interface {
	Run(ctx context.Context, item dataset.Item) checkpoint.Entry
	LastSnapshot() (browser.Snapshot, bool)
}

// Summary is the run report.
type Summary struct {
	Processed int
	Skipped   int
	ByStatus  map[checkpoint.Status]int
	Elapsed   time.Duration
	Canceled  bool
}

// Driver owns the sequential item loop. One item is in flight at a time;
// the permitted request rate is the bottleneck, never CPU.
type Driver struct {
	cfg     Config
	table   *dataset.Table
	store   *checkpoint.Store
	limiter *Limiter
	runner  Runner
	art     *artifacts.Writer
	profile source.Profile
}

// NewDriver wires the driver from its collaborators. The table, store
// and artifact writer are owned by the caller; art may be nil to disable
// artifact capture.
func NewDriver(cfg Config, table *dataset.Table, store *checkpoint.Store, limiter *Limiter, runner Runner, art *artifacts.Writer, profile source.Profile) *Driver {
	return &Driver{
		cfg:     cfg,
		table:   table,
		store:   store,
		limiter: limiter,
		runner:  runner,
		art:     art,
		profile: profile,
	}
}

// Run processes the configured range of the queue. Cancellation is
// observed only between items: the in-flight item always finishes and is
// persisted before the loop stops, so cancellation is never an error.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	summary := Summary{ByStatus: map[checkpoint.Status]int{}}

	d.table.EnsureColumns(d.profile.SeverityColumn, d.profile.TextColumn)

	start, end := d.bounds()
	logger.Info("run starting",
		"source", d.profile.Name,
		"items", end-start,
		"checkpointed", d.store.Len())

	consecutiveErrors := 0
	sinceSnapshot := 0

	for i := start; i < end; i++ {
		if ctx.Err() != nil {
			logger.Info("cancellation observed, stopping at item boundary", "next_index", i)
			summary.Canceled = true
			break
		}

		item := d.table.Item(i)
		key := checkpoint.PairKey(item.DrugA, item.DrugB)

		if entry, ok := d.store.Get(key); ok {
			// Already terminal from an earlier run, whatever the status.
			d.apply(i, entry)
			summary.Skipped++
			continue
		}
		if d.table.HasResult(i, d.profile.SeverityColumn) {
			summary.Skipped++
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			summary.Canceled = true
			break
		}

		// The in-flight item must reach a terminal state even if the run
		// is being cancelled, so the session gets an uncancelable context.
		entry := d.runner.Run(context.WithoutCancel(ctx), item)
		entry.PairKey = key

		if entry.Status != checkpoint.StatusSuccess {
			d.saveArtifact(i, entry.Status)
		}
		if err := d.store.Record(entry); err != nil {
			return summary, fmt.Errorf("checkpoint write failed: %w", err)
		}
		d.apply(i, entry)
		summary.Processed++
		summary.ByStatus[entry.Status]++

		if entry.Status == checkpoint.StatusError {
			consecutiveErrors++
			if consecutiveErrors > maxConsecutiveErrors {
				d.snapshot()
				summary.Elapsed = time.Since(started)
				return summary, fmt.Errorf("aborting after %d consecutive errors: source or browser is unusable", consecutiveErrors)
			}
		} else {
			consecutiveErrors = 0
		}

		sinceSnapshot++
		if sinceSnapshot >= d.cfg.BatchSize {
			d.snapshot()
			sinceSnapshot = 0
		}
	}

	d.snapshot()
	summary.Elapsed = time.Since(started)
	if d.art != nil {
		logger.Info("debug artifacts directory", "dir", d.art.Dir())
	}
	logger.Info("run finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"success", summary.ByStatus[checkpoint.StatusSuccess],
		"failed", summary.ByStatus[checkpoint.StatusFailed],
		"timeout", summary.ByStatus[checkpoint.StatusTimeout],
		"error", summary.ByStatus[checkpoint.StatusError],
		"canceled", summary.Canceled,
		"elapsed", summary.Elapsed.Round(time.Second).String())
	return summary, nil
}

// bounds resolves the configured half-open range against the table size.
func (d *Driver) bounds() (int, int) {
	start := d.cfg.RangeStart
	if start < 0 {
		start = 0
	}
	end := d.cfg.RangeEnd
	if end <= 0 || end > d.table.Len() {
		end = d.table.Len()
	}
	if start > end {
		start = end
	}
	return start, end
}

// apply writes a terminal entry into the row's result columns. Success
// stores the severity and description; other statuses store the status
// itself, which later runs treat as a placeholder.
func (d *Driver) apply(i int, entry checkpoint.Entry) {
	if entry.Status == checkpoint.StatusSuccess {
		d.table.Set(i, d.profile.SeverityColumn, string(entry.Severity))
		d.table.Set(i, d.profile.TextColumn, entry.Text)
		return
	}
	d.table.Set(i, d.profile.SeverityColumn, string(entry.Status))
}

func (d *Driver) saveArtifact(index int, status checkpoint.Status) {
	if d.art == nil {
		return
	}
	snap, ok := d.runner.LastSnapshot()
	if !ok {
		return
	}
	path, err := d.art.Save(index, string(status), snap)
	if err != nil {
		logger.Warn("artifact write failed", "index", index, "error", err)
		return
	}
	logger.Info("debug artifact saved", "path", path)
}

func (d *Driver) snapshot() {
	if err := d.table.Snapshot(d.cfg.OutputPath); err != nil {
		logger.Error("output snapshot failed", "path", d.cfg.OutputPath, "error", err)
	}
}
