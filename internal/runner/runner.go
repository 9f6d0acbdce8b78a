// Package runner orchestrates one invocation of the tagging pipeline:
// load state, discover, merge, compute the backlog, drive the batch, and
// advance the checkpoint.
//
// Persistence ordering is what makes interrupted runs resumable: the
// inventory is flushed before the batch starts, every completion is
// flushed before the next item begins, and the checkpoint moves only
// after the whole incremental run succeeded.
package runner

import (
	"context"
	"fmt"
	"time"

	"photo-tagger/internal/backlog"
	"photo-tagger/internal/batch"
	"photo-tagger/internal/discovery"
	"photo-tagger/internal/logging"
	"photo-tagger/internal/state"
)

// Report summarizes one full invocation.
type Report struct {
	Discovered    int
	NewKeys       int64
	InventorySize int
	CompletedSize int
	BacklogSize   int
	Batch         *batch.Report
	Duration      time.Duration
}

// Runner wires the discovery engine, the state store and the batch
// scheduler together for a single run.
type Runner struct {
	mode      discovery.Mode
	store     *state.Store
	scanner   *discovery.Scanner
	scheduler *batch.Scheduler
}

// New creates a Runner.
func New(mode discovery.Mode, store *state.Store, scanner *discovery.Scanner, scheduler *batch.Scheduler) *Runner {
	return &Runner{
		mode:      mode,
		store:     store,
		scanner:   scanner,
		scheduler: scheduler,
	}
}

// Run executes one invocation. The returned Report is valid even when an
// error is returned; partial progress flushed before the error remains
// durable and the next run resumes from it.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	// The checkpoint candidate is taken at scan start, not scan end, so
	// files modified during a long batch are re-examined next run.
	scanStart := time.Now()

	checkpoint, haveCheckpoint, err := r.store.Checkpoint(ctx)
	if err != nil {
		return report, err
	}

	found, err := r.scanner.Discover(r.mode, checkpoint, haveCheckpoint)
	if err != nil {
		return report, err
	}
	report.Discovered = len(found.Photos)

	photos := make([]state.Photo, len(found.Photos))
	for i, p := range found.Photos {
		photos[i] = state.Photo{Key: p.Key, Path: p.Path}
	}
	report.NewKeys, err = r.store.MergeInventory(ctx, photos)
	if err != nil {
		return report, err
	}

	inventory, err := r.store.Inventory(ctx)
	if err != nil {
		return report, err
	}
	completed, err := r.store.Completed(ctx)
	if err != nil {
		return report, err
	}
	report.InventorySize = len(inventory)
	report.CompletedSize = len(completed)

	items := backlog.Compute(inventory, completed)
	report.BacklogSize = len(items)

	logging.Info("Inventory: %d photos (%d new this run), completed: %d, backlog: %d",
		report.InventorySize, report.NewKeys, report.CompletedSize, report.BacklogSize)

	report.Batch, err = r.scheduler.Run(ctx, items)
	if err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	if r.mode == discovery.ModeIncremental {
		if err := r.store.SetCheckpoint(ctx, scanStart); err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("run succeeded but checkpoint update failed: %w", err)
		}
		logging.Debug("Checkpoint advanced to %v", scanStart)
	}

	report.Duration = time.Since(start)
	logging.Info("Run complete in %v: %d succeeded, %d remaining",
		report.Duration, report.Batch.Succeeded, report.Batch.Remaining)
	return report, nil
}
