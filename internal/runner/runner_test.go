package runner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"photo-tagger/internal/batch"
	"photo-tagger/internal/discovery"
	"photo-tagger/internal/state"
)

type fakeAnnotator struct {
	calls []string
	err   error
}

func (a *fakeAnnotator) Annotate(_ context.Context, path string) ([]string, error) {
	a.calls = append(a.calls, path)
	if a.err != nil {
		return nil, a.err
	}
	return []string{"tag"}, nil
}

func (a *fakeAnnotator) Name() string { return "fake" }

type fakeWriter struct{}

func (fakeWriter) WriteTags(string, []string) error { return nil }

type nopPacer struct{}

func (nopPacer) Wait() time.Duration { return 0 }

type pipeline struct {
	root      string
	store     *state.Store
	annotator *fakeAnnotator
}

func newPipeline(t *testing.T, files ...string) *pipeline {
	t.Helper()
	root := t.TempDir()
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	store, err := state.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("state.Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("store.Close failed: %v", err)
		}
	})

	return &pipeline{root: root, store: store, annotator: &fakeAnnotator{}}
}

func (p *pipeline) run(t *testing.T, mode discovery.Mode, dailyLimit int) *Report {
	t.Helper()
	scanner := discovery.NewScanner(p.root, "Photos")
	scheduler := batch.NewScheduler(p.annotator, fakeWriter{}, p.store, nopPacer{}, dailyLimit)

	report, err := New(mode, p.store, scanner, scheduler).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	return report
}

func annotatedNames(calls []string) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = filepath.Base(c)
	}
	sort.Strings(out)
	return out
}

func TestRunProcessesWholeBacklog(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg", "Photos/b.jpg", "Photos/c.png")

	report := p.run(t, discovery.ModeBacklog, 10)

	if report.Discovered != 3 || report.NewKeys != 3 {
		t.Errorf("report = %+v, want 3 discovered and 3 new", report)
	}
	if report.Batch.Succeeded != 3 || report.Batch.Remaining != 0 {
		t.Errorf("batch = %+v, want all 3 succeeded", report.Batch)
	}
	got := annotatedNames(p.annotator.calls)
	want := []string{"a.jpg", "b.jpg", "c.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("annotated = %v, want %v", got, want)
		}
	}
}

func TestRunResumesWithoutDoubleProcessing(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg", "Photos/b.jpg", "Photos/c.jpg", "Photos/d.jpg")

	first := p.run(t, discovery.ModeBacklog, 2)
	if first.Batch.Succeeded != 2 || first.Batch.Remaining != 2 {
		t.Fatalf("first run batch = %+v, want 2 done and 2 remaining", first.Batch)
	}

	second := p.run(t, discovery.ModeBacklog, 10)
	if second.NewKeys != 0 {
		t.Errorf("second run NewKeys = %d, want 0 (same library)", second.NewKeys)
	}
	if second.Batch.Succeeded != 2 || second.Batch.Remaining != 0 {
		t.Errorf("second run batch = %+v, want exactly the 2 leftovers", second.Batch)
	}

	// Across both runs every photo is annotated exactly once.
	got := annotatedNames(p.annotator.calls)
	want := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}
	if len(got) != len(want) {
		t.Fatalf("annotated %d times (%v), want each photo exactly once", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("annotated = %v, want %v", got, want)
		}
	}
}

func TestRunSkipsAlreadyCompleted(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg", "Photos/b.jpg")
	if err := p.store.MarkCompleted(context.Background(), "Photos/a.jpg", []string{"old"}); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	report := p.run(t, discovery.ModeBacklog, 10)

	if report.Batch.Attempted != 1 {
		t.Errorf("Attempted = %d, want only the uncompleted photo", report.Batch.Attempted)
	}
	got := annotatedNames(p.annotator.calls)
	if len(got) != 1 || got[0] != "b.jpg" {
		t.Errorf("annotated = %v, want only b.jpg", got)
	}
}

func TestRunIncrementalAdvancesCheckpoint(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg")
	ctx := context.Background()

	before := time.Now()
	p.run(t, discovery.ModeIncremental, 10)

	checkpoint, ok, err := p.store.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if !ok {
		t.Fatal("no checkpoint recorded after successful incremental run")
	}
	if checkpoint.Before(before) {
		t.Errorf("checkpoint = %v, want at or after run start %v", checkpoint, before)
	}
}

func TestRunIncrementalPicksUpNewFiles(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg")

	first := p.run(t, discovery.ModeIncremental, 10)
	if first.Batch.Succeeded != 1 {
		t.Fatalf("first run batch = %+v, want a.jpg processed", first.Batch)
	}

	// A new photo arrives after the checkpoint.
	newPath := filepath.Join(p.root, "Photos", "b.jpg")
	if err := os.WriteFile(newPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(newPath, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	second := p.run(t, discovery.ModeIncremental, 10)
	if second.Discovered != 1 {
		t.Errorf("second run Discovered = %d, want only the new photo", second.Discovered)
	}
	if second.Batch.Succeeded != 1 {
		t.Errorf("second run batch = %+v, want b.jpg processed", second.Batch)
	}

	got := annotatedNames(p.annotator.calls)
	want := []string{"a.jpg", "b.jpg"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("annotated = %v, want %v", got, want)
	}
}

func TestRunBacklogModeNeverWritesCheckpoint(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg")

	p.run(t, discovery.ModeBacklog, 10)

	if _, ok, err := p.store.Checkpoint(context.Background()); err != nil || ok {
		t.Errorf("Checkpoint after backlog run = ok=%v err=%v, want none", ok, err)
	}
}

func TestRunFailedBatchKeepsCheckpoint(t *testing.T) {
	p := newPipeline(t, "Photos/a.jpg")
	p.annotator.err = &hardStop{}

	scanner := discovery.NewScanner(p.root, "Photos")
	scheduler := batch.NewScheduler(p.annotator, fakeWriter{}, p.store, nopPacer{}, 10)

	_, err := New(discovery.ModeIncremental, p.store, scanner, scheduler).Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil error, want batch failure")
	}

	// The checkpoint must not advance past files the failed run never
	// processed; they stay discoverable next time.
	if _, ok, checkErr := p.store.Checkpoint(context.Background()); checkErr != nil || ok {
		t.Errorf("Checkpoint after failed run = ok=%v err=%v, want none", ok, checkErr)
	}
}

type hardStop struct{}

func (*hardStop) Error() string { return "auth rejected" }
func (*hardStop) Fatal() bool   { return true }
