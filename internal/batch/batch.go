package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"photo-tagger/internal/backlog"
	"photo-tagger/internal/logging"
	"photo-tagger/internal/metrics"
)

// Annotator produces tags for one image. Errors may implement
// Fatal() bool to mark hard-stop conditions (auth failure, exhausted
// quota); everything else is treated as transient and retried naturally
// on the next run via the backlog.
type Annotator interface {
	Annotate(ctx context.Context, path string) ([]string, error)
	Name() string
}

// MetadataWriter embeds tags into an image file in place.
type MetadataWriter interface {
	WriteTags(path string, tags []string) error
}

// CompletionMarker durably records one finished item. The write must be
// flushed before MarkCompleted returns.
type CompletionMarker interface {
	MarkCompleted(ctx context.Context, key string, tags []string) error
}

// Pacer gates annotation calls to the provider's rate ceiling.
type Pacer interface {
	Wait() time.Duration
}

// Report summarizes one batch run for the final log line.
type Report struct {
	Attempted      int
	Succeeded      int
	FailedAnnotate int
	FailedWrite    int
	Remaining      int
	Stopped        bool
}

// Scheduler drives a size-bounded slice of the backlog through the
// annotate-write-mark pipeline, one item at a time.
type Scheduler struct {
	annotator  Annotator
	writer     MetadataWriter
	marker     CompletionMarker
	pacer      Pacer
	dailyLimit int
}

// NewScheduler creates a Scheduler. dailyLimit must be positive
// (validated at configuration load).
func NewScheduler(annotator Annotator, writer MetadataWriter, marker CompletionMarker, pacer Pacer, dailyLimit int) *Scheduler {
	return &Scheduler{
		annotator:  annotator,
		writer:     writer,
		marker:     marker,
		pacer:      pacer,
		dailyLimit: dailyLimit,
	}
}

type fatalError interface {
	Fatal() bool
}

func isFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe) && fe.Fatal()
}

// Run processes the first min(len(items), dailyLimit) backlog items in
// order. A transient failure on one item never aborts the batch; a
// hard-stop error terminates it early and is returned. A failed
// persistence of a completion mark is fatal for the run: continuing
// would risk double-processing that item forever.
func (s *Scheduler) Run(ctx context.Context, items []backlog.Item) (*Report, error) {
	start := time.Now()
	metrics.BatchRunsTotal.Inc()
	defer func() {
		metrics.BatchLastRunTimestamp.Set(float64(time.Now().Unix()))
		metrics.BatchLastRunDuration.Set(time.Since(start).Seconds())
	}()

	todo := items
	if len(todo) > s.dailyLimit {
		todo = todo[:s.dailyLimit]
	}

	report := &Report{}
	logging.Info("Starting batch of %d photos (backlog %d, daily limit %d)",
		len(todo), len(items), s.dailyLimit)

	for _, item := range todo {
		report.Attempted++

		if wait := s.pacer.Wait(); wait > 0 {
			logging.Debug("Paced %v before annotating %s", wait, item.Key)
		}

		tags, err := s.annotateTimed(ctx, item.Path)
		if err != nil {
			report.FailedAnnotate++
			metrics.BatchItemsTotal.WithLabelValues("failed_annotate").Inc()
			if isFatal(err) {
				report.Stopped = true
				report.Remaining = len(items) - report.Succeeded
				logging.Error("Batch stopped at %s: %v", item.Key, err)
				return report, fmt.Errorf("batch terminated early: %w", err)
			}
			logging.Error("Failed to annotate %s: %v", item.Key, err)
			continue
		}

		if err := s.writer.WriteTags(item.Path, tags); err != nil {
			// The annotation result is discarded; the item stays in the
			// backlog and is re-annotated next run.
			report.FailedWrite++
			metrics.BatchItemsTotal.WithLabelValues("failed_write").Inc()
			logging.Error("Failed to write metadata for %s: %v", item.Key, err)
			continue
		}

		if err := s.marker.MarkCompleted(ctx, item.Key, tags); err != nil {
			report.Remaining = len(items) - report.Succeeded
			return report, fmt.Errorf("failed to persist completion of %s: %w", item.Key, err)
		}

		report.Succeeded++
		metrics.BatchItemsTotal.WithLabelValues("succeeded").Inc()
		logging.Status("Completed %s: %s", item.Key, strings.Join(tags, ", "))
	}

	report.Remaining = len(items) - report.Succeeded
	logging.Info("Batch done: %d attempted, %d succeeded, %d annotate failures, %d write failures, %d remaining",
		report.Attempted, report.Succeeded, report.FailedAnnotate, report.FailedWrite, report.Remaining)
	return report, nil
}

func (s *Scheduler) annotateTimed(ctx context.Context, path string) ([]string, error) {
	start := time.Now()
	tags, err := s.annotator.Annotate(ctx, path)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.AnnotateRequestsTotal.WithLabelValues(s.annotator.Name(), status).Inc()
	metrics.AnnotateDuration.WithLabelValues(s.annotator.Name()).Observe(time.Since(start).Seconds())
	return tags, err
}
