package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photo-tagger/internal/logging"
	"photo-tagger/internal/mediatypes"
	"photo-tagger/internal/metrics"
	"photo-tagger/internal/pathkey"
)

// Mode selects how a discovery pass filters what it finds.
type Mode string

const (
	// ModeBacklog enumerates every supported image under the root,
	// regardless of prior runs.
	ModeBacklog Mode = "backlog"
	// ModeIncremental retains only files modified strictly after the
	// checkpoint. Without a recorded checkpoint it behaves as ModeBacklog.
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeBacklog:
		return ModeBacklog, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q (expected backlog or incremental)", s)
	}
}

// Photo is one discovered image: its canonical key and the OS path it
// was found at during this pass.
type Photo struct {
	Key  string
	Path string
}

// Result reports what a discovery pass found and what it excluded.
type Result struct {
	Photos []Photo

	FilesSeen   int
	Unsupported int
	Unanchored  int
	Unmodified  int
	WalkErrors  int
}

// Scanner walks a root directory and produces canonical photo keys.
// It never touches the persistent stores; the caller merges results.
type Scanner struct {
	root   string
	anchor string
}

// NewScanner creates a Scanner for the given root. The anchor segment is
// forwarded to the path normalizer; empty means pathkey.DefaultAnchor.
func NewScanner(root, anchor string) *Scanner {
	return &Scanner{
		root:   root,
		anchor: anchor,
	}
}

// Discover enumerates supported images under the root. In incremental
// mode with a recorded checkpoint, only files modified strictly after the
// checkpoint are returned. Unreadable directories and unanchored paths
// are logged and skipped; the scan completes over the reachable subtree.
func (s *Scanner) Discover(mode Mode, checkpoint time.Time, haveCheckpoint bool) (*Result, error) {
	start := time.Now()
	metrics.DiscoveryRunsTotal.Inc()

	filterByTime := mode == ModeIncremental && haveCheckpoint
	if mode == ModeIncremental && !haveCheckpoint {
		logging.Info("No checkpoint recorded; incremental scan will enumerate everything once")
	}

	result := &Result{}
	seen := make(map[string]bool)

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.WalkErrors++
			metrics.DiscoverySkippedTotal.WithLabelValues("walk_error").Inc()
			logging.Warn("Error accessing path %s: %v", path, err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") && path != s.root {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		result.FilesSeen++
		metrics.DiscoveryFilesSeen.Inc()

		ext := strings.ToLower(filepath.Ext(info.Name()))
		if !mediatypes.IsTaggable(ext) {
			result.Unsupported++
			metrics.DiscoverySkippedTotal.WithLabelValues("unsupported").Inc()
			return nil
		}

		if filterByTime && !info.ModTime().After(checkpoint) {
			result.Unmodified++
			metrics.DiscoverySkippedTotal.WithLabelValues("unmodified").Inc()
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}

		key, err := pathkey.Normalize(abs, s.anchor)
		if err != nil {
			var unanchored *pathkey.UnanchoredPathError
			if errors.As(err, &unanchored) {
				result.Unanchored++
				metrics.DiscoverySkippedTotal.WithLabelValues("unanchored").Inc()
				logging.Error("Skipping unanchored path: %v", err)
				return nil
			}
			return err
		}

		if !seen[key] {
			seen[key] = true
			result.Photos = append(result.Photos, Photo{Key: key, Path: abs})
			metrics.DiscoveryFilesReturned.Inc()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery walk failed: %w", err)
	}

	duration := time.Since(start)
	metrics.DiscoveryDuration.Observe(duration.Seconds())
	logging.Info("Discovery complete: %d photos (%d entries seen, %d unsupported, %d unanchored, %d unmodified, %d walk errors) in %v",
		len(result.Photos), result.FilesSeen, result.Unsupported, result.Unanchored, result.Unmodified, result.WalkErrors, duration)

	return result, nil
}
