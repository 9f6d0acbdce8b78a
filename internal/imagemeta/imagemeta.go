// Package imagemeta embeds tag lists into image files in place.
//
// JPEG files receive a COM segment after the leading APPn run; PNG files
// receive tEXt chunks after IHDR. Neither path re-encodes pixel data.
// HEIC is not supported for writing, matching the upstream providers'
// read-only handling of that container.
package imagemeta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photo-tagger/internal/metrics"
)

var (
	// ErrUnsupportedFormat means tags cannot be embedded in this container.
	ErrUnsupportedFormat = errors.New("metadata embedding not supported for this format")
	// ErrWriteDenied means the file exists but cannot be rewritten.
	ErrWriteDenied = errors.New("file is not writable")
)

// tagPrefix marks comment segments owned by this tool, so rewrites
// replace our previous tags without touching foreign comments.
const tagPrefix = "Tags: "

// Writer satisfies the batch scheduler's MetadataWriter interface.
type Writer struct{}

// WriteTags implements batch.MetadataWriter.
func (Writer) WriteTags(path string, tags []string) error {
	return WriteTags(path, tags)
}

// WriteTags embeds the tag list into the image at path. The write is
// atomic: a temporary file in the same directory is renamed over the
// original.
func WriteTags(path string, tags []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	format := formatLabel(ext)

	err := writeTags(path, ext, tags)

	status := "success"
	if errors.Is(err, ErrUnsupportedFormat) {
		status = "unsupported"
	} else if err != nil {
		status = "error"
	}
	metrics.MetadataWritesTotal.WithLabelValues(format, status).Inc()
	return err
}

func writeTags(path, ext string, tags []string) error {
	switch ext {
	case ".jpg", ".jpeg":
		return writeJPEGComment(path, tagPrefix+strings.Join(tags, ", "))
	case ".png":
		value := strings.Join(tags, ", ")
		return writePNGText(path, map[string]string{
			"Description": value,
			"Title":       value,
			"Comment":     value,
		})
	case ".heic":
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

func formatLabel(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".heic":
		return "heic"
	default:
		return "unknown"
	}
}

// readWritable loads the file after confirming it can be rewritten.
func readWritable(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrWriteDenied)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, info, nil
}

// replaceFile atomically swaps the file contents via a same-directory
// temporary file and rename.
func replaceFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tagwrite-*")
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrWriteDenied)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// preserveTimes keeps the original mod time so incremental discovery does
// not re-report a photo just because we embedded tags into it.
func preserveTimes(path string, modTime time.Time) {
	_ = os.Chtimes(path, modTime, modTime)
}
