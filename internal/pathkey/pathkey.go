// Package pathkey converts filesystem paths of any OS-native form into
// canonical, platform-independent photo keys.
//
// A key is the portion of the path from the configured anchor segment
// onward, with forward-slash separators. Drive letters, UNC prefixes and
// mount points in front of the anchor are discarded, so the same physical
// photo yields the same key on every machine that mounts the library:
//
//	\\nas\Photos\2024\img.jpg   -> Photos/2024/img.jpg
//	/mnt/nas/Photos/2024/img.jpg -> Photos/2024/img.jpg
package pathkey

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultAnchor is the root segment used when none is configured.
const DefaultAnchor = "Photos"

// UnanchoredPathError indicates a path that does not contain the anchor
// segment. This usually means a misconfigured root or a file outside the
// managed tree; callers should skip the file and log, not abort the run.
type UnanchoredPathError struct {
	Path   string
	Anchor string
}

func (e *UnanchoredPathError) Error() string {
	return fmt.Sprintf("path %q does not contain anchor segment %q", e.Path, e.Anchor)
}

// segments splits a raw path on both separator styles, dropping empty
// elements produced by doubled separators (UNC prefixes, trailing slashes).
func segments(raw string) []string {
	unified := strings.ReplaceAll(raw, `\`, "/")
	parts := strings.Split(unified, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize converts a raw filesystem path into a canonical photo key
// anchored at the first occurrence of the anchor segment. It is a pure
// function with no filesystem access.
func Normalize(raw, anchor string) (string, error) {
	if anchor == "" {
		anchor = DefaultAnchor
	}

	segs := segments(raw)
	for i, s := range segs {
		if s == anchor {
			return strings.Join(segs[i:], "/"), nil
		}
	}
	return "", &UnanchoredPathError{Path: raw, Anchor: anchor}
}

// Resolve maps a photo key back to an OS path under root. When root itself
// contains the anchor segment the key is grafted at the anchor's parent;
// otherwise the anchor is assumed to sit directly under root.
func Resolve(root, anchor, key string) string {
	if anchor == "" {
		anchor = DefaultAnchor
	}

	rootSegs := segments(root)
	for i, s := range rootSegs {
		if s == anchor {
			base := strings.Join(rootSegs[:i], string(filepath.Separator))
			if strings.HasPrefix(root, "/") || strings.HasPrefix(root, `\`) {
				base = string(filepath.Separator) + base
			}
			return filepath.Join(base, filepath.FromSlash(key))
		}
	}
	return filepath.Join(root, filepath.FromSlash(key))
}
