// Package store persists artifacts and archives terminal run states. The
// pipeline only ever writes here; it reads artifacts exclusively from memory.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wlmoi/chipster/internal/artifact"
	"github.com/wlmoi/chipster/internal/logging"
)

var nonWord = regexp.MustCompile(`\W+`)

// DirStore implements pipeline.Persister by exporting the artifact set to a
// per-query directory under a fixed root.
type DirStore struct {
	root string
}

// NewDirStore returns a persister rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Persist writes every artifact into generated_<query> under the root and
// returns that directory as the storage handle. Re-persisting the same query
// overwrites in place, so the directory always mirrors the latest artifact
// set.
func (d *DirStore) Persist(ctx context.Context, query string, artifacts *artifact.Store) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(d.root, "generated_"+SanitizeQuery(query))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	log := logging.Get(logging.CategoryStore)
	for _, a := range artifacts.All() {
		name := sanitizeFilename(a.Name)
		if name == "" || strings.TrimSpace(a.Content) == "" {
			log.Warnf("skipping artifact %q with empty name or content", a.Name)
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(a.Content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Debugf("wrote %s (%d bytes, %s)", name, len(a.Content), a.Role)
	}
	return dir, nil
}

// SanitizeQuery turns a free-text query into a directory-name-safe slug.
func SanitizeQuery(query string) string {
	s := nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "query"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

var unsafeFilename = regexp.MustCompile(`[^\w.\-]`)

func sanitizeFilename(name string) string {
	return unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_")
}
