// Package retrieval supplies reference material for generation prompts from
// a local directory of example Verilog designs. It scores files by keyword
// overlap with the query; there is no index to build or maintain.
package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wlmoi/chipster/internal/logging"
)

const maxSnippetBytes = 4096

// Corpus implements pipeline.ContextProvider over a directory tree of
// .v/.vh example files.
type Corpus struct {
	dir         string
	maxSnippets int
}

// NewCorpus returns a corpus rooted at dir, returning at most maxSnippets
// examples per lookup.
func NewCorpus(dir string, maxSnippets int) *Corpus {
	if maxSnippets <= 0 {
		maxSnippets = 5
	}
	return &Corpus{dir: dir, maxSnippets: maxSnippets}
}

type scored struct {
	path  string
	score int
}

// Context returns the best-matching example snippets for the query, each
// preceded by its source path. An empty string means nothing matched.
func (c *Corpus) Context(ctx context.Context, query string) (string, error) {
	if c.dir == "" {
		return "", nil
	}

	keywords := tokenize(query)
	if len(keywords) == 0 {
		return "", nil
	}

	var candidates []scored
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isVerilogFile(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil // unreadable files are just skipped
		}
		if s := score(strings.ToLower(string(data)), keywords); s > 0 {
			candidates = append(candidates, scored{path: path, score: s})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("corpus walk failed: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].path < candidates[j].path
	})
	if len(candidates) > c.maxSnippets {
		candidates = candidates[:c.maxSnippets]
	}

	var sb strings.Builder
	for _, cand := range candidates {
		data, err := os.ReadFile(cand.path)
		if err != nil {
			continue
		}
		snippet := string(data)
		if len(snippet) > maxSnippetBytes {
			snippet = snippet[:maxSnippetBytes]
		}
		fmt.Fprintf(&sb, "Source: %s\n\n%s\n\n", cand.path, snippet)
	}

	logging.Get(logging.CategoryRetrieval).Infof("query matched %d corpus files", len(candidates))
	return sb.String(), nil
}

func isVerilogFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".v" || ext == ".vh" || ext == ".sv"
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func score(content string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		n += strings.Count(content, kw)
	}
	return n
}
