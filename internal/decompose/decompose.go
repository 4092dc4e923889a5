// Package decompose splits a monolithic generation into named artifacts and
// writes the companion test harness. Both collaborators drive the generator
// with structured-output prompts and fall back to regex extraction when the
// response cannot be parsed.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wlmoi/chipster/internal/artifact"
	"github.com/wlmoi/chipster/internal/generate"
	"github.com/wlmoi/chipster/internal/logging"
	"github.com/wlmoi/chipster/internal/pipeline"
)

// LLMClient is the slice of the generator contract this package needs.
// Mirrors pipeline.Generator to avoid an import knot at wiring time.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const decomposerSystemPrompt = `You are an expert Verilog refactoring tool.
Analyze monolithic Verilog code and decompose it into multiple files:
1. Identify the top-level module.
2. Separate each module into its own file (module_name.v).
3. Move all define macros and shared parameter declarations into a single
   header file (shared_header.vh) and add the include directive to each .v
   file that needs it.
4. Respond with a single valid JSON object with two keys: "top_module_name"
   and "files", where "files" maps filenames (.v or .vh) to content.
Your final output MUST be only the JSON object.`

var modulePattern = regexp.MustCompile(`module\s+([\w$]+)`)

// Decomposer implements pipeline.Decomposer with one generator call per run.
type Decomposer struct {
	llm LLMClient
}

// NewDecomposer returns a generator-backed decomposer.
func NewDecomposer(llm LLMClient) *Decomposer {
	return &Decomposer{llm: llm}
}

type decompositionJSON struct {
	TopModuleName string            `json:"top_module_name"`
	Files         map[string]string `json:"files"`
}

// Decompose splits candidate text into named, role-tagged artifacts. The
// primary file is placed first so the store order is stable across the run.
// When the generator response cannot be parsed, the whole candidate becomes a
// single monolithic primary file named after its top module declaration.
func (d *Decomposer) Decompose(ctx context.Context, candidate, query string) (*pipeline.Decomposition, error) {
	log := logging.Get(logging.CategoryDecompose)

	user := fmt.Sprintf("USER REQUEST: %s\n\nMONOLITHIC VERILOG CODE:\n```verilog\n%s\n```\n", query, candidate)
	response, err := d.llm.CompleteWithSystem(ctx, decomposerSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("decomposer call failed: %w", err)
	}

	parsed, perr := parseDecomposition(response)
	if perr != nil {
		log.Warnf("falling back to monolithic decomposition: %v", perr)
		return monolithic(candidate)
	}

	files := artifact.NewStore()
	primaryFile := pickPrimaryFile(parsed)
	files.Put(primaryFile, parsed.Files[primaryFile], artifact.RolePrimary)

	rest := make([]string, 0, len(parsed.Files)-1)
	for name := range parsed.Files {
		if name != primaryFile {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		files.Put(name, parsed.Files[name], artifact.RoleCompanion)
	}

	log.Infof("decomposed into %d files, top module %q", files.Len(), parsed.TopModuleName)
	return &pipeline.Decomposition{PrimaryName: primaryFile, Files: files}, nil
}

func parseDecomposition(response string) (*decompositionJSON, error) {
	raw, ok := generate.ExtractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("no JSON object in decomposer response")
	}
	var parsed decompositionJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("invalid decomposer JSON: %w", err)
	}
	if parsed.TopModuleName == "" || len(parsed.Files) == 0 {
		return nil, fmt.Errorf("decomposer JSON missing top_module_name or files")
	}
	for name, content := range parsed.Files {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("decomposer JSON has an empty filename or file body")
		}
	}
	return &parsed, nil
}

// pickPrimaryFile resolves which file holds the top-level module: the
// conventional <top>.v when present, otherwise the first .v file mentioning
// the top module name, otherwise the first .v file.
func pickPrimaryFile(parsed *decompositionJSON) string {
	want := parsed.TopModuleName + ".v"
	if _, ok := parsed.Files[want]; ok {
		return want
	}

	names := make([]string, 0, len(parsed.Files))
	for name := range parsed.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasSuffix(name, ".v") && strings.Contains(parsed.Files[name], parsed.TopModuleName) {
			return name
		}
	}
	for _, name := range names {
		if strings.HasSuffix(name, ".v") {
			return name
		}
	}
	return names[0]
}

// monolithic is the parse-failure fallback: one primary file named after the
// first module declaration in the candidate text.
func monolithic(candidate string) (*pipeline.Decomposition, error) {
	code := generate.ExtractCodeBlock(candidate, "verilog")
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("candidate text contains no code")
	}

	name := "unknown_module"
	if m := modulePattern.FindStringSubmatch(code); m != nil {
		name = m[1]
	}

	files := artifact.NewStore()
	fileName := name + ".v"
	files.Put(fileName, code, artifact.RolePrimary)
	return &pipeline.Decomposition{PrimaryName: fileName, Files: files}, nil
}
