package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/wlmoi/chipster/internal/artifact"
	"github.com/wlmoi/chipster/internal/generate"
	"github.com/wlmoi/chipster/internal/logging"
)

const correctorSystemPrompt = `You are an expert Verilog debugger.
You are given a single Verilog file that failed validation, together with the
toolchain log. Identify the bug and return a corrected, complete version of
only that file. Your output MUST be only the corrected Verilog code, enclosed
in a single markdown code block.`

// Corrector produces a patched version of exactly one implicated artifact by
// invoking the generator with a failure-specific prompt. The primary and
// companion roles share this implementation; only the prompt differs. A
// corrector never retries internally; retries belong to the router's budget.
type Corrector struct {
	gen  Generator
	role artifact.Role
}

// NewPrimaryCorrector builds the corrector for the primary design artifact.
func NewPrimaryCorrector(gen Generator) *Corrector {
	return &Corrector{gen: gen, role: artifact.RolePrimary}
}

// NewCompanionCorrector builds the corrector for companion artifacts. Its
// prompt carries the primary artifact as read-only context, since the
// companion must stay consistent with the primary and never the reverse.
func NewCompanionCorrector(gen Generator) *Corrector {
	return &Corrector{gen: gen, role: artifact.RoleCompanion}
}

// Correct invokes the generator once and returns the patched content for the
// named artifact. A malformed or unparsable response yields the original
// content unchanged, so the engine records a no-op instead of crashing the
// run; only a failed generator invocation returns an error.
func (c *Corrector) Correct(ctx context.Context, store *artifact.Store, name, validationLog string) (string, error) {
	target, ok := store.Get(name)
	if !ok {
		return "", fmt.Errorf("implicated artifact %q not in store", name)
	}

	log := logging.Get(logging.CategoryPipeline)
	log.Infof("correcting %s artifact %q", c.role, name)

	prompt := c.buildPrompt(store, target, validationLog)

	response, err := c.gen.CompleteWithSystem(ctx, correctorSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("correction of %q failed: %w", name, err)
	}

	patched := generate.ExtractCodeBlock(response, "verilog")
	if strings.TrimSpace(patched) == "" {
		log.Warnf("unparsable correction response for %q, keeping original content", name)
		return target.Content, nil
	}
	return patched, nil
}

func (c *Corrector) buildPrompt(store *artifact.Store, target *artifact.Artifact, validationLog string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FAULTY VERILOG FILE (`%s`):\n```verilog\n%s\n```\n\n", target.Name, target.Content)
	fmt.Fprintf(&sb, "VALIDATION LOG:\n```\n%s\n```\n", validationLog)

	if c.role == artifact.RoleCompanion {
		if primary, ok := store.Primary(); ok && primary.Name != target.Name {
			fmt.Fprintf(&sb,
				"\nDEVICE UNDER TEST (`%s`), for context only. Do NOT modify or repeat it:\n```verilog\n%s\n```\n",
				primary.Name, primary.Content)
			sb.WriteString("\nThe corrected file must stay consistent with the device under test above.\n")
		}
	}

	fmt.Fprintf(&sb, "\nReturn the corrected, complete content of `%s` only.\n", target.Name)
	return sb.String()
}
