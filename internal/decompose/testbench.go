package decompose

import (
	"context"
	"fmt"
	"strings"

	"github.com/wlmoi/chipster/internal/generate"
	"github.com/wlmoi/chipster/internal/logging"
	"github.com/wlmoi/chipster/internal/pipeline"
)

const testbenchSystemPrompt = `You are an expert in Verilog testbench design.
Write a comprehensive testbench for the provided top-level module:
- Instantiate the DUT, drive realistic stimuli, and report results with
  $display or $monitor.
- Include a clock if the design needs one and terminate automatically with
  $finish.
- The initial block MUST start with $dumpfile("design.vcd") and
  $dumpvars(0, <testbench module>).
- If the DUT includes a header file, include the same header.
Your output MUST be only the testbench code, enclosed in a single markdown
code block. Do NOT repeat the DUT's code.`

// TestbenchWriter implements pipeline.CompanionGenerator: it produces the
// <top>_tb.v harness that exercises the primary design.
type TestbenchWriter struct {
	llm LLMClient
}

// NewTestbenchWriter returns a generator-backed testbench writer.
func NewTestbenchWriter(llm LLMClient) *TestbenchWriter {
	return &TestbenchWriter{llm: llm}
}

// GenerateCompanion writes the harness for the primary artifact. The harness
// name is derived from the primary file, so the classifier can match it
// literally in toolchain logs.
func (w *TestbenchWriter) GenerateCompanion(ctx context.Context, primaryName, primaryContent, goal string) (*pipeline.Companion, error) {
	top := strings.TrimSuffix(primaryName, ".v")
	tbModule := top + "_tb"

	user := fmt.Sprintf(`DESIGN GOAL: %s

The testbench module MUST be named %s.

TOP-LEVEL MODULE (%s), for context only:
`+"```verilog\n%s\n```\n", goal, tbModule, primaryName, primaryContent)

	response, err := w.llm.CompleteWithSystem(ctx, testbenchSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("testbench generation failed: %w", err)
	}

	code := generate.ExtractCodeBlock(response, "verilog")
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("testbench response contained no code")
	}

	logging.Get(logging.CategoryDecompose).Infof("testbench %s.v generated (%d bytes)", tbModule, len(code))
	return &pipeline.Companion{Name: tbModule + ".v", Content: code}, nil
}
