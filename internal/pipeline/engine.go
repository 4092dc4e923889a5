package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wlmoi/chipster/internal/artifact"
	"github.com/wlmoi/chipster/internal/logging"
)

const generatorSystemPrompt = `You are an expert Verilog HDL designer.
Based on the reference material and the user's request, generate the complete,
monolithic Verilog code. The code should be well-structured and include any
necessary define macros or parameters at the top. Your output MUST be only the
Verilog code, enclosed in a single markdown code block.`

// stageOrder is the fixed linear pipeline. Correction branches loop back to
// the persist→validate portion; there is no other cycle.
var stageOrder = []string{
	"generate", "decompose", "companion", "persist", "validate", "route",
}

// Option configures an Engine.
type Option func(*Engine)

// WithContextProvider attaches an optional retrieval source for the
// generation prompt. Retrieval failures never fail a run.
func WithContextProvider(p ContextProvider) Option {
	return func(e *Engine) { e.retriever = p }
}

// WithGenerateTimeout bounds each generator invocation.
func WithGenerateTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.genTimeout = d
		}
	}
}

// Engine sequences the pipeline stages, owns the run state, enforces the
// retry budget, and terminates on success or exhaustion. Stages run strictly
// sequentially: each consumes the full output of its predecessor, so there is
// nothing to parallelize within a run. Distinct runs are independent and may
// execute concurrently.
type Engine struct {
	gen        Generator
	decomposer Decomposer
	companions CompanionGenerator
	validator  Validator
	persister  Persister
	retriever  ContextProvider

	primary   *Corrector
	companion *Corrector

	genTimeout time.Duration
}

// NewEngine wires the engine to its external collaborators.
func NewEngine(gen Generator, dec Decomposer, comp CompanionGenerator, val Validator, persist Persister, opts ...Option) *Engine {
	e := &Engine{
		gen:        gen,
		decomposer: dec,
		companions: comp,
		validator:  val,
		persister:  persist,
		primary:    NewPrimaryCorrector(gen),
		companion:  NewCompanionCorrector(gen),
		genTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one pipeline run to a terminal state. A retryBudget of 0 means
// single attempt, no correction. The returned RunState always carries enough
// information (last validation log, change log, retry count) to explain why
// the run stopped; when ctx is cancelled between stages the state is returned
// as-is with Terminal still RUNNING.
func (e *Engine) Run(ctx context.Context, query string, retryBudget int) *RunState {
	st := NewRunState(query, retryBudget)
	log := logging.Get(logging.CategoryPipeline)
	log.Infof("run %s started: budget=%d query=%q", st.ID, st.RetryBudget, query)

	// Stage: generate.
	if cancelled(ctx, st, "generate") {
		return st
	}
	candidate, err := e.generate(ctx, query)
	if err != nil {
		return e.fail(ctx, st, "generate", err)
	}

	// Stage: decompose.
	if cancelled(ctx, st, "decompose") {
		return st
	}
	dec, err := e.decomposer.Decompose(ctx, candidate, query)
	if err != nil {
		return e.fail(ctx, st, "decompose", err)
	}
	if err := checkDecomposition(dec); err != nil {
		return e.fail(ctx, st, "decompose", err)
	}
	st.Artifacts.Merge(dec.Files)
	log.Infof("decomposed into %d files, primary=%q", st.Artifacts.Len(), dec.PrimaryName)

	// Stage: companion-generate.
	if cancelled(ctx, st, "companion") {
		return st
	}
	primary, _ := st.Artifacts.Primary()
	comp, err := e.companions.GenerateCompanion(ctx, primary.Name, primary.Content, query)
	if err != nil {
		return e.fail(ctx, st, "companion", err)
	}
	if comp == nil || comp.Name == "" || strings.TrimSpace(comp.Content) == "" {
		return e.fail(ctx, st, "companion", errors.New("companion generator returned no artifact"))
	}
	st.Artifacts.Put(comp.Name, comp.Content, artifact.RoleCompanion)
	st.HarnessName = comp.Name
	log.Infof("companion harness %q generated", comp.Name)

	// Persist→validate→route loop. maxPasses is the engine's own circuit
	// breaker: strictly above anything the router can legally request, it
	// only fires if the routing logic is defective.
	maxPasses := st.RetryBudget + len(stageOrder)
	for pass := 0; ; pass++ {
		if pass >= maxPasses {
			st.Terminal = TerminalBudgetExceeded
			st.Failure = fmt.Sprintf("engine invocation cap reached after %d validation passes", pass)
			st.FinishedAt = time.Now()
			log.Errorf("run %s: %s", st.ID, st.Failure)
			return st
		}
		if cancelled(ctx, st, "persist") {
			return st
		}

		handle, err := e.persister.Persist(ctx, query, st.Artifacts)
		if err != nil {
			return e.fail(ctx, st, "persist", err)
		}
		st.StorageDir = handle

		if cancelled(ctx, st, "validate") {
			return st
		}
		if err := e.validate(ctx, st); err != nil {
			return e.fail(ctx, st, "validate", err)
		}

		decision := Route(st.ValidationLog, st.RetryCount, st.RetryBudget, st.CompanionNames())
		log.Infof("run %s: pass=%d decision=%s retry=%d/%d",
			st.ID, pass, decision, st.RetryCount, st.RetryBudget)

		switch decision {
		case DecideSuccess:
			st.Terminal = TerminalSucceeded
			st.FinishedAt = time.Now()
			log.Infof("run %s succeeded after %d corrections", st.ID, st.Changes.Len())
			return st

		case DecideBudgetExceeded:
			st.Terminal = TerminalBudgetExceeded
			st.FinishedAt = time.Now()
			log.Warnf("run %s exhausted retry budget %d", st.ID, st.RetryBudget)
			return st

		case DecideCorrectPrimary, DecideCorrectCompanion:
			if cancelled(ctx, st, "correct") {
				return st
			}
			st.RetryCount++
			if err := e.correct(ctx, st, decision); err != nil {
				return e.fail(ctx, st, "correct", err)
			}
		}
	}
}

// generate runs retrieval (best effort) and the initial generation call.
func (e *Engine) generate(ctx context.Context, query string) (string, error) {
	log := logging.Get(logging.CategoryPipeline)

	references := "No reference material available."
	if e.retriever != nil {
		refs, err := e.retriever.Context(ctx, query)
		if err != nil {
			log.Warnf("retrieval failed, continuing without references: %v", err)
		} else if strings.TrimSpace(refs) != "" {
			references = refs
		}
	}

	prompt := fmt.Sprintf("REFERENCE MATERIAL:\n%s\n\nREQUEST:\n%s\n", references, query)

	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	response, err := e.gen.CompleteWithSystem(genCtx, generatorSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return response, nil
}

// validate invokes the validator and normalizes its verdict into the run
// state. A validator timeout is a failing validation, not an invocation
// failure: it participates in retry accounting and carries the hang marker
// the classifier keys on. Only the inability to run the validator at all is
// returned as an error.
func (e *Engine) validate(ctx context.Context, st *RunState) error {
	res, err := e.validator.Validate(ctx, st.Artifacts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			st.ValidationLog = "ERROR: validation timed out; the harness may be missing $finish or contain an unbounded loop."
			return nil
		}
		return fmt.Errorf("validator invocation failed: %w", err)
	}
	if res == nil {
		return errors.New("validator returned no result")
	}
	if res.Passed {
		st.ValidationLog = ""
		return nil
	}
	if strings.TrimSpace(res.Log) == "" {
		// Empty log means success everywhere else; keep the invariant.
		st.ValidationLog = "ERROR: validation failed without diagnostics."
		return nil
	}
	st.ValidationLog = res.Log
	return nil
}

// correct dispatches the corrector selected by the router, applies the patch,
// and records the before/after pair unconditionally; no-op corrections are
// flagged, never dropped, so repeated dead corrections burn the budget and
// terminate cleanly instead of looping forever.
func (e *Engine) correct(ctx context.Context, st *RunState, decision Decision) error {
	log := logging.Get(logging.CategoryPipeline)

	var corrector *Corrector
	var targetName string
	if decision == DecideCorrectCompanion {
		corrector = e.companion
		targetName = ImplicatedCompanion(st.ValidationLog, st.CompanionNames(), st.HarnessName)
	} else {
		corrector = e.primary
		primary, ok := st.Artifacts.Primary()
		if !ok {
			return errors.New("no primary artifact in store")
		}
		targetName = primary.Name
	}

	before := st.Artifacts.Content(targetName)

	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()
	patched, err := corrector.Correct(genCtx, st.Artifacts, targetName, st.ValidationLog)
	if err != nil {
		return err
	}

	entry := st.Changes.Record(targetName, before, patched)
	if entry.NoOp {
		log.Warnf("run %s: correction #%d of %q was a no-op", st.ID, entry.Ordinal, targetName)
		return nil
	}
	if err := st.Artifacts.SetContent(targetName, patched); err != nil {
		return err
	}
	log.Debugf("run %s: correction #%d applied to %q:\n%s", st.ID, entry.Ordinal, targetName, entry.Diff)
	return nil
}

// fail ends the run over a collaborator error. Cancellation surfacing through
// a collaborator mid-call is not an invocation failure: the run keeps its last
// consistent state with Terminal still RUNNING, same as cancellation between
// stages.
func (e *Engine) fail(ctx context.Context, st *RunState, stage string, err error) *RunState {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		st.Failure = fmt.Sprintf("cancelled during %s: %v", stage, err)
		st.FinishedAt = time.Now()
		logging.Get(logging.CategoryPipeline).Warnf("run %s %s", st.ID, st.Failure)
		return st
	}
	st.Terminal = TerminalUnclassifiable
	st.Failure = fmt.Sprintf("%s: %v", stage, err)
	st.FinishedAt = time.Now()
	logging.Get(logging.CategoryPipeline).Errorf("run %s failed unclassifiable at %s: %v", st.ID, stage, err)
	return st
}

// cancelled checks for cooperative cancellation between stages. A cancelled
// run keeps its last consistent values and Terminal stays RUNNING.
func cancelled(ctx context.Context, st *RunState, stage string) bool {
	if ctx.Err() == nil {
		return false
	}
	st.Failure = fmt.Sprintf("cancelled before %s: %v", stage, ctx.Err())
	st.FinishedAt = time.Now()
	logging.Get(logging.CategoryPipeline).Warnf("run %s %s", st.ID, st.Failure)
	return true
}

// checkDecomposition enforces the decomposition boundary contract: at least
// one file, exactly one primary, and the primary name resolvable in the set.
func checkDecomposition(dec *Decomposition) error {
	if dec == nil || dec.Files == nil || dec.Files.Len() == 0 {
		return errors.New("decomposer returned no files")
	}
	primaries := 0
	for _, a := range dec.Files.All() {
		if a.Role == artifact.RolePrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return fmt.Errorf("decomposer tagged %d primary artifacts, want exactly 1", primaries)
	}
	if dec.PrimaryName == "" {
		return errors.New("decomposer returned an empty primary name")
	}
	return nil
}
