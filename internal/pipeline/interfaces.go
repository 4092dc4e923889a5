package pipeline

import (
	"context"

	"github.com/wlmoi/chipster/internal/artifact"
)

// Generator is the minimal interface the pipeline uses to call an LLM.
// Mirrors generate.Client to avoid an import cycle; stateless across calls.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Decomposition is the result of splitting a monolithic generation into
// named files. Exactly one entry in Files carries artifact.RolePrimary, and
// its name equals PrimaryName.
type Decomposition struct {
	PrimaryName string
	Files       *artifact.Store
}

// Decomposer splits monolithic generated text into named artifacts. Consumed
// once per run, immediately after initial generation.
type Decomposer interface {
	Decompose(ctx context.Context, candidate, query string) (*Decomposition, error)
}

// Companion is a generated supporting artifact, e.g. a test harness.
type Companion struct {
	Name    string
	Content string
}

// CompanionGenerator produces the test harness for a primary artifact.
type CompanionGenerator interface {
	GenerateCompanion(ctx context.Context, primaryName, primaryContent, goal string) (*Companion, error)
}

// ValidationResult is one validator verdict. Passed with an empty Log means a
// clean pass; a non-empty Log always means failure.
type ValidationResult struct {
	Passed bool
	Log    string
}

// Validator checks the current artifact set. It must be idempotent and must
// not mutate the store; any scratch workspace is its own. A returned error
// means the validator could not be invoked at all, which is fatal to the run,
// unlike a failing ValidationResult.
type Validator interface {
	Validate(ctx context.Context, artifacts *artifact.Store) (*ValidationResult, error)
}

// Persister exports the artifact set. Write-only: the engine never reads
// artifacts back from storage, only from the in-memory run state.
type Persister interface {
	Persist(ctx context.Context, query string, artifacts *artifact.Store) (string, error)
}

// ContextProvider supplies reference material for the generation prompt.
// Optional; retrieval failures are logged and ignored.
type ContextProvider interface {
	Context(ctx context.Context, query string) (string, error)
}
