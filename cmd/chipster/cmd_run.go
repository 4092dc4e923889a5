package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wlmoi/chipster/internal/config"
	"github.com/wlmoi/chipster/internal/decompose"
	"github.com/wlmoi/chipster/internal/generate"
	"github.com/wlmoi/chipster/internal/pipeline"
	"github.com/wlmoi/chipster/internal/retrieval"
	"github.com/wlmoi/chipster/internal/simulate"
	"github.com/wlmoi/chipster/internal/store"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var retries int

	cmd := &cobra.Command{
		Use:   "run \"<design query>\"",
		Short: "Generate a design for the query and simulate it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			budget := cfg.Pipeline.RetryBudget
			if cmd.Flags().Changed("retries") {
				budget = retries
			}

			engine, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}

			arch := openArchive(cfg)
			if arch != nil {
				defer arch.Close()
			}

			st := engine.Run(ctx, args[0], budget)
			printRun(cmd, st)
			archiveRun(arch, st)

			if st.Terminal != pipeline.TerminalSucceeded {
				return fmt.Errorf("run %s finished %s", st.ID, st.Terminal)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", 0, "correction retry budget (overrides config)")
	return cmd
}

// buildEngine assembles the pipeline from its configured collaborators. The
// Gemini client is the only collaborator that can fail to construct.
func buildEngine(ctx context.Context, cfg *config.Config) (*pipeline.Engine, error) {
	llm, err := generate.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithGenerateTimeout(config.Duration(cfg.Pipeline.GenerateTimeout, 5*time.Minute)),
	}
	if cfg.Retrieval.CorpusDir != "" {
		opts = append(opts, pipeline.WithContextProvider(
			retrieval.NewCorpus(cfg.Retrieval.CorpusDir, cfg.Retrieval.MaxSnippets)))
	}

	return pipeline.NewEngine(
		llm,
		decompose.NewDecomposer(llm),
		decompose.NewTestbenchWriter(llm),
		simulate.New(cfg.Simulator),
		store.NewDirStore(cfg.Store.OutputDir),
		opts...,
	), nil
}

func printRun(cmd *cobra.Command, st *pipeline.RunState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", st.ID)
	fmt.Fprintf(out, "Outcome:  %s\n", st.Terminal)
	fmt.Fprintf(out, "Retries:  %d/%d\n", st.RetryCount, st.RetryBudget)
	if st.StorageDir != "" {
		fmt.Fprintf(out, "Output:   %s\n", st.StorageDir)
	}
	if st.Failure != "" {
		fmt.Fprintf(out, "Failure:  %s\n", st.Failure)
	}

	if n := st.Changes.Len(); n > 0 {
		fmt.Fprintf(out, "Corrections (%d):\n", n)
		for _, c := range st.Changes.Entries() {
			status := "applied"
			if c.NoOp {
				status = "no-op"
			}
			fmt.Fprintf(out, "  #%d %-30s %s\n", c.Ordinal, c.Artifact, status)
		}
	}
	if st.Terminal != pipeline.TerminalSucceeded && st.ValidationLog != "" {
		fmt.Fprintf(out, "Last validation log:\n%s\n", st.ValidationLog)
	}
}

// openArchive opens the configured run archive, or returns nil when archiving
// is disabled or the archive cannot be opened. Archiving is best effort and
// never changes a run's outcome.
func openArchive(cfg *config.Config) *store.Archive {
	if cfg.Store.ArchivePath == "" {
		return nil
	}
	arch, err := store.OpenArchive(cfg.Store.ArchivePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning: could not open run archive:", err)
		return nil
	}
	return arch
}

// archiveRun records a terminal run for audit. Archive failures are reported
// but never change the run's outcome.
func archiveRun(arch *store.Archive, st *pipeline.RunState) {
	if arch == nil || st.Terminal == pipeline.TerminalRunning {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := arch.SaveRun(ctx, st); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: could not archive run:", err)
	}
}
