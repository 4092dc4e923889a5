package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wlmoi/chipster/internal/config"
	"github.com/wlmoi/chipster/internal/pipeline"
)

func newBatchCmd(cfg *config.Config) *cobra.Command {
	var file string
	var parallel int

	cmd := &cobra.Command{
		Use:   "batch [\"<query>\" ...]",
		Short: "Run several design queries concurrently",
		Long: `Runs each query as an independent pipeline run. Queries come from the
arguments, or one per line from --file; blank lines and lines starting
with # are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := args
			if file != "" {
				fromFile, err := readQueries(file)
				if err != nil {
					return err
				}
				queries = append(queries, fromFile...)
			}
			if len(queries) == 0 {
				return fmt.Errorf("no queries given")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}

			// One shared archive handle; per-run connections would contend
			// on the database file.
			arch := openArchive(cfg)
			if arch != nil {
				defer arch.Close()
			}

			var mu sync.Mutex
			results := make([]*pipeline.RunState, len(queries))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(parallel)
			for i, query := range queries {
				g.Go(func() error {
					st := engine.Run(gctx, query, cfg.Pipeline.RetryBudget)
					archiveRun(arch, st)
					mu.Lock()
					results[i] = st
					fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %-22s %s\n",
						i+1, len(queries), st.Terminal, query)
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for _, st := range results {
				if st == nil || st.Terminal != pipeline.TerminalSucceeded {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d runs succeeded\n", len(queries)-failed, len(queries))
			if failed > 0 {
				return fmt.Errorf("%d of %d runs did not succeed", failed, len(queries))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "file with one query per line")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "maximum concurrent runs")
	return cmd
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open query file: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, sc.Err()
}
