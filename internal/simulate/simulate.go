// Package simulate implements the validator collaborator on top of the
// Icarus Verilog toolchain: compile with iverilog, then run the simulation
// with vvp. Each validation works in a private scratch directory and never
// touches the artifact store.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/wlmoi/chipster/internal/artifact"
	"github.com/wlmoi/chipster/internal/config"
	"github.com/wlmoi/chipster/internal/logging"
	"github.com/wlmoi/chipster/internal/pipeline"
)

const vvpOutput = "design.vvp"

// timedOutLog carries the hang marker the classifier keys on.
const timedOutLog = "ERROR: simulation timed out. The testbench may have an infinite loop or is not finishing with $finish."

var unsafeFilename = regexp.MustCompile(`[^\w.\-]`)

// Simulator validates an artifact set by compiling and simulating it.
type Simulator struct {
	iverilog       string
	vvp            string
	workDir        string
	compileTimeout time.Duration
	runTimeout     time.Duration
}

// New builds a simulator from configuration.
func New(cfg config.SimulatorConfig) *Simulator {
	iverilog := cfg.Iverilog
	if iverilog == "" {
		iverilog = "iverilog"
	}
	vvp := cfg.VVP
	if vvp == "" {
		vvp = "vvp"
	}
	return &Simulator{
		iverilog:       iverilog,
		vvp:            vvp,
		workDir:        cfg.WorkDir,
		compileTimeout: config.Duration(cfg.CompileTimeout, 30*time.Second),
		runTimeout:     config.Duration(cfg.RunTimeout, 30*time.Second),
	}
}

// Validate compiles and simulates the artifact set. Failing compilation, a
// failing or hanging simulation, and error markers in the simulation output
// all produce a failing ValidationResult with a diagnostic log. Only the
// inability to invoke the toolchain at all returns an error.
func (s *Simulator) Validate(ctx context.Context, artifacts *artifact.Store) (*pipeline.ValidationResult, error) {
	log := logging.Get(logging.CategorySimulate)

	scratch, cleanup, err := s.scratchDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	sources, err := writeSources(scratch, artifacts)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &pipeline.ValidationResult{Log: "ERROR: no Verilog source files to simulate."}, nil
	}

	// Compile.
	args := append([]string{"-o", vvpOutput}, sources...)
	out, verdict, err := s.run(ctx, s.compileTimeout, scratch, s.iverilog, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot invoke %s: %w", s.iverilog, err)
	}
	switch verdict {
	case verdictTimeout:
		return &pipeline.ValidationResult{Log: "ERROR: compilation timed out.\n" + out}, nil
	case verdictFailed:
		log.Infof("compilation failed (%d bytes of diagnostics)", len(out))
		return &pipeline.ValidationResult{Log: "ERROR during compilation:\n" + out}, nil
	}

	// Simulate.
	out, verdict, err = s.run(ctx, s.runTimeout, scratch, s.vvp, vvpOutput)
	if err != nil {
		return nil, fmt.Errorf("cannot invoke %s: %w", s.vvp, err)
	}
	switch verdict {
	case verdictTimeout:
		log.Info("simulation timed out")
		return &pipeline.ValidationResult{Log: timedOutLog}, nil
	case verdictFailed:
		log.Infof("simulation exited non-zero (%d bytes of diagnostics)", len(out))
		return &pipeline.ValidationResult{Log: "ERROR during simulation:\n" + out}, nil
	}

	if failed, diag := scanOutput(out); failed {
		log.Info("simulation reported errors")
		return &pipeline.ValidationResult{Log: diag}, nil
	}

	log.Info("validation passed")
	return &pipeline.ValidationResult{Passed: true}, nil
}

type verdict int

const (
	verdictOK verdict = iota
	verdictFailed
	verdictTimeout
)

// run executes one toolchain command in dir with a timeout. A non-nil error
// means the command could not be started or was killed for reasons other
// than the deadline; exit status and timeout are reported via the verdict.
func (s *Simulator) run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (string, verdict, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.Get(logging.CategorySimulate).Debugf("running %s %s in %s", name, strings.Join(args, " "), dir)

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()

	if cctx.Err() == context.DeadlineExceeded {
		return string(out), verdictTimeout, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), verdictFailed, nil
		}
		return "", verdictOK, err
	}
	return string(out), verdictOK, nil
}

func (s *Simulator) scratchDir() (string, func(), error) {
	root := s.workDir
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create simulator work dir: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(root, "chipster-sim-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return scratch, func() { os.RemoveAll(scratch) }, nil
}

// writeSources materializes the artifact set into the scratch directory and
// returns the .v filenames to hand to the compiler, in stable order.
func writeSources(dir string, artifacts *artifact.Store) ([]string, error) {
	var sources []string
	for _, a := range artifacts.All() {
		name := SanitizeFilename(a.Name)
		if name == "" || strings.TrimSpace(a.Content) == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(a.Content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		if strings.HasSuffix(name, ".v") {
			sources = append(sources, name)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// scanOutput checks a finished simulation's output for error markers. vvp
// exits zero even when the testbench printed errors, so the text is the only
// verdict we have.
func scanOutput(out string) (bool, string) {
	if strings.Contains(out, "ERROR") {
		return true, out
	}
	return false, ""
}

// SanitizeFilename strips characters that are unsafe in filenames.
func SanitizeFilename(name string) string {
	return unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_")
}
