package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/louisbranch/crosscheck/internal/services/review/app"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
	"github.com/louisbranch/crosscheck/internal/services/review/storage/memory"
	"github.com/louisbranch/crosscheck/internal/services/review/storage/sqlite"
)

// Config controls scenario execution.
type Config struct {
	DBPath     string
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
		Verbose:    false,
	}
}

// Runner executes Lua scenarios against an in-process review orchestrator.
// Without a DB path the runner uses the in-memory store, so scenarios leave
// no state behind.
type Runner struct {
	orch       *app.Service
	closer     func() error
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// NewRunner prepares a scenario runner backed by the configured store.
func NewRunner(cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	var store storage.SessionStore
	closer := func() error { return nil }
	if cfg.DBPath != "" {
		sqlStore, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		store = sqlStore
		closer = sqlStore.Close
	} else {
		store = memory.New()
	}

	return &Runner{
		orch:       app.New(store),
		closer:     closer,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps against the orchestrator.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &scenarioState{}

	for index, step := range scenario.Steps {
		step := step
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", index+1, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}
