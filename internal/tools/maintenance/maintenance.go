package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
	"github.com/louisbranch/crosscheck/internal/services/review/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath     string        `env:"CROSSCHECK_DB_PATH"`
	Timeout    time.Duration `env:"CROSSCHECK_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	Validate   bool
	List       bool
	Prune      bool
	OlderThan  time.Duration
	DryRun     bool
	JSONOutput bool
}

type envConfig struct {
	DBPath  string        `env:"CROSSCHECK_DB_PATH"`
	Timeout time.Duration `env:"CROSSCHECK_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "crosscheck.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to session sqlite database (default: CROSSCHECK_DB_PATH or data/crosscheck.db)")
	fs.BoolVar(&cfg.Validate, "validate", false, "validate every stored session document")
	fs.BoolVar(&cfg.List, "list", false, "list stored sessions")
	fs.BoolVar(&cfg.Prune, "prune", false, "delete sessions not updated within -older-than")
	fs.DurationVar(&cfg.OlderThan, "older-than", 0, "staleness cutoff for -prune (e.g. 720h)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "report what -prune would delete without deleting")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	modes := 0
	for _, enabled := range []bool{cfg.Validate, cfg.List, cfg.Prune} {
		if enabled {
			modes++
		}
	}
	if modes != 1 {
		return errors.New("exactly one of -validate, -list, or -prune is required")
	}
	if cfg.Prune && cfg.OlderThan <= 0 {
		return errors.New("-prune requires -older-than > 0")
	}
	if cfg.DryRun && !cfg.Prune {
		return errors.New("-dry-run only applies to -prune")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	return runWithDeps(ctx, cfg, store, time.Now().UTC(), out, errOut)
}

// runWithDeps contains the core maintenance logic with an injectable store.
// It owns the store lifecycle, closing it on return.
func runWithDeps(ctx context.Context, cfg Config, store sessionStore, now time.Time, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close session store: %v\n", err)
		}
	}()

	switch {
	case cfg.Validate:
		return runValidate(ctx, store, cfg.JSONOutput, out, errOut)
	case cfg.List:
		return runList(ctx, store, cfg.JSONOutput, out)
	case cfg.Prune:
		return runPrune(ctx, store, now.Add(-cfg.OlderThan), cfg.DryRun, cfg.JSONOutput, out)
	default:
		return errors.New("no maintenance mode selected")
	}
}

type validateReport struct {
	Mode      string   `json:"mode"`
	Total     int      `json:"total"`
	Valid     int      `json:"valid"`
	Malformed int      `json:"malformed"`
	Warnings  []string `json:"warnings,omitempty"`
}

// runValidate runs every stored document through the schema-on-read gate.
// Malformed documents are reported and left untouched; repair is an operator
// decision, never automatic.
func runValidate(ctx context.Context, store sessionStore, jsonOutput bool, out io.Writer, errOut io.Writer) error {
	records, err := store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("list session records: %w", err)
	}

	report := validateReport{Mode: "validate", Total: len(records)}
	for _, record := range records {
		if _, err := storage.DecodeSession(record.ID, record.Payload); err != nil {
			report.Malformed++
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", record.ID, err))
			continue
		}
		report.Valid++
	}

	if jsonOutput {
		if err := outputJSON(out, report); err != nil {
			return err
		}
	} else {
		for _, warning := range report.Warnings {
			fmt.Fprintf(errOut, "Warning: %s\n", warning)
		}
		fmt.Fprintf(out, "Validated %d sessions (%d valid, %d malformed)\n",
			report.Total, report.Valid, report.Malformed)
	}

	if report.Malformed > 0 {
		return errors.New("validation failed")
	}
	return nil
}

type listReport struct {
	Mode     string        `json:"mode"`
	Sessions []sessionLine `json:"sessions"`
}

type sessionLine struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Target       string `json:"target"`
	CurrentRound int    `json:"current_round"`
	UpdatedAt    string `json:"updated_at"`
}

func runList(ctx context.Context, store sessionStore, jsonOutput bool, out io.Writer) error {
	summaries, err := store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	report := listReport{Mode: "list", Sessions: make([]sessionLine, 0, len(summaries))}
	for _, summary := range summaries {
		report.Sessions = append(report.Sessions, sessionLine{
			ID:           summary.ID,
			Status:       summary.Status,
			Target:       summary.Target,
			CurrentRound: summary.CurrentRound,
			UpdatedAt:    summary.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if jsonOutput {
		return outputJSON(out, report)
	}
	for _, line := range report.Sessions {
		fmt.Fprintf(out, "%s status=%s round=%d updated=%s\n",
			line.ID, line.Status, line.CurrentRound, line.UpdatedAt)
	}
	fmt.Fprintf(out, "%d sessions\n", len(report.Sessions))
	return nil
}

type pruneReport struct {
	Mode    string   `json:"mode"`
	DryRun  bool     `json:"dry_run"`
	Cutoff  string   `json:"cutoff"`
	Pruned  []string `json:"pruned,omitempty"`
	Skipped int      `json:"skipped"`
}

func runPrune(ctx context.Context, store sessionStore, cutoff time.Time, dryRun, jsonOutput bool, out io.Writer) error {
	summaries, err := store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	report := pruneReport{
		Mode:   "prune",
		DryRun: dryRun,
		Cutoff: cutoff.UTC().Format(time.RFC3339),
	}
	for _, summary := range summaries {
		if !summary.UpdatedAt.Before(cutoff) {
			report.Skipped++
			continue
		}
		if !dryRun {
			if err := store.DeleteSession(ctx, summary.ID); err != nil {
				return fmt.Errorf("delete session %s: %w", summary.ID, err)
			}
		}
		report.Pruned = append(report.Pruned, summary.ID)
	}

	if jsonOutput {
		return outputJSON(out, report)
	}
	verb := "Pruned"
	if dryRun {
		verb = "Would prune"
	}
	for _, id := range report.Pruned {
		fmt.Fprintf(out, "%s %s\n", verb, id)
	}
	fmt.Fprintf(out, "%s %d sessions (%d kept, cutoff %s)\n",
		verb, len(report.Pruned), report.Skipped, report.Cutoff)
	return nil
}

func outputJSON(out io.Writer, report any) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}

func openStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}
