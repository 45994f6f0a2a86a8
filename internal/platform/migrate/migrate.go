package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Ledger persists which migration files have been applied.
type Ledger interface {
	// Ensure creates the ledger table if it does not exist.
	Ensure(ctx context.Context) error
	Applied(ctx context.Context) (map[string]struct{}, error)
	// Apply runs script and records name in a single transaction.
	Apply(ctx context.Context, name, script string) error
}

type Report struct {
	Applied []string
	Skipped []string
}

type Status struct {
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

type Runner struct {
	ledger Ledger
	fsys   fs.FS
	logger zerolog.Logger
}

func NewRunner(ledger Ledger, fsys fs.FS, logger zerolog.Logger) *Runner {
	return &Runner{ledger: ledger, fsys: fsys, logger: logger}
}

// Up applies every pending file in name order and stops at the first failure.
func (r *Runner) Up(ctx context.Context) (Report, error) {
	var report Report
	if err := r.ledger.Ensure(ctx); err != nil {
		return report, err
	}
	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return report, err
	}
	names, err := r.files()
	if err != nil {
		return report, err
	}
	if len(names) == 0 {
		r.logger.Info().Msg("empty migrations directory")
		return report, nil
	}

	for _, name := range names {
		if _, ok := applied[name]; ok {
			r.logger.Debug().Str("file", name).Msg("migration already applied")
			report.Skipped = append(report.Skipped, name)
			continue
		}
		b, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return report, fmt.Errorf("read migration %s: %w", name, err)
		}
		r.logger.Info().Str("file", name).Msg("applying migration")
		if err := r.ledger.Apply(ctx, name, string(b)); err != nil {
			return report, fmt.Errorf("apply migration %s: %w", name, err)
		}
		r.logger.Info().Str("file", name).Msg("migration applied")
		report.Applied = append(report.Applied, name)
	}
	r.logger.Info().Int("applied", len(report.Applied)).Int("skipped", len(report.Skipped)).Msg("all migrations applied")
	return report, nil
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.ledger.Ensure(ctx); err != nil {
		return nil, err
	}
	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}
	names, err := r.files()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(names))
	for _, name := range names {
		_, ok := applied[name]
		out = append(out, Status{Name: name, Applied: ok})
	}
	return out, nil
}

func (r *Runner) files() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
