package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
)

// MigrationStatus describes one embedded migration.
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrate applies every pending migration and returns the versions applied.
func (d *DB) Migrate(ctx context.Context) ([]int64, error) {
	provider, err := d.migrations()
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// Rollback reverts the most recent migration and returns its version.
// It returns 0 when nothing is applied.
func (d *DB) Rollback(ctx context.Context) (int64, error) {
	provider, err := d.migrations()
	if err != nil {
		return 0, err
	}

	result, err := provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to roll back: %w", err)
	}
	return result.Source.Version, nil
}

// MigrationStatus lists every embedded migration in version order.
func (d *DB) MigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	provider, err := d.migrations()
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version:   s.Source.Version,
			Name:      filepath.Base(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}
