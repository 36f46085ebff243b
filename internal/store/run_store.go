package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/rfp-inbound/internal/model"
)

// RecordRun persists a finished run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, sum model.RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (
			id, status, processed_count, fetched, acknowledged,
			error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), string(sum.Status), sum.ProcessedCount,
		sum.Fetched, sum.Acknowledged, sum.Error,
		sum.StartedAt.UTC(), sum.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []model.RunRecord
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM sync_runs ORDER BY started_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	return runs, nil
}
