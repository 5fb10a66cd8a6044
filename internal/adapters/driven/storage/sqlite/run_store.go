package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
)

const runColumns = `id, name, kind, source, status, successful, failed, skipped, total,
	outage_interrupted, message, started_at, ended_at`

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// SaveReport records a finished job. Saving the same run twice replaces it.
func (s *runStore) SaveReport(ctx context.Context, report *domain.JobReport) error {
	if report == nil || report.ID == "" {
		return domain.ErrInvalidInput
	}

	sum := report.Summary
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO job_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			source = excluded.source,
			status = excluded.status,
			successful = excluded.successful,
			failed = excluded.failed,
			skipped = excluded.skipped,
			total = excluded.total,
			outage_interrupted = excluded.outage_interrupted,
			message = excluded.message,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`, report.ID, report.Name, string(report.Kind), nullString(report.Source), string(report.Status),
		sum.Successful, sum.Failed, sum.Skipped, sum.Total, boolToInt(sum.OutageInterrupted),
		nullString(report.Message), formatTime(report.StartedAt), formatTime(report.EndedAt))
	if err != nil {
		return fmt.Errorf("saving job run: %w", err)
	}
	return nil
}

// GetReport retrieves a report by run ID.
func (s *runStore) GetReport(ctx context.Context, id string) (*domain.JobReport, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM job_runs WHERE id = ?`, id)
	report, err := scanJobRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job run %s: %w", id, domain.ErrNotFound)
	}
	return report, err
}

// ListReports returns the most recent reports, newest first.
func (s *runStore) ListReports(ctx context.Context, limit int) ([]domain.JobReport, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM job_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	reports := make([]domain.JobReport, 0, limit)
	for rows.Next() {
		report, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job runs: %w", err)
	}
	return reports, nil
}

// PruneReports keeps only the most recent 'keep' reports.
func (s *runStore) PruneReports(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM job_runs
		WHERE id NOT IN (
			SELECT id FROM job_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning job runs: %w", err)
	}
	return nil
}

func scanJobRun(row rowScanner) (*domain.JobReport, error) {
	var report domain.JobReport
	var kind, status string
	var source, message, startedAt, endedAt sql.NullString
	var outage int

	err := row.Scan(&report.ID, &report.Name, &kind, &source, &status,
		&report.Summary.Successful, &report.Summary.Failed, &report.Summary.Skipped, &report.Summary.Total,
		&outage, &message, &startedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job run: %w", err)
	}

	report.Kind = domain.WorkKind(kind)
	report.Status = domain.JobStatus(status)
	report.Source = source.String
	report.Message = message.String
	report.Summary.OutageInterrupted = outage == 1
	report.StartedAt = parseTime(startedAt)
	report.EndedAt = parseTime(endedAt)
	return &report, nil
}
