package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

var runColumns = []string{
	"id",
	"started_at",
	"finished_at",
	"processed",
	"stored",
	"duplicates",
	"low_relevance",
	"flagged",
	"errors",
	"fetch_failures",
	"outcomes",
	"source_failures",
}

// InsertRun records a finished run. Recording the same run twice is an ErrConflict.
func (r Repo) InsertRun(ctx context.Context, report newsroom.Report) error {
	const q = `INSERT INTO ingestion_runs (
		id,
		started_at,
		finished_at,
		processed,
		stored,
		duplicates,
		low_relevance,
		flagged,
		errors,
		fetch_failures,
		outcomes,
		source_failures
	) VALUES (
		:id,
		:started_at,
		:finished_at,
		:processed,
		:stored,
		:duplicates,
		:low_relevance,
		:flagged,
		:errors,
		:fetch_failures,
		:outcomes,
		:source_failures
	);`

	if report.ID == "" {
		report.ID = newsroom.NewRunID()
	}
	_, err := r.db.NamedExecContext(ctx, q, report)
	if isConflict(err) {
		return fmt.Errorf("run already recorded: %w", newsroom.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error inserting run: %s", err)
	}

	return nil
}

func (r Repo) Run(ctx context.Context, id string) (newsroom.Report, error) {
	query, args, err := r.sb.Select(runColumns...).From("ingestion_runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return newsroom.Report{}, fmt.Errorf("error constructing sql: %s", err)
	}

	var report newsroom.Report
	err = r.db.GetContext(ctx, &report, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return newsroom.Report{}, newsroom.ErrNotFound
	}
	if err != nil {
		return newsroom.Report{}, fmt.Errorf("error fetching run: %s", err)
	}

	return report, nil
}

// Runs lists reports, most recent first.
func (r Repo) Runs(ctx context.Context, limit, offset uint64) ([]newsroom.Report, error) {
	q := r.sb.Select(runColumns...).From("ingestion_runs").OrderBy("started_at DESC", "id")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	reports := []newsroom.Report{}
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting runs: %s", err)
	}

	return reports, nil
}

func (r Repo) CountRuns(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM ingestion_runs;`

	var count int
	if err := r.db.GetContext(ctx, &count, q); err != nil {
		return 0, fmt.Errorf("error counting runs: %s", err)
	}

	return count, nil
}
