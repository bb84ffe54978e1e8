package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wayfinderhq/wayfinder/internal/data/pgxutil"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	apperrors "github.com/wayfinderhq/wayfinder/internal/errors"
)

// Advisory lock namespace for janitor operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for wayfinder janitor operations.
const (
	advisoryLockJanitorMajor       = 1000
	advisoryLockJanitorFailRunning = 1 // minor key for FailStaleRunningJobs
)

// staleRunMessage is written as the final message of a swept job; it is what
// a poller ultimately sees for a run whose worker died mid-flight.
const staleRunMessage = "Planning run abandoned before completion"

// FailStaleRunningJobs marks RUNNING jobs whose last update is older than maxAge as FAILED.
// Processes up to batchSize jobs per call to prevent long locks and I/O spikes.
// Uses advisory locks so concurrent janitor instances cannot sweep the same rows.
// Returns the number of jobs marked as failed.
func (r *JobRepo) FailStaleRunningJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockJanitorMajor, advisoryLockJanitorFailRunning).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-maxAge)

			res, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = $1,
				    final_message = $2,
				    completed_at = $3,
				    updated_at = $3
				WHERE (owner_id, job_key) IN (
					SELECT owner_id, job_key FROM jobs
					WHERE status = $4
					  AND updated_at < $5
					ORDER BY updated_at
					LIMIT $6
				)
			`, model.JobStatusFailed, staleRunMessage, currentTime.UTC(),
				model.JobStatusRunning, cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("fail stale running jobs: %w", apperrors.MapDBError(err))
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
