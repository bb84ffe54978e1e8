package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/testutil"
)

func TestJobRepo_FailStaleRunningJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails stale running jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			staleReq := testutil.NewJobRequest().Build()
			created, err := repo.CreateIfAbsent(ctx, staleReq)
			require.NoError(t, err)
			require.True(t, created)

			backdateJob(t, db, staleReq, 2*time.Hour)

			freshReq := testutil.NewJobRequest().Build()
			created, err = repo.CreateIfAbsent(ctx, freshReq)
			require.NoError(t, err)
			require.True(t, created)

			count, err := repo.FailStaleRunningJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			stale, err := repo.Get(ctx, staleReq.OwnerID, staleReq.RequestID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, stale.Status)
			require.NotNil(t, stale.FinalMessage)
			assert.Equal(t, staleRunMessage, *stale.FinalMessage)
			assert.NotNil(t, stale.CompletedAt)

			fresh, err := repo.Get(ctx, freshReq.OwnerID, freshReq.RequestID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, fresh.Status)
		})
	})

	t.Run("no jobs to fail", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			req := testutil.NewJobRequest().Build()
			created, err := repo.CreateIfAbsent(ctx, req)
			require.NoError(t, err)
			require.True(t, created)

			count, err := repo.FailStaleRunningJobs(ctx, 24*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	})

	t.Run("does not sweep terminal jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			req := testutil.NewJobRequest().Build()
			created, err := repo.CreateIfAbsent(ctx, req)
			require.NoError(t, err)
			require.True(t, created)

			applied, err := repo.Complete(ctx, &model.CompleteJobRequest{
				OwnerID:      req.OwnerID,
				RequestID:    req.RequestID,
				Status:       model.JobStatusSucceeded,
				FinalMessage: "done before the sweep",
			})
			require.NoError(t, err)
			require.True(t, applied)

			backdateJob(t, db, req, 2*time.Hour)

			count, err := repo.FailStaleRunningJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			job, err := repo.Get(ctx, req.OwnerID, req.RequestID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusSucceeded, job.Status)
			require.NotNil(t, job.FinalMessage)
			assert.Equal(t, "done before the sweep", *job.FinalMessage)
		})
	})

	t.Run("progress keeps a job alive", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			req := testutil.NewJobRequest().Build()
			created, err := repo.CreateIfAbsent(ctx, req)
			require.NoError(t, err)
			require.True(t, created)

			backdateJob(t, db, req, 2*time.Hour)

			// The append bumps updated_at, so the job no longer looks abandoned.
			require.NoError(t, repo.AppendProgress(ctx, req.OwnerID, req.RequestID, "STATUS: still working"))

			count, err := repo.FailStaleRunningJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			job, err := repo.Get(ctx, req.OwnerID, req.RequestID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, job.Status)
		})
	})

	t.Run("respects batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				req := testutil.NewJobRequest().Build()
				created, err := repo.CreateIfAbsent(ctx, req)
				require.NoError(t, err)
				require.True(t, created)
				backdateJob(t, db, req, 2*time.Hour)
			}

			count, err := repo.FailStaleRunningJobs(ctx, 1*time.Hour, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			count, err = repo.FailStaleRunningJobs(ctx, 1*time.Hour, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			count, err = repo.FailStaleRunningJobs(ctx, 1*time.Hour, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	})

	t.Run("fixed time provider drives the cutoff", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			tp := testutil.NewTestTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
			ctx := context.Background()

			req := testutil.NewJobRequest().Build()
			created, err := repo.CreateIfAbsent(ctx, req)
			require.NoError(t, err)
			require.True(t, created)

			// 40 minutes later the job has outlived a 30 minute budget.
			tp.AddTime(40 * time.Minute)

			count, err := repo.FailStaleRunningJobs(ctx, 30*time.Minute, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			job, err := repo.Get(ctx, req.OwnerID, req.RequestID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, job.Status)
			require.NotNil(t, job.CompletedAt)
			assert.Equal(t, tp.Now().UTC(), job.CompletedAt.UTC())
		})
	})
}

// backdateJob rewinds a job's updated_at so it looks abandoned.
func backdateJob(t *testing.T, db *sql.DB, req *model.CreateJobRequest, age time.Duration) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		UPDATE jobs
		SET updated_at = $1
		WHERE owner_id = $2 AND job_key = $3
	`, time.Now().Add(-age), req.OwnerID, model.JobKeyFor(req.RequestID))
	require.NoError(t, err)
}
