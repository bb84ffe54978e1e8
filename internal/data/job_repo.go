package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	apperrors "github.com/wayfinderhq/wayfinder/internal/errors"
)

// RepoConfig holds configuration options shared by the data-layer repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job records.
//
// A job row is addressed by (owner_id, job_key); the job key is derived from
// the client's request id, so every retry of the same logical submission
// addresses the row the first attempt created.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  owner_id,
  job_key,
  status,
  started_at,
  updated_at,
  completed_at,
  progress,
  final_message,
  result_itinerary_id,
  meta
`

// CreateIfAbsent conditionally creates a job record in RUNNING state.
// It reports true when a new row was inserted and false when a row already
// existed for the same (owner, request) identity. The conflict path is an
// expected outcome, not an error; only store failures are returned.
func (r *JobRepo) CreateIfAbsent(ctx context.Context, req *model.CreateJobRequest) (bool, error) {
	if req == nil {
		return false, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return false, err
	}

	meta := []byte(`{}`)
	if req.Meta != nil {
		var err error
		meta, err = json.Marshal(req.Meta)
		if err != nil {
			return false, fmt.Errorf("marshal job meta: %w", err)
		}
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO jobs (owner_id, job_key, status, started_at, updated_at, progress, meta)
		VALUES ($1, $2, $3, $4, $4, '[]'::jsonb, $5)
		ON CONFLICT (owner_id, job_key) DO NOTHING
	`, req.OwnerID, model.JobKeyFor(req.RequestID), model.JobStatusRunning, now, meta)
	if err != nil {
		return false, fmt.Errorf("create job: %w", apperrors.MapDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Get retrieves a job by owner and request identity.
func (r *JobRepo) Get(ctx context.Context, ownerID, requestID string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE owner_id = $1 AND job_key = $2
	`, ownerID, model.JobKeyFor(requestID))

	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// AppendProgress atomically appends one line to the job's progress list.
// The append happens entirely inside the store, so two concurrent writers
// can never read-modify-write each other's lines away and a reader always
// observes a prefix of the appended sequence.
func (r *JobRepo) AppendProgress(ctx context.Context, ownerID, requestID, line string) error {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET progress = progress || to_jsonb($3::text),
		    updated_at = $4
		WHERE owner_id = $1 AND job_key = $2
	`, ownerID, model.JobKeyFor(requestID), line, now)
	if err != nil {
		return fmt.Errorf("append progress: %w", apperrors.MapDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Complete transitions a job to a terminal state. The update requires the
// current status to be RUNNING, which makes the terminal write
// first-writer-wins: a second completion, or one racing the janitor, is
// rejected rather than applied. It reports true when the transition was
// applied and false when the guard rejected it.
//
// FinalMessage and ResultItineraryID are written only when non-empty; an
// empty value leaves the column untouched.
func (r *JobRepo) Complete(ctx context.Context, req *model.CompleteJobRequest) (bool, error) {
	if req == nil {
		return false, errors.New("complete job request is required")
	}
	if err := req.Validate(); err != nil {
		return false, err
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $3,
		    final_message = COALESCE(NULLIF($4, ''), final_message),
		    result_itinerary_id = COALESCE(NULLIF($5, ''), result_itinerary_id),
		    completed_at = $6,
		    updated_at = $6
		WHERE owner_id = $1 AND job_key = $2 AND status = $7
	`, req.OwnerID, model.JobKeyFor(req.RequestID), req.Status,
		req.FinalMessage, req.ResultItineraryID, now, model.JobStatusRunning)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", apperrors.MapDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	progress, meta         []byte
	completedAt            sql.NullTime
	finalMessage, resultID sql.NullString
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.OwnerID,
		&job.JobKey,
		&job.Status,
		&job.StartedAt,
		&job.UpdatedAt,
		&d.completedAt,
		&d.progress,
		&d.finalMessage,
		&d.resultID,
		&d.meta,
	)
}

func (d *jobRowData) apply(job *model.Job) error {
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.FinalMessage = cloneNullableString(d.finalMessage)
	job.ResultItineraryID = cloneNullableString(d.resultID)

	job.Progress = []string{}
	if len(d.progress) > 0 {
		if err := json.Unmarshal(d.progress, &job.Progress); err != nil {
			return fmt.Errorf("decode progress: %w", err)
		}
	}
	if len(d.meta) > 0 {
		if err := json.Unmarshal(d.meta, &job.Meta); err != nil {
			return fmt.Errorf("decode meta: %w", err)
		}
	}
	return nil
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	if err := data.apply(job); err != nil {
		return nil, err
	}
	job.StartedAt = job.StartedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
