package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wayfinderhq/wayfinder/internal/data/pgxutil"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	apperrors "github.com/wayfinderhq/wayfinder/internal/errors"
)

// List limits for ListRecent. The default matches what the itinerary lookup
// tool requests when the model does not ask for a specific count.
const (
	defaultItineraryListLimit = 10
	maxItineraryListLimit     = 100
)

// ItineraryRepo provides database operations for itinerary records.
//
// Itinerary rows are write-once: creation is conditional on the identity
// being absent, and no update or delete path exists.
type ItineraryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewItineraryRepo creates a new ItineraryRepo instance with the given database connection and configuration.
func NewItineraryRepo(db *sql.DB, cfg RepoConfig) *ItineraryRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &ItineraryRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const itineraryColumns = `
  owner_id,
  itinerary_id,
  destination,
  start_date,
  end_date,
  items,
  sources,
  created_at
`

// CreateIfAbsent conditionally creates an itinerary record. It reports true
// when the row was inserted and false when a row already existed at the same
// (owner, itinerary) identity. The existing row is never touched.
func (r *ItineraryRepo) CreateIfAbsent(ctx context.Context, itinerary *model.Itinerary) (bool, error) {
	if itinerary == nil {
		return false, errors.New("itinerary is required")
	}
	if strings.TrimSpace(itinerary.OwnerID) == "" {
		return false, errors.New("owner id is required")
	}
	if strings.TrimSpace(itinerary.ItineraryID) == "" {
		return false, errors.New("itinerary id is required")
	}

	itinerary.EnsureShape()

	items, err := json.Marshal(itinerary.Items)
	if err != nil {
		return false, fmt.Errorf("marshal itinerary items: %w", err)
	}
	sources, err := json.Marshal(itinerary.Sources)
	if err != nil {
		return false, fmt.Errorf("marshal itinerary sources: %w", err)
	}

	createdAt := itinerary.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now()
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO itineraries (owner_id, itinerary_id, destination, start_date, end_date, items, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, itinerary_id) DO NOTHING
	`, itinerary.OwnerID, itinerary.ItineraryID, itinerary.Destination,
		itinerary.StartDate, itinerary.EndDate, items, sources, createdAt.UTC())
	if err != nil {
		return false, fmt.Errorf("create itinerary: %w", apperrors.MapDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Get retrieves an itinerary by owner and itinerary identity.
func (r *ItineraryRepo) Get(ctx context.Context, ownerID, itineraryID string) (*model.Itinerary, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+itineraryColumns+`
		FROM itineraries
		WHERE owner_id = $1 AND itinerary_id = $2
	`, ownerID, itineraryID)

	itinerary, err := scanItineraryFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItineraryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get itinerary: %w", apperrors.MapDBError(err))
	}
	return itinerary, nil
}

// ListRecent returns the owner's itineraries ordered most recent first.
// A non-positive limit falls back to the default; oversized limits are clamped.
func (r *ItineraryRepo) ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Itinerary, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("owner id is required")
	}
	if limit <= 0 {
		limit = defaultItineraryListLimit
	}
	if limit > maxItineraryListLimit {
		limit = maxItineraryListLimit
	}

	var out []*model.Itinerary
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, queryErr := pgxConn.Query(ctx, `
			SELECT `+itineraryColumns+`
			FROM itineraries
			WHERE owner_id = $1
			ORDER BY created_at DESC, itinerary_id
			LIMIT $2
		`, ownerID, limit)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			itinerary, scanErr := scanItineraryFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			out = append(out, itinerary)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list itineraries: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

type itineraryRowScanner interface {
	Scan(dest ...any) error
}

func scanItineraryFromRow(scanner itineraryRowScanner) (*model.Itinerary, error) {
	var (
		itinerary      model.Itinerary
		items, sources []byte
	)
	if err := scanner.Scan(
		&itinerary.OwnerID,
		&itinerary.ItineraryID,
		&itinerary.Destination,
		&itinerary.StartDate,
		&itinerary.EndDate,
		&items,
		&sources,
		&itinerary.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &itinerary.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &itinerary.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
	}

	itinerary.EnsureShape()
	itinerary.CreatedAt = itinerary.CreatedAt.UTC()
	return &itinerary, nil
}
