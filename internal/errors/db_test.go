package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	err := MapDBError(nil)
	if err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "canceled",
			err:      context.Canceled,
			wantCode: ErrCodeCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if !IsAppError(err, tt.wantCode) {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name: "unique violation with column name",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.UniqueViolation,
				ColumnName: "itinerary_id",
			},
			wantField: "itinerary_id",
		},
		{
			name: "unique violation with Detail message",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: `Key (owner_id, itinerary_id)=(u1, abc) already exists.`,
			},
			wantField: "owner_id, itinerary_id",
		},
		{
			name: "unique violation inferred from constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "itineraries_destination_key",
			},
			wantField: "destination",
		},
		{
			name: "unique violation with ambiguous constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "itineraries_owner_id_itinerary_id_key",
			},
			wantField: "",
		},
		{
			name: "unique violation on expression index",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "itineraries_lower_key",
			},
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Fatalf("expected conflict, got %v", GetCode(err))
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestMapDBError_CheckViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:       pgerrcode.CheckViolation,
		ColumnName: "status",
	}

	err := MapDBError(pgErr)
	if !IsValidation(err) {
		t.Fatalf("expected validation, got %v", GetCode(err))
	}
	if GetField(err) != "status" {
		t.Errorf("field = %q, want %q", GetField(err), "status")
	}
}

func TestMapDBError_NotNullViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:       pgerrcode.NotNullViolation,
		ColumnName: "owner_id",
	}

	err := MapDBError(pgErr)
	if !IsValidation(err) {
		t.Fatalf("expected validation, got %v", GetCode(err))
	}
	if GetField(err) != "owner_id" {
		t.Errorf("field = %q, want %q", GetField(err), "owner_id")
	}

	// Without column metadata the generic message applies.
	err = MapDBError(&pgconn.PgError{Code: pgerrcode.NotNullViolation})
	if !IsValidation(err) {
		t.Fatalf("expected validation, got %v", GetCode(err))
	}
	if GetField(err) != "" {
		t.Errorf("field = %q, want empty", GetField(err))
	}
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}

	err := MapDBError(pgErr)
	if !IsValidation(err) {
		t.Fatalf("expected validation, got %v", GetCode(err))
	}
}

func TestMapDBError_UnhandledPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.SerializationFailure}

	err := MapDBError(pgErr)
	if !IsInternal(err) {
		t.Fatalf("expected internal, got %v", GetCode(err))
	}
	if !errors.Is(err, pgErr) {
		t.Error("mapped error should preserve the pg error as cause")
	}
}

func TestMapDBError_UnrecognizedError(t *testing.T) {
	plain := errors.New("something else")
	if got := MapDBError(plain); !errors.Is(got, plain) {
		t.Errorf("MapDBError(plain) = %v, want original error", got)
	}
}

// IsAppError checks whether err is an AppError carrying the given code.
func IsAppError(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
