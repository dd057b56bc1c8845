package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "pallets" does not exist`}, ErrTableNotFound},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrConflict},
		{"deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), ErrConflict},
		{"connection failure", &pgconn.PgError{Code: "08006"}, ErrStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, ErrStoreUnavailable},
		{"already classified", fmt.Errorf("wrap: %w", ErrConflict), ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyPassThrough(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("classify(nil) should be nil")
	}
	other := &pgconn.PgError{Code: "23514", Message: "check violation"}
	got := classify(other)
	if errors.Is(got, ErrConflict) || errors.Is(got, ErrStoreUnavailable) || errors.Is(got, ErrTableNotFound) {
		t.Fatalf("check violation misclassified: %v", got)
	}
	if !errors.Is(classify(context.Canceled), context.Canceled) {
		t.Fatal("context.Canceled should pass through")
	}
	if IsRetryable(classify(other)) {
		t.Fatal("check violation should not be retryable")
	}
	if !IsRetryable(classify(&pgconn.PgError{Code: "08000"})) {
		t.Fatal("connection exception should be retryable")
	}
}
