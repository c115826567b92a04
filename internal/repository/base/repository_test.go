package base

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"unique violation",
			&pgconn.PgError{Code: "23505", ConstraintName: "subscriptions_bus_seat_term_active_key"},
			"subscriptions_bus_seat_term_active_key",
		},
		{
			"wrapped unique violation",
			fmt.Errorf("create subscription: %w", &pgconn.PgError{Code: "23505", ConstraintName: "x_key"}),
			"x_key",
		},
		{"other pg error", &pgconn.PgError{Code: "23503"}, ""},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UniqueViolation(tt.err); got != tt.want {
				t.Errorf("UniqueViolation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryableTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{
			"wrapped deadlock",
			fmt.Errorf("approve: %w", &pgconn.PgError{Code: "40P01"}),
			true,
		},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableTxError(tt.err); got != tt.want {
				t.Errorf("IsRetryableTxError() = %v, want %v", got, tt.want)
			}
		})
	}
}
