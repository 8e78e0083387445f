package db

import (
	"errors"
	"fmt"
	"testing"

	legacypgconn "github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "pgx deadlock wrapped", err: fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "legacy pgconn serialization", err: &legacypgconn.PgError{Code: "40001"}, want: true},
		{name: "pq deadlock", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "sqlite locked", err: errors.New("database is locked"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_ledger_entries_reference"}
	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected pg unique violation to match")
	}
	if !IsUniqueViolation(pgErr, "ux_ledger_entries_reference") {
		t.Fatal("expected constraint name to match")
	}
	if IsUniqueViolation(pgErr, "ux_accounts_email") {
		t.Fatal("expected other constraint to not match")
	}

	sqliteErr := errors.New("UNIQUE constraint failed: ledger_entries.reference")
	if !IsUniqueViolation(sqliteErr, "ledger_entries.reference") {
		t.Fatal("expected sqlite unique failure to match column")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatal("plain error should not match")
	}
	if IsUniqueViolation(&pq.Error{Code: "40001"}, "") {
		t.Fatal("serialization failure is not a unique violation")
	}
}
