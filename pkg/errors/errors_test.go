package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCatalog(t *testing.T) {
	want := map[Code]Metadata{
		CodeValidation:   {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, CallerMessage: true},
		CodeUnauthorized: {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", CallerMessage: true},
		CodeForbidden:    {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", CallerMessage: true},
		CodeNotFound:     {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", CallerMessage: true},
		CodeConflict:     {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", CallerMessage: true},
		CodeInsufficient: {HTTPStatus: http.StatusPaymentRequired, PublicMessage: "insufficient token balance", DetailsAllowed: true, CallerMessage: true},
		CodeIdempotency:  {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true, CallerMessage: true},
		CodeRateLimit:    {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", CallerMessage: true},
		CodeInternal:     {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:   {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	for code, meta := range want {
		if got := MetadataFor(code); got != meta {
			t.Fatalf("%s: got %+v, want %+v", code, got, meta)
		}
	}
	if got := MetadataFor("SOMETHING_UNKNOWN"); got != want[CodeInternal] {
		t.Fatalf("unknown codes should map to internal, got %+v", got)
	}
}

func TestTypedErrorChain(t *testing.T) {
	cause := stdErrors.New("balance too low")
	inner := Wrap(CodeInsufficient, cause, "debit").WithDetails(map[string]int64{"balance": 3})
	outer := fmt.Errorf("charging account: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeInsufficient || typed.Message() != "debit" {
		t.Fatalf("As lost the typed error: %+v", typed)
	}
	if typed.Details() == nil {
		t.Fatal("details should survive wrapping")
	}
	if !stdErrors.Is(outer, cause) {
		t.Fatal("cause should stay reachable")
	}
	if !IsCode(outer, CodeInsufficient) || IsCode(outer, CodeNotFound) {
		t.Fatal("IsCode should match only the carried code")
	}
	if As(nil) != nil || IsCode(cause, CodeInternal) {
		t.Fatal("untyped errors carry no code")
	}

	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Error() != "" || nilErr.Details() != nil {
		t.Fatal("nil *Error should be inert")
	}
}

func TestDumpExtractsPgFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_ledger_entries_reference", TableName: "ledger_entries", Message: "duplicate key value"}
	dump := Dump(Wrap(CodeConflict, pgErr, "insert ledger entry"))
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PG == nil || dump.PG.Code != "23505" || dump.PG.Constraint != "ux_ledger_entries_reference" {
		t.Fatalf("unexpected pg fields %+v", dump.PG)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
	if dump.Fields()["pg_table"] != "ledger_entries" {
		t.Fatalf("expected pg_table in log fields, got %v", dump.Fields())
	}
}

func TestDumpWithoutPostgresError(t *testing.T) {
	dump := Dump(New(CodeDependency, "upstream down"))
	if dump.PG != nil {
		t.Fatalf("expected no pg diagnostics, got %+v", dump.PG)
	}
	if !dump.Retryable {
		t.Fatalf("dependency errors are retryable")
	}
	if _, ok := dump.Fields()["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{New(CodeValidation, "bad"), false},
		{New(CodeRateLimit, "slow down"), false},
		{New(CodeDependency, "upstream"), true},
		{stdErrors.New("plain"), true},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp"), "charge account")
	if got := err.Error(); got != "DEPENDENCY_ERROR: charge account: dial tcp" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Newf(CodeNotFound, "plan %q", "gold").Error(); got != `NOT_FOUND: plan "gold"` {
		t.Fatalf("unexpected error string %q", got)
	}
}
