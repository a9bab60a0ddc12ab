package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "identity required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeLimitExceeded, status: http.StatusUnprocessableEntity, publicMsg: "purchase limit exceeded", detailsOK: true},
		{code: CodeShippingFailed, status: http.StatusBadGateway, publicMsg: "shipping cost could not be calculated", retryable: true, detailsOK: true},
		{code: CodeSubmissionFailed, status: http.StatusConflict, publicMsg: "order could not be placed", retryable: true, detailsOK: true},
		{code: CodePersistence, status: http.StatusServiceUnavailable, publicMsg: "cart could not be saved", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodePersistence, cause, "save cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodePersistence {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if !wrapped.Retryable() {
		t.Fatalf("persistence failures should be retryable")
	}
}

func TestAsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeShippingFailed, "timeout"))
	if got := As(err); got == nil || got.Code() != CodeShippingFailed {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should map to internal")
	}
	if CodeOf(err) != CodeShippingFailed {
		t.Fatalf("CodeOf should unwrap typed errors")
	}
}

func TestDumpCapturesDriverDetail(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_records_pkey", TableName: "cart_records", Detail: "duplicate identity"}
	dump := Dump(Wrap(CodePersistence, fmt.Errorf("upsert: %w", pgErr), "save cart"))
	if dump.Code != CodePersistence || dump.DBDriver != "postgres" || dump.DBCode != "23505" || dump.DBTable != "cart_records" {
		t.Fatalf("unexpected postgres dump: %+v", dump)
	}
	if len(dump.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
	if got := dump.LogFields()["db_constraint"]; got != "cart_records_pkey" {
		t.Fatalf("expected constraint in log fields, got %v", got)
	}

	lite := Dump(fmt.Errorf("save: %w", sqlite3.Error{Code: sqlite3.ErrBusy, ExtendedCode: sqlite3.ErrBusyRecovery}))
	if lite.DBDriver != "sqlite" || lite.DBCode != strconv.Itoa(int(sqlite3.ErrBusyRecovery)) {
		t.Fatalf("unexpected sqlite dump: %+v", lite)
	}

	plain := Dump(New(CodeValidation, "bad"))
	if _, ok := plain.LogFields()["db_driver"]; ok {
		t.Fatal("driver fields should be omitted without a driver error")
	}
}

func TestConflictExposesDetails(t *testing.T) {
	if !MetadataFor(CodeConflict).DetailsAllowed {
		t.Fatal("conflict details carry the in-progress reason and must be public")
	}
}
