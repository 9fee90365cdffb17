package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"auth", AuthenticationRequired("login"), http.StatusUnauthorized},
		{"validation", ValidationFailed("bad", map[string]string{"amount": "required"}), http.StatusBadRequest},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"method", MethodNotAllowed("nope"), http.StatusMethodNotAllowed},
		{"gateway", GatewayUnavailable("down", nil), http.StatusInternalServerError},
		{"database", DatabaseUnavailable(errors.New("conn refused")), http.StatusInternalServerError},
		{"bad gateway body", InvalidGatewayResponse("garbage", nil), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Status(); got != tt.want {
				t.Errorf("Status() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestDatabaseAndAuthCodesDiffer(t *testing.T) {
	db := DatabaseUnavailable(errors.New("timeout"))
	auth := AuthenticationRequired("login")
	if db.Code == auth.Code {
		t.Fatalf("database and auth errors share code %q", db.Code)
	}
	if !db.Retryable() {
		t.Errorf("database unavailable should be retryable")
	}
	if auth.Retryable() {
		t.Errorf("authentication required should not be retryable")
	}
}

func TestFromDB(t *testing.T) {
	if got := FromDB(nil, "x"); got != nil {
		t.Fatalf("FromDB(nil) = %v; want nil", got)
	}

	nf := FromDB(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), "payment not found")
	if nf.Kind != KindNotFound || nf.Message != "payment not found" {
		t.Errorf("FromDB(not found) = %+v", nf)
	}

	other := FromDB(errors.New("connection reset"), "x")
	if other.Kind != KindDatabaseUnavailable {
		t.Errorf("FromDB(other) kind = %v; want DatabaseUnavailable", other.Kind)
	}

	wrapped := FromDB(Conflict("dup"), "x")
	if wrapped.Kind != KindConflict {
		t.Errorf("FromDB should pass through *Error, got kind %v", wrapped.Kind)
	}
}
