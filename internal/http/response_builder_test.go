package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"webbudget/internal/core"
	applog "webbudget/internal/log"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]string{"status": "ok"}).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Test") != "1" {
		t.Error("missing custom header")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
}

func TestDomainError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantErrType string
		check       func(t *testing.T, b ErrorBody)
	}{
		{
			name:        "apportionment mismatch",
			err:         fmt.Errorf("create movement: %w", &core.ValidationError{Kind: core.ApportionmentMismatch, Expected: core.Cents(1000), Actual: core.Cents(900)}),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    core.ApportionmentMismatch,
			wantErrType: applog.ErrorTypeValidation,
			check: func(t *testing.T, b ErrorBody) {
				if b.Expected != "10.00" || b.Actual != "9.00" {
					t.Errorf("expected/actual = %s/%s", b.Expected, b.Actual)
				}
			},
		},
		{
			name:        "budget exceeded",
			err:         &core.BudgetExceededError{Available: core.Cents(250)},
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    "budget_exceeded",
			wantErrType: applog.ErrorTypeBudget,
			check: func(t *testing.T, b ErrorBody) {
				if b.Available != "2.50" {
					t.Errorf("available = %s", b.Available)
				}
			},
		},
		{
			name:        "not found",
			err:         core.ErrNotFound,
			wantStatus:  http.StatusNotFound,
			wantCode:    core.NotFound,
			wantErrType: applog.ErrorTypeNotFound,
		},
		{
			name:        "period closed",
			err:         core.NewConflict(core.PeriodClosed, "03/2024"),
			wantStatus:  http.StatusConflict,
			wantCode:    core.PeriodClosed,
			wantErrType: applog.ErrorTypeConflict,
			check: func(t *testing.T, b ErrorBody) {
				if b.Ref != "03/2024" {
					t.Errorf("ref = %q", b.Ref)
				}
			},
		},
		{
			name:        "invalid amount",
			err:         fmt.Errorf("value: %w", core.ErrInvalidAmount),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "invalid_amount",
			wantErrType: applog.ErrorTypeValidation,
		},
		{
			name:        "unexpected",
			err:         errors.New("disk on fire"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantErrType: applog.ErrorTypeInternal,
			check: func(t *testing.T, b ErrorBody) {
				if b.Message != "internal server error" {
					t.Errorf("internal details leaked: %q", b.Message)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, errType := DomainError(tt.err)
			if errType != tt.wantErrType {
				t.Errorf("error type = %q, want %q", errType, tt.wantErrType)
			}
			rr := httptest.NewRecorder()
			resp.Write(rr)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body ErrorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}
