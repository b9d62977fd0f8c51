package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"webbudget/internal/backend"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/middleware/ratelimit"
	"webbudget/internal/storage/memory"
)

type apiFixture struct {
	t   *testing.T
	srv *Server

	costCenterID int64
	rentID       int64
	periodID     int64
	walletID     int64
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	rec := metrics.New()
	svc := backend.Wire(memory.New(), rec)
	var logs bytes.Buffer
	logger := applog.New(applog.Config{Level: applog.DefaultConfig().Level, Component: "test", Format: "json", Output: &logs})
	f := &apiFixture{t: t, srv: NewServer(":0", svc, rec, nil, logger, nil)}

	var cc costCenterDTO
	f.mustDo(http.MethodPost, "/api/cost-centers", `{"name":"Home","expenses_budget":"1000.00","revenues_budget":"5000.00","control_expenses":true}`, http.StatusCreated, &cc)
	f.costCenterID = cc.ID

	var rent movementClassDTO
	f.mustDo(http.MethodPost, "/api/movement-classes", fmt.Sprintf(`{"name":"Rent","type":"out","cost_center_id":%d,"budget":"600.00"}`, cc.ID), http.StatusCreated, &rent)
	f.rentID = rent.ID

	var period periodDTO
	f.mustDo(http.MethodPost, "/api/periods", `{"start":"2024-03-01","end":"2024-03-31"}`, http.StatusCreated, &period)
	f.periodID = period.ID

	var wallet walletDTO
	f.mustDo(http.MethodPost, "/api/wallets", `{"name":"Checking"}`, http.StatusCreated, &wallet)
	f.walletID = wallet.ID
	f.mustDo(http.MethodPost, fmt.Sprintf("/api/wallets/%d/adjust", wallet.ID), `{"balance":"1000.00"}`, http.StatusOK, nil)
	return f
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) mustDo(method, path, body string, want int, out any) {
	f.t.Helper()
	rr := f.do(method, path, body)
	if rr.Code != want {
		f.t.Fatalf("%s %s status=%d want %d body=%s", method, path, rr.Code, want, rr.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			f.t.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}

func (f *apiFixture) createExpense(value string) movementDTO {
	f.t.Helper()
	body := fmt.Sprintf(`{"description":"rent","value":%q,"period_id":%d,"apportionments":[{"cost_center_id":%d,"movement_class_id":%d,"value":%q}]}`,
		value, f.periodID, f.costCenterID, f.rentID, value)
	var m movementDTO
	f.mustDo(http.MethodPost, "/api/movements", body, http.StatusCreated, &m)
	return m
}

func TestHealthAndReady(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := f.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
	}

	rr := f.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "webbudget_http_requests_total") {
		t.Errorf("metrics status=%d", rr.Code)
	}
}

func TestReadyFailsWhenPingFails(t *testing.T) {
	svc := backend.Wire(memory.New(), nil)
	srv := NewServer(":0", svc, nil, func(context.Context) error { return errors.New("db down") }, nil, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestMovementLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	m := f.createExpense("100.00")
	if m.Code == "" || m.State != "OPEN" || m.Value != "100.00" {
		t.Fatalf("unexpected movement %+v", m)
	}

	var got movementDTO
	f.mustDo(http.MethodGet, "/api/movements/"+m.Code, "", http.StatusOK, &got)
	if len(got.Apportionments) != 1 {
		t.Fatalf("apportionments=%d", len(got.Apportionments))
	}

	pay := fmt.Sprintf(`{"method":"in_cash","wallet_id":%d,"paid_on":"2024-03-10"}`, f.walletID)
	var paid movementDTO
	f.mustDo(http.MethodPost, "/api/movements/"+m.Code+"/pay", pay, http.StatusOK, &paid)
	if paid.State != "PAID" || paid.Payment == nil || paid.Payment.PaidOn != "2024-03-10" {
		t.Fatalf("unexpected paid movement %+v", paid)
	}

	var wallet walletDTO
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/wallets/%d", f.walletID), "", http.StatusOK, &wallet)
	if wallet.Balance != "900.00" {
		t.Errorf("wallet balance=%s want 900.00", wallet.Balance)
	}

	var ledger []walletBalanceDTO
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/wallets/%d/ledger", f.walletID), "", http.StatusOK, &ledger)
	if len(ledger) != 2 {
		t.Errorf("ledger rows=%d want 2", len(ledger))
	}

	var usage movementClassDTO
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/movement-classes/%d/usage", f.rentID), "", http.StatusOK, &usage)
	if usage.TotalMovements != "100.00" || usage.CompletionPercentage == nil || *usage.CompletionPercentage != 16 {
		t.Errorf("unexpected usage %+v", usage)
	}

	var overview overviewDTO
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/cost-centers/%d/overview?period_id=%d", f.costCenterID, f.periodID), "", http.StatusOK, &overview)
	if overview.Expenses != "100.00" || overview.Balance != "-100.00" {
		t.Errorf("unexpected overview %+v", overview)
	}

	f.mustDo(http.MethodDelete, "/api/movements/"+m.Code, "", http.StatusNoContent, nil)
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/wallets/%d", f.walletID), "", http.StatusOK, &wallet)
	if wallet.Balance != "1000.00" {
		t.Errorf("balance after delete=%s want 1000.00", wallet.Balance)
	}
	f.mustDo(http.MethodGet, "/api/movements/"+m.Code, "", http.StatusNotFound, nil)
}

func TestUpdateMovementDropsMissingApportionments(t *testing.T) {
	f := newAPIFixture(t)
	m := f.createExpense("100.00")

	body := fmt.Sprintf(`{"description":"rent april","value":"80.00","period_id":%d,"apportionments":[{"cost_center_id":%d,"movement_class_id":%d,"value":"80.00"}]}`,
		f.periodID, f.costCenterID, f.rentID)
	var updated movementDTO
	f.mustDo(http.MethodPut, "/api/movements/"+m.Code, body, http.StatusOK, &updated)
	if updated.Code != m.Code || updated.Description != "rent april" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if len(updated.Apportionments) != 1 || updated.Apportionments[0].Value != "80.00" {
		t.Errorf("apportionments=%+v", updated.Apportionments)
	}
}

func TestCancelMovement(t *testing.T) {
	f := newAPIFixture(t)
	m := f.createExpense("50.00")

	var canceled movementDTO
	f.mustDo(http.MethodPost, "/api/movements/"+m.Code+"/cancel", "", http.StatusOK, &canceled)
	if canceled.State != "CANCELED" {
		t.Errorf("state=%s want CANCELED", canceled.State)
	}
}

func TestMovementErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		want     int
		wantCode string
	}{
		{
			name:     "apportionment mismatch",
			method:   http.MethodPost,
			path:     "/api/movements",
			body:     fmt.Sprintf(`{"description":"x","value":"100.00","period_id":%d,"apportionments":[{"cost_center_id":%d,"movement_class_id":%d,"value":"90.00"}]}`, f.periodID, f.costCenterID, f.rentID),
			want:     http.StatusUnprocessableEntity,
			wantCode: "apportionment_mismatch",
		},
		{
			name:     "missing apportionments",
			method:   http.MethodPost,
			path:     "/api/movements",
			body:     fmt.Sprintf(`{"description":"x","value":"100.00","period_id":%d,"apportionments":[]}`, f.periodID),
			want:     http.StatusUnprocessableEntity,
			wantCode: "missing_apportionments",
		},
		{
			name:     "invalid amount",
			method:   http.MethodPost,
			path:     "/api/movements",
			body:     `{"description":"x","value":"abc","period_id":1,"apportionments":[]}`,
			want:     http.StatusBadRequest,
			wantCode: "bad_request",
		},
		{
			name:     "unknown field",
			method:   http.MethodPost,
			path:     "/api/movements",
			body:     `{"nope":true}`,
			want:     http.StatusBadRequest,
			wantCode: "bad_request",
		},
		{
			name:     "unknown movement",
			method:   http.MethodGet,
			path:     "/api/movements/missing",
			want:     http.StatusNotFound,
			wantCode: "not_found",
		},
		{
			name:     "bad id",
			method:   http.MethodGet,
			path:     "/api/wallets/abc",
			want:     http.StatusBadRequest,
			wantCode: "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			var body ErrorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code=%q want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestPayInvalidPayment(t *testing.T) {
	f := newAPIFixture(t)
	m := f.createExpense("10.00")

	rr := f.do(http.MethodPost, "/api/movements/"+m.Code+"/pay", `{"method":"IN_CASH"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestFixedMovementLaunch(t *testing.T) {
	f := newAPIFixture(t)

	body := fmt.Sprintf(`{"identification":"RENT","description":"monthly rent","value":"300.00","quotes":3,"apportionments":[{"cost_center_id":%d,"movement_class_id":%d,"value":"300.00"}]}`,
		f.costCenterID, f.rentID)
	var fixed fixedMovementDTO
	f.mustDo(http.MethodPost, "/api/fixed-movements", body, http.StatusCreated, &fixed)
	if fixed.Status != "ACTIVE" {
		t.Fatalf("status=%s", fixed.Status)
	}

	var launches []launchDTO
	launch := fmt.Sprintf(`{"ids":[%d],"period_id":%d}`, fixed.ID, f.periodID)
	f.mustDo(http.MethodPost, "/api/fixed-movements/launch", launch, http.StatusCreated, &launches)
	if len(launches) != 1 || launches[0].Quote == nil || *launches[0].Quote != 1 {
		t.Fatalf("unexpected launches %+v", launches)
	}

	var page pageDTO[launchDTO]
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/fixed-movements/%d/launches", fixed.ID), "", http.StatusOK, &page)
	if page.Total != 1 {
		t.Errorf("launch total=%d want 1", page.Total)
	}

	var movements pageDTO[movementDTO]
	f.mustDo(http.MethodGet, fmt.Sprintf("/api/movements?period_id=%d", f.periodID), "", http.StatusOK, &movements)
	if movements.Total != 1 || movements.Items[0].Value != "300.00" {
		t.Errorf("unexpected period movements %+v", movements)
	}

	f.mustDo(http.MethodPost, "/api/fixed-movements/launch", `{"ids":[],"period_id":1}`, http.StatusBadRequest, nil)
}

func TestPeriodEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	var active periodDTO
	f.mustDo(http.MethodGet, "/api/periods/active", "", http.StatusOK, &active)
	if active.Identification != "03/2024" || active.End != "2024-03-31" {
		t.Fatalf("unexpected active period %+v", active)
	}

	f.mustDo(http.MethodPost, "/api/periods", `{"start":"2024-03-01","end":"2024-03-31"}`, http.StatusConflict, nil)

	var closed periodDTO
	f.mustDo(http.MethodPost, fmt.Sprintf("/api/periods/%d/close", f.periodID), "", http.StatusOK, &closed)
	if !closed.Closed {
		t.Error("period should be closed")
	}

	var page pageDTO[periodDTO]
	f.mustDo(http.MethodGet, "/api/periods", "", http.StatusOK, &page)
	if page.Total != 1 {
		t.Errorf("periods total=%d", page.Total)
	}
}

func TestCardsAndListings(t *testing.T) {
	f := newAPIFixture(t)

	body := fmt.Sprintf(`{"name":"Visa","type":"debit","wallet_id":%d,"invoice_due_day":10}`, f.walletID)
	var card cardDTO
	f.mustDo(http.MethodPost, "/api/cards", body, http.StatusCreated, &card)
	if card.Type != "DEBIT" {
		t.Errorf("type=%s", card.Type)
	}

	var cards pageDTO[cardDTO]
	f.mustDo(http.MethodGet, "/api/cards?limit=5", "", http.StatusOK, &cards)
	if cards.Total != 1 || cards.Limit != 5 {
		t.Errorf("unexpected cards page %+v", cards)
	}

	var centers pageDTO[costCenterDTO]
	f.mustDo(http.MethodGet, "/api/cost-centers?filter=home", "", http.StatusOK, &centers)
	if centers.Total != 1 || centers.Items[0].ExpensesBudget != "1000.00" {
		t.Errorf("unexpected cost centers %+v", centers)
	}
}

func TestRateLimitedWrites(t *testing.T) {
	svc := backend.Wire(memory.New(), nil)
	srv := NewServer(":0", svc, nil, nil, nil, ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/wallets", strings.NewReader(`{"name":"Cash"}`))
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v", codes)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallets", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, got %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Error("missing security headers")
	}
}
