package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"webbudget/internal/core"
)

func TestParsePageQuery(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantOffset int
		wantLimit  int
		wantFilter string
		wantDir    string
	}{
		{"defaults", "", 0, core.PageQuery{}.Normalize().Limit, "", core.PageQuery{}.Normalize().SortDirection},
		{"explicit", "offset=10&limit=5&filter=%20rent%20&dir=DESC", 10, 5, "rent", "desc"},
		{"garbage numbers", "offset=x&limit=y", 0, core.PageQuery{}.Normalize().Limit, "", core.PageQuery{}.Normalize().SortDirection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.raw)
			q := ParsePageQuery(values)
			if q.Offset != tt.wantOffset || q.Limit != tt.wantLimit {
				t.Errorf("offset/limit = %d/%d, want %d/%d", q.Offset, q.Limit, tt.wantOffset, tt.wantLimit)
			}
			if q.Filter != tt.wantFilter {
				t.Errorf("filter = %q, want %q", q.Filter, tt.wantFilter)
			}
			if q.SortDirection != tt.wantDir {
				t.Errorf("dir = %q, want %q", q.SortDirection, tt.wantDir)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"ok"}`, ""},
		{"empty", ``, "empty"},
		{"unknown field", `{"other":1}`, "unknown field"},
		{"two objects", `{"name":"a"}{"name":"b"}`, "single JSON object"},
		{"malformed", `{"name":`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Name != "ok" {
					t.Errorf("name = %q", dst.Name)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestQueryID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"period_id=7", 7, false},
		{"period_id=0", 0, true},
		{"period_id=abc", 0, true},
	}
	for _, tt := range tests {
		values, _ := url.ParseQuery(tt.raw)
		got, err := queryID(values, "period_id")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("queryID(%q) = %d, %v", tt.raw, got, err)
		}
	}
}

func TestParseMoneyAndDate(t *testing.T) {
	m, err := parseMoney("value", "12.34")
	if err != nil || m != core.Cents(1234) {
		t.Errorf("parseMoney = %v, %v", m, err)
	}
	if m, err := parseMoney("value", " "); err != nil || !m.IsZero() {
		t.Errorf("empty amount = %v, %v", m, err)
	}
	if _, err := parseMoney("value", "1.2.3"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	d, err := parseDate("due_date", "2024-03-31")
	if err != nil || d.String() != "2024-03-31" {
		t.Errorf("parseDate = %v, %v", d, err)
	}
	if _, err := parseDate("due_date", "31/03/2024"); err == nil {
		t.Error("expected error for a non ISO date")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  rent  ", "rent"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemovedApportionments(t *testing.T) {
	stored := []core.Apportionment{{ID: 1}, {ID: 2}, {ID: 3}}
	next := []core.Apportionment{{ID: 2}, {ID: 0}}

	got := removedApportionments(stored, next)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("removedApportionments = %+v", got)
	}
}
