package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"financas/internal/core"
)

func TestParsePeriodParams(t *testing.T) {
	def := core.Period{Month: 3, Year: 2025}

	tests := []struct {
		name    string
		query   url.Values
		want    core.Period
		wantErr error
	}{
		{"both values provided", url.Values{"year": {"2024"}, "month": {"12"}}, core.Period{Month: 12, Year: 2024}, nil},
		{"only month", url.Values{"month": {"7"}}, core.Period{Month: 7, Year: 2025}, nil},
		{"empty uses default", url.Values{}, def, nil},
		{"non numeric month", url.Values{"month": {"abc"}}, def, core.ErrInvalidMonth},
		{"non numeric year", url.Values{"month": {"4"}, "year": {"x"}}, def, core.ErrInvalidYear},
		{"out of range kept", url.Values{"month": {"13"}}, core.Period{Month: 13, Year: 2025}, nil},
		{"whitespace trimmed", url.Values{"month": {" 4 "}}, core.Period{Month: 4, Year: 2025}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriodParams(tt.query, def)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePeriodParams = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		wantErr     bool
		values      map[string]string
	}{
		{
			name:        "form",
			body:        "description=Mercado&amount=10%2C50",
			contentType: "application/x-www-form-urlencoded",
			values:      map[string]string{"description": "Mercado", "amount": "10,50"},
		},
		{
			name:        "json with number and bool",
			body:        `{"amount": 12.5, "rememberMe": true, "description": " padaria "}`,
			contentType: "application/json",
			wantJSON:    true,
			values:      map[string]string{"amount": "12.5", "rememberMe": "true", "description": "padaria", "missing": ""},
		},
		{
			name:        "control characters stripped",
			body:        "description=a%00b%07c",
			contentType: "application/x-www-form-urlencoded",
			values:      map[string]string{"description": "abc"},
		},
		{
			name:        "empty body",
			contentType: "application/x-www-form-urlencoded",
			values:      map[string]string{"description": ""},
		},
		{
			name:        "broken json",
			body:        `{"amount":`,
			contentType: "application/json",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			p := NewRequestBodyParser(req)

			err := p.Parse()
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("Parse error = %v, want errBadRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON = %v", p.IsJSON())
			}
			for k, want := range tt.values {
				if got := p.Get(k); got != want {
					t.Errorf("Get(%q) = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestRequestBodyParser_Raw(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"form", "password=+ab%01cde+", "application/x-www-form-urlencoded"},
		{"json", `{"password":" ab\u0001cde "}`, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			p := NewRequestBodyParser(req)
			if err := p.Parse(); err != nil {
				t.Fatal(err)
			}
			if got := p.Raw("password"); got != " ab\x01cde " {
				t.Errorf("Raw = %q", got)
			}
			if got := p.Get("password"); got != "abcde" {
				t.Errorf("Get = %q", got)
			}
			if got := p.Raw("missing"); got != "" {
				t.Errorf("Raw(missing) = %q", got)
			}
		})
	}
}

func TestRequestBodyParser_Bool(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=on&b=1&c=no&d="))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]bool{"a": true, "b": true, "c": false, "d": false, "e": false} {
		if got := p.Bool(key); got != want {
			t.Errorf("Bool(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestTransactionInput(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)

	in := transactionInput{Type: "Income", Amount: "1.234,5", Description: "Salário", Category: "salary", Date: "2025-03-01"}
	// Thousands separators are not accepted.
	if _, err := in.Transaction(loc); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("amount with separators: err = %v", err)
	}

	in.Amount = "1234,5"
	tx, err := in.Transaction(loc)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if tx.Type != core.Income || tx.Amount.StringFixed(2) != "1234.50" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if y, m, d := tx.Date.Date(); y != 2025 || m != time.March || d != 1 || tx.Date.Hour() != 12 || tx.Date.Location() != loc {
		t.Errorf("date = %v", tx.Date)
	}
	if got := tx.Date.UTC().Day(); got != 1 {
		t.Errorf("noon anchor should keep the day in UTC, got %d", got)
	}

	for _, bad := range []transactionInput{
		{Type: "gift", Amount: "1", Date: "2025-03-01"},
		{Type: "expense", Amount: "1", Date: ""},
		{Type: "expense", Amount: "1", Date: "2025-02-30"},
	} {
		if _, err := bad.Transaction(loc); !core.IsValidationError(err) {
			t.Errorf("%+v: err = %v, want validation error", bad, err)
		}
	}
}

func TestParseDate_RFC3339(t *testing.T) {
	got, err := parseDate("2025-03-01T08:30:00-03:00", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2025, 3, 1, 11, 30, 0, 0, time.UTC)) {
		t.Errorf("parseDate = %v", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{errBadRequest, http.StatusBadRequest},
		{core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
