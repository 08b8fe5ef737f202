package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

func (e *testEnv) api(method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rr.Body.String())
	}
	return v
}

func TestAPI_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{"/api/transactions", "/api/analysis", "/api/dashboard"} {
		rr := env.api(http.MethodGet, target, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s = %d, want 401", target, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%s: missing WWW-Authenticate", target)
		}
	}
}

func TestAPI_LoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "ana@example.com")

	rr := env.api(http.MethodPost, "/api/login", "", `{"email":"ana@example.com","password":"nope!!"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rr.Code)
	}

	rr = env.api(http.MethodPost, "/api/login", "", `{"email":"ana@example.com","password":"secret1","rememberMe":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rr.Code, rr.Body.String())
	}
	type session struct {
		Token      string `json:"token"`
		RememberMe bool   `json:"rememberMe"`
	}
	sess := decode[session](t, rr)
	if sess.Token == "" || !sess.RememberMe {
		t.Fatalf("session = %+v", sess)
	}

	if rr := env.api(http.MethodGet, "/api/dashboard", sess.Token, ""); rr.Code != http.StatusOK {
		t.Fatalf("dashboard with bearer token = %d", rr.Code)
	}
	if rr := env.api(http.MethodPost, "/api/logout", sess.Token, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rr.Code)
	}
	if rr := env.api(http.MethodGet, "/api/dashboard", sess.Token, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked token = %d, want 401", rr.Code)
	}
	if rr := env.api(http.MethodPost, "/api/logout", "", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("logout without token = %d", rr.Code)
	}
}

func TestAPI_TransactionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn(t, "ana@example.com")
	otherToken, _ := env.signIn(t, "bob@example.com")

	rr := env.api(http.MethodPost, "/api/transactions", token,
		`{"type":"expense","amount":"25.90","description":"Almoço","category":"food","date":"2025-03-05"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	created := decode[core.Transaction](t, rr)
	if created.ID == "" || rr.Header().Get("Location") != "/api/transactions/"+created.ID {
		t.Fatalf("created = %+v, location %q", created, rr.Header().Get("Location"))
	}
	if created.Amount.StringFixed(2) != "25.90" || created.Date.Hour() != 12 {
		t.Errorf("unexpected created transaction %+v", created)
	}

	rr = env.api(http.MethodGet, "/api/transactions/"+created.ID, token, "")
	if rr.Code != http.StatusOK {
		t.Errorf("get = %d", rr.Code)
	}
	if rr := env.api(http.MethodGet, "/api/transactions/"+created.ID, otherToken, ""); rr.Code != http.StatusNotFound {
		t.Errorf("foreign get = %d, want 404", rr.Code)
	}

	rr = env.api(http.MethodPut, "/api/transactions/"+created.ID, token,
		`{"type":"expense","amount":30,"description":"Almoço e café","category":"food","date":"2025-03-06"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
	}
	updated := decode[core.Transaction](t, rr)
	if updated.Description != "Almoço e café" || updated.Amount.String() != "30" || updated.Date.Day() != 6 {
		t.Errorf("updated = %+v", updated)
	}

	rr = env.api(http.MethodPut, "/api/transactions/"+created.ID, otherToken,
		`{"type":"expense","amount":"1","description":"hijack","category":"food","date":"2025-03-06"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("foreign update = %d, want 404", rr.Code)
	}

	rr = env.api(http.MethodGet, "/api/transactions?filter=expense", token, "")
	list := decode[struct {
		Filter       services.Filter    `json:"filter"`
		Transactions []core.Transaction `json:"transactions"`
	}](t, rr)
	if list.Filter != services.FilterExpense || len(list.Transactions) != 1 {
		t.Errorf("list = %+v", list)
	}

	if rr := env.api(http.MethodDelete, "/api/transactions/"+created.ID, otherToken, ""); rr.Code != http.StatusNotFound {
		t.Errorf("foreign delete = %d", rr.Code)
	}
	if rr := env.api(http.MethodDelete, "/api/transactions/"+created.ID, token, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rr.Code)
	}
	if rr := env.api(http.MethodDelete, "/api/transactions/"+created.ID, token, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rr.Code)
	}
}

func TestAPI_CreateErrors(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn(t, "ana@example.com")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"type":`, http.StatusBadRequest},
		{"bad type", `{"type":"gift","amount":"1","description":"abc","category":"food","date":"2025-03-01"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"type":"expense","amount":"-5","description":"abc","category":"food","date":"2025-03-01"}`, http.StatusUnprocessableEntity},
		{"short description", `{"type":"expense","amount":"5","description":"ab","category":"food","date":"2025-03-01"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"type":"expense","amount":"5","description":"abc","category":"yachts","date":"2025-03-01"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"expense","amount":"5","description":"abc","category":"food","date":"01/03/2025"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.api(http.MethodPost, "/api/transactions", token, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
			body := decode[ErrorBody](t, rr)
			if body.Status != tt.want || body.Error == "" {
				t.Errorf("error body = %+v", body)
			}
		})
	}
}

func TestAPI_Analysis(t *testing.T) {
	env := newTestEnv(t)
	token, u := env.signIn(t, "ana@example.com")
	env.seed(t, u.ID, core.Income, "salary", "1000", time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))
	env.seed(t, u.ID, core.Expense, "food", "250", time.Date(2025, 2, 2, 12, 0, 0, 0, time.UTC))
	env.seed(t, u.ID, core.Expense, "food", "999", time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC))

	rr := env.api(http.MethodGet, "/api/analysis?month=2&year=2025", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	report := decode[services.Report](t, rr)
	if report.Month != 2 || report.Year != 2025 {
		t.Errorf("period = %d/%d", report.Month, report.Year)
	}
	if report.TotalIncome.String() != "1000" || report.TotalExpense.String() != "250" || report.Balance.String() != "750" {
		t.Errorf("totals = %s %s %s", report.TotalIncome, report.TotalExpense, report.Balance)
	}
	if len(report.CategoryBreakdown) != 1 || report.CategoryBreakdown[0].Percentage != 100 {
		t.Errorf("breakdown = %+v", report.CategoryBreakdown)
	}
	if len(report.Segments) != 1 || report.Insights.SavingsPercentage != 75 {
		t.Errorf("segments %d, insights %+v", len(report.Segments), report.Insights)
	}

	rr = env.api(http.MethodGet, "/api/analysis", token, "")
	if report := decode[services.Report](t, rr); report.Month != 3 || report.TotalExpense.String() != "999" {
		t.Errorf("default period report = %d %s", report.Month, report.TotalExpense)
	}

	for _, target := range []string{
		"/api/analysis?month=13&year=2025",
		"/api/analysis?month=abc",
		"/api/analysis?month=2&year=next",
	} {
		if rr := env.api(http.MethodGet, target, token, ""); rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s = %d, want 422", target, rr.Code)
		}
	}
}

func TestAPI_Dashboard(t *testing.T) {
	env := newTestEnv(t)
	token, u := env.signIn(t, "ana@example.com")
	for i := 0; i < 5; i++ {
		env.seed(t, u.ID, core.Expense, "food", "10", fixedNow.AddDate(0, 0, -i))
	}

	rr := env.api(http.MethodGet, "/api/dashboard", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	d := decode[services.Dashboard](t, rr)
	if len(d.Recent) != dashboardRecent {
		t.Errorf("recent = %d, want %d", len(d.Recent), dashboardRecent)
	}
	if d.Balance != "-R$ 50,00" || d.Period.Month != 3 {
		t.Errorf("dashboard = %+v", d)
	}
}

func TestAPI_Categories(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 12},
		{"?type=income", http.StatusOK, 4},
		{"?type=EXPENSE", http.StatusOK, 8},
		{"?type=gift", http.StatusUnprocessableEntity, 0},
	}
	for _, tt := range tests {
		rr := env.api(http.MethodGet, "/api/categories"+tt.query, "", "")
		if rr.Code != tt.code {
			t.Errorf("%q: status = %d", tt.query, rr.Code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		got := decode[categoriesResponse](t, rr)
		if len(got.Categories) != tt.count {
			t.Errorf("%q: %d categories, want %d", tt.query, len(got.Categories), tt.count)
		}
	}
}

func TestAPI_ErrorsAreLoggedWithType(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, func(d *Dependencies) {
		d.Logger = log.New(log.Config{Level: slog.LevelDebug, Component: log.ComponentApp, Output: &buf})
	})
	token, _ := env.signIn(t, "ana@example.com")

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantType string
	}{
		{"validation", http.MethodPost, "/api/transactions", `{"type":"expense","amount":"-5","description":"abc","category":"food","date":"2025-03-01"}`, log.ErrorTypeValidation},
		{"bad period", http.MethodGet, "/api/analysis?month=abc", "", log.ErrorTypeValidation},
		{"not found", http.MethodGet, "/api/transactions/missing", "", log.ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			env.api(tt.method, tt.target, token, tt.body)
			out := buf.String()
			if !strings.Contains(out, "error_type="+tt.wantType) {
				t.Errorf("log missing error_type=%s:\n%s", tt.wantType, out)
			}
			if !strings.Contains(out, "level=DEBUG") {
				t.Errorf("rejected requests should log at debug level:\n%s", out)
			}
		})
	}
}
