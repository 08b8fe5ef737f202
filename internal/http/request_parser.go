package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"financas/internal/core"
)

// maxBodyBytes bounds every form and JSON body.
const maxBodyBytes = 64 << 10

// ParsePeriodParams reads month and year from query values. Missing values
// fall back to def. Non-numeric values return an error wrapping
// core.ErrInvalidMonth or core.ErrInvalidYear; out of range numbers are kept
// so the caller can reject them.
func ParsePeriodParams(query url.Values, def core.Period) (core.Period, error) {
	p := def
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("%w: %q", core.ErrInvalidYear, v)
		}
		p.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("%w: %q", core.ErrInvalidMonth, v)
		}
		p.Month = m
	}
	return p, nil
}

// RequestBodyParser reads a JSON object or a form-encoded body once and
// serves string values from either.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes from the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse decodes the body. Errors wrap errBadRequest.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errBadRequest, p.err)
		return p.err
	}
	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return p.err
	}

	form, err := url.ParseQuery(body)
	if err != nil {
		p.err = fmt.Errorf("%w: %v", errBadRequest, err)
		return p.err
	}
	p.formData = form
	return nil
}

// Get returns the sanitized value for key, or an empty string.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Raw returns the value for key exactly as sent. Secrets go through Raw so
// that spaces and other characters are kept.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Bool reads checkbox style values: on, true, 1 or yes.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// transactionInput is a decoded create or update request, with the raw values
// kept so a form can be re-rendered after a validation error.
type transactionInput struct {
	Type        string
	Amount      string
	Description string
	Category    string
	Date        string
}

func readTransactionInput(p *RequestBodyParser) transactionInput {
	return transactionInput{
		Type:        p.Get("type"),
		Amount:      p.Get("amount"),
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Date:        p.Get("date"),
	}
}

// Transaction converts the input. Only decoding errors are reported here;
// field rules are enforced by the service.
func (in transactionInput) Transaction(loc *time.Location) (core.Transaction, error) {
	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(in.Date, loc)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Type:        typ,
		Amount:      amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        date,
	}, nil
}
