package server

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/calcola-rata/internal/catalog"
	"github.com/iwvelando/calcola-rata/internal/config"
	"github.com/iwvelando/calcola-rata/internal/quote"
	"github.com/iwvelando/calcola-rata/pkg/output"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, cfg *Config) http.Handler {
	t.Helper()

	conf, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	conf.Tables.BundledFile = filepath.Join(t.TempDir(), "missing.xlsx")

	return NewHandler(zap.NewNop(), catalog.NewResolver(zap.NewNop(), conf), cfg, "v1.2.3")
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func resultFor(t *testing.T, results []quote.Result, lender string) quote.Result {
	t.Helper()
	for _, r := range results {
		if r.Lender == lender {
			return r
		}
	}
	t.Fatalf("no result for lender %s in %+v", lender, results)
	return quote.Result{}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func TestHandleQuoteQuarterly(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := postJSON(t, handler, "/api/quote", map[string]interface{}{
		"durata":  60,
		"importo": 15000,
		"cadenza": "trimestrale",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp output.QuoteReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Cadence != quote.Quarterly {
		t.Fatalf("expected quarterly cadence, got %v", resp.Cadence)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 lenders, got %d", len(resp.Results))
	}

	alfa := resultFor(t, resp.Results, "Finanziaria Alfa")
	if !alfa.Found || !approx(*alfa.Installment, 851.40) || !approx(*alfa.Monthly, 283.80) {
		t.Fatalf("unexpected Alfa result %+v", alfa)
	}
	if !alfa.Cheapest {
		t.Fatal("expected Alfa to be the cheapest lender")
	}

	beta := resultFor(t, resp.Results, "Finanziaria Beta")
	if !beta.Found || !approx(*beta.Monthly, 287.25) || beta.Cheapest {
		t.Fatalf("unexpected Beta result %+v", beta)
	}
}

func TestHandleQuoteMissingDurationForSomeLenders(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := postJSON(t, handler, "/api/quote", map[string]interface{}{
		"durata":  84,
		"importo": 15000,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp output.QuoteReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if alfa := resultFor(t, resp.Results, "Finanziaria Alfa"); alfa.Found || alfa.Installment != nil {
		t.Fatalf("expected no data for Alfa, got %+v", alfa)
	}
	beta := resultFor(t, resp.Results, "Finanziaria Beta")
	if !beta.Found || !approx(*beta.Installment, 211.50) || !beta.Cheapest {
		t.Fatalf("unexpected Beta result %+v", beta)
	}
}

func TestHandleQuoteRejectsInvalidInput(t *testing.T) {
	handler := newTestHandler(t, nil)

	tests := map[string]map[string]interface{}{
		"unknown duration": {"durata": 99, "importo": 15000},
		"zero amount":      {"durata": 60, "importo": 0},
		"bad cadence":      {"durata": 60, "importo": 15000, "cadenza": "settimanale"},
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			rr := postJSON(t, handler, "/api/quote", payload)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}

			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp["error"] == "" {
				t.Fatal("expected error message in response")
			}
		})
	}
}

func TestHandleQuoteMalformedJSON(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quote", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename, contents string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(contents)); err != nil {
			t.Fatalf("failed to write form data: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandleQuoteUploadOverridesLender(t *testing.T) {
	handler := newTestHandler(t, nil)

	upload := "Durata;FasciaMin;FasciaMax;Coeff_percent\n60;1000;100000;2,000\n"
	req := multipartRequest(t, "/api/quote", map[string]string{
		"finanziaria": "Finanziaria Alfa",
		"durata":      "60",
		"importo":     "15000,00",
	}, "alfa.csv", upload)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp output.QuoteReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected only the selected lender, got %+v", resp.Results)
	}
	alfa := resp.Results[0]
	if !alfa.Found || !approx(*alfa.Monthly, 300.00) || !approx(*alfa.CoeffPercent, 2.0) {
		t.Fatalf("expected uploaded coefficient to apply, got %+v", alfa)
	}
}

func TestHandleQuoteUnreadableUploadFallsBack(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := multipartRequest(t, "/api/quote", map[string]string{
		"finanziaria": "Finanziaria Alfa",
		"durata":      "60",
		"importo":     "15000",
	}, "alfa.pdf", "not a table")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp output.QuoteReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Warnings) == 0 {
		t.Fatal("expected a warning for the unreadable upload")
	}
	if alfa := resp.Results[0]; !alfa.Found || !approx(*alfa.Monthly, 283.80) {
		t.Fatalf("expected default Alfa coefficient, got %+v", alfa)
	}
}

func TestHandleQuoteUploadNeedsSingleLender(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := multipartRequest(t, "/api/quote", map[string]string{
		"durata":  "60",
		"importo": "15000",
	}, "table.csv", "Durata,FasciaMin,FasciaMax,Coeff_percent\n60,1000,100000,2\n")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleReverse(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := postJSON(t, handler, "/api/reverse", map[string]interface{}{
		"finanziarie": []string{"Finanziaria Alfa"},
		"durata":      60,
		"rata":        283.80,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp output.ReverseReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected one result, got %+v", resp.Results)
	}
	alfa := resp.Results[0]
	if !alfa.Found || math.Abs(*alfa.Principal-15000) > 0.01 {
		t.Fatalf("expected implied principal of 15000, got %+v", alfa)
	}
}

func TestHandleReverseRejectsZeroInstallment(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := postJSON(t, handler, "/api/reverse", map[string]interface{}{"durata": 60})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleSchedule(t *testing.T) {
	handler := newTestHandler(t, nil)

	rr := postJSON(t, handler, "/api/schedule", map[string]interface{}{
		"importo": 10000,
		"tan":     5,
		"durata":  60,
		"inizio":  "2026-01",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Installment float64 `json:"installment"`
		Rows        []struct {
			Month            int     `json:"month"`
			Date             string  `json:"date"`
			Interest         float64 `json:"interest"`
			RemainingBalance float64 `json:"remainingBalance"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !approx(resp.Installment, 188.71) {
		t.Fatalf("expected installment 188.71, got %.2f", resp.Installment)
	}
	if len(resp.Rows) != 60 {
		t.Fatalf("expected 60 rows, got %d", len(resp.Rows))
	}
	if resp.Rows[0].Date != "2026-01" || !approx(resp.Rows[0].Interest, 41.67) {
		t.Fatalf("unexpected first row %+v", resp.Rows[0])
	}
	if last := resp.Rows[59]; last.Date != "2030-12" || last.RemainingBalance != 0 {
		t.Fatalf("unexpected last row %+v", last)
	}
}

func TestHandleScheduleRejectsInvalidInput(t *testing.T) {
	handler := newTestHandler(t, nil)

	tests := map[string]map[string]interface{}{
		"zero term":     {"importo": 10000, "tan": 5, "durata": 0},
		"negative rate": {"importo": 10000, "tan": -1, "durata": 12},
		"bad start":     {"importo": 10000, "tan": 5, "durata": 12, "inizio": "gennaio"},
		"zero amount":   {"importo": 0, "tan": 5, "durata": 12},
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			rr := postJSON(t, handler, "/api/schedule", payload)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleLenders(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/lenders", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp output.LendersReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Lenders) != 3 {
		t.Fatalf("expected 3 lenders, got %+v", resp.Lenders)
	}
	expected := []int{24, 36, 48, 60, 72, 84}
	if len(resp.Durations) != len(expected) {
		t.Fatalf("expected durations %v, got %v", expected, resp.Durations)
	}
	for i, d := range expected {
		if resp.Durations[i] != d {
			t.Fatalf("expected durations %v, got %v", expected, resp.Durations)
		}
	}
}

func TestHandleTable(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/lenders/Finanziaria%20Gamma/table", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp output.TableReport
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Lender != "Finanziaria Gamma" || len(resp.Rows) != 14 {
		t.Fatalf("expected Gamma's 14 coefficients, got %s with %d rows", resp.Lender, len(resp.Rows))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/lenders/Finanziaria%20Zeta/table", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown lender, got %d", rr.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["version"] != "v1.2.3" {
		t.Fatalf("expected version v1.2.3, got %q", resp["version"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/quote", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestRequestTooLarge(t *testing.T) {
	cfg, _ := LoadConfig("")
	cfg.SetUploadSizeBytes(64)
	handler := newTestHandler(t, cfg)

	rr := postJSON(t, handler, "/api/quote", map[string]interface{}{
		"durata":  60,
		"importo": 15000,
		"cadenza": strings.Repeat("x", 256),
	})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg, _ := LoadConfig("")
	cfg.AllowedOrigins = []string{"https://preventivi.example.it"}
	handler := newTestHandler(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set("Origin", "https://preventivi.example.it")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://preventivi.example.it" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set("Origin", "https://altro.example.com")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allowed origin header for foreign origin, got %q", got)
	}
}
