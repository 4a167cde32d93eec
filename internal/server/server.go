package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/iwvelando/calcola-rata/internal/catalog"
	"github.com/iwvelando/calcola-rata/internal/quote"
	"github.com/iwvelando/calcola-rata/internal/ratetable"
	"github.com/iwvelando/calcola-rata/pkg/constants"
	"github.com/iwvelando/calcola-rata/pkg/loans"
	"github.com/iwvelando/calcola-rata/pkg/output"
	"github.com/iwvelando/calcola-rata/pkg/validation"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type handler struct {
	logger        *zap.Logger
	resolver      *catalog.Resolver
	maxUploadSize int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the calculator API.
// Rate tables are resolved again for every request, so a replaced bundled
// workbook is picked up without a restart and uploads never leak between
// requests.
func NewHandler(logger *zap.Logger, resolver *catalog.Resolver, cfg *Config, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := constants.DefaultMaxUploadSizeBytes
	var allowedOrigins []string
	if cfg != nil {
		if size := cfg.UploadSizeBytes(); size > 0 {
			maxUploadSize = size
		}
		allowedOrigins = cfg.AllowedOrigins
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		resolver:      resolver,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/lenders", h.handleLenders).Methods(http.MethodGet)
	router.HandleFunc("/api/lenders/{name}/table", h.handleTable).Methods(http.MethodGet)
	router.HandleFunc("/api/quote", h.handleQuote).Methods(http.MethodPost)
	router.HandleFunc("/api/reverse", h.handleReverse).Methods(http.MethodPost)
	router.HandleFunc("/api/schedule", h.handleSchedule).Methods(http.MethodPost)
	router.HandleFunc("/api/version", h.handleVersion).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		return router
	}

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

// calcRequest is the body of a quote or reverse request. Multipart requests
// carry the same fields as form values plus an optional table upload.
type calcRequest struct {
	Lenders     []string `json:"finanziarie"`
	Lender      string   `json:"finanziaria"`
	Duration    int      `json:"durata"`
	Amount      float64  `json:"importo"`
	Installment float64  `json:"rata"`
	Cadence     string   `json:"cadenza"`
}

func (c calcRequest) lenders() []string {
	var lenders []string
	for _, name := range c.Lenders {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			lenders = append(lenders, trimmed)
		}
	}
	if trimmed := strings.TrimSpace(c.Lender); trimmed != "" {
		lenders = append(lenders, trimmed)
	}
	return lenders
}

type scheduleRequest struct {
	Principal float64 `json:"importo"`
	Rate      float64 `json:"tan"`
	Duration  int     `json:"durata"`
	StartDate string  `json:"inizio"`
}

type uploadedTable struct {
	name string
	data []byte
}

// requestError carries the status a failed request should be answered with.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleLenders(w http.ResponseWriter, r *http.Request) {
	set, warnings := h.resolver.Resolve()

	response := output.LendersReport{
		Lenders:   make([]output.LenderDurations, 0, set.Len()),
		Durations: set.Durations(),
		Warnings:  warnings,
	}
	for _, name := range set.Lenders() {
		table, _ := set.Table(name)
		response.Lenders = append(response.Lenders, output.LenderDurations{
			Name:      name,
			Durations: table.Durations(),
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	set, warnings := h.resolver.Resolve()

	table, ok := set.Table(name)
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown lender %q", name), "server.handleTable")
		return
	}

	h.writeJSON(w, http.StatusOK, output.TableReport{
		Lender:   table.Lender(),
		Rows:     table.Rows(),
		Warnings: warnings,
	})
}

func (h *handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleQuote"
	start := time.Now()

	req, set, warnings, cadence, err := h.prepare(w, r)
	if err != nil {
		h.respondRequestError(w, err, op)
		return
	}
	if err := validation.ValidateAmount("importo", req.Amount); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	results := quote.Compare(set, quote.Request{
		Lenders:  req.lenders(),
		Duration: req.Duration,
		Cadence:  cadence,
	}, req.Amount)

	h.logger.Info("quote computed",
		zap.String("op", op),
		zap.Int("lenders", len(results)),
		zap.Int("duration", req.Duration),
		zap.Duration("elapsed", time.Since(start)),
	)

	h.writeJSON(w, http.StatusOK, output.QuoteReport{
		Principal: req.Amount,
		Duration:  req.Duration,
		Cadence:   cadence,
		Results:   results,
		Warnings:  warnings,
	})
}

func (h *handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleReverse"
	start := time.Now()

	req, set, warnings, cadence, err := h.prepare(w, r)
	if err != nil {
		h.respondRequestError(w, err, op)
		return
	}
	if err := validation.ValidateAmount("rata", req.Installment); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	results := quote.CompareReverse(set, quote.Request{
		Lenders:  req.lenders(),
		Duration: req.Duration,
		Cadence:  cadence,
	}, req.Installment)

	h.logger.Info("reverse quote computed",
		zap.String("op", op),
		zap.Int("lenders", len(results)),
		zap.Int("duration", req.Duration),
		zap.Duration("elapsed", time.Since(start)),
	)

	h.writeJSON(w, http.StatusOK, output.ReverseReport{
		Installment: req.Installment,
		Duration:    req.Duration,
		Cadence:     cadence,
		Results:     results,
		Warnings:    warnings,
	})
}

func (h *handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSchedule"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondRequestError(w, decodeError(err, h.maxUploadSize), op)
		return
	}

	if err := validation.ValidateAmount("importo", req.Principal); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	if err := validation.ValidateRate(req.Rate); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	schedule, err := loans.NewAmortizationScheduleGenerator(h.logger).GenerateSchedule(loans.ScheduleRequest{
		Principal:    req.Principal,
		InterestRate: req.Rate,
		Term:         req.Duration,
		StartDate:    strings.TrimSpace(req.StartDate),
	})
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	h.writeJSON(w, http.StatusOK, output.ScheduleReport{
		Principal:  req.Principal,
		AnnualRate: req.Rate,
		Duration:   req.Duration,
		Schedule:   schedule,
	})
}

// prepare decodes a quote or reverse request and resolves the tables it runs
// against, applying the uploaded table when one is attached.
func (h *handler) prepare(w http.ResponseWriter, r *http.Request) (calcRequest, *ratetable.Set, []string, quote.Cadence, error) {
	req, upload, err := h.decodeCalcRequest(w, r)
	if err != nil {
		return req, nil, nil, quote.Monthly, err
	}

	cadence, err := quote.ParseCadence(req.Cadence)
	if err != nil {
		return req, nil, nil, quote.Monthly, badRequest("%v", err)
	}

	set, warnings := h.resolver.Resolve()
	if upload != nil {
		lenders := req.lenders()
		if len(lenders) != 1 {
			return req, nil, nil, cadence, badRequest("an uploaded table applies to exactly one lender, got %d", len(lenders))
		}
		var uploadWarnings []string
		set, uploadWarnings = h.resolver.ApplyUpload(set, lenders[0], upload.name, bytes.NewReader(upload.data))
		warnings = append(warnings, uploadWarnings...)
	}

	if err := validation.ValidateDuration(req.Duration, set.Durations()); err != nil {
		return req, nil, nil, cadence, badRequest("%v", err)
	}
	return req, set, warnings, cadence, nil
}

func (h *handler) decodeCalcRequest(w http.ResponseWriter, r *http.Request) (calcRequest, *uploadedTable, error) {
	var req calcRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, nil, decodeError(err, h.maxUploadSize)
		}
		return req, nil, nil
	}

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return req, nil, decodeError(err, h.maxUploadSize)
	}

	req.Lenders = r.MultipartForm.Value["finanziarie"]
	req.Lender = r.FormValue("finanziaria")
	req.Cadence = r.FormValue("cadenza")

	var err error
	if req.Duration, err = formInt(r, "durata"); err != nil {
		return req, nil, err
	}
	if req.Amount, err = formFloat(r, "importo"); err != nil {
		return req, nil, err
	}
	if req.Installment, err = formFloat(r, "rata"); err != nil {
		return req, nil, err
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, badRequest("failed to read upload: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", "server.decodeCalcRequest"),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return req, nil, &requestError{status: http.StatusInternalServerError, msg: fmt.Sprintf("failed to read upload: %v", err)}
	}
	return req, &uploadedTable{name: header.Filename, data: buf.Bytes()}, nil
}

func decodeError(err error, limit int64) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return &requestError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("request exceeds limit of %d bytes", limit),
		}
	}
	return badRequest("failed to decode request: %v", err)
}

func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be a whole number, got %q", field, raw)
	}
	return n, nil
}

// formFloat accepts both "1234.56" and "1234,56".
func formFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return 0, badRequest("%s must be a number, got %q", field, raw)
	}
	return f, nil
}

func (h *handler) respondRequestError(w http.ResponseWriter, err error, op string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		h.respondErrorWithOp(w, reqErr.status, reqErr.msg, op)
		return
	}
	h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("calculation request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
