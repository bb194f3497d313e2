package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "coefcalc/internal/errors"
	"coefcalc/internal/exporter"
	"coefcalc/internal/infrastructure"
	"coefcalc/internal/ingest"
	"coefcalc/internal/middleware"
	"coefcalc/internal/services"
	"coefcalc/pkg/contracts/domain"
)

// Multipart field names
const (
	FieldDemand        = "demand"
	FieldSwat          = "swat"
	FieldKeyset        = "keyset"
	FieldCalculationID = "calculation_id"
)

// multipartMemory is how much of an upload is held in memory before the
// multipart reader spills to temporary files
const multipartMemory = 32 << 20

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// UploadForm holds the non-file fields of an upload
type UploadForm struct {
	Keyset        string `form:"keyset" validate:"omitempty,oneof=demand union"`
	CalculationID string `form:"calculation_id" validate:"omitempty,uuid"`
}

// CalculationResponse is returned when a calculation finishes
type CalculationResponse struct {
	ID      string            `json:"id"`
	Preview Preview           `json:"preview"`
	Links   map[string]string `json:"links"`
}

// CalculationHandlerConfig collects the handler's collaborators
type CalculationHandlerConfig struct {
	Runner       CalculationRunner
	Store        ResultStore
	Publisher    ProgressPublisher
	Workbook     ReportWriter
	CSV          ReportWriter
	Validator    *middleware.ValidationMiddleware
	ErrorHandler *apierrors.ErrorHandler
	// MaxFileBytes bounds how much of a single part is read
	MaxFileBytes int64
	PreviewRows  int
	Logger       *slog.Logger
}

// CalculationHandler handles calculation-related HTTP requests
type CalculationHandler struct {
	runner       CalculationRunner
	store        ResultStore
	publisher    ProgressPublisher
	workbook     ReportWriter
	csv          ReportWriter
	validator    *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	maxFileBytes int64
	previewRows  int
	logger       *slog.Logger
}

// NewCalculationHandler creates a new calculation handler
func NewCalculationHandler(cfg CalculationHandlerConfig) *CalculationHandler {
	if cfg.Runner == nil || cfg.Store == nil {
		panic("calculation handler requires a runner and a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = apierrors.NewErrorHandler(logger, false)
	}
	if cfg.Validator == nil {
		cfg.Validator = middleware.NewValidationMiddleware(logger, cfg.ErrorHandler, 0)
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 50
	}

	return &CalculationHandler{
		runner:       cfg.Runner,
		store:        cfg.Store,
		publisher:    cfg.Publisher,
		workbook:     cfg.Workbook,
		csv:          cfg.CSV,
		validator:    cfg.Validator,
		query:        middleware.NewQueryParamValidator(cfg.ErrorHandler),
		errorHandler: cfg.ErrorHandler,
		maxFileBytes: cfg.MaxFileBytes,
		previewRows:  cfg.PreviewRows,
		logger:       logger.With(slog.String("handler", "calculations")),
	}
}

// Routes returns a chi router for calculation endpoints
func (h *CalculationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data")).Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/report", h.Download)
	r.Delete("/{id}", h.Delete)
	return r
}

// Create handles POST /api/calculations
func (h *CalculationHandler) Create(w http.ResponseWriter, r *http.Request) {
	res, err := h.RunUpload(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CalculationResponse{
		ID:      res.ID,
		Preview: BuildPreview(res, 0, h.previewRows, false),
		Links:   links(res.ID),
	})
}

// RunUpload reads a multipart upload, runs the calculation and stores the
// result. Progress and the outcome are published under the calculation ID.
func (h *CalculationHandler) RunUpload(r *http.Request) (*domain.CalculationResult, error) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apierrors.NewLimitError(
				fmt.Sprintf("the upload is larger than %s", ingest.FormatBytes(maxErr.Limit)),
				services.ErrLimitExceeded)
		}
		return nil, apierrors.InvalidRequestWithError(err)
	}
	defer r.MultipartForm.RemoveAll()

	form := UploadForm{
		Keyset:        r.FormValue(FieldKeyset),
		CalculationID: r.FormValue(FieldCalculationID),
	}
	if err := h.validator.ValidateStruct(form); err != nil {
		return nil, err
	}

	files, err := h.collectFiles(r.MultipartForm)
	if err != nil {
		return nil, err
	}

	opts := services.CalculationOptions{
		ID:     form.CalculationID,
		Keyset: form.Keyset,
	}
	if h.publisher != nil && opts.ID != "" {
		id := opts.ID
		opts.Reporter = services.ProgressFunc(func(ctx context.Context, stage string, percent int, message string) {
			h.publisher.BroadcastProgress(ctx, id, stage, percent, message)
		})
	}

	h.logger.InfoContext(ctx, "Calculation requested",
		slog.Int("files", len(files)),
		slog.String("keyset", form.Keyset),
		slog.String("calculation_id", form.CalculationID))

	res, err := h.runner.Calculate(ctx, files, opts)
	if err != nil {
		if h.publisher != nil && opts.ID != "" {
			h.publisher.BroadcastError(ctx, opts.ID, apierrors.UserMessage(err))
		}
		return nil, err
	}

	h.store.Put(ctx, res)
	if h.publisher != nil {
		h.publisher.BroadcastComplete(ctx, res.ID, res.Summary)
	}
	return res, nil
}

func (h *CalculationHandler) collectFiles(form *multipart.Form) ([]ingest.File, error) {
	fields := []struct {
		name   string
		family domain.FileFamily
	}{
		{FieldDemand, domain.FamilyDemand},
		{FieldSwat, domain.FamilySwat},
	}

	var files []ingest.File
	for _, field := range fields {
		family := field.family
		for _, fh := range form.File[field.name] {
			f, err := ingest.FromMultipart(fh, family, h.maxFileBytes)
			if err != nil {
				return nil, apierrors.NewParsingError(fmt.Sprintf("could not read upload %s", fh.Filename), err)
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// List handles GET /api/calculations
func (h *CalculationHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.store.List()
	items := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		item := links(id)
		item["id"] = id
		items = append(items, item)
	}
	render.JSON(w, r, map[string]interface{}{
		"calculations": items,
		"count":        len(items),
	})
}

// Get handles GET /api/calculations/{id}?offset=&limit=&sort=product_id
func (h *CalculationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := h.lookup(w, r)
	if !ok {
		return
	}

	offset, ok := h.query.ValidateInt(w, r, "offset", 0, len(res.Results), 0)
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 10000, h.previewRows)
	if !ok {
		return
	}
	sortBy, ok := h.query.ValidateEnum(w, r, "sort", []string{"none", "product_id"}, "none")
	if !ok {
		return
	}

	render.JSON(w, r, BuildPreview(res, offset, limit, sortBy == "product_id"))
}

// Download handles GET /api/calculations/{id}/report?format=xlsx|csv
func (h *CalculationHandler) Download(w http.ResponseWriter, r *http.Request) {
	res, ok := h.lookup(w, r)
	if !ok {
		return
	}
	format, ok := h.query.ValidateEnum(w, r, "format", []string{"xlsx", "csv"}, "xlsx")
	if !ok {
		return
	}

	writer, contentType, filename := h.workbook, contentTypeXLSX, exporter.ReportFilename(res.GeneratedAt)
	if format == "csv" {
		writer, contentType, filename = h.csv, contentTypeCSV, exporter.CSVFilename(res.GeneratedAt)
	}
	if writer == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
		return
	}

	ctx := r.Context()
	var buf bytes.Buffer
	if err := writer.Write(ctx, &buf, res); err != nil {
		infrastructure.RecordError(ctx, err)
		h.logger.ErrorContext(ctx, "Report export failed",
			slog.String("calculation_id", res.ID),
			slog.String("format", format),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.ErrExportFailed)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)

	h.logger.InfoContext(ctx, "Report downloaded",
		slog.String("calculation_id", res.ID),
		slog.String("format", format),
		slog.Int("bytes", buf.Len()))
}

// Delete handles DELETE /api/calculations/{id}
func (h *CalculationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalculationHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.CalculationResult, bool) {
	res, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleStoreError(w, r, err)
		return nil, false
	}
	return res, true
}

func (h *CalculationHandler) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrCalculationNotFound) {
		err = apierrors.ErrCalculationNotFound
	}
	h.errorHandler.HandleError(w, r, err)
}

func links(id string) map[string]string {
	base := "/api/calculations/" + id
	return map[string]string{
		"self": base,
		"xlsx": base + "/report?format=xlsx",
		"csv":  base + "/report?format=csv",
		"page": "/calculations/" + id,
	}
}
