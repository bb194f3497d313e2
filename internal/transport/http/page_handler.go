package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	apierrors "coefcalc/internal/errors"
	"coefcalc/internal/ingest"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var pageLanguages = []language.Tag{language.English, language.Russian}

var languageMatcher = language.NewMatcher(pageLanguages)

// NumberFormat renders numbers with the grouping of the page language
type NumberFormat struct {
	p *message.Printer
}

// Int formats an integer with digit grouping
func (f NumberFormat) Int(v interface{}) string {
	return f.p.Sprint(number.Decimal(v))
}

// Fixed formats v with exactly places decimals
func (f NumberFormat) Fixed(v float64, places int) string {
	return f.p.Sprint(number.Decimal(v, number.Scale(places)))
}

// pageData is the template model
type pageData struct {
	Lang        string
	Num         NumberFormat
	Error       string
	Keyset      string
	MaxFiles    int
	MaxFileSize string
	Recent      []string
	Preview     *Preview
}

// PageHandler serves the browser upload form and the result page
type PageHandler struct {
	calculations  *CalculationHandler
	store         ResultStore
	errorHandler  *apierrors.ErrorHandler
	limits        ingest.Limits
	defaultKeyset string
	previewRows   int
	logger        *slog.Logger
}

// NewPageHandler creates the HTML page handler. Uploads go through the same
// path as the JSON API.
func NewPageHandler(calculations *CalculationHandler, limits ingest.Limits, defaultKeyset string, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{
		calculations:  calculations,
		store:         calculations.store,
		errorHandler:  calculations.errorHandler,
		limits:        limits,
		defaultKeyset: defaultKeyset,
		previewRows:   calculations.previewRows,
		logger:        logger.With(slog.String("handler", "pages")),
	}
}

// Routes returns a chi router for the HTML pages
func (h *PageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Post("/calculations", h.Upload)
	r.Get("/calculations/{id}", h.Result)
	return r
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, h.newPageData(r))
}

// Upload handles POST /calculations from the form. Success redirects to the
// result page; a failure re-renders the form with a single message.
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	res, err := h.calculations.RunUpload(r)
	if err != nil {
		problem := h.errorHandler.ErrorToProblem(err, r)
		h.logger.WarnContext(r.Context(), "Upload failed",
			slog.Int("status", problem.Status),
			slog.String("error", err.Error()))

		data := h.newPageData(r)
		data.Error = problem.Detail
		if data.Error == "" {
			data.Error = problem.Title
		}
		if r.MultipartForm != nil {
			if ks := r.MultipartForm.Value[FieldKeyset]; len(ks) > 0 && ks[0] != "" {
				data.Keyset = ks[0]
			}
		}
		h.render(w, r, problem.Status, data)
		return
	}

	http.Redirect(w, r, "/calculations/"+res.ID, http.StatusSeeOther)
}

// Result handles GET /calculations/{id}
func (h *PageHandler) Result(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		data := h.newPageData(r)
		data.Error = "The calculation was not found or has expired. Please upload the files again."
		h.render(w, r, http.StatusNotFound, data)
		return
	}

	preview := BuildPreview(res, 0, h.previewRows, false)
	data := h.newPageData(r)
	data.Keyset = res.Summary.Keyset
	data.Preview = &preview
	h.render(w, r, http.StatusOK, data)
}

func (h *PageHandler) newPageData(r *http.Request) pageData {
	tag := matchLanguage(r.Header.Get("Accept-Language"))
	base, _ := tag.Base()
	return pageData{
		Lang:        base.String(),
		Num:         NumberFormat{p: message.NewPrinter(tag)},
		Keyset:      h.defaultKeyset,
		MaxFiles:    h.limits.MaxFiles,
		MaxFileSize: ingest.FormatBytes(h.limits.MaxFileBytes),
		Recent:      h.store.List(),
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "page", data); err != nil {
		h.logger.ErrorContext(r.Context(), "Page render failed", slog.String("error", err.Error()))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// matchLanguage picks the supported page language for an Accept-Language
// header, defaulting to English
func matchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := languageMatcher.Match(tags...)
	return pageLanguages[idx]
}
