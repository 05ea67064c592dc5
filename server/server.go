// Package server exposes search and analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"productlens/analysis"
	"productlens/catalog"
	"productlens/config"
	"productlens/metrics"
	"productlens/provider"
	"productlens/schema"
)

// DefaultModel is used when an analyze request names no model.
const DefaultModel = "gpt-4o-mini"

type productSource interface {
	GetProduct(ctx context.Context, prdNo string) (*catalog.Product, error)
	Search(ctx context.Context, siteCd, keyword string) ([]catalog.SearchHit, error)
}

type analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) *analysis.AnalysisResult
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	PrdNo       string `json:"prdNo"`
	Model       string `json:"model"`
	UseImages   *bool  `json:"useImages"`
	IncludeText bool   `json:"includeText"`
}

// Validate checks the request and fills defaults.
func (r *AnalyzeRequest) Validate() error {
	r.PrdNo = strings.TrimSpace(r.PrdNo)
	if r.PrdNo == "" {
		return errors.New("prdNo is required")
	}
	if _, err := strconv.ParseUint(r.PrdNo, 10, 64); err != nil {
		return fmt.Errorf("prdNo must be numeric, got %q", r.PrdNo)
	}
	if strings.TrimSpace(r.Model) == "" {
		r.Model = DefaultModel
	}
	return nil
}

func (r *AnalyzeRequest) useImages() bool {
	return r.UseImages == nil || *r.UseImages
}

// Handler serves the HTTP API.
type Handler struct {
	products productSource
	analyzer analyzer
	siteCd   string
	logger   *slog.Logger
}

// NewHandler creates a Handler. siteCd is the default search site.
func NewHandler(products productSource, a analyzer, siteCd string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if siteCd == "" {
		siteCd = catalog.DefaultSiteCd
	}
	return &Handler{products: products, analyzer: a, siteCd: siteCd, logger: logger}
}

// Routes returns the router with the standard middleware stack.
func (h *Handler) Routes(cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Throttle(cfg.ThrottleLimit),
		middleware.Timeout(cfg.Timeout),
		metrics.Middleware,
	}...)

	r.Get("/healthz", h.Healthz)
	r.Get("/search", h.Search)
	r.Post("/analyze", h.Analyze)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Search lists catalog hits for ?keyword= on ?siteCd=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	siteCd := r.URL.Query().Get("siteCd")
	if siteCd == "" {
		siteCd = h.siteCd
	}

	hits, err := h.products.Search(r.Context(), siteCd, keyword)
	if err != nil {
		h.logger.Warn("search failed", "keyword", keyword, "site_cd", siteCd, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("search failed: %s", err))
		return
	}
	if hits == nil {
		hits = []catalog.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keyword": keyword, "siteCd": siteCd, "hits": hits})
}

// Analyze fetches the product and runs one analysis.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request validation failed: %s", err))
		return
	}

	product, err := h.products.GetProduct(r.Context(), req.PrdNo)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, catalog.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, fmt.Sprintf("product %s: %s", req.PrdNo, err))
		return
	}

	res := h.analyzer.Analyze(r.Context(), analysis.Request{
		Product:   product,
		Model:     req.Model,
		UseImages: req.useImages(),
	})
	writeJSON(w, statusFor(res), res.Report(req.IncludeText))
}

// statusFor maps an analysis outcome to an HTTP status.
func statusFor(res *analysis.AnalysisResult) int {
	if res.OK() {
		return http.StatusOK
	}
	err := res.Err()
	var blocked *provider.BlockedError
	var invalid *schema.ValidationError
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &blocked):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invalid):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
