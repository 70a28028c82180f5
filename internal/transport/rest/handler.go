package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"girodesk/internal/domain"
	"girodesk/internal/repository"
	"girodesk/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

type GiroEngine interface {
	CreateGiro(ctx context.Context, in service.GiroInput) (*domain.Giro, error)
	GetGiro(ctx context.Context, id string) (*domain.Giro, error)
	UpdateGiro(ctx context.Context, id string, u domain.GiroUpdate) (*domain.Giro, error)
	DeleteGiro(ctx context.Context, id string) error
	ListGiros(ctx context.Context, f repository.GirosFilter) ([]domain.Giro, error)
	RecordClearing(ctx context.Context, giroID string, in service.ClearingInput) (*domain.GiroClearingRecord, error)
	ListClearingRecords(ctx context.Context, giroID string) ([]domain.GiroClearingRecord, error)
	DeleteClearingRecord(ctx context.Context, id string) error
	RecalculateStatus(ctx context.Context, giroID string) (*domain.Giro, error)
	GetRemainingAmount(ctx context.Context, giroID string) (decimal.Decimal, error)
	GetGiroDetail(ctx context.Context, giroID string) (*service.GiroDetail, error)
}

type GiroExporter interface {
	StartGirosExport(ctx context.Context, selected []string, filter repository.GirosFilter, userID int64) (string, error)
}

type ClearingExporter interface {
	StartClearingsExport(ctx context.Context, selected []string, filter repository.ClearingsFilter, userID int64) (string, error)
}

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type Handler struct {
	giros           GiroEngine
	customers       CustomerLister
	giroExports     GiroExporter
	clearingExports ClearingExporter
	exportList      ExportListService
}

func NewHandler(giros GiroEngine, customers CustomerLister, giroExports GiroExporter, clearingExports ClearingExporter, exportList ExportListService) *Handler {
	return &Handler{
		giros:           giros,
		customers:       customers,
		giroExports:     giroExports,
		clearingExports: clearingExports,
		exportList:      exportList,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "girodesk API")
	})

	r.Route("/giros", func(r chi.Router) {
		r.Get("/", h.listGiros)
		r.Post("/", h.createGiro)
		r.Get("/{id}", h.getGiro)
		r.Patch("/{id}", h.updateGiro)
		r.Delete("/{id}", h.deleteGiro)
		r.Get("/{id}/detail", h.getGiroDetail)
		r.Get("/{id}/remaining", h.getRemaining)
		r.Post("/{id}/recalculate", h.recalculateStatus)
		r.Get("/{id}/clearings", h.listClearings)
		r.Post("/{id}/clearings", h.createClearing)
	})

	r.Delete("/clearings/{id}", h.deleteClearing)

	r.Get("/customers", h.listCustomers)

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/giros", h.exportGiros)
		r.Post("/clearings", h.exportClearings)
	})

	return r
}
