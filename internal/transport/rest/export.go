package rest

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"girodesk/internal/repository"
	"girodesk/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

type rawGirosExportRequest struct {
	Fields     []string    `json:"fields"`
	CustomerID interface{} `json:"customer_id"`
	Status     interface{} `json:"status"`
	DueFrom    interface{} `json:"due_from"`
	DueTo      interface{} `json:"due_to"`
}

func validateGirosExportRequest(r *http.Request) ([]string, repository.GirosFilter, error) {
	var raw rawGirosExportRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, repository.GirosFilter{}, err
	}
	if len(raw.Fields) == 0 {
		return nil, repository.GirosFilter{}, &ValidationError{Field: "fields", Message: "fields is required and must be an array"}
	}

	customerID, err := toStringPtr(raw.CustomerID)
	if err != nil {
		return nil, repository.GirosFilter{}, &ValidationError{Field: "customer_id", Message: "customer_id must be string or empty"}
	}
	status, err := toStringPtr(raw.Status)
	if err != nil {
		return nil, repository.GirosFilter{}, &ValidationError{Field: "status", Message: "status must be string or empty"}
	}
	dueFrom, err := toDatePtr(raw.DueFrom)
	if err != nil {
		return nil, repository.GirosFilter{}, &ValidationError{Field: "due_from", Message: "due_from must be YYYY-MM-DD or empty"}
	}
	dueTo, err := toDatePtr(raw.DueTo)
	if err != nil {
		return nil, repository.GirosFilter{}, &ValidationError{Field: "due_to", Message: "due_to must be YYYY-MM-DD or empty"}
	}

	return raw.Fields, repository.GirosFilter{
		CustomerID: customerID,
		Status:     status,
		DueFrom:    dueFrom,
		DueTo:      dueTo,
	}, nil
}

func (h *Handler) exportGiros(w http.ResponseWriter, r *http.Request) {
	fields, filter, err := validateGirosExportRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportID, err := h.giroExports.StartGirosExport(r.Context(), fields, filter, userID)
	if err != nil {
		log.Printf("[HTTP] startGirosExport error: %v", err)
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export queued", map[string]interface{}{"export_id": exportID})
}

type rawClearingsExportRequest struct {
	Fields         []string    `json:"fields"`
	GiroID         interface{} `json:"giro_id"`
	CustomerID     interface{} `json:"customer_id"`
	ClearingStatus interface{} `json:"clearing_status"`
	DateFrom       interface{} `json:"date_from"`
	DateTo         interface{} `json:"date_to"`
}

func validateClearingsExportRequest(r *http.Request) ([]string, repository.ClearingsFilter, error) {
	var raw rawClearingsExportRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, repository.ClearingsFilter{}, err
	}
	if len(raw.Fields) == 0 {
		return nil, repository.ClearingsFilter{}, &ValidationError{Field: "fields", Message: "fields is required and must be an array"}
	}

	giroID, err := toStringPtr(raw.GiroID)
	if err != nil {
		return nil, repository.ClearingsFilter{}, &ValidationError{Field: "giro_id", Message: "giro_id must be string or empty"}
	}
	customerID, err := toStringPtr(raw.CustomerID)
	if err != nil {
		return nil, repository.ClearingsFilter{}, &ValidationError{Field: "customer_id", Message: "customer_id must be string or empty"}
	}
	outcome, err := toStringPtr(raw.ClearingStatus)
	if err != nil {
		return nil, repository.ClearingsFilter{}, &ValidationError{Field: "clearing_status", Message: "clearing_status must be string or empty"}
	}
	dateFrom, err := toDatePtr(raw.DateFrom)
	if err != nil {
		return nil, repository.ClearingsFilter{}, &ValidationError{Field: "date_from", Message: "date_from must be YYYY-MM-DD or empty"}
	}
	dateTo, err := toDatePtr(raw.DateTo)
	if err != nil {
		return nil, repository.ClearingsFilter{}, &ValidationError{Field: "date_to", Message: "date_to must be YYYY-MM-DD or empty"}
	}

	return raw.Fields, repository.ClearingsFilter{
		GiroID:     giroID,
		CustomerID: customerID,
		Outcome:    outcome,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	}, nil
}

func (h *Handler) exportClearings(w http.ResponseWriter, r *http.Request) {
	fields, filter, err := validateClearingsExportRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportID, err := h.clearingExports.StartClearingsExport(r.Context(), fields, filter, userID)
	if err != nil {
		log.Printf("[HTTP] startClearingsExport error: %v", err)
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export queued", map[string]interface{}{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exportList.GetExports(r.Context(), userID)
	if err != nil {
		log.Printf("[HTTP] listExports error: %v", err)
		ErrorInternal(w, "failed to get exports")
		return
	}

	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportIDParam := chi.URLParam(r, "export_id")
	if exportIDParam == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	exportID := "exports:" + exportIDParam

	export, err := h.exportList.GetExport(r.Context(), exportID, userID)
	if err != nil {
		ErrorNotFound(w, "export not found")
		return
	}

	Success(w, "", export)
}
