package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"girodesk/internal/domain"
	"girodesk/internal/service"
	"girodesk/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type clearingResponse struct {
	ID             string  `json:"id"`
	GiroID         string  `json:"giro_id"`
	ClearingDate   string  `json:"clearing_date"`
	ClearingStatus string  `json:"clearing_status"`
	ClearingAmount string  `json:"clearing_amount"`
	ReferenceDoc   *string `json:"reference_doc,omitempty"`
	Remarks        *string `json:"remarks,omitempty"`
	CreatedBy      string  `json:"created_by"`
	CreatedAt      *string `json:"created_at,omitempty"`
}

func toClearingResponse(rec domain.GiroClearingRecord) clearingResponse {
	return clearingResponse{
		ID:             rec.ID,
		GiroID:         rec.GiroID,
		ClearingDate:   rec.ClearingDate.Format("2006-01-02"),
		ClearingStatus: string(rec.ClearingStatus),
		ClearingAmount: rec.ClearingAmount.String(),
		ReferenceDoc:   rec.ReferenceDoc,
		Remarks:        rec.Remarks,
		CreatedBy:      rec.CreatedBy,
		CreatedAt:      formatTimePtr(rec.CreatedAt),
	}
}

type createClearingRequest struct {
	ClearingDate   string          `json:"clearing_date"`
	ClearingStatus string          `json:"clearing_status"`
	ClearingAmount decimal.Decimal `json:"clearing_amount"`
	ReferenceDoc   *string         `json:"reference_doc"`
	Remarks        *string         `json:"remarks"`
	CreatedBy      *string         `json:"created_by"`
}

func (h *Handler) createClearing(w http.ResponseWriter, r *http.Request) {
	var req createClearingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	clearingDate, err := parseDate("clearing_date", req.ClearingDate)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	// the recording actor defaults to the authenticated user unless the
	// request names one explicitly
	createdBy := ""
	if req.CreatedBy != nil {
		createdBy = *req.CreatedBy
	} else if userID, err := auth.GetUserID(r.Context()); err == nil {
		createdBy = strconv.FormatInt(userID, 10)
	}

	rec, err := h.giros.RecordClearing(r.Context(), chi.URLParam(r, "id"), service.ClearingInput{
		ClearingDate:   clearingDate,
		ClearingStatus: domain.ClearingOutcome(req.ClearingStatus),
		ClearingAmount: req.ClearingAmount,
		ReferenceDoc:   req.ReferenceDoc,
		Remarks:        req.Remarks,
		CreatedBy:      createdBy,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	SuccessCreated(w, "clearing recorded", toClearingResponse(*rec))
}

func (h *Handler) listClearings(w http.ResponseWriter, r *http.Request) {
	records, err := h.giros.ListClearingRecords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	out := make([]clearingResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toClearingResponse(rec))
	}

	Success(w, "", out)
}

func (h *Handler) deleteClearing(w http.ResponseWriter, r *http.Request) {
	if err := h.giros.DeleteClearingRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteServiceError(w, err)
		return
	}
	Success(w, "clearing record deleted", nil)
}
