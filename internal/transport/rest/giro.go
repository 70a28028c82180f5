package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"girodesk/internal/domain"
	"girodesk/internal/repository"
	"girodesk/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type giroResponse struct {
	ID            string  `json:"id"`
	CustomerID    string  `json:"customer_id"`
	CustomerName  *string `json:"customer_name,omitempty"`
	GiroNumber    string  `json:"giro_number"`
	BankName      string  `json:"bank_name"`
	BankAccount   *string `json:"bank_account,omitempty"`
	Amount        string  `json:"amount"`
	DueDate       string  `json:"due_date"`
	ReceivedDate  string  `json:"received_date"`
	Status        string  `json:"status"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
	Remarks       *string `json:"remarks,omitempty"`
	CreatedAt     *string `json:"created_at,omitempty"`
	UpdatedAt     *string `json:"updated_at,omitempty"`
}

func toGiroResponse(g domain.Giro) giroResponse {
	return giroResponse{
		ID:            g.ID,
		CustomerID:    g.CustomerID,
		CustomerName:  g.CustomerName,
		GiroNumber:    g.GiroNumber,
		BankName:      g.BankName,
		BankAccount:   g.BankAccount,
		Amount:        g.Amount.String(),
		DueDate:       g.DueDate.Format("2006-01-02"),
		ReceivedDate:  g.ReceivedDate.Format("2006-01-02"),
		Status:        string(g.Status),
		InvoiceNumber: g.InvoiceNumber,
		Remarks:       g.Remarks,
		CreatedAt:     formatTimePtr(g.CreatedAt),
		UpdatedAt:     formatTimePtr(g.UpdatedAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

type createGiroRequest struct {
	CustomerID    string          `json:"customer_id"`
	GiroNumber    string          `json:"giro_number"`
	BankName      string          `json:"bank_name"`
	BankAccount   *string         `json:"bank_account"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       string          `json:"due_date"`
	ReceivedDate  string          `json:"received_date"`
	InvoiceNumber *string         `json:"invoice_number"`
	Remarks       *string         `json:"remarks"`
}

func (h *Handler) createGiro(w http.ResponseWriter, r *http.Request) {
	var req createGiroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	receivedDate, err := parseDate("received_date", req.ReceivedDate)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	g, err := h.giros.CreateGiro(r.Context(), service.GiroInput{
		CustomerID:    req.CustomerID,
		GiroNumber:    req.GiroNumber,
		BankName:      req.BankName,
		BankAccount:   req.BankAccount,
		Amount:        req.Amount,
		DueDate:       dueDate,
		ReceivedDate:  receivedDate,
		InvoiceNumber: req.InvoiceNumber,
		Remarks:       req.Remarks,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	SuccessCreated(w, "giro created", toGiroResponse(*g))
}

func (h *Handler) listGiros(w http.ResponseWriter, r *http.Request) {
	f := repository.GirosFilter{}

	q := r.URL.Query()
	if v := q.Get("customer_id"); v != "" {
		f.CustomerID = &v
	}
	if v := q.Get("status"); v != "" {
		f.Status = &v
	}
	if v := q.Get("due_from"); v != "" {
		parsed, err := parseDate("due_from", v)
		if err != nil {
			ErrorBadRequest(w, err.Error())
			return
		}
		f.DueFrom = &parsed
	}
	if v := q.Get("due_to"); v != "" {
		parsed, err := parseDate("due_to", v)
		if err != nil {
			ErrorBadRequest(w, err.Error())
			return
		}
		f.DueTo = &parsed
	}

	giros, err := h.giros.ListGiros(r.Context(), f)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	out := make([]giroResponse, 0, len(giros))
	for _, g := range giros {
		out = append(out, toGiroResponse(g))
	}

	Success(w, "", out)
}

func (h *Handler) getGiro(w http.ResponseWriter, r *http.Request) {
	g, err := h.giros.GetGiro(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	Success(w, "", toGiroResponse(*g))
}

type updateGiroRequest struct {
	GiroNumber    *string          `json:"giro_number"`
	BankName      *string          `json:"bank_name"`
	BankAccount   *string          `json:"bank_account"`
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       *string          `json:"due_date"`
	ReceivedDate  *string          `json:"received_date"`
	InvoiceNumber *string          `json:"invoice_number"`
	Remarks       *string          `json:"remarks"`
}

func (h *Handler) updateGiro(w http.ResponseWriter, r *http.Request) {
	var req updateGiroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	u := domain.GiroUpdate{
		GiroNumber:    req.GiroNumber,
		BankName:      req.BankName,
		BankAccount:   req.BankAccount,
		Amount:        req.Amount,
		InvoiceNumber: req.InvoiceNumber,
		Remarks:       req.Remarks,
	}

	if req.DueDate != nil {
		parsed, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			ErrorBadRequest(w, err.Error())
			return
		}
		u.DueDate = &parsed
	}
	if req.ReceivedDate != nil {
		parsed, err := parseDate("received_date", *req.ReceivedDate)
		if err != nil {
			ErrorBadRequest(w, err.Error())
			return
		}
		u.ReceivedDate = &parsed
	}

	g, err := h.giros.UpdateGiro(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	Success(w, "giro updated", toGiroResponse(*g))
}

func (h *Handler) deleteGiro(w http.ResponseWriter, r *http.Request) {
	if err := h.giros.DeleteGiro(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteServiceError(w, err)
		return
	}
	Success(w, "giro deleted", nil)
}

func (h *Handler) getGiroDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.giros.GetGiroDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	records := make([]clearingResponse, 0, len(detail.Records))
	for _, rec := range detail.Records {
		records = append(records, toClearingResponse(rec))
	}

	Success(w, "", map[string]interface{}{
		"giro":      toGiroResponse(detail.Giro),
		"records":   records,
		"remaining": detail.Remaining.String(),
	})
}

func (h *Handler) getRemaining(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	remaining, err := h.giros.GetRemainingAmount(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	Success(w, "", map[string]interface{}{
		"giro_id":   id,
		"remaining": remaining.String(),
	})
}

func (h *Handler) recalculateStatus(w http.ResponseWriter, r *http.Request) {
	g, err := h.giros.RecalculateStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	Success(w, "status recalculated", toGiroResponse(*g))
}
