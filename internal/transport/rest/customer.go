package rest

import (
	"context"
	"net/http"

	"girodesk/internal/domain"
)

type CustomerLister interface {
	List(ctx context.Context) ([]domain.Customer, error)
}

type customerResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Route   *string `json:"route,omitempty"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, customerResponse{
			ID:      c.ID,
			Name:    c.Name,
			Address: c.Address,
			Phone:   c.Phone,
			Route:   c.Route,
		})
	}

	Success(w, "", out)
}
