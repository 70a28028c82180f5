package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"girodesk/internal/domain"
)

type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func Response(w http.ResponseWriter, message string, data interface{}, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func SuccessAccepted(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// WriteServiceError maps the engine's error taxonomy onto HTTP statuses,
// keeping enough context in the payload for the dashboard to show an
// actionable message.
func WriteServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		remainingErr  *domain.InsufficientRemainingError
		conflictErr   *domain.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		ErrorBadRequest(w, validationErr.Error())
	case errors.As(err, &notFoundErr):
		ErrorNotFound(w, notFoundErr.Error())
	case errors.As(err, &remainingErr):
		Response(w, remainingErr.Error(), map[string]interface{}{
			"giro_id":   remainingErr.GiroID,
			"requested": remainingErr.Requested.String(),
			"remaining": remainingErr.Remaining.String(),
		}, 422, "error", http.StatusUnprocessableEntity)
	case errors.As(err, &conflictErr):
		Error(w, conflictErr.Error(), 409, http.StatusConflict)
	default:
		log.Printf("[HTTP] internal error: %v", err)
		ErrorInternal(w, "internal error")
	}
}
