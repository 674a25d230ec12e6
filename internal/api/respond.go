package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/bookstore-orders/internal/command"
	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/idempotency"
	"github.com/example/bookstore-orders/internal/infrastructure/breaker"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
	"github.com/example/bookstore-orders/internal/query"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`

	ItemID    string `json:"itemId,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeDomainError maps a use case error to its HTTP status.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *inventory.StockError

	switch {
	case errors.As(err, &stockErr):
		available := stockErr.Available
		respondJSON(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			Code:      "INSUFFICIENT_STOCK",
			ItemID:    stockErr.ItemID,
			Requested: stockErr.Requested,
			Available: &available,
		})
	case errors.Is(err, store.ErrConcurrencyConflict):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "CONFLICT", Retryable: true})
	case errors.Is(err, idempotency.ErrInProgress):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "IDEMPOTENCY_IN_PROGRESS", Retryable: true})
	case errors.Is(err, order.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, command.ErrValidation),
		errors.Is(err, query.ErrInvalidPage),
		errors.Is(err, idempotency.ErrInvalidKey),
		errors.Is(err, inventory.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, inventory.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "ITEM_NOT_FOUND", err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "USER_NOT_FOUND", err.Error())
	case errors.Is(err, breaker.ErrUnavailable):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dependency unavailable", Code: "UNAVAILABLE", Retryable: true})
	default:
		log.WithFields(log.Fields{
			"component": "api",
			"method":    r.Method,
			"path":      r.URL.Path,
		}).WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
