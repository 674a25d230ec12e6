package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/example/bookstore-orders/internal/api/middleware"
	"github.com/example/bookstore-orders/internal/command"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/idempotency"
	"github.com/example/bookstore-orders/internal/query"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// ReplayedHeader is set on a response that repeats an earlier placement.
const ReplayedHeader = "Idempotent-Replayed"

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	users        user.Directory
	idempotency  idempotency.Store
}

// NewHandlers wires the HTTP handlers. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, users user.Directory, idem idempotency.Store) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		users:        users,
		idempotency:  idem,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	cmd := command.PlaceOrder{UserID: userID, Items: req.lines()}

	key := idempotency.Key(r)
	if key == "" || h.idempotency == nil {
		o, err := h.cmdHandler.PlaceOrder(r.Context(), cmd)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		h.respondOrder(w, r, http.StatusCreated, o)
		return
	}

	if err := idempotency.ValidateKey(key); err != nil {
		writeDomainError(w, r, fmt.Errorf("%w: %s header must be 1-%d characters", err, idempotency.Header, idempotency.MaxKeyLength))
		return
	}
	h.placeIdempotent(w, r, cmd, idempotency.Scoped(userID, key))
}

func (h *Handlers) placeIdempotent(w http.ResponseWriter, r *http.Request, cmd command.PlaceOrder, key string) {
	ctx := r.Context()
	logger := log.WithFields(log.Fields{"component": "api", "user_id": cmd.UserID})

	existingID, claimed, err := h.idempotency.Claim(ctx, key)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !claimed {
		o, err := h.queryHandler.GetOrder(ctx, existingID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		logger.WithField("order_id", o.ID).Info("replayed idempotent order placement")
		w.Header().Set(ReplayedHeader, "true")
		h.respondOrder(w, r, http.StatusOK, o)
		return
	}

	// the claim must be settled even if the client has gone away
	settleCtx := context.WithoutCancel(ctx)

	o, err := h.cmdHandler.PlaceOrder(ctx, cmd)
	if err != nil {
		if relErr := h.idempotency.Release(settleCtx, key); relErr != nil {
			logger.WithError(relErr).Warn("failed to release idempotency key")
		}
		writeDomainError(w, r, err)
		return
	}
	if err := h.idempotency.Complete(settleCtx, key, o.ID); err != nil {
		logger.WithError(err).WithField("order_id", o.ID).Warn("failed to record idempotency key")
	}
	h.respondOrder(w, r, http.StatusCreated, o)
}

// ListOrders is the admin view over every order.
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	req, err := parsePageRequest(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	page, err := h.queryHandler.ListAll(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondPage(w, r, page)
}

func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	req, err := parsePageRequest(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	page, err := h.queryHandler.ListByUser(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondPage(w, r, page)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	o, err := h.queryHandler.GetOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Another customer's order answers exactly like a missing one
	if o.UserID != middleware.GetUserID(r.Context()) && !middleware.HasRole(r.Context(), user.RoleAdmin) {
		writeDomainError(w, r, fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID))
		return
	}

	h.respondOrder(w, r, http.StatusOK, o)
}

// Admin Handlers

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	o, err := h.cmdHandler.UpdateStatus(r.Context(), command.UpdateOrderStatus{
		OrderID:       chi.URLParam(r, "id"),
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondOrder(w, r, http.StatusOK, o)
}

// Helper functions

func (h *Handlers) respondOrder(w http.ResponseWriter, r *http.Request, status int, o *order.Order) {
	lookup := h.userLookup(r.Context())
	respondJSON(w, status, toOrderResponse(o, lookup(o.UserID)))
}

func (h *Handlers) respondPage(w http.ResponseWriter, r *http.Request, page *query.Page) {
	lookup := h.userLookup(r.Context())
	content := make([]orderResponse, len(page.Content))
	for i, o := range page.Content {
		content[i] = toOrderResponse(o, lookup(o.UserID))
	}
	respondJSON(w, http.StatusOK, toPageResponse(page, content))
}

// userLookup resolves user name and email once per user for one response.
// An order is still rendered when its user cannot be resolved.
func (h *Handlers) userLookup(ctx context.Context) func(string) user.User {
	seen := make(map[string]user.User)
	return func(userID string) user.User {
		if u, ok := seen[userID]; ok {
			return u
		}
		u, err := h.users.Lookup(ctx, userID)
		if err != nil {
			level := log.WarnLevel
			if errors.Is(err, user.ErrUserNotFound) {
				level = log.DebugLevel
			}
			log.WithFields(log.Fields{"component": "api", "user_id": userID}).WithError(err).Log(level, "user lookup failed")
			u = user.User{ID: userID}
		}
		seen[userID] = u
		return u
	}
}

func parsePageRequest(r *http.Request) (query.PageRequest, error) {
	q := r.URL.Query()
	req := query.PageRequest{
		Sort:      q.Get("sort"),
		Direction: q.Get("direction"),
	}

	var err error
	if req.Page, err = intParam(q.Get("page")); err != nil {
		return req, fmt.Errorf("%w: page %w", query.ErrInvalidPage, err)
	}
	if req.Size, err = intParam(q.Get("size")); err != nil {
		return req, fmt.Errorf("%w: size %w", query.ErrInvalidPage, err)
	}
	return req, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return n, nil
}
