package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ErrInvalidPage is returned for a negative page, a non-positive size or an
// unknown sort key or direction.
var ErrInvalidPage = errors.New("invalid page request")

// PageRequest selects one zero-based page. Empty Sort means createdAt and
// empty Direction means desc.
type PageRequest struct {
	Page      int
	Size      int
	Sort      string
	Direction string
}

// Page is one window of orders plus the totals needed to page through the
// rest.
type Page struct {
	Content       []*order.Order
	Page          int
	Size          int
	TotalElements int
	TotalPages    int
}

type Handler struct {
	orders store.OrderReader
}

func NewHandler(orders store.OrderReader) *Handler {
	return &Handler{orders: orders}
}

// ListAll pages over every order.
func (h *Handler) ListAll(ctx context.Context, req PageRequest) (*Page, error) {
	q, err := toListQuery(req)
	if err != nil {
		return nil, err
	}
	return h.list(ctx, q, req)
}

// ListByUser pages over one user's orders, newest first.
func (h *Handler) ListByUser(ctx context.Context, userID string, req PageRequest) (*Page, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidPage)
	}
	req.Sort = string(store.SortCreatedAt)
	req.Direction = "desc"

	q, err := toListQuery(req)
	if err != nil {
		return nil, err
	}
	q.UserID = userID
	return h.list(ctx, q, req)
}

func (h *Handler) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.orders.Get(ctx, orderID)
}

func (h *Handler) list(ctx context.Context, q store.ListQuery, req PageRequest) (*Page, error) {
	orders, total, err := h.orders.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Page{
		Content:       orders,
		Page:          req.Page,
		Size:          q.Limit,
		TotalElements: total,
		TotalPages:    (total + q.Limit - 1) / q.Limit,
	}, nil
}

func toListQuery(req PageRequest) (store.ListQuery, error) {
	if req.Page < 0 {
		return store.ListQuery{}, fmt.Errorf("%w: page must not be negative", ErrInvalidPage)
	}
	size := req.Size
	switch {
	case size == 0:
		size = DefaultPageSize
	case size < 0:
		return store.ListQuery{}, fmt.Errorf("%w: size must be positive", ErrInvalidPage)
	case size > MaxPageSize:
		size = MaxPageSize
	}

	if req.Page > math.MaxInt/size {
		return store.ListQuery{}, fmt.Errorf("%w: page %d is out of range", ErrInvalidPage, req.Page)
	}

	sortKey, err := store.ParseSortKey(req.Sort)
	if err != nil {
		return store.ListQuery{}, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}

	var desc bool
	switch strings.ToLower(req.Direction) {
	case "", "desc":
		desc = true
	case "asc":
		desc = false
	default:
		return store.ListQuery{}, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidPage, req.Direction)
	}

	return store.ListQuery{
		Offset:     req.Page * size,
		Limit:      size,
		Sort:       sortKey,
		Descending: desc,
	}, nil
}
