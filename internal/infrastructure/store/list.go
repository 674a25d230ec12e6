package store

import (
	"fmt"
	"sort"

	"github.com/example/bookstore-orders/internal/domain/order"
)

type SortKey string

const (
	SortCreatedAt   SortKey = "createdAt"
	SortTotalAmount SortKey = "totalAmount"
	SortStatus      SortKey = "status"
)

// sortColumns maps the accepted sort keys to ledger columns. Anything not in
// this map is rejected before it reaches SQL.
var sortColumns = map[SortKey]string{
	SortCreatedAt:   "created_at",
	SortTotalAmount: "total_amount",
	SortStatus:      "status",
}

func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortCreatedAt, nil
	}
	k := SortKey(s)
	if _, ok := sortColumns[k]; !ok {
		return "", fmt.Errorf("unsupported sort key %q", s)
	}
	return k, nil
}

// ListQuery selects a window of orders. An empty UserID lists every user.
type ListQuery struct {
	UserID     string
	Offset     int
	Limit      int
	Sort       SortKey
	Descending bool
}

// sortOrders orders in place by key, breaking ties on id so pages are stable.
func sortOrders(orders []*order.Order, key SortKey, desc bool) {
	less := func(a, b *order.Order) int {
		switch key {
		case SortTotalAmount:
			return a.Total.Cmp(b.Total)
		case SortStatus:
			switch {
			case a.Status < b.Status:
				return -1
			case a.Status > b.Status:
				return 1
			}
			return 0
		default:
			switch {
			case a.CreatedAt.Before(b.CreatedAt):
				return -1
			case a.CreatedAt.After(b.CreatedAt):
				return 1
			}
			return 0
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		c := less(orders[i], orders[j])
		if c == 0 {
			if desc {
				return orders[i].ID > orders[j].ID
			}
			return orders[i].ID < orders[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func window[T any](all []T, offset, limit int) []T {
	if offset < 0 || offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || limit > len(all)-offset {
		end = len(all)
	}
	return all[offset:end]
}
