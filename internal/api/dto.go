package api

import (
	"time"

	"github.com/example/bookstore-orders/internal/command"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/query"
)

type placeOrderItem struct {
	ItemID   string `json:"itemId"`
	BookID   string `json:"bookId,omitempty"`
	Quantity int    `json:"quantity"`
}

type placeOrderRequest struct {
	Items []placeOrderItem `json:"items"`
}

func (r placeOrderRequest) lines() []command.LineRequest {
	lines := make([]command.LineRequest, len(r.Items))
	for i, item := range r.Items {
		id := item.ItemID
		if id == "" {
			id = item.BookID
		}
		lines[i] = command.LineRequest{ItemID: id, Quantity: item.Quantity}
	}
	return lines
}

type updateStatusRequest struct {
	Status        string  `json:"status"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}

type orderItemResponse struct {
	ItemID    string `json:"itemId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId"`
	UserName      string              `json:"userName,omitempty"`
	UserEmail     string              `json:"userEmail,omitempty"`
	Items         []orderItemResponse `json:"items"`
	TotalAmount   string              `json:"totalAmount"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"paymentStatus"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type pageResponse struct {
	Content       []orderResponse `json:"content"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalElements int             `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
}

func toOrderResponse(o *order.Order, u user.User) orderResponse {
	items := make([]orderItemResponse, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = orderItemResponse{
			ItemID:    l.Item.ID,
			Title:     l.Item.Title,
			Author:    l.Item.Author,
			ImageURL:  l.Item.ImageURL,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal.StringFixed(2),
		}
	}
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		UserName:      u.Name,
		UserEmail:     u.Email,
		Items:         items,
		TotalAmount:   o.Total.StringFixed(2),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toPageResponse(p *query.Page, content []orderResponse) pageResponse {
	return pageResponse{
		Content:       content,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}
