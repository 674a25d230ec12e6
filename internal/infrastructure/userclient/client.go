package userclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/infrastructure/breaker"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 3 * time.Second

// Client resolves users through the user service's GET /users/{id}.
type Client struct {
	http    *resty.Client
	circuit *breaker.Breaker
}

var _ user.Directory = (*Client)(nil)

func New(baseURL string, timeout time.Duration, circuit *breaker.Breaker) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
		circuit: circuit,
	}
}

// Lookup returns user.ErrUserNotFound for a 404. Transport failures and 5xx
// answers count against the breaker; a missing user does not.
func (c *Client) Lookup(ctx context.Context, userID string) (user.User, error) {
	var (
		found    user.User
		notFound bool
	)

	err := c.circuit.Do(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&found).
			Get("/users/" + url.PathEscape(userID))
		if err != nil {
			return fmt.Errorf("user service request failed: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusOK:
			return nil
		case resp.StatusCode() == http.StatusNotFound:
			notFound = true
			return nil
		default:
			return fmt.Errorf("user service returned status %d: %s", resp.StatusCode(), resp.String())
		}
	})
	if err != nil {
		return user.User{}, err
	}
	if notFound || found.ID == "" {
		return user.User{}, user.NotFoundError(userID)
	}
	return found, nil
}
