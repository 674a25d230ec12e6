package idempotency

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

// MaxKeyLength bounds client supplied keys.
const MaxKeyLength = 128

var (
	// ErrInProgress means another request with the same key has not finished.
	ErrInProgress = errors.New("a request with this idempotency key is still in progress")
	ErrInvalidKey = errors.New("invalid idempotency key")
)

// pending marks a claimed key whose request has not completed yet.
const pending = "\x00pending"

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Scoped namespaces a client key by user so two users can never collide.
func Scoped(userID, key string) string {
	return "idem:" + userID + ":" + key
}

func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return ErrInvalidKey
	}
	return nil
}

// Store remembers which order a key produced.
//
// Claim either reserves key for the caller (claimed=true) or reports the
// order id an earlier request with the same key produced. A key that is
// claimed but not completed yields ErrInProgress.
type Store interface {
	Claim(ctx context.Context, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}
