package order

import "fmt"

// TransitionPolicy decides whether an order may move from one status to
// another.
type TransitionPolicy func(from, to Status) error

// AnyTransition accepts every status change, including moves back to PENDING.
func AnyTransition(_, _ Status) error { return nil }

// forwardTransitions is the opt-in stricter lifecycle.
var forwardTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// ForwardOnly allows only the forward lifecycle plus re-setting the current
// status (which lets payment status change on its own).
func ForwardOnly(from, to Status) error {
	if from == to {
		return nil
	}
	for _, s := range forwardTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
}

// PolicyFor returns ForwardOnly when strict is set and AnyTransition otherwise.
func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return ForwardOnly
	}
	return AnyTransition
}
