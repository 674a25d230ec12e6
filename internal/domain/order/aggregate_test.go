package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var placedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mustLine(t *testing.T, id string, qty int, price string) Line {
	t.Helper()
	l, err := NewLine(ItemRef{ID: id, Title: "Title " + id}, qty, decimal.RequireFromString(price))
	require.NoError(t, err)
	return l
}

func paymentPtr(p PaymentStatus) *PaymentStatus { return &p }

// ============================================
// New / NewLine Tests
// ============================================

func TestNew_Success(t *testing.T) {
	o, err := New("order-1", "user-1", []Line{mustLine(t, "gatsby", 4, "12.99")}, placedAt)

	require.NoError(t, err)
	assert.Equal(t, "51.96", o.Total.StringFixed(2))
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, placedAt, o.CreatedAt)
	assert.Equal(t, placedAt, o.UpdatedAt)
}

func TestNew_MultipleLines(t *testing.T) {
	lines := []Line{
		mustLine(t, "a", 2, "10.00"),
		mustLine(t, "b", 1, "20.00"),
		mustLine(t, "a", 3, "10.00"),
	}

	o, err := New("order-1", "user-1", lines, placedAt)

	require.NoError(t, err)
	assert.Len(t, o.Lines, 3)
	assert.Equal(t, "70.00", o.Total.StringFixed(2))
}

func TestNew_EmptyOrder(t *testing.T) {
	_, err := New("order-1", "user-1", nil, placedAt)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestNew_OwnsLines(t *testing.T) {
	lines := []Line{mustLine(t, "a", 1, "5.00")}
	o, err := New("order-1", "user-1", lines, placedAt)
	require.NoError(t, err)

	lines[0].Quantity = 99

	assert.Equal(t, 1, o.Lines[0].Quantity)
}

func TestNewLine_Invalid(t *testing.T) {
	_, err := NewLine(ItemRef{ID: "a"}, 0, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewLine(ItemRef{ID: "a"}, 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestValidate_DetectsTampering(t *testing.T) {
	o, err := New("order-1", "user-1", []Line{mustLine(t, "a", 2, "3.50")}, placedAt)
	require.NoError(t, err)

	bad := o.Clone()
	bad.Total = decimal.RequireFromString("1.00")
	assert.ErrorIs(t, bad.Validate(), ErrTotalMismatch)

	bad = o.Clone()
	bad.Lines[0].Subtotal = decimal.RequireFromString("1.00")
	assert.ErrorIs(t, bad.Validate(), ErrTotalMismatch)

	assert.NoError(t, o.Validate(), "clones must not share lines")
}

// ============================================
// Status Tests
// ============================================

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)

	_, err = ParseStatus("LOST")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	ps, err := ParsePaymentStatus("Paid")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, ps)

	_, err = ParsePaymentStatus("")
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestApply_SetsStatusAndPayment(t *testing.T) {
	o, err := New("order-1", "user-1", []Line{mustLine(t, "gatsby", 4, "12.99")}, placedAt)
	require.NoError(t, err)
	later := placedAt.Add(time.Hour)

	next, err := o.Apply(StatusChange{Status: StatusConfirmed, PaymentStatus: paymentPtr(PaymentPaid)}, nil, later)

	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, next.Status)
	assert.Equal(t, PaymentPaid, next.PaymentStatus)
	assert.Equal(t, later, next.UpdatedAt)
	assert.Equal(t, placedAt, next.CreatedAt)
	assert.True(t, next.Total.Equal(o.Total))
	assert.Equal(t, o.Lines, next.Lines)

	assert.Equal(t, StatusPending, o.Status, "the receiver is never modified")
}

func TestApply_KeepsPaymentWhenNil(t *testing.T) {
	o, err := New("order-1", "user-1", []Line{mustLine(t, "a", 1, "1.00")}, placedAt)
	require.NoError(t, err)

	next, err := o.Apply(StatusChange{Status: StatusShipped}, AnyTransition, placedAt)

	require.NoError(t, err)
	assert.Equal(t, PaymentPending, next.PaymentStatus)
}

func TestApply_RejectsUnknownValues(t *testing.T) {
	o, err := New("order-1", "user-1", []Line{mustLine(t, "a", 1, "1.00")}, placedAt)
	require.NoError(t, err)

	_, err = o.Apply(StatusChange{Status: "LOST"}, nil, placedAt)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = o.Apply(StatusChange{Status: StatusShipped, PaymentStatus: paymentPtr("BARTER")}, nil, placedAt)
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

// ============================================
// Transition Policy Tests
// ============================================

func TestAnyTransition_AllowsBackwards(t *testing.T) {
	assert.NoError(t, AnyTransition(StatusDelivered, StatusPending))
	assert.NoError(t, AnyTransition(StatusCancelled, StatusShipped))
}

func TestForwardOnly(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusShipped, true},
		{StatusPending, StatusShipped, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusShipped, StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ForwardOnly(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestPolicyFor(t *testing.T) {
	assert.NoError(t, PolicyFor(false)(StatusDelivered, StatusPending))
	assert.ErrorIs(t, PolicyFor(true)(StatusDelivered, StatusPending), ErrInvalidTransition)
}

// ============================================
// Property Tests
// ============================================

// The total always equals the sum of quantity x unit price, and survives any
// sequence of status changes.
func TestOrderTotalProperty(t *testing.T) {
	statusGen := rapid.SampledFrom(statuses)
	paymentGen := rapid.SampledFrom(paymentStatuses)

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "lines")
		lines := make([]Line, n)
		want := decimal.Zero
		for i := range lines {
			qty := rapid.IntRange(1, 50).Draw(t, "qty")
			cents := rapid.Int64Range(0, 100_000).Draw(t, "cents")
			price := decimal.New(cents, -2)

			l, err := NewLine(ItemRef{ID: "item"}, qty, price)
			if err != nil {
				t.Fatalf("NewLine: %v", err)
			}
			lines[i] = l
			want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}

		o, err := New("order", "user", lines, placedAt)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if !o.Total.Equal(want) {
			t.Fatalf("total %s, want %s", o.Total, want)
		}

		steps := rapid.IntRange(0, 6).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			change := StatusChange{Status: statusGen.Draw(t, "status")}
			if rapid.Bool().Draw(t, "with-payment") {
				ps := paymentGen.Draw(t, "payment")
				change.PaymentStatus = &ps
			}
			o, err = o.Apply(change, AnyTransition, placedAt.Add(time.Duration(i)*time.Minute))
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !o.Total.Equal(want) || len(o.Lines) != n {
				t.Fatalf("status change altered the order: total %s, lines %d", o.Total, len(o.Lines))
			}
			if err := o.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		}
	})
}
