package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balance(t *testing.T, total string, paid ...string) Balance {
	t.Helper()
	entries := make([]Entry, 0, len(paid))
	for _, p := range paid {
		entries = append(entries, entry(p, "0"))
	}
	b, err := Reconcile(aed(total), entries)
	require.NoError(t, err)
	return b
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		b       Balance
		want    Status
	}{
		{"unpaid stays sent", StatusSent, balance(t, "100"), StatusSent},
		{"some money is partial", StatusSent, balance(t, "100", "1"), StatusPartial},
		{"exact money is paid", StatusPartial, balance(t, "100", "60", "40"), StatusPaid},
		{"overpayment is paid", StatusPaid, balance(t, "100", "150"), StatusPaid},
		{"draft is untouched", StatusDraft, balance(t, "100"), StatusDraft},
		{"cancelled is untouched", StatusCancelled, balance(t, "100", "100"), StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.current, tt.b))
		})
	}
}

func TestTransition(t *testing.T) {
	allowed := []struct {
		from, to Status
		cause    Cause
	}{
		{StatusDraft, StatusSent, CauseIssue},
		{StatusDraft, StatusPaid, CauseIssue},
		{StatusSent, StatusPartial, CausePayment},
		{StatusSent, StatusPaid, CausePayment},
		{StatusPartial, StatusPartial, CausePayment},
		{StatusPartial, StatusPaid, CausePayment},
		{StatusPaid, StatusPaid, CausePayment},
		{StatusPaid, StatusPartial, CauseReversal},
		{StatusPaid, StatusSent, CauseReversal},
		{StatusPartial, StatusSent, CauseReversal},
		{StatusDraft, StatusCancelled, CauseCancel},
		{StatusSent, StatusCancelled, CauseCancel},
		{StatusPartial, StatusCancelled, CauseCancel},
	}
	for _, tt := range allowed {
		assert.NoError(t, Transition(tt.from, tt.to, tt.cause), "%s -> %s on %s", tt.from, tt.to, tt.cause)
	}

	rejected := []struct {
		from, to Status
		cause    Cause
	}{
		{StatusSent, StatusSent, CauseIssue},
		{StatusDraft, StatusPartial, CausePayment},
		{StatusPaid, StatusSent, CausePayment},
		{StatusPaid, StatusPartial, CausePayment},
		{StatusPaid, StatusDraft, CauseReversal},
		{StatusPaid, StatusSent, CauseItems},
		{StatusPaid, StatusCancelled, CauseCancel},
		{StatusCancelled, StatusSent, CauseIssue},
		{StatusCancelled, StatusPartial, CausePayment},
		{StatusCancelled, StatusCancelled, CauseCancel},
		{StatusCancelled, StatusDraft, CauseItems},
	}
	for _, tt := range rejected {
		err := Transition(tt.from, tt.to, tt.cause)
		assert.ErrorIs(t, err, ErrInvalidState, "%s -> %s on %s", tt.from, tt.to, tt.cause)
	}
}

func TestTransitionNeverLeavesPaidOrCancelledForward(t *testing.T) {
	statuses := []Status{StatusDraft, StatusSent, StatusPartial, StatusPaid, StatusCancelled}
	forward := []Cause{CauseIssue, CausePayment, CauseItems, CauseCancel}
	for _, cause := range forward {
		for _, to := range statuses {
			if to == StatusSent || to == StatusDraft {
				assert.Error(t, Transition(StatusPaid, to, cause), "paid -> %s on %s", to, cause)
			}
			assert.Error(t, Transition(StatusCancelled, to, cause), "cancelled -> %s on %s", to, cause)
		}
	}
}

func TestApply(t *testing.T) {
	t.Run("issue of a zero total invoice settles it", func(t *testing.T) {
		next, err := Apply(StatusDraft, balance(t, "0"), CauseIssue)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, next)
	})

	t.Run("payment on a draft is rejected", func(t *testing.T) {
		next, err := Apply(StatusDraft, balance(t, "100", "10"), CausePayment)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, StatusDraft, next)
	})

	t.Run("cancel from paid is rejected", func(t *testing.T) {
		_, err := Apply(StatusPaid, balance(t, "100", "100"), CauseCancel)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("reversal walks back", func(t *testing.T) {
		next, err := Apply(StatusPaid, balance(t, "100", "30"), CauseReversal)
		require.NoError(t, err)
		assert.Equal(t, StatusPartial, next)
	})
}

func TestDisplay(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 3)

	assert.Equal(t, StatusOverdue, Display(StatusSent, 100, past, now))
	assert.Equal(t, StatusOverdue, Display(StatusPartial, 1, past, now))
	assert.Equal(t, StatusSent, Display(StatusSent, 100, future, now))
	assert.Equal(t, StatusSent, Display(StatusSent, 100, now, now))
	assert.Equal(t, StatusPaid, Display(StatusPaid, 0, past, now))
	assert.Equal(t, StatusCancelled, Display(StatusCancelled, 100, past, now))
	assert.Equal(t, StatusDraft, Display(StatusDraft, 100, past, now))
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("overdue")
	assert.True(t, ok)
	assert.Equal(t, StatusOverdue, s)
	assert.False(t, s.IsValid())

	_, ok = ParseStatus("archived")
	assert.False(t, ok)
}
