package ledger

import "time"

// Status is the lifecycle state of a proforma invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue" // display only, never stored
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s may be stored on an invoice.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartial, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the invoice is issued and still awaiting money.
func (s Status) IsOpen() bool {
	return s == StatusSent || s == StatusPartial
}

// AcceptsPayments reports whether new payments may be applied.
// Paid invoices accept overpayment.
func (s Status) AcceptsPayments() bool {
	return s == StatusSent || s == StatusPartial || s == StatusPaid
}

// ParseStatus accepts stored statuses and the overdue display status.
func ParseStatus(v string) (Status, bool) {
	s := Status(v)
	return s, s.IsValid() || s == StatusOverdue
}

// Cause names the command that produces a status change.
type Cause string

const (
	CauseIssue    Cause = "issue"
	CausePayment  Cause = "payment"
	CauseReversal Cause = "reversal"
	CauseItems    Cause = "items"
	CauseCancel   Cause = "cancel"
)

// transitions lists the legal moves per cause. Moves absent here are rejected.
var transitions = map[Cause]map[Status][]Status{
	CauseIssue: {
		StatusDraft: {StatusSent, StatusPaid},
	},
	CausePayment: {
		StatusSent:    {StatusPartial, StatusPaid},
		StatusPartial: {StatusPartial, StatusPaid},
		StatusPaid:    {StatusPaid},
	},
	CauseReversal: {
		StatusSent:      {StatusSent},
		StatusPartial:   {StatusSent, StatusPartial},
		StatusPaid:      {StatusSent, StatusPartial, StatusPaid},
		StatusCancelled: {StatusCancelled},
	},
	CauseItems: {
		StatusDraft: {StatusDraft},
		StatusSent:  {StatusSent, StatusPaid},
	},
	CauseCancel: {
		StatusDraft:   {StatusCancelled},
		StatusSent:    {StatusCancelled},
		StatusPartial: {StatusCancelled},
	},
}

// Transition validates moving from one stored status to another.
// Reversal is the only cause that may lower a payment-derived status, and
// nothing leaves cancelled.
func Transition(from, to Status, cause Cause) error {
	if from == StatusCancelled && cause != CauseReversal {
		return InvalidState("invoice is cancelled")
	}
	if cause == CauseCancel && from == StatusPaid {
		return InvalidState("a paid invoice cannot be cancelled")
	}
	for _, allowed := range transitions[cause][from] {
		if allowed == to {
			return nil
		}
	}
	return InvalidState("cannot move invoice from %s to %s on %s", from, to, cause)
}

// Derive returns the payment-driven status of an issued invoice.
// Draft and cancelled invoices keep their status.
func Derive(current Status, b Balance) Status {
	switch current {
	case StatusDraft, StatusCancelled:
		return current
	}
	switch {
	case b.Paid.Minor() >= b.Total.Minor():
		return StatusPaid
	case b.Paid.IsPositive():
		return StatusPartial
	default:
		return StatusSent
	}
}

// Apply derives the next status and validates the move in one step.
func Apply(current Status, b Balance, cause Cause) (Status, error) {
	var next Status
	switch cause {
	case CauseIssue:
		next = Derive(StatusSent, b)
	case CauseCancel:
		next = StatusCancelled
	default:
		next = Derive(current, b)
	}
	if err := Transition(current, next, cause); err != nil {
		return current, err
	}
	return next, nil
}

// Display returns the status shown to readers. Open invoices past their due
// date with money outstanding read as overdue; the stored status is unchanged
// and the classification disappears once the balance is settled.
func Display(stored Status, outstanding int64, due, now time.Time) Status {
	if stored.IsOpen() && outstanding > 0 && DaysOverdue(due, now) > 0 {
		return StatusOverdue
	}
	return stored
}
