package ledger

import (
	"fmt"

	"proforma/pkg/money"
)

// Entry is the part of a payment the reconciliation needs.
type Entry struct {
	Amount   money.Money
	Holded   money.Money
	Reversed bool
}

// Balance holds the derived amounts of one target.
type Balance struct {
	Total       money.Money
	Paid        money.Money
	Holded      money.Money
	Outstanding money.Money
	Overpaid    money.Money
}

// Released is the paid portion not withheld.
func (b Balance) Released() money.Money {
	r, _ := b.Paid.Sub(b.Holded)
	return r
}

// Settled reports whether the paid amount covers the total.
func (b Balance) Settled() bool {
	return b.Outstanding.IsZero()
}

// Reconcile derives the balance of a target from its full payment set.
// It never accumulates incrementally: callers pass every payment, reversed
// ones included, and the result depends only on those inputs.
func Reconcile(total money.Money, entries []Entry) (Balance, error) {
	cur := total.Currency()
	if total.IsNegative() {
		return Balance{}, Validation("total amount must not be negative")
	}

	paid := money.Zero(cur)
	holded := money.Zero(cur)
	for i, e := range entries {
		if e.Reversed {
			continue
		}
		if err := e.check(); err != nil {
			return Balance{}, fmt.Errorf("entry %d: %w", i, err)
		}
		var err error
		if paid, err = paid.Add(e.Amount); err != nil {
			return Balance{}, Validation("entry %d: %v", i, err)
		}
		if holded, err = holded.Add(e.Holded); err != nil {
			return Balance{}, Validation("entry %d: %v", i, err)
		}
	}

	diff, err := total.Sub(paid)
	if err != nil {
		return Balance{}, Validation("%v", err)
	}
	outstanding, _ := money.Max(diff, money.Zero(cur))
	overpaid, _ := money.Max(diff.Neg(), money.Zero(cur))

	return Balance{
		Total:       total,
		Paid:        paid,
		Holded:      holded,
		Outstanding: outstanding,
		Overpaid:    overpaid,
	}, nil
}

func (e Entry) check() error {
	if !e.Amount.IsPositive() {
		return Validation("payment amount must be positive")
	}
	if e.Holded.Currency() != e.Amount.Currency() {
		return Validation("holded amount currency %s differs from payment currency %s", e.Holded.Currency(), e.Amount.Currency())
	}
	if e.Holded.IsNegative() || e.Holded.Minor() > e.Amount.Minor() {
		return Validation("holded amount must be between 0 and the payment amount")
	}
	return nil
}

// Check verifies the relations between the derived amounts. A stored balance
// that fails Check has drifted from its sources.
func (b Balance) Check() error {
	if b.Total.IsNegative() {
		return fmt.Errorf("total %s is negative", b.Total)
	}
	if b.Holded.IsNegative() || b.Holded.Minor() > b.Paid.Minor() {
		return fmt.Errorf("holded %s outside [0, paid %s]", b.Holded, b.Paid)
	}
	diff := b.Total.Minor() - b.Paid.Minor()
	wantOutstanding, wantOverpaid := diff, int64(0)
	if diff < 0 {
		wantOutstanding, wantOverpaid = 0, -diff
	}
	if b.Outstanding.Minor() != wantOutstanding {
		return fmt.Errorf("outstanding %s does not match total %s minus paid %s", b.Outstanding, b.Total, b.Paid)
	}
	if b.Overpaid.Minor() != wantOverpaid {
		return fmt.Errorf("overpaid %s does not match paid %s minus total %s", b.Overpaid, b.Paid, b.Total)
	}
	return nil
}

// Totals are the active sums of a target that has no invoice total, such as a
// vessel or a free-zone group.
type Totals struct {
	Paid     money.Money
	Holded   money.Money
	Released money.Money
	Count    int
}

// Summarize folds the active entries of one currency.
func Summarize(currency string, entries []Entry) (Totals, error) {
	b, err := Reconcile(money.Zero(currency), entries)
	if err != nil {
		return Totals{}, err
	}
	n := 0
	for _, e := range entries {
		if !e.Reversed {
			n++
		}
	}
	return Totals{Paid: b.Paid, Holded: b.Holded, Released: b.Released(), Count: n}, nil
}
