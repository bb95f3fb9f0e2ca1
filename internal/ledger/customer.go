package ledger

import (
	"sort"
	"time"

	"proforma/pkg/money"
)

// InvoiceSnapshot is the committed state of one invoice as seen by the
// customer fold.
type InvoiceSnapshot struct {
	Status      Status
	Currency    string
	Outstanding int64
	Overpaid    int64
	IssueDate   time.Time
	DueDate     time.Time
	CreatedAt   time.Time
}

// CurrencyBalance is a customer's exposure in one currency.
type CurrencyBalance struct {
	Currency    string      `json:"currency"`
	Balance     money.Money `json:"balance"`
	Outstanding money.Money `json:"outstanding_amount"`
	Overpaid    money.Money `json:"overpaid_amount"`
	Overdue     money.Money `json:"overdue_amount"`
}

// CustomerAggregate is the read-only projection of a customer's invoices.
type CustomerAggregate struct {
	TotalPIs    int               `json:"total_pis"`
	PendingPIs  int               `json:"pending_pis"`
	OverduePIs  int               `json:"overdue_pis"`
	LastOrderAt *time.Time        `json:"last_order_at"`
	Balances    []CurrencyBalance `json:"balances"`
}

type acc struct {
	outstanding, overpaid, overdue int64
}

// FoldCustomer aggregates a customer's invoices in one pass.
// Drafts and cancelled invoices only count toward TotalPIs and LastOrderAt.
func FoldCustomer(invoices []InvoiceSnapshot, now time.Time) CustomerAggregate {
	var agg CustomerAggregate
	sums := make(map[string]*acc)

	for _, inv := range invoices {
		agg.TotalPIs++
		ordered := inv.IssueDate
		if ordered.IsZero() {
			ordered = inv.CreatedAt
		}
		if agg.LastOrderAt == nil || ordered.After(*agg.LastOrderAt) {
			t := ordered
			agg.LastOrderAt = &t
		}

		if inv.Status == StatusDraft || inv.Status == StatusCancelled {
			continue
		}
		a, ok := sums[inv.Currency]
		if !ok {
			a = &acc{}
			sums[inv.Currency] = a
		}
		a.outstanding += inv.Outstanding
		a.overpaid += inv.Overpaid
		if inv.Status.IsOpen() && inv.Outstanding > 0 {
			agg.PendingPIs++
			if Display(inv.Status, inv.Outstanding, inv.DueDate, now) == StatusOverdue {
				agg.OverduePIs++
				a.overdue += inv.Outstanding
			}
		}
	}

	currencies := make([]string, 0, len(sums))
	for c := range sums {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	agg.Balances = make([]CurrencyBalance, 0, len(currencies))
	for _, c := range currencies {
		a := sums[c]
		agg.Balances = append(agg.Balances, CurrencyBalance{
			Currency:    c,
			Balance:     money.FromMinor(a.outstanding-a.overpaid, c),
			Outstanding: money.FromMinor(a.outstanding, c),
			Overpaid:    money.FromMinor(a.overpaid, c),
			Overdue:     money.FromMinor(a.overdue, c),
		})
	}
	return agg
}
