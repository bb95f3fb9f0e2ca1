package service

// Ledger events pushed to subscribers once the change is committed.
const (
	EventInvoiceCreated   = "invoice.created"
	EventInvoiceIssued    = "invoice.issued"
	EventInvoiceUpdated   = "invoice.updated"
	EventInvoiceCancelled = "invoice.cancelled"
	EventPaymentRecorded  = "payment.recorded"
	EventPaymentReversed  = "payment.reversed"
)

// EventPublisher fans ledger events out to connected clients.
// Publish must not block the caller.
type EventPublisher interface {
	Publish(event string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
