package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"proforma/internal/ledger"
	"proforma/internal/repository"
)

type CustomerSummaryResponse struct {
	CustomerID string `json:"customer_id"`
	ledger.CustomerAggregate
}

type CustomerService interface {
	GetSummary(ctx context.Context, customerID string) (CustomerSummaryResponse, error)
}

type customerService struct {
	invoiceRepo repository.InvoiceRepository
	now         func() time.Time
}

func NewCustomerService(invoiceRepo repository.InvoiceRepository) CustomerService {
	return &customerService{invoiceRepo: invoiceRepo, now: time.Now}
}

// GetSummary folds the committed state of every invoice of the customer.
// A customer without invoices yields an empty aggregate, not NotFound.
func (s *customerService) GetSummary(ctx context.Context, customerID string) (CustomerSummaryResponse, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return CustomerSummaryResponse{}, ledger.Validation("customer id is required")
	}

	invoices, err := s.invoiceRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return CustomerSummaryResponse{}, fmt.Errorf("failed to fetch customer invoices: %w", err)
	}

	snapshots := make([]ledger.InvoiceSnapshot, 0, len(invoices))
	for i := range invoices {
		snapshots = append(snapshots, invoices[i].Snapshot())
	}

	return CustomerSummaryResponse{
		CustomerID:        customerID,
		CustomerAggregate: ledger.FoldCustomer(snapshots, s.now()),
	}, nil
}
