package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"proforma/internal/ledger"
	"proforma/internal/lock"
	"proforma/internal/model"
	"proforma/internal/repository"
	"proforma/pkg/money"
	"proforma/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const piNumberAttempts = 5

// --- DTOs ---

type LineItemRequest struct {
	ProductRef  string `json:"product_ref" binding:"required"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity" binding:"required,gt=0"`
	UnitPrice   string `json:"unit_price" binding:"required,money"`
}

type CreateInvoiceRequest struct {
	CustomerID string            `json:"customer_id" binding:"required"`
	Currency   string            `json:"currency" binding:"omitempty,currency"` // defaults to DEFAULT_CURRENCY
	IssueDate  string            `json:"issue_date"`                            // YYYY-MM-DD, defaults to today
	DueDate    string            `json:"due_date" binding:"required"`
	Items      []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes      string            `json:"notes"`
}

type UpdateLineItemsRequest struct {
	Items           []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	ExpectedVersion int64             `json:"expected_version" binding:"required"`
}

type UpdateNotesRequest struct {
	Notes           string `json:"notes"`
	ExpectedVersion int64  `json:"expected_version" binding:"required"`
}

type VersionRequest struct {
	ExpectedVersion int64 `json:"expected_version" binding:"required"`
}

type CancelInvoiceRequest struct {
	ExpectedVersion int64  `json:"expected_version" binding:"required"`
	Reason          string `json:"reason"`
}

type InvoiceFilter struct {
	CustomerID string
	Status     string // stored status or "overdue"
	PINumber   string // partial match on pi_number
	Page       pagination.Params
}

type LineItemResponse struct {
	Position    int         `json:"position"`
	ProductRef  string      `json:"product_ref"`
	Description string      `json:"description"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   money.Money `json:"unit_price"`
	LineTotal   money.Money `json:"line_total"`
}

// InvoiceResponse is the invoice read model. Status is the display status;
// DaysOverdue is set only while the invoice is open with money outstanding.
type InvoiceResponse struct {
	ID                string             `json:"id"`
	PINumber          string             `json:"pi_number"`
	CustomerID        string             `json:"customer_id"`
	Currency          string             `json:"currency"`
	IssueDate         string             `json:"issue_date"`
	DueDate           string             `json:"due_date"`
	Items             []LineItemResponse `json:"items"`
	TotalAmount       money.Money        `json:"total_amount"`
	PaidAmount        money.Money        `json:"paid_amount"`
	HoldedAmount      money.Money        `json:"holded_amount"`
	ReleasedAmount    money.Money        `json:"released_amount"`
	OutstandingAmount money.Money        `json:"outstanding_amount"`
	OverpaidAmount    money.Money        `json:"overpaid_amount"`
	Status            string             `json:"status"`
	StoredStatus      string             `json:"stored_status"`
	DaysOverdue       *int               `json:"days_overdue"`
	Version           int64              `json:"version"`
	Notes             string             `json:"notes"`
	IssuedAt          *string            `json:"issued_at"`
	CancelledAt       *string            `json:"cancelled_at"`
	CreatedBy         string             `json:"created_by"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
	PaymentHistory    []PaymentResponse  `json:"payment_history,omitempty"`
}

type OutstandingInvoiceResponse struct {
	ID                string             `json:"id"`
	PINumber          string             `json:"pi_number"`
	CustomerID        string             `json:"customer_id"`
	DueDate           string             `json:"due_date"`
	Status            string             `json:"status"`
	TotalAmount       money.Money        `json:"total_amount"`
	PaidAmount        money.Money        `json:"paid_amount"`
	OutstandingAmount money.Money        `json:"outstanding_amount"`
	DaysOverdue       int                `json:"days_overdue"`
	AgingBucket       ledger.AgingBucket `json:"aging_bucket"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, actor string, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	ListOutstanding(ctx context.Context, customerID string) ([]OutstandingInvoiceResponse, error)
	IssueInvoice(ctx context.Context, actor string, id string, req VersionRequest) (InvoiceResponse, error)
	UpdateLineItems(ctx context.Context, actor string, id string, req UpdateLineItemsRequest) (InvoiceResponse, error)
	UpdateNotes(ctx context.Context, actor string, id string, req UpdateNotesRequest) (InvoiceResponse, error)
	CancelInvoice(ctx context.Context, actor string, id string, req CancelInvoiceRequest) (InvoiceResponse, error)
}

type invoiceService struct {
	invoiceRepo     repository.InvoiceRepository
	paymentRepo     repository.PaymentRepository
	auditRepo       repository.AuditRepository
	txManager       repository.TransactionManager
	locker          lock.Locker
	events          EventPublisher
	log             *zap.Logger
	defaultCurrency string
	now             func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	locker lock.Locker,
	events EventPublisher,
	log *zap.Logger,
	defaultCurrency string,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:     invoiceRepo,
		paymentRepo:     paymentRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		locker:          locker,
		events:          publisherOrNop(events),
		log:             log.Named("invoice"),
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, actor string, req CreateInvoiceRequest) (InvoiceResponse, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return InvoiceResponse{}, ledger.Validation("customer_id is required")
	}

	currency := s.defaultCurrency
	if req.Currency != "" {
		var err error
		if currency, err = money.NormalizeCurrency(req.Currency); err != nil {
			return InvoiceResponse{}, ledger.Validation("invalid currency: %v", err)
		}
	}

	now := s.now()
	issueDate, err := parseDate("issue_date", req.IssueDate, now)
	if err != nil {
		return InvoiceResponse{}, err
	}
	dueDate, err := parseDate("due_date", req.DueDate, time.Time{})
	if err != nil {
		return InvoiceResponse{}, err
	}
	if dueDate.Before(issueDate) {
		return InvoiceResponse{}, ledger.Validation("due_date must not be before issue_date")
	}

	items, total, err := buildLineItems(req.Items, currency)
	if err != nil {
		return InvoiceResponse{}, err
	}

	balance, err := ledger.Reconcile(total, nil)
	if err != nil {
		return InvoiceResponse{}, err
	}

	var invoice model.ProformaInvoice
	for attempt := 1; ; attempt++ {
		invoice = model.ProformaInvoice{
			CustomerID: customerID,
			Currency:   currency,
			IssueDate:  issueDate,
			DueDate:    dueDate,
			Items:      cloneItems(items),
			Status:     string(ledger.StatusDraft),
			Version:    1,
			Notes:      req.Notes,
			CreatedBy:  actor,
		}
		invoice.ApplyBalance(balance)

		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			piNumber, err := s.generatePINumber(txCtx, now)
			if err != nil {
				return fmt.Errorf("failed to generate pi number: %w", err)
			}
			invoice.PINumber = piNumber

			if err := s.invoiceRepo.Create(txCtx, &invoice); err != nil {
				return err
			}
			return writeAudit(txCtx, s.auditRepo, actor, model.ActionCreateInvoice, invoice.ID.String(), invoice.PINumber, map[string]interface{}{
				"customer_id":  invoice.CustomerID,
				"currency":     invoice.Currency,
				"total_amount": invoice.Total().String(),
				"items":        len(invoice.Items),
			})
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < piNumberAttempts {
			continue
		}
		break
	}
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("pi_number", invoice.PINumber),
		zap.String("total", invoice.Total().String()),
		zap.String("actor", actor),
	)

	resp := s.toInvoiceResponse(invoice)
	s.events.Publish(EventInvoiceCreated, resp)
	return resp, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := parseID("invoice", id)
	if err != nil {
		return InvoiceResponse{}, err
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}

	payments, err := s.paymentRepo.ListByTarget(ctx, model.TargetInvoice, invoiceID.String())
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to load payment history: %w", err)
	}

	resp := s.toInvoiceResponse(*invoice)
	resp.PaymentHistory = make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp.PaymentHistory = append(resp.PaymentHistory, toPaymentResponse(p))
	}
	return resp, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	if filter.Status != "" {
		if _, ok := ledger.ParseStatus(filter.Status); !ok {
			return nil, 0, ledger.Validation("unknown status %q", filter.Status)
		}
	}
	if filter.Page.Limit == 0 {
		filter.Page = pagination.New(filter.Page.Page, filter.Page.Limit)
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repository.InvoiceListFilter{
		CustomerID: filter.CustomerID,
		Status:     filter.Status,
		PINumber:   filter.PINumber,
		Today:      s.now(),
		Page:       filter.Page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, s.toInvoiceResponse(inv))
	}
	return result, total, nil
}

// ListOutstanding is the aging view: open invoices with money still owed,
// oldest due date first.
func (s *invoiceService) ListOutstanding(ctx context.Context, customerID string) ([]OutstandingInvoiceResponse, error) {
	invoices, err := s.invoiceRepo.ListOutstanding(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outstanding invoices: %w", err)
	}

	now := s.now()
	result := make([]OutstandingInvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		days := ledger.DaysOverdue(inv.DueDate, now)
		result = append(result, OutstandingInvoiceResponse{
			ID:                inv.ID.String(),
			PINumber:          inv.PINumber,
			CustomerID:        inv.CustomerID,
			DueDate:           inv.DueDate.Format(dateLayout),
			Status:            string(ledger.Display(inv.LedgerStatus(), inv.OutstandingAmount, inv.DueDate, now)),
			TotalAmount:       inv.Total(),
			PaidAmount:        money.FromMinor(inv.PaidAmount, inv.Currency),
			OutstandingAmount: money.FromMinor(inv.OutstandingAmount, inv.Currency),
			DaysOverdue:       days,
			AgingBucket:       ledger.Bucket(days),
		})
	}
	return result, nil
}

func (s *invoiceService) IssueInvoice(ctx context.Context, actor string, id string, req VersionRequest) (InvoiceResponse, error) {
	invoice, changed, err := s.mutate(ctx, id, req.ExpectedVersion, func(txCtx context.Context, inv *model.ProformaInvoice) (bool, error) {
		balance, err := s.reconcile(txCtx, inv, inv.Total())
		if err != nil {
			return false, err
		}
		next, err := ledger.Apply(inv.LedgerStatus(), balance, ledger.CauseIssue)
		if err != nil {
			return false, err
		}

		issuedAt := s.now().UTC()
		inv.ApplyBalance(balance)
		inv.Status = string(next)
		inv.IssuedAt = &issuedAt

		if err := s.invoiceRepo.UpdateWithVersion(txCtx, inv, req.ExpectedVersion); err != nil {
			return false, err
		}
		return true, writeAudit(txCtx, s.auditRepo, actor, model.ActionIssueInvoice, inv.ID.String(), inv.PINumber, map[string]interface{}{
			"status": inv.Status,
		})
	})
	if err != nil {
		s.warn("issue rejected", id, actor, err)
		return InvoiceResponse{}, err
	}

	s.log.Info("invoice issued", zap.String("invoice_id", id), zap.String("status", invoice.Status), zap.String("actor", actor))
	return s.reloadAndPublish(ctx, invoice.ID, changed, EventInvoiceIssued)
}

func (s *invoiceService) UpdateLineItems(ctx context.Context, actor string, id string, req UpdateLineItemsRequest) (InvoiceResponse, error) {
	invoice, changed, err := s.mutate(ctx, id, req.ExpectedVersion, func(txCtx context.Context, inv *model.ProformaInvoice) (bool, error) {
		status := inv.LedgerStatus()
		if inv.PaidAmount > 0 || status == ledger.StatusPaid || status == ledger.StatusCancelled {
			return false, ledger.InvalidState("line items of %s cannot change once payments are applied or the invoice is %s", inv.PINumber, status)
		}

		items, total, err := buildLineItems(req.Items, inv.Currency)
		if err != nil {
			return false, err
		}
		balance, err := s.reconcile(txCtx, inv, total)
		if err != nil {
			return false, err
		}
		next, err := ledger.Apply(status, balance, ledger.CauseItems)
		if err != nil {
			return false, err
		}

		if err := s.invoiceRepo.ReplaceItems(txCtx, inv.ID, items); err != nil {
			return false, fmt.Errorf("failed to replace line items: %w", err)
		}
		previous := inv.Total().String()
		inv.ApplyBalance(balance)
		inv.Status = string(next)
		if err := s.invoiceRepo.UpdateWithVersion(txCtx, inv, req.ExpectedVersion); err != nil {
			return false, err
		}
		return true, writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdateInvoiceItems, inv.ID.String(), inv.PINumber, map[string]interface{}{
			"previous_total": previous,
			"total_amount":   inv.Total().String(),
			"items":          len(items),
		})
	})
	if err != nil {
		s.warn("line item update rejected", id, actor, err)
		return InvoiceResponse{}, err
	}

	s.log.Info("invoice line items replaced", zap.String("invoice_id", id), zap.String("total", invoice.Total().String()), zap.String("actor", actor))
	return s.reloadAndPublish(ctx, invoice.ID, changed, EventInvoiceUpdated)
}

func (s *invoiceService) UpdateNotes(ctx context.Context, actor string, id string, req UpdateNotesRequest) (InvoiceResponse, error) {
	invoice, changed, err := s.mutate(ctx, id, req.ExpectedVersion, func(txCtx context.Context, inv *model.ProformaInvoice) (bool, error) {
		inv.Notes = req.Notes
		if err := s.invoiceRepo.UpdateWithVersion(txCtx, inv, req.ExpectedVersion); err != nil {
			return false, err
		}
		return true, writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdateInvoiceNotes, inv.ID.String(), inv.PINumber, nil)
	})
	if err != nil {
		s.warn("notes update rejected", id, actor, err)
		return InvoiceResponse{}, err
	}
	return s.reloadAndPublish(ctx, invoice.ID, changed, EventInvoiceUpdated)
}

// CancelInvoice reverses every active payment and moves the invoice to
// cancelled. Cancelling an already cancelled invoice at its current version
// changes nothing.
func (s *invoiceService) CancelInvoice(ctx context.Context, actor string, id string, req CancelInvoiceRequest) (InvoiceResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "invoice cancelled"
	}

	var reversed []model.Payment
	invoice, changed, err := s.mutate(ctx, id, req.ExpectedVersion, func(txCtx context.Context, inv *model.ProformaInvoice) (bool, error) {
		if inv.LedgerStatus() == ledger.StatusCancelled {
			return false, nil
		}
		if err := ledger.Transition(inv.LedgerStatus(), ledger.StatusCancelled, ledger.CauseCancel); err != nil {
			return false, err
		}

		active, err := s.paymentRepo.ListActiveByInvoice(txCtx, inv.ID)
		if err != nil {
			return false, fmt.Errorf("failed to load payments: %w", err)
		}
		now := s.now().UTC()
		for i := range active {
			p := &active[i]
			p.ReversedAt = &now
			p.ReversalReason = reason
			if err := s.paymentRepo.MarkReversed(txCtx, p); err != nil {
				return false, err
			}
			if err := writeAudit(txCtx, s.auditRepo, actor, model.ActionReversePayment, p.ID.String(), p.ReferenceNumber, map[string]interface{}{
				"amount":     p.Money().String(),
				"invoice_id": inv.ID.String(),
				"reason":     reason,
			}); err != nil {
				return false, err
			}
		}
		reversed = active

		balance, err := s.reconcile(txCtx, inv, inv.Total())
		if err != nil {
			return false, err
		}
		next, err := ledger.Apply(inv.LedgerStatus(), balance, ledger.CauseCancel)
		if err != nil {
			return false, err
		}
		inv.ApplyBalance(balance)
		inv.Status = string(next)
		inv.CancelledAt = &now
		if err := s.invoiceRepo.UpdateWithVersion(txCtx, inv, req.ExpectedVersion); err != nil {
			return false, err
		}
		return true, writeAudit(txCtx, s.auditRepo, actor, model.ActionCancelInvoice, inv.ID.String(), inv.PINumber, map[string]interface{}{
			"reason":            reason,
			"reversed_payments": len(active),
		})
	})
	if err != nil {
		s.warn("cancel rejected", id, actor, err)
		return InvoiceResponse{}, err
	}

	if changed {
		s.log.Info("invoice cancelled",
			zap.String("invoice_id", id),
			zap.Int("reversed_payments", len(reversed)),
			zap.String("actor", actor),
		)
		for _, p := range reversed {
			s.events.Publish(EventPaymentReversed, toPaymentResponse(p))
		}
	}
	return s.reloadAndPublish(ctx, invoice.ID, changed, EventInvoiceCancelled)
}

// --- Helpers ---

// mutate runs fn under the invoice's target lock in one transaction, with the
// invoice row locked and checked against the caller's expected version.
// fn reports whether it changed anything.
func (s *invoiceService) mutate(
	ctx context.Context,
	id string,
	expectedVersion int64,
	fn func(txCtx context.Context, inv *model.ProformaInvoice) (bool, error),
) (*model.ProformaInvoice, bool, error) {
	invoiceID, err := parseID("invoice", id)
	if err != nil {
		return nil, false, err
	}
	if expectedVersion <= 0 {
		return nil, false, ledger.Validation("expected_version is required")
	}

	release, err := s.locker.Acquire(ctx, model.LockKey(model.InvoiceTarget{InvoiceID: invoiceID}))
	if err != nil {
		return nil, false, err
	}
	defer release()

	var invoice *model.ProformaInvoice
	var changed bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Version != expectedVersion {
			return ledger.Conflict("invoice %s is at version %d, not %d", inv.PINumber, inv.Version, expectedVersion)
		}
		invoice = inv
		changed, err = fn(txCtx, inv)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return invoice, changed, nil
}

// reconcile recomputes the invoice balance for total from its active payments.
func (s *invoiceService) reconcile(ctx context.Context, inv *model.ProformaInvoice, total money.Money) (ledger.Balance, error) {
	active, err := s.paymentRepo.ListActiveByInvoice(ctx, inv.ID)
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("failed to load payments: %w", err)
	}
	balance, err := ledger.Reconcile(total, model.Entries(active))
	if err != nil {
		return ledger.Balance{}, err
	}
	if err := balance.Check(); err != nil {
		return ledger.Balance{}, fmt.Errorf("invoice %s: %w", inv.PINumber, err)
	}
	return balance, nil
}

func (s *invoiceService) reloadAndPublish(ctx context.Context, id uuid.UUID, changed bool, event string) (InvoiceResponse, error) {
	resp, err := s.GetInvoice(ctx, id.String())
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to reload invoice: %w", err)
	}
	if changed {
		s.events.Publish(event, resp)
	}
	return resp, nil
}

func (s *invoiceService) generatePINumber(ctx context.Context, now time.Time) (string, error) {
	prefix := "PI-" + now.UTC().Format("20060102") + "-"

	count, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (s *invoiceService) warn(msg, id, actor string, err error) {
	s.log.Warn(msg,
		zap.String("invoice_id", id),
		zap.String("actor", actor),
		zap.String("code", ledger.CodeOf(err)),
		zap.Error(err),
	)
}

func buildLineItems(reqs []LineItemRequest, currency string) ([]model.InvoiceLineItem, money.Money, error) {
	if len(reqs) == 0 {
		return nil, money.Money{}, ledger.Validation("an invoice needs at least one line item")
	}

	items := make([]model.InvoiceLineItem, 0, len(reqs))
	lines := make([]money.Money, 0, len(reqs))
	for i, r := range reqs {
		ref := strings.TrimSpace(r.ProductRef)
		if ref == "" {
			return nil, money.Money{}, ledger.Validation("item %d: product_ref is required", i+1)
		}
		if r.Quantity <= 0 {
			return nil, money.Money{}, ledger.Validation("item %d: quantity must be positive", i+1)
		}
		price, err := money.Parse(r.UnitPrice, currency)
		if err != nil {
			return nil, money.Money{}, ledger.Validation("item %d: invalid unit_price: %v", i+1, err)
		}
		if price.IsNegative() {
			return nil, money.Money{}, ledger.Validation("item %d: unit_price must not be negative", i+1)
		}
		lineTotal, err := price.MulInt(r.Quantity)
		if err != nil {
			return nil, money.Money{}, ledger.Validation("item %d: %v", i+1, err)
		}

		lines = append(lines, lineTotal)
		items = append(items, model.InvoiceLineItem{
			Position:    i + 1,
			ProductRef:  ref,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   price.Minor(),
			LineTotal:   lineTotal.Minor(),
		})
	}

	total, err := money.Sum(currency, lines...)
	if err != nil {
		return nil, money.Money{}, ledger.Validation("invoice total: %v", err)
	}
	return items, total, nil
}

func cloneItems(items []model.InvoiceLineItem) []model.InvoiceLineItem {
	return append([]model.InvoiceLineItem(nil), items...)
}

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC3339 and returns UTC midnight of that
// date. An empty value yields fallback, or a validation error without one.
func parseDate(field, value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if fallback.IsZero() {
			return time.Time{}, ledger.Validation("%s is required", field)
		}
		return midnight(fallback), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, value); err != nil {
			return time.Time{}, ledger.Validation("%s must be YYYY-MM-DD", field)
		}
	}
	return midnight(t), nil
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, ledger.Validation("invalid %s id %q", kind, id)
	}
	return parsed, nil
}

// --- Mapping ---

func (s *invoiceService) toInvoiceResponse(inv model.ProformaInvoice) InvoiceResponse {
	now := s.now()
	stored := inv.LedgerStatus()
	balance := inv.Balance()

	resp := InvoiceResponse{
		ID:                inv.ID.String(),
		PINumber:          inv.PINumber,
		CustomerID:        inv.CustomerID,
		Currency:          inv.Currency,
		IssueDate:         inv.IssueDate.Format(dateLayout),
		DueDate:           inv.DueDate.Format(dateLayout),
		Items:             make([]LineItemResponse, 0, len(inv.Items)),
		TotalAmount:       balance.Total,
		PaidAmount:        balance.Paid,
		HoldedAmount:      balance.Holded,
		ReleasedAmount:    balance.Released(),
		OutstandingAmount: balance.Outstanding,
		OverpaidAmount:    balance.Overpaid,
		Status:            string(ledger.Display(stored, inv.OutstandingAmount, inv.DueDate, now)),
		StoredStatus:      inv.Status,
		Version:           inv.Version,
		Notes:             inv.Notes,
		CreatedBy:         inv.CreatedBy,
		CreatedAt:         inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         inv.UpdatedAt.Format(time.RFC3339),
	}

	for _, item := range inv.Items {
		resp.Items = append(resp.Items, LineItemResponse{
			Position:    item.Position,
			ProductRef:  item.ProductRef,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   money.FromMinor(item.UnitPrice, inv.Currency),
			LineTotal:   money.FromMinor(item.LineTotal, inv.Currency),
		})
	}

	if stored.IsOpen() && inv.OutstandingAmount > 0 {
		days := ledger.DaysOverdue(inv.DueDate, now)
		resp.DaysOverdue = &days
	}
	if inv.IssuedAt != nil {
		t := inv.IssuedAt.Format(time.RFC3339)
		resp.IssuedAt = &t
	}
	if inv.CancelledAt != nil {
		t := inv.CancelledAt.Format(time.RFC3339)
		resp.CancelledAt = &t
	}

	return resp
}
