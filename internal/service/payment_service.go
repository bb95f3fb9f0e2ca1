package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// maxAttempts bounds the internal retries of a payment change that lost a
// version race on its invoice.
const maxAttempts = 3

// --- DTOs ---

// RecordPaymentRequest carries a payment against any target kind.
// TargetRefs holds one id, or the free-zone ids for a free_zone target.
type RecordPaymentRequest struct {
	TargetKind      string   `json:"target_kind" binding:"required,oneof=invoice free_zone vessel port product"`
	TargetRefs      []string `json:"target_refs" binding:"required,min=1"`
	Amount          string   `json:"amount" binding:"required,money"`
	HoldedAmount    string   `json:"holded_amount" binding:"omitempty,money"`
	Currency        string   `json:"currency" binding:"omitempty,currency"` // defaults to the invoice currency
	Method          string   `json:"method" binding:"required,oneof=cash bank_transfer check credit_card other"`
	ReferenceNumber string   `json:"reference_number"`
	PaymentDate     string   `json:"payment_date"` // YYYY-MM-DD, defaults to today
	ReleaseNumber   *string  `json:"release_number"`
	Receipts        []string `json:"receipts"`
	Notes           string   `json:"notes"`
}

type ReversePaymentRequest struct {
	Reason string `json:"reason"`
}

type PaymentFilter struct {
	InvoiceID       string
	TargetKind      string
	TargetKey       string
	IncludeReversed bool
	Page            pagination.Params
}

type PaymentResponse struct {
	ID              string      `json:"id"`
	TargetKind      string      `json:"target_kind"`
	TargetKey       string      `json:"target_key"`
	TargetRefs      []string    `json:"target_refs"`
	InvoiceID       *string     `json:"invoice_id"`
	Method          string      `json:"method"`
	Amount          money.Money `json:"amount"`
	HoldedAmount    money.Money `json:"holded_amount"`
	ReleasedAmount  money.Money `json:"released_amount"`
	PaymentDate     string      `json:"payment_date"`
	ReferenceNumber string      `json:"reference_number"`
	ReleaseNumber   *string     `json:"release_number"`
	Receipts        []string    `json:"receipts"`
	Notes           string      `json:"notes"`
	Reversed        bool        `json:"reversed"`
	ReversedAt      *string     `json:"reversed_at"`
	ReversalReason  string      `json:"reversal_reason,omitempty"`
	CreatedBy       string      `json:"created_by"`
	CreatedAt       string      `json:"created_at"`
}

// RecordPaymentResult reports Duplicate when the reference number was already
// recorded against the target; Payment is then the original entry.
type RecordPaymentResult struct {
	Payment   PaymentResponse `json:"payment"`
	Duplicate bool            `json:"duplicate"`
}

type CurrencyTotals struct {
	Currency string      `json:"currency"`
	Paid     money.Money `json:"paid_amount"`
	Holded   money.Money `json:"holded_amount"`
	Released money.Money `json:"released_amount"`
	Payments int         `json:"payments"`
}

type TargetSummaryResponse struct {
	TargetKind string           `json:"target_kind"`
	TargetKey  string           `json:"target_key"`
	Totals     []CurrencyTotals `json:"totals"`
	Reversed   int              `json:"reversed_payments"`
}

// --- Interface ---

type PaymentService interface {
	RecordPayment(ctx context.Context, actor string, req RecordPaymentRequest) (RecordPaymentResult, error)
	ReversePayment(ctx context.Context, actor string, id string, req ReversePaymentRequest) (PaymentResponse, error)
	GetPayment(ctx context.Context, id string) (PaymentResponse, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentResponse, int64, error)
	TargetSummary(ctx context.Context, kind, key string) (TargetSummaryResponse, error)
}

type paymentService struct {
	paymentRepo     repository.PaymentRepository
	invoiceRepo     repository.InvoiceRepository
	auditRepo       repository.AuditRepository
	txManager       repository.TransactionManager
	locker          lock.Locker
	events          EventPublisher
	log             *zap.Logger
	defaultCurrency string
	now             func() time.Time
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	locker lock.Locker,
	events EventPublisher,
	log *zap.Logger,
	defaultCurrency string,
) PaymentService {
	return &paymentService{
		paymentRepo:     paymentRepo,
		invoiceRepo:     invoiceRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		locker:          locker,
		events:          publisherOrNop(events),
		log:             log.Named("payment"),
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

// --- Implementation ---

func (s *paymentService) RecordPayment(ctx context.Context, actor string, req RecordPaymentRequest) (RecordPaymentResult, error) {
	payment, target, err := s.buildPayment(ctx, actor, req)
	if err != nil {
		s.log.Warn("payment rejected", zap.String("target_kind", req.TargetKind), zap.String("reference", req.ReferenceNumber), zap.Error(err))
		return RecordPaymentResult{}, err
	}

	release, err := s.locker.Acquire(ctx, model.LockKey(target))
	if err != nil {
		return RecordPaymentResult{}, err
	}
	defer release()

	var stored *model.Payment
	var duplicate bool
	var effect *targetEffect
	err = retryOnConflict(ctx, func() error {
		p := *payment
		var err error
		stored, duplicate, effect, err = s.record(ctx, &p, target)
		return err
	})
	if err != nil {
		s.log.Warn("payment rejected",
			zap.String("target", model.LockKey(target)),
			zap.String("reference", payment.ReferenceNumber),
			zap.String("code", ledger.CodeOf(err)),
			zap.Error(err),
		)
		return RecordPaymentResult{}, err
	}

	resp := toPaymentResponse(*stored)
	if duplicate {
		s.log.Info("duplicate payment ignored",
			zap.String("payment_id", resp.ID),
			zap.String("target", model.LockKey(target)),
			zap.String("reference", stored.ReferenceNumber),
		)
		return RecordPaymentResult{Payment: resp, Duplicate: true}, nil
	}

	s.log.Info("payment recorded", effect.fields(stored, actor)...)
	s.events.Publish(EventPaymentRecorded, resp)
	return RecordPaymentResult{Payment: resp}, nil
}

// record inserts the payment and applies its effect on the target in one
// transaction. A live payment with the same reference short-circuits it.
func (s *paymentService) record(ctx context.Context, p *model.Payment, target model.Target) (*model.Payment, bool, *targetEffect, error) {
	var original *model.Payment
	effect := &targetEffect{s: s, cause: ledger.CausePayment, payment: p}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.findDuplicate(txCtx, p)
		if err != nil || existing != nil {
			original = existing
			return err
		}

		if err := s.paymentRepo.Create(txCtx, p); err != nil {
			return err
		}
		effect.ctx = txCtx
		target.Accept(effect)
		if effect.err != nil {
			return effect.err
		}
		return writeAudit(txCtx, s.auditRepo, p.CreatedBy, model.ActionRecordPayment, p.ID.String(), p.ReferenceNumber, map[string]interface{}{
			"target":        model.LockKey(target),
			"amount":        p.Money().String(),
			"holded_amount": p.Holded().String(),
			"method":        p.Method,
		})
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// another writer committed the same reference first
		existing, findErr := s.findDuplicate(ctx, p)
		if findErr != nil {
			return nil, false, nil, findErr
		}
		if existing == nil {
			return nil, false, nil, fmt.Errorf("failed to record payment: %w", err)
		}
		return existing, true, nil, nil
	}
	if err != nil {
		return nil, false, nil, err
	}
	if original != nil {
		return original, true, nil, nil
	}
	return p, false, effect, nil
}

// findDuplicate returns the active payment holding p's reference on the same
// target. Reusing the reference with a different amount is a conflict.
func (s *paymentService) findDuplicate(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if p.ReferenceNumber == "" {
		return nil, nil
	}
	existing, err := s.paymentRepo.FindActiveByReference(ctx, p.ReferenceNumber, p.TargetKind, p.TargetKey)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.Amount != p.Amount || existing.HoldedAmount != p.HoldedAmount || existing.Currency != p.Currency {
		return nil, ledger.Conflict("reference %s was already used for %s on this target", p.ReferenceNumber, existing.Money())
	}
	return existing, nil
}

func (s *paymentService) ReversePayment(ctx context.Context, actor string, id string, req ReversePaymentRequest) (PaymentResponse, error) {
	paymentID, err := parseID("payment", id)
	if err != nil {
		return PaymentResponse{}, err
	}

	current, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return PaymentResponse{}, err
	}
	if current.Reversed {
		return PaymentResponse{}, ledger.AlreadyReversed("payment %s is already reversed", paymentID)
	}
	target, err := current.Target()
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("payment %s has a malformed target: %w", paymentID, err)
	}

	release, err := s.locker.Acquire(ctx, model.LockKey(target))
	if err != nil {
		return PaymentResponse{}, err
	}
	defer release()

	reason := strings.TrimSpace(req.Reason)
	var reversed *model.Payment
	var effect *targetEffect
	err = retryOnConflict(ctx, func() error {
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			p, err := s.paymentRepo.FindByIDForUpdate(txCtx, paymentID)
			if err != nil {
				return err
			}
			if p.Reversed {
				return ledger.AlreadyReversed("payment %s is already reversed", paymentID)
			}

			now := s.now().UTC()
			p.ReversedAt = &now
			p.ReversalReason = reason
			if err := s.paymentRepo.MarkReversed(txCtx, p); err != nil {
				return err
			}

			effect = &targetEffect{ctx: txCtx, s: s, cause: ledger.CauseReversal, payment: p}
			target.Accept(effect)
			if effect.err != nil {
				return effect.err
			}
			reversed = p
			return writeAudit(txCtx, s.auditRepo, actor, model.ActionReversePayment, p.ID.String(), p.ReferenceNumber, map[string]interface{}{
				"target": model.LockKey(target),
				"amount": p.Money().String(),
				"reason": reason,
			})
		})
	})
	if err != nil {
		s.log.Warn("reversal rejected",
			zap.String("payment_id", id),
			zap.String("code", ledger.CodeOf(err)),
			zap.Error(err),
		)
		return PaymentResponse{}, err
	}

	s.log.Info("payment reversed", effect.fields(reversed, actor)...)
	resp := toPaymentResponse(*reversed)
	s.events.Publish(EventPaymentReversed, resp)
	return resp, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (PaymentResponse, error) {
	paymentID, err := parseID("payment", id)
	if err != nil {
		return PaymentResponse{}, err
	}
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return PaymentResponse{}, err
	}
	return toPaymentResponse(*p), nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentResponse, int64, error) {
	repoFilter := repository.PaymentListFilter{
		IncludeReversed: filter.IncludeReversed,
		Page:            filter.Page,
	}
	if repoFilter.Page.Limit == 0 {
		repoFilter.Page = pagination.New(filter.Page.Page, filter.Page.Limit)
	}
	if filter.InvoiceID != "" {
		invoiceID, err := parseID("invoice", filter.InvoiceID)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.InvoiceID = &invoiceID
	}
	if filter.TargetKind != "" {
		repoFilter.TargetKind = model.TargetKind(filter.TargetKind)
		if filter.TargetKey != "" {
			target, err := model.ParseTargetKey(repoFilter.TargetKind, filter.TargetKey)
			if err != nil {
				return nil, 0, err
			}
			repoFilter.TargetKey = target.Key()
		}
	}

	payments, total, err := s.paymentRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}

	result := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, toPaymentResponse(p))
	}
	return result, total, nil
}

// TargetSummary folds the payments of one target per currency.
func (s *paymentService) TargetSummary(ctx context.Context, kind, key string) (TargetSummaryResponse, error) {
	target, err := model.ParseTargetKey(model.TargetKind(kind), key)
	if err != nil {
		return TargetSummaryResponse{}, err
	}

	payments, err := s.paymentRepo.ListByTarget(ctx, target.Kind(), target.Key())
	if err != nil {
		return TargetSummaryResponse{}, fmt.Errorf("failed to fetch payments: %w", err)
	}

	totals, reversed, err := summarizeByCurrency(payments)
	if err != nil {
		return TargetSummaryResponse{}, err
	}
	return TargetSummaryResponse{
		TargetKind: string(target.Kind()),
		TargetKey:  target.Key(),
		Totals:     totals,
		Reversed:   reversed,
	}, nil
}

// --- Helpers ---

// buildPayment validates the request and resolves it into an unsaved payment.
func (s *paymentService) buildPayment(ctx context.Context, actor string, req RecordPaymentRequest) (*model.Payment, model.Target, error) {
	target, err := model.ParseTarget(model.TargetKind(req.TargetKind), req.TargetRefs)
	if err != nil {
		return nil, nil, err
	}
	if !model.IsValidMethod(req.Method) {
		return nil, nil, ledger.Validation("unknown payment method %q", req.Method)
	}

	currency, err := s.resolveCurrency(ctx, target, req.Currency)
	if err != nil {
		return nil, nil, err
	}

	amount, err := money.Parse(req.Amount, currency)
	if err != nil {
		return nil, nil, ledger.Validation("invalid amount: %v", err)
	}
	if !amount.IsPositive() {
		return nil, nil, ledger.Validation("amount must be positive")
	}
	holded := money.Zero(currency)
	if strings.TrimSpace(req.HoldedAmount) != "" {
		if holded, err = money.Parse(req.HoldedAmount, currency); err != nil {
			return nil, nil, ledger.Validation("invalid holded_amount: %v", err)
		}
	}
	if holded.IsNegative() || holded.Minor() > amount.Minor() {
		return nil, nil, ledger.Validation("holded_amount must be between 0 and the payment amount")
	}

	paymentDate, err := parseDate("payment_date", req.PaymentDate, s.now())
	if err != nil {
		return nil, nil, err
	}

	var releaseNumber *string
	if req.ReleaseNumber != nil {
		if v := strings.TrimSpace(*req.ReleaseNumber); v != "" {
			releaseNumber = &v
		}
	}

	p := &model.Payment{
		Amount:          amount.Minor(),
		HoldedAmount:    holded.Minor(),
		Currency:        currency,
		PaymentDate:     paymentDate,
		Method:          req.Method,
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		ReleaseNumber:   releaseNumber,
		Receipts:        append([]string{}, req.Receipts...),
		Notes:           req.Notes,
		CreatedBy:       actor,
	}
	p.SetTarget(target)
	return p, target, nil
}

// resolveCurrency picks the request currency, else the invoice currency for
// invoice targets, else the configured default.
func (s *paymentService) resolveCurrency(ctx context.Context, target model.Target, requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		currency, err := money.NormalizeCurrency(requested)
		if err != nil {
			return "", ledger.Validation("invalid currency: %v", err)
		}
		return currency, nil
	}
	if t, ok := target.(model.InvoiceTarget); ok {
		inv, err := s.invoiceRepo.FindByID(ctx, t.InvoiceID)
		if err != nil {
			return "", err
		}
		return inv.Currency, nil
	}
	return s.defaultCurrency, nil
}

// reconcileInvoice recomputes an invoice from its active payments after a
// payment change and writes the result under the version check.
func (s *paymentService) reconcileInvoice(ctx context.Context, invoiceID uuid.UUID, p *model.Payment, cause ledger.Cause) (*model.ProformaInvoice, error) {
	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if cause == ledger.CausePayment {
		if !inv.LedgerStatus().AcceptsPayments() {
			return nil, ledger.InvalidState("invoice %s is %s and does not accept payments", inv.PINumber, inv.Status)
		}
		if p.Currency != inv.Currency {
			return nil, ledger.Validation("payment currency %s does not match invoice currency %s", p.Currency, inv.Currency)
		}
	}

	active, err := s.paymentRepo.ListActiveByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	balance, err := ledger.Reconcile(inv.Total(), model.Entries(active))
	if err != nil {
		return nil, err
	}
	if err := balance.Check(); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.PINumber, err)
	}
	next, err := ledger.Apply(inv.LedgerStatus(), balance, cause)
	if err != nil {
		return nil, err
	}

	expected := inv.Version
	inv.ApplyBalance(balance)
	inv.Status = string(next)
	if err := s.invoiceRepo.UpdateWithVersion(ctx, inv, expected); err != nil {
		return nil, err
	}
	return inv, nil
}

// foldTarget re-derives the totals of a target without an invoice, in the
// payment's currency, so a malformed entry fails the transaction.
func (s *paymentService) foldTarget(ctx context.Context, t model.Target, currency string) (ledger.Totals, error) {
	payments, err := s.paymentRepo.ListByTarget(ctx, t.Kind(), t.Key())
	if err != nil {
		return ledger.Totals{}, fmt.Errorf("failed to load payments: %w", err)
	}
	same := make([]model.Payment, 0, len(payments))
	for _, p := range payments {
		if p.Currency == currency {
			same = append(same, p)
		}
	}
	return ledger.Summarize(currency, model.Entries(same))
}

// targetEffect applies a payment change to whatever the payment targets.
type targetEffect struct {
	ctx     context.Context
	s       *paymentService
	cause   ledger.Cause
	payment *model.Payment

	invoice *model.ProformaInvoice // invoice targets
	totals  ledger.Totals          // every other kind
	err     error
}

func (e *targetEffect) VisitInvoice(t model.InvoiceTarget) {
	e.invoice, e.err = e.s.reconcileInvoice(e.ctx, t.InvoiceID, e.payment, e.cause)
}

func (e *targetEffect) VisitFreeZones(t model.FreeZoneTarget) { e.fold(t) }
func (e *targetEffect) VisitVessel(t model.VesselTarget)      { e.fold(t) }
func (e *targetEffect) VisitPort(t model.PortTarget)          { e.fold(t) }
func (e *targetEffect) VisitProduct(t model.ProductTarget)    { e.fold(t) }

func (e *targetEffect) fold(t model.Target) {
	e.totals, e.err = e.s.foldTarget(e.ctx, t, e.payment.Currency)
}

func (e *targetEffect) fields(p *model.Payment, actor string) []zap.Field {
	fields := []zap.Field{
		zap.String("payment_id", p.ID.String()),
		zap.String("target_kind", string(p.TargetKind)),
		zap.String("target_key", p.TargetKey),
		zap.String("amount", p.Money().String()),
		zap.String("reference", p.ReferenceNumber),
		zap.String("actor", actor),
	}
	if e.invoice != nil {
		fields = append(fields,
			zap.String("invoice_status", e.invoice.Status),
			zap.String("paid", money.FromMinor(e.invoice.PaidAmount, e.invoice.Currency).String()),
			zap.String("outstanding", money.FromMinor(e.invoice.OutstandingAmount, e.invoice.Currency).String()),
		)
	} else {
		fields = append(fields, zap.String("target_paid", e.totals.Paid.String()))
	}
	return fields
}

// retryOnConflict reruns fn while it loses a version race, up to maxAttempts.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); !errors.Is(err, ledger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func summarizeByCurrency(payments []model.Payment) ([]CurrencyTotals, int, error) {
	byCurrency := make(map[string][]model.Payment)
	reversed := 0
	for _, p := range payments {
		if p.Reversed {
			reversed++
			continue
		}
		byCurrency[p.Currency] = append(byCurrency[p.Currency], p)
	}

	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	totals := make([]CurrencyTotals, 0, len(currencies))
	for _, c := range currencies {
		t, err := ledger.Summarize(c, model.Entries(byCurrency[c]))
		if err != nil {
			return nil, 0, err
		}
		totals = append(totals, CurrencyTotals{
			Currency: c,
			Paid:     t.Paid,
			Holded:   t.Holded,
			Released: t.Released,
			Payments: t.Count,
		})
	}
	return totals, reversed, nil
}

// --- Mapping ---

func toPaymentResponse(p model.Payment) PaymentResponse {
	amount := p.Money()
	holded := p.Holded()
	released, _ := amount.Sub(holded)

	resp := PaymentResponse{
		ID:              p.ID.String(),
		TargetKind:      string(p.TargetKind),
		TargetKey:       p.TargetKey,
		TargetRefs:      p.TargetRefs,
		Method:          p.Method,
		Amount:          amount,
		HoldedAmount:    holded,
		ReleasedAmount:  released,
		PaymentDate:     p.PaymentDate.Format(dateLayout),
		ReferenceNumber: p.ReferenceNumber,
		ReleaseNumber:   p.ReleaseNumber,
		Receipts:        p.Receipts,
		Notes:           p.Notes,
		Reversed:        p.Reversed,
		ReversalReason:  p.ReversalReason,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	if resp.Receipts == nil {
		resp.Receipts = []string{}
	}
	if p.InvoiceID != nil {
		s := p.InvoiceID.String()
		resp.InvoiceID = &s
	}
	if p.ReversedAt != nil {
		s := p.ReversedAt.Format(time.RFC3339)
		resp.ReversedAt = &s
	}
	return resp
}
