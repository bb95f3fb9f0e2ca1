package repository

import (
	"context"
	"errors"

	"proforma/internal/ledger"
	"proforma/internal/model"
	"proforma/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentListFilter struct {
	InvoiceID       *uuid.UUID
	TargetKind      model.TargetKind
	TargetKey       string
	IncludeReversed bool
	Page            pagination.Params
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// FindActiveByReference returns (nil, nil) when no active payment holds the key.
	FindActiveByReference(ctx context.Context, reference string, kind model.TargetKind, key string) (*model.Payment, error)
	ListByTarget(ctx context.Context, kind model.TargetKind, key string) ([]model.Payment, error)
	ListActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Payment, error)
	List(ctx context.Context, filter PaymentListFilter) ([]model.Payment, int64, error)
	MarkReversed(ctx context.Context, payment *model.Payment) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "payment %s not found", id)
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := forUpdate(ctx, GetDB(ctx, r.db)).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, notFound(err, "payment %s not found", id)
	}
	return &payment, nil
}

func (r *paymentRepository) FindActiveByReference(ctx context.Context, reference string, kind model.TargetKind, key string) (*model.Payment, error) {
	var payment model.Payment
	err := GetDB(ctx, r.db).
		Where("reference_number = ? AND target_kind = ? AND target_key = ? AND reversed = ?", reference, kind, key, false).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByTarget returns every payment of a target, reversed ones included.
func (r *paymentRepository) ListByTarget(ctx context.Context, kind model.TargetKind, key string) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).
		Where("target_kind = ? AND target_key = ?", kind, key).
		Order("payment_date ASC").Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) ListActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).
		Where("invoice_id = ? AND reversed = ?", invoiceID, false).
		Order("payment_date ASC").Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentListFilter) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64

	db := GetDB(ctx, r.db)
	if err := r.applyFilter(db.Model(&model.Payment{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.applyFilter(db, filter).
		Order("payment_date DESC").Order("created_at DESC").
		Offset(filter.Page.Offset).Limit(filter.Page.Limit).
		Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *paymentRepository) applyFilter(q *gorm.DB, filter PaymentListFilter) *gorm.DB {
	if filter.InvoiceID != nil {
		q = q.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.TargetKind != "" {
		q = q.Where("target_kind = ?", filter.TargetKind)
	}
	if filter.TargetKey != "" {
		q = q.Where("target_key = ?", filter.TargetKey)
	}
	if !filter.IncludeReversed {
		q = q.Where("reversed = ?", false)
	}
	return q
}

// MarkReversed flips an active payment to reversed. Losing the race to another
// reversal reports AlreadyReversed.
func (r *paymentRepository) MarkReversed(ctx context.Context, payment *model.Payment) error {
	result := GetDB(ctx, r.db).
		Model(&model.Payment{}).
		Where("id = ? AND reversed = ?", payment.ID, false).
		Updates(map[string]interface{}{
			"reversed":        true,
			"reversed_at":     payment.ReversedAt,
			"reversal_reason": payment.ReversalReason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.AlreadyReversed("payment %s is already reversed", payment.ID)
	}
	payment.Reversed = true
	return nil
}
