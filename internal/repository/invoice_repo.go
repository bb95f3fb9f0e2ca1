package repository

import (
	"context"
	"errors"
	"time"

	"proforma/internal/ledger"
	"proforma/internal/model"
	"proforma/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceListFilter narrows invoice listings. Status "overdue" selects open
// invoices with money outstanding whose due date is before Today.
type InvoiceListFilter struct {
	CustomerID string
	Status     string
	PINumber   string // partial match
	Today      time.Time
	Page       pagination.Params
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.ProformaInvoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProformaInvoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProformaInvoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]model.ProformaInvoice, int64, error)
	ListOutstanding(ctx context.Context, customerID string) ([]model.ProformaInvoice, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.ProformaInvoice, error)
	UpdateWithVersion(ctx context.Context, invoice *model.ProformaInvoice, expectedVersion int64) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.ProformaInvoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProformaInvoice, error) {
	var invoice model.ProformaInvoice
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "invoice %s not found", id)
	}
	return &invoice, nil
}

// FindByIDForUpdate loads the invoice row under a row lock when called inside
// a transaction. Items are not loaded.
func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProformaInvoice, error) {
	var invoice model.ProformaInvoice
	if err := forUpdate(ctx, GetDB(ctx, r.db)).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFound(err, "invoice %s not found", id)
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceListFilter) ([]model.ProformaInvoice, int64, error) {
	var invoices []model.ProformaInvoice
	var total int64

	db := GetDB(ctx, r.db)
	query := r.applyFilter(db.Model(&model.ProformaInvoice{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.applyFilter(db, filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Offset(filter.Page.Offset).Limit(filter.Page.Limit).
		Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) applyFilter(q *gorm.DB, filter InvoiceListFilter) *gorm.DB {
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.PINumber != "" {
		q = q.Where("pi_number LIKE ?", "%"+filter.PINumber+"%")
	}
	switch filter.Status {
	case "":
	case string(ledger.StatusOverdue):
		q = q.Where("status IN ? AND outstanding_amount > 0 AND due_date < ?",
			[]string{string(ledger.StatusSent), string(ledger.StatusPartial)}, startOfDay(filter.Today))
	default:
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

// ListOutstanding returns open invoices with money outstanding, oldest due first.
func (r *invoiceRepository) ListOutstanding(ctx context.Context, customerID string) ([]model.ProformaInvoice, error) {
	var invoices []model.ProformaInvoice
	q := GetDB(ctx, r.db).
		Where("status IN ? AND outstanding_amount > 0", []string{string(ledger.StatusSent), string(ledger.StatusPartial)})
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	if err := q.Order("due_date ASC").Order("pi_number ASC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListByCustomer loads the columns the customer fold needs.
func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.ProformaInvoice, error) {
	var invoices []model.ProformaInvoice
	if err := GetDB(ctx, r.db).
		Select("id", "status", "currency", "outstanding_amount", "overpaid_amount", "issue_date", "due_date", "created_at").
		Where("customer_id = ?", customerID).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdateWithVersion writes the mutable columns if the stored version still
// equals expectedVersion, and bumps the version on success.
func (r *invoiceRepository) UpdateWithVersion(ctx context.Context, invoice *model.ProformaInvoice, expectedVersion int64) error {
	now := time.Now().UTC()
	result := GetDB(ctx, r.db).
		Model(&model.ProformaInvoice{}).
		Where("id = ? AND version = ?", invoice.ID, expectedVersion).
		Updates(map[string]interface{}{
			"total_amount":       invoice.TotalAmount,
			"paid_amount":        invoice.PaidAmount,
			"holded_amount":      invoice.HoldedAmount,
			"outstanding_amount": invoice.OutstandingAmount,
			"overpaid_amount":    invoice.OverpaidAmount,
			"status":             invoice.Status,
			"notes":              invoice.Notes,
			"issued_at":          invoice.IssuedAt,
			"cancelled_at":       invoice.CancelledAt,
			"version":            expectedVersion + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.Conflict("invoice %s was modified concurrently (expected version %d)", invoice.ID, expectedVersion)
	}
	invoice.Version = expectedVersion + 1
	invoice.UpdatedAt = now
	return nil
}

func (r *invoiceRepository) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return db.Create(&items).Error
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.ProformaInvoice{}).Where("pi_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.NotFound(format, args...)
	}
	return err
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
