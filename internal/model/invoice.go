package model

import (
	"time"

	"proforma/internal/ledger"
	"proforma/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProformaInvoice is the aggregate a customer pays against.
// TotalAmount is the sum of the line totals; the paid, holded, outstanding and
// overpaid amounts are written only from a ledger.Balance. All amounts are
// minor units of Currency.
type ProformaInvoice struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	PINumber          string            `gorm:"type:varchar(30);uniqueIndex;not null" json:"pi_number"`
	CustomerID        string            `gorm:"type:varchar(64);not null;index" json:"customer_id"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	IssueDate         time.Time         `gorm:"not null" json:"issue_date"`
	DueDate           time.Time         `gorm:"not null;index" json:"due_date"`
	Items             []InvoiceLineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount       int64             `gorm:"not null;default:0" json:"total_amount"`
	PaidAmount        int64             `gorm:"not null;default:0" json:"paid_amount"`
	HoldedAmount      int64             `gorm:"not null;default:0" json:"holded_amount"`
	OutstandingAmount int64             `gorm:"not null;default:0" json:"outstanding_amount"`
	OverpaidAmount    int64             `gorm:"not null;default:0" json:"overpaid_amount"`
	Status            string            `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"` // draft, sent, partial, paid, cancelled
	Version           int64             `gorm:"not null;default:1" json:"version"`
	Notes             string            `gorm:"type:text" json:"notes"`
	IssuedAt          *time.Time        `json:"issued_at"`
	CancelledAt       *time.Time        `json:"cancelled_at"`
	CreatedBy         string            `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (ProformaInvoice) TableName() string {
	return "proforma_invoices"
}

func (inv *ProformaInvoice) BeforeCreate(tx *gorm.DB) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	return nil
}

// InvoiceLineItem is one ordered line of a proforma invoice.
type InvoiceLineItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position    int       `gorm:"not null" json:"position"`
	ProductRef  string    `gorm:"type:varchar(64);not null" json:"product_ref"`
	Description string    `gorm:"type:text" json:"description"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	UnitPrice   int64     `gorm:"not null" json:"unit_price"`
	LineTotal   int64     `gorm:"not null" json:"line_total"`
}

func (InvoiceLineItem) TableName() string {
	return "proforma_invoice_items"
}

func (li *InvoiceLineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

func (inv *ProformaInvoice) LedgerStatus() ledger.Status {
	return ledger.Status(inv.Status)
}

func (inv *ProformaInvoice) Total() money.Money {
	return money.FromMinor(inv.TotalAmount, inv.Currency)
}

// Balance returns the stored derived amounts.
func (inv *ProformaInvoice) Balance() ledger.Balance {
	return ledger.Balance{
		Total:       money.FromMinor(inv.TotalAmount, inv.Currency),
		Paid:        money.FromMinor(inv.PaidAmount, inv.Currency),
		Holded:      money.FromMinor(inv.HoldedAmount, inv.Currency),
		Outstanding: money.FromMinor(inv.OutstandingAmount, inv.Currency),
		Overpaid:    money.FromMinor(inv.OverpaidAmount, inv.Currency),
	}
}

// ApplyBalance copies a reconciliation result onto the invoice.
func (inv *ProformaInvoice) ApplyBalance(b ledger.Balance) {
	inv.TotalAmount = b.Total.Minor()
	inv.PaidAmount = b.Paid.Minor()
	inv.HoldedAmount = b.Holded.Minor()
	inv.OutstandingAmount = b.Outstanding.Minor()
	inv.OverpaidAmount = b.Overpaid.Minor()
}

// Snapshot is the view of the invoice used by the customer fold.
func (inv *ProformaInvoice) Snapshot() ledger.InvoiceSnapshot {
	return ledger.InvoiceSnapshot{
		Status:      inv.LedgerStatus(),
		Currency:    inv.Currency,
		Outstanding: inv.OutstandingAmount,
		Overpaid:    inv.OverpaidAmount,
		IssueDate:   inv.IssueDate,
		DueDate:     inv.DueDate,
		CreatedAt:   inv.CreatedAt,
	}
}
