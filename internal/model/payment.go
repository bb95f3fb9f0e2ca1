package model

import (
	"time"

	"proforma/internal/ledger"
	"proforma/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentMethod enum constants. Methods are labels only.
const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodCheck        = "check"
	MethodCreditCard   = "credit_card"
	MethodOther        = "other"
)

func IsValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheck, MethodCreditCard, MethodOther:
		return true
	}
	return false
}

// Payment is one ledger entry against a target. Amount and target never change
// after insert; corrections are a reversal plus a new payment.
//
// The partial unique index makes (reference_number, target) the idempotency
// key among active payments, so a reversed entry frees its reference.
type Payment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Amount          int64      `gorm:"not null" json:"amount"`
	HoldedAmount    int64      `gorm:"not null;default:0" json:"holded_amount"`
	Currency        string     `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentDate     time.Time  `gorm:"not null" json:"payment_date"`
	Method          string     `gorm:"type:varchar(20);not null" json:"method"`
	ReferenceNumber string     `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_payments_active_reference,priority:1,where:reversed = false AND reference_number <> ''" json:"reference_number"`
	TargetKind      TargetKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_payments_active_reference,priority:2;index:idx_payments_target,priority:1" json:"target_kind"`
	TargetKey       string     `gorm:"type:varchar(512);not null;uniqueIndex:idx_payments_active_reference,priority:3;index:idx_payments_target,priority:2" json:"target_key"`
	TargetRefs      []string   `gorm:"type:text;serializer:json" json:"target_refs"`
	InvoiceID       *uuid.UUID `gorm:"type:uuid;index" json:"invoice_id"` // set for invoice targets only
	ReleaseNumber   *string    `gorm:"type:varchar(100)" json:"release_number"`
	Receipts        []string   `gorm:"type:text;serializer:json" json:"receipts"` // external document references
	Notes           string     `gorm:"type:text" json:"notes"`
	Reversed        bool       `gorm:"not null;default:false;index" json:"reversed"`
	ReversedAt      *time.Time `json:"reversed_at"`
	ReversalReason  string     `gorm:"type:text" json:"reversal_reason"`
	CreatedBy       string     `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SetTarget writes the target columns.
func (p *Payment) SetTarget(t Target) {
	var cols targetColumns
	t.Accept(&cols)
	p.TargetKind = t.Kind()
	p.TargetKey = t.Key()
	p.TargetRefs = cols.refs
	p.InvoiceID = cols.invoiceID
}

// Target rebuilds the typed target from the stored columns.
func (p *Payment) Target() (Target, error) {
	return ParseTarget(p.TargetKind, p.TargetRefs)
}

func (p *Payment) Money() money.Money {
	return money.FromMinor(p.Amount, p.Currency)
}

func (p *Payment) Holded() money.Money {
	return money.FromMinor(p.HoldedAmount, p.Currency)
}

// Entry is the reconciliation input of this payment.
func (p *Payment) Entry() ledger.Entry {
	return ledger.Entry{Amount: p.Money(), Holded: p.Holded(), Reversed: p.Reversed}
}

// Entries converts a payment set for reconciliation.
func Entries(payments []Payment) []ledger.Entry {
	out := make([]ledger.Entry, 0, len(payments))
	for i := range payments {
		out = append(out, payments[i].Entry())
	}
	return out
}
