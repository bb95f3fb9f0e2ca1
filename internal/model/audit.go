package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateInvoice      = "CREATE_INVOICE"
	ActionIssueInvoice       = "ISSUE_INVOICE"
	ActionUpdateInvoiceItems = "UPDATE_INVOICE_ITEMS"
	ActionUpdateInvoiceNotes = "UPDATE_INVOICE_NOTES"
	ActionCancelInvoice      = "CANCEL_INVOICE"
	ActionRecordPayment      = "RECORD_PAYMENT"
	ActionReversePayment     = "REVERSE_PAYMENT"
)

// AuditLog tracks Who, What, and When for every ledger mutation.
// Rows are written in the transaction of the change they describe.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Actor      string    `gorm:"type:varchar(64);index" json:"actor"` // JWT subject, empty for system
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // PI number or payment reference
	Details    string    `gorm:"type:text" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
