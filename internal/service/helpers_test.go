package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"proforma/internal/database"
	"proforma/internal/lock"
	"proforma/internal/repository"
	"proforma/pkg/money"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type recordedEvent struct {
	name string
	data interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) Publish(event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, data: data})
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	db        *gorm.DB
	events    *eventRecorder
	invoices  InvoiceService
	payments  PaymentService
	customers CustomerService
	audit     AuditService
	paymentDB repository.PaymentRepository
	invoiceDB repository.InvoiceRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	locker := lock.NewLocalLocker()
	events := &eventRecorder{}

	invoices := NewInvoiceService(invoiceRepo, paymentRepo, auditRepo, txManager, locker, events, log, "AED").(*invoiceService)
	invoices.now = func() time.Time { return testNow }
	payments := NewPaymentService(paymentRepo, invoiceRepo, auditRepo, txManager, locker, events, log, "AED").(*paymentService)
	payments.now = func() time.Time { return testNow }
	customers := NewCustomerService(invoiceRepo).(*customerService)
	customers.now = func() time.Time { return testNow }

	return &fixture{
		db:        db,
		events:    events,
		invoices:  invoices,
		payments:  payments,
		customers: customers,
		audit:     NewAuditService(auditRepo),
		paymentDB: paymentRepo,
		invoiceDB: invoiceRepo,
	}
}

func aed(v string) money.Money {
	return money.MustParse(v, "AED")
}

// draftInvoice creates a one-line invoice for total, due on due.
func (f *fixture) draftInvoice(t *testing.T, customer, total, due string) InvoiceResponse {
	t.Helper()
	inv, err := f.invoices.CreateInvoice(context.Background(), "u-1", CreateInvoiceRequest{
		CustomerID: customer,
		IssueDate:  "2026-01-01",
		DueDate:    due,
		Items: []LineItemRequest{
			{ProductRef: "SKU-1", Description: "container handling", Quantity: 1, UnitPrice: total},
		},
	})
	require.NoError(t, err)
	return inv
}

// issuedInvoice creates and issues a one-line invoice.
func (f *fixture) issuedInvoice(t *testing.T, customer, total, due string) InvoiceResponse {
	t.Helper()
	inv := f.draftInvoice(t, customer, total, due)
	issued, err := f.invoices.IssueInvoice(context.Background(), "u-1", inv.ID, VersionRequest{ExpectedVersion: inv.Version})
	require.NoError(t, err)
	return issued
}

func (f *fixture) pay(t *testing.T, invoiceID, amount, reference string) RecordPaymentResult {
	t.Helper()
	res, err := f.payments.RecordPayment(context.Background(), "u-2", invoicePayment(invoiceID, amount, reference))
	require.NoError(t, err)
	return res
}

func (f *fixture) get(t *testing.T, id string) InvoiceResponse {
	t.Helper()
	inv, err := f.invoices.GetInvoice(context.Background(), id)
	require.NoError(t, err)
	return inv
}

func invoicePayment(invoiceID, amount, reference string) RecordPaymentRequest {
	return RecordPaymentRequest{
		TargetKind:      "invoice",
		TargetRefs:      []string{invoiceID},
		Amount:          amount,
		Method:          "bank_transfer",
		ReferenceNumber: reference,
		PaymentDate:     "2026-03-01",
	}
}
