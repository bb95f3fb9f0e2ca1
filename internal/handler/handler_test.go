package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proforma/internal/database"
	"proforma/internal/lock"
	"proforma/internal/middleware"
	"proforma/internal/repository"
	"proforma/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type testServer struct {
	router *gin.Engine
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

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

	log := zap.NewNop()
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	locker := lock.NewLocalLocker()

	invoices := service.NewInvoiceService(invoiceRepo, paymentRepo, auditRepo, txManager, locker, nil, log, "AED")
	payments := service.NewPaymentService(paymentRepo, invoiceRepo, auditRepo, txManager, locker, nil, log, "AED")

	auth := middleware.NewAuthenticator(testSecret)
	router := gin.New()
	group := router.Group("")
	NewInvoiceHandler(invoices).RegisterRoutes(group, auth)
	NewPaymentHandler(payments).RegisterRoutes(group, auth)
	NewCustomerHandler(service.NewCustomerService(invoiceRepo)).RegisterRoutes(group, auth)
	NewAuditHandler(service.NewAuditService(auditRepo)).RegisterRoutes(group, auth)

	tokens := map[string]string{}
	for _, role := range middleware.ReadRoles {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  role + "-user",
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		tokens[role] = token
	}
	return &testServer{router: router, tokens: tokens}
}

func (s *testServer) do(t *testing.T, role, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) issuedInvoice(t *testing.T, total string) service.InvoiceResponse {
	t.Helper()
	status, env := s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/invoices", service.CreateInvoiceRequest{
		CustomerID: "cust-1",
		DueDate:    "2099-12-31",
		Items:      []service.LineItemRequest{{ProductRef: "SKU-1", Quantity: 1, UnitPrice: total}},
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	created := decode[service.InvoiceResponse](t, env)

	status, env = s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/invoices/"+created.ID+"/issue",
		service.VersionRequest{ExpectedVersion: created.Version})
	require.Equal(t, http.StatusOK, status, env.Error)
	return decode[service.InvoiceResponse](t, env)
}
