package database

import (
	"testing"
	"time"

	"proforma/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMigrateActiveReferenceIndex(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasIndex(&model.Payment{}, "idx_payments_active_reference"))

	vessel, err := model.NewVesselTarget("IMO1")
	require.NoError(t, err)
	newPayment := func(ref string) *model.Payment {
		p := &model.Payment{Amount: 100, Currency: "AED", PaymentDate: time.Now(), Method: model.MethodCash, ReferenceNumber: ref}
		p.SetTarget(vessel)
		return p
	}

	first := newPayment("REF-1")
	require.NoError(t, db.Create(first).Error)
	assert.ErrorIs(t, db.Create(newPayment("REF-1")).Error, gorm.ErrDuplicatedKey)

	// blank references are not idempotency keys
	require.NoError(t, db.Create(newPayment("")).Error)
	require.NoError(t, db.Create(newPayment("")).Error)

	// a reversed payment frees its reference
	require.NoError(t, db.Model(first).Update("reversed", true).Error)
	assert.NoError(t, db.Create(newPayment("REF-1")).Error)
}
