package database

import (
	"fmt"
	"time"

	"proforma/internal/config"
	"proforma/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the postgres pool and migrates the ledger tables.
func NewConnection(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		// also creates the partial unique index on active references
		return nil, err
	}
	log.Info("database ready", zap.String("host", cfg.Host), zap.String("name", cfg.Name))

	return db, nil
}

// Migrate creates or updates the ledger schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.ProformaInvoice{},
		&model.InvoiceLineItem{},
		&model.Payment{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}
