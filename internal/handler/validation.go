package handler

import (
	"fmt"
	"strings"
	"sync"

	"proforma/pkg/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the ledger tags to gin's binding validator:
// "money" for decimal amount strings and "currency" for ISO-4217 codes.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected binding validator %T", binding.Validator.Engine())
			return
		}
		if err := v.RegisterValidation("money", validateMoney); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("currency", validateCurrency)
	})
	return registerErr
}

func validateMoney(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func validateCurrency(fl validator.FieldLevel) bool {
	_, err := money.NormalizeCurrency(fl.Field().String())
	return err == nil
}
