package handler

import (
	"context"
	"errors"
	"net/http"

	"proforma/internal/ledger"
	"proforma/internal/logger"
	"proforma/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByCode = map[string]int{
	ledger.CodeValidation:      http.StatusBadRequest,
	ledger.CodeNotFound:        http.StatusNotFound,
	ledger.CodeConflict:        http.StatusConflict,
	ledger.CodeAlreadyReversed: http.StatusConflict,
	ledger.CodeDuplicate:       http.StatusConflict,
	ledger.CodeInvalidState:    http.StatusUnprocessableEntity,
}

// respondError maps ledger errors to their status. Anything else is logged
// and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	code := ledger.CodeOf(err)
	if status, ok := statusByCode[code]; ok {
		c.JSON(status, response.CodedError(status, code, err.Error()))
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, response.Error(http.StatusGatewayTimeout, "Request timed out"))
		return
	}

	logger.FromGin(c).Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.CodedError(http.StatusBadRequest, ledger.CodeValidation, "Invalid request payload: "+err.Error()))
}
