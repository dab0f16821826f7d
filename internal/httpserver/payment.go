package httpserver

import (
	"errors"
	"net/http"
	"time"

	"dronefood-storefront/internal/tracking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// paymentResultHandler blocks until the payment for :id settles or the poll
// deadline passes.
func paymentResultHandler(src tracking.StatusSource, interval, deadline time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("id")
		outcome, err := tracking.WaitForPayment(c.Request.Context(), src, orderID, interval, deadline, logger)
		if err != nil {
			if errors.Is(err, c.Request.Context().Err()) {
				logger.Debug("client left before payment settled", zap.String("order_id", orderID))
				c.Abort()
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orderId": orderID, "result": outcome})
	}
}
