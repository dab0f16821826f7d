package tracking

import (
	"context"
	"errors"
	"time"

	"dronefood-storefront/internal/domain"
	"go.uber.org/zap"
)

// PaymentOutcome is where the checkout flow sends the customer after paying.
type PaymentOutcome string

const (
	PaymentSuccess PaymentOutcome = "success"
	PaymentFailure PaymentOutcome = "failure"
	PaymentTimeout PaymentOutcome = "timeout"
)

// StatusSource reports an order's current status string.
type StatusSource interface {
	GetStatus(ctx context.Context, orderID string) (string, error)
}

// statusPaid is reported by the payment gateway callback before the kitchen picks
// the order up.
const statusPaid = "DELIVERY"

func classifyPayment(status string) (PaymentOutcome, bool) {
	switch status {
	case statusPaid,
		string(domain.OrderPreparing),
		string(domain.OrderCooking),
		string(domain.OrderShipping),
		string(domain.OrderDelivered):
		return PaymentSuccess, true
	case string(domain.OrderCancelled):
		return PaymentFailure, true
	}
	return "", false
}

// WaitForPayment polls orderID every interval until the status settles or the
// deadline passes. One context bounds both the schedule and the deadline, so
// cancelling ctx stops the loop with ctx's error. Poll errors are logged and
// polling continues.
func WaitForPayment(ctx context.Context, src StatusSource, orderID string, interval, deadline time.Duration, logger *zap.Logger) (PaymentOutcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if deadline <= 0 {
		deadline = time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Info("payment wait timed out", zap.String("order_id", orderID))
			return PaymentTimeout, nil
		case <-ticker.C:
		}

		status, err := src.GetStatus(waitCtx, orderID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Warn("payment status poll failed", zap.String("order_id", orderID), zap.Error(err))
			continue
		}
		if outcome, done := classifyPayment(status); done {
			logger.Info("payment settled", zap.String("order_id", orderID), zap.String("status", status), zap.String("result", string(outcome)))
			return outcome, nil
		}
	}
}
