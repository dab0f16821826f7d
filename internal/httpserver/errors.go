package httpserver

import (
	"context"
	"errors"
	"net/http"

	"dronefood-storefront/internal/client/orderapi"
	"dronefood-storefront/internal/domain"
	cartsvc "dronefood-storefront/internal/service/cart"
	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	var apiErr *orderapi.APIError
	switch {
	case errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrNotConfirmable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cartsvc.ErrIdentityLoading):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr),
		errors.Is(err, domain.ErrMissingCoordinates),
		errors.Is(err, domain.ErrEmptyRoute):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
