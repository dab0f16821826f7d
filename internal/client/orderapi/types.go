package orderapi

import (
	"fmt"

	"dronefood-storefront/internal/domain"
)

// envelope is the wrapper every order API response comes in. The HTTP status is
// repeated in the body and the body value is the one the API means.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

type listResponse struct {
	envelope
	Data struct {
		Items []domain.OrderDetail `json:"items"`
	} `json:"data"`
}

type statusResponse struct {
	envelope
	OrderStatus string `json:"orderStatus"`
}

// APIError is a non-success answer from the order API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api %d: %s", e.StatusCode, e.Body)
}
