package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidProduct is returned when a product cannot be added to a cart.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrMissingCoordinates marks an order without pickup or dropoff coordinates.
	ErrMissingCoordinates = errors.New("order is missing delivery coordinates")
	// ErrEmptyRoute marks a routing response without any coordinates.
	ErrEmptyRoute = errors.New("route has no coordinates")
	// ErrNotConfirmable is returned when receipt is confirmed too early.
	ErrNotConfirmable = errors.New("order receipt cannot be confirmed yet")
	// ErrUnauthenticated indicates an operation that needs a signed-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrBanned indicates the account behind a token has been blocked.
	ErrBanned = errors.New("account is banned")
)
