package domain

import "strings"

// Product is the descriptor the storefront hands to the cart when a dish is added.
type Product struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	RestaurantID   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
	Image          string `json:"img,omitempty"`
}

// Validate checks the fields required before a product may enter a cart.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrInvalidProduct
	}
	if p.Price < 0 {
		return ErrInvalidProduct
	}
	return nil
}

// CartLineItem is one dish plus its quantity. The JSON shape matches what the
// storefront has always kept under the cart_* storage keys.
type CartLineItem struct {
	ItemID         string `json:"id"`
	Name           string `json:"name"`
	UnitPrice      int64  `json:"price"`
	Quantity       int    `json:"quantity"`
	RestaurantID   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
	Image          string `json:"img,omitempty"`
}

// LineFromProduct builds a single-quantity line for p.
func LineFromProduct(p Product) CartLineItem {
	return CartLineItem{
		ItemID:         p.ID,
		Name:           p.Name,
		UnitPrice:      p.Price,
		Quantity:       1,
		RestaurantID:   p.RestaurantID,
		RestaurantName: p.RestaurantName,
		Image:          p.Image,
	}
}

// Cart is an ordered list of lines; insertion order is display order.
type Cart []CartLineItem

// RestaurantID returns the restaurant every line belongs to, or "" for an empty cart.
func (c Cart) RestaurantID() string {
	if len(c) == 0 {
		return ""
	}
	return c[0].RestaurantID
}

// Total sums unit price times quantity over all lines.
func (c Cart) Total() int64 {
	var total int64
	for _, line := range c {
		total += line.UnitPrice * int64(line.Quantity)
	}
	return total
}

// Count sums quantities, used for the header badge.
func (c Cart) Count() int {
	n := 0
	for _, line := range c {
		n += line.Quantity
	}
	return n
}

// Index returns the position of itemID or -1.
func (c Cart) Index(itemID string) int {
	for i, line := range c {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}
