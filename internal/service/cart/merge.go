package cart

import "dronefood-storefront/internal/domain"

// mergeGuest folds guest lines into user. Lines with matching ids sum quantities,
// the rest are appended in guest order. When both carts are non-empty and belong to
// different restaurants the guest cart replaces the user cart.
func mergeGuest(user, guest domain.Cart) domain.Cart {
	if len(guest) == 0 {
		return user.Clone()
	}
	if len(user) == 0 || user.RestaurantID() != guest.RestaurantID() {
		return guest.Clone()
	}
	out := user.Clone()
	for _, line := range guest {
		if i := out.Index(line.ItemID); i >= 0 {
			out[i].Quantity += line.Quantity
			continue
		}
		out = append(out, line)
	}
	return out
}
