package domain

// OrderStatus is the lifecycle state reported by the order API.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPreparing OrderStatus = "PREPARING"
	OrderCooking   OrderStatus = "COOKING"
	OrderShipping  OrderStatus = "SHIPPING"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderItem is a dish line on a placed order.
type OrderItem struct {
	ID       string `json:"id"`
	DishName string `json:"dishName"`
	Quantity int    `json:"qty"`
}

// DeliveryTask carries the drone's pickup and dropoff coordinates.
type DeliveryTask struct {
	PickupLat  *float64 `json:"pickupLat"`
	PickupLng  *float64 `json:"pickupLng"`
	DropoffLat *float64 `json:"dropoffLat"`
	DropoffLng *float64 `json:"dropoffLng"`
}

// Pickup returns the restaurant position if both components are present.
func (t DeliveryTask) Pickup() (LatLng, bool) {
	if t.PickupLat == nil || t.PickupLng == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *t.PickupLat, Lng: *t.PickupLng}, true
}

// Dropoff returns the customer position if both components are present.
func (t DeliveryTask) Dropoff() (LatLng, bool) {
	if t.DropoffLat == nil || t.DropoffLng == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *t.DropoffLat, Lng: *t.DropoffLng}, true
}

// OrderDetail is the subset of an order the tracking view needs.
type OrderDetail struct {
	ID             string       `json:"id"`
	Status         OrderStatus  `json:"status"`
	RestaurantName string       `json:"restaurantName"`
	CustomerName   string       `json:"customerName"`
	TotalAmount    int64        `json:"totalAmount,omitempty"`
	Items          []OrderItem  `json:"items"`
	DeliveryTask   DeliveryTask `json:"deliveryTask"`
}
