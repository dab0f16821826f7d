package domain

// Phase is the DeliveryTracker lifecycle state.
type Phase string

const (
	PhaseLoadingOrder  Phase = "LOADING_ORDER"
	PhaseAwaitingRoute Phase = "AWAITING_ROUTE"
	PhaseIdle          Phase = "IDLE"
	PhaseTracking      Phase = "TRACKING"
	PhaseArrived       Phase = "ARRIVED"
	PhaseConfirmed     Phase = "CONFIRMED"
	PhaseFailed        Phase = "FAILED"
)

// TrackingState is what the live tracking view renders.
type TrackingState struct {
	Phase                   Phase        `json:"phase"`
	Order                   *OrderDetail `json:"order,omitempty"`
	Origin                  *LatLng      `json:"origin,omitempty"`
	Destination             *LatLng      `json:"destination,omitempty"`
	CurrentPosition         *LatLng      `json:"currentPosition,omitempty"`
	RemainingDistanceMeters *float64     `json:"remainingDistanceMeters,omitempty"`
	RemainingTimeSeconds    *float64     `json:"remainingTimeSeconds,omitempty"`
	Arrived                 bool         `json:"arrived"`
	CanConfirm              bool         `json:"canConfirm"`
	Error                   string       `json:"error,omitempty"`
}
