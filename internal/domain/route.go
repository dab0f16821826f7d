package domain

import "fmt"

// LatLng is a WGS 84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects coordinates outside the valid latitude/longitude ranges.
func (p LatLng) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrMissingCoordinates)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrMissingCoordinates)
	}
	return nil
}

// RoutePlan is the road route returned by the routing service. It is never
// modified after receipt.
type RoutePlan struct {
	Coordinates         []LatLng `json:"coordinates"`
	TotalDistanceMeters float64  `json:"totalDistanceMeters"`
	TotalTimeSeconds    float64  `json:"totalTimeSeconds"`
}

// Len is the number of route points.
func (r RoutePlan) Len() int {
	return len(r.Coordinates)
}
