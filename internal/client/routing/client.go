package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dronefood-storefront/internal/domain"
)

// Client computes road routes between two points.
type Client interface {
	Route(ctx context.Context, origin, destination domain.LatLng) (domain.RoutePlan, error)
}

type osrmClient struct {
	baseURL string
	profile string
	http    *http.Client
}

// NewOSRM returns a Client for an OSRM compatible route service rooted at baseURL,
// e.g. https://router.project-osrm.org/route/v1.
func NewOSRM(baseURL, profile string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if profile == "" {
		profile = "driving"
	}
	return &osrmClient{baseURL: strings.TrimRight(baseURL, "/"), profile: profile, http: httpClient}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func (c *osrmClient) Route(ctx context.Context, origin, destination domain.LatLng) (domain.RoutePlan, error) {
	if err := origin.Validate(); err != nil {
		return domain.RoutePlan{}, fmt.Errorf("origin: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return domain.RoutePlan{}, fmt.Errorf("destination: %w", err)
	}
	// OSRM takes lng,lat pairs.
	u := fmt.Sprintf("%s/%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, c.profile, origin.Lng, origin.Lat, destination.Lng, destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.RoutePlan{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RoutePlan{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.RoutePlan{}, fmt.Errorf("route endpoint %d: %s", resp.StatusCode, string(b))
	}
	var raw osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.RoutePlan{}, fmt.Errorf("decode route: %w", err)
	}
	if raw.Code != "" && raw.Code != "Ok" {
		return domain.RoutePlan{}, fmt.Errorf("route service %s: %s", raw.Code, raw.Message)
	}
	if len(raw.Routes) == 0 {
		return domain.RoutePlan{}, domain.ErrEmptyRoute
	}

	best := raw.Routes[0]
	coords := make([]domain.LatLng, 0, len(best.Geometry.Coordinates))
	for _, pair := range best.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		coords = append(coords, domain.LatLng{Lat: pair[1], Lng: pair[0]})
	}
	if len(coords) == 0 {
		return domain.RoutePlan{}, domain.ErrEmptyRoute
	}
	return domain.RoutePlan{
		Coordinates:         coords,
		TotalDistanceMeters: best.Distance,
		TotalTimeSeconds:    best.Duration,
	}, nil
}
