package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"dronefood-storefront/internal/domain"
)

// Client is the part of the order API the storefront consumes.
type Client interface {
	GetOrder(ctx context.Context, token, orderID string) (domain.OrderDetail, error)
	ConfirmReceived(ctx context.Context, token, orderID string) error
	// GetStatus returns the raw orderStatus string; during checkout the API also
	// reports values outside domain.OrderStatus such as DELIVERY.
	GetStatus(ctx context.Context, orderID string) (string, error)
}

type client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *client) GetOrder(ctx context.Context, token, orderID string) (domain.OrderDetail, error) {
	u := fmt.Sprintf("%s/orders?filter=%s", c.baseURL, url.QueryEscape("id=="+orderID))
	var out listResponse
	if err := c.do(ctx, http.MethodGet, u, token, &out); err != nil {
		return domain.OrderDetail{}, err
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return domain.OrderDetail{}, err
	}
	if len(out.Data.Items) == 0 {
		return domain.OrderDetail{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return out.Data.Items[0], nil
}

func (c *client) ConfirmReceived(ctx context.Context, token, orderID string) error {
	u := fmt.Sprintf("%s/orders/%s/confirmed", c.baseURL, url.PathEscape(orderID))
	var out envelope
	if err := c.do(ctx, http.MethodPost, u, token, &out); err != nil {
		return err
	}
	return checkEnvelope(out)
}

func (c *client) GetStatus(ctx context.Context, orderID string) (string, error) {
	u := fmt.Sprintf("%s/orders/status/%s", c.baseURL, url.PathEscape(orderID))
	var out statusResponse
	if err := c.do(ctx, http.MethodGet, u, "", &out); err != nil {
		return "", err
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return "", err
	}
	return out.OrderStatus, nil
}

func (c *client) do(ctx context.Context, method, u, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func checkEnvelope(e envelope) error {
	if e.Status != 0 && e.Status != http.StatusOK {
		return &APIError{StatusCode: e.Status, Body: e.Message}
	}
	return nil
}
