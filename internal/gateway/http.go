package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-engine/internal/domain"
)

// httpGateway talks to the gateway's REST API with basic auth. Every call has
// a bounded timeout so a checkout request never hangs on a slow gateway.
type httpGateway struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

// NewHTTPGateway returns a Gateway backed by the processor's REST API.
func NewHTTPGateway(baseURL, keyID, secret string, timeout time.Duration) Gateway {
	return &httpGateway{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *httpGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(g.keyID, g.secret)

	return g.do(httpReq)
}

func (g *httpGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/orders/"+gatewayOrderID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.keyID, g.secret)

	return g.do(httpReq)
}

func (g *httpGateway) do(req *http.Request) (*GatewayOrder, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: gateway returned %s", domain.ErrGatewayUnavailable, resp.Status)
	}

	var order GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrGatewayUnavailable, err)
	}
	return &order, nil
}
