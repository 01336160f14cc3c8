package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cedrospay/x402-gateway/internal/httputil"
)

// HTTPSource fetches a USD price from a public price API (e.g. CoinGecko's
// "simple price" endpoint) keyed by asset symbol.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	// symbolToID maps the gateway's internal asset code (SOL, ETH, ...) to
	// the source's own identifier (solana, ethereum, ...).
	symbolToID map[string]string
}

// NewHTTPSource builds a price source against baseURL (e.g.
// "https://api.coingecko.com/api/v3/simple/price").
func NewHTTPSource(baseURL string, timeoutClient *http.Client) *HTTPSource {
	if timeoutClient == nil {
		timeoutClient = httputil.NewClient(0)
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  timeoutClient,
		symbolToID: map[string]string{
			"SOL": "solana",
			"ETH": "ethereum",
		},
	}
}

func (s *HTTPSource) FetchUSDPrice(ctx context.Context, asset string) (float64, error) {
	id, ok := s.symbolToID[asset]
	if !ok {
		return 0, fmt.Errorf("oracle: no price source id mapped for asset %q", asset)
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("oracle: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle: source returned status %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("oracle: decode response: %w", err)
	}

	entry, ok := body[id]
	if !ok {
		return 0, fmt.Errorf("oracle: response missing entry for %q", id)
	}
	price, ok := entry["usd"]
	if !ok {
		return 0, fmt.Errorf("oracle: response missing usd price for %q", id)
	}
	return price, nil
}
