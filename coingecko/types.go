package coingecko

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarketSnapshot is the all-or-nothing market view of one token. It is only
// ever fully populated: a response missing any core field is rejected as a
// permanent provider failure.
type MarketSnapshot struct {
	PriceUSD       float64   `json:"price_usd"`
	MarketCapUSD   float64   `json:"market_cap_usd"`
	Volume24hUSD   float64   `json:"volume_24h_usd"`
	PriceChange24h float64   `json:"price_change_24h"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// contractResponse mirrors the fields we consume from the
// /coins/{platform}/contract/{address} endpoint
type contractResponse struct {
	MarketData *struct {
		CurrentPrice   map[string]float64 `json:"current_price"`
		MarketCap      map[string]float64 `json:"market_cap"`
		TotalVolume    map[string]float64 `json:"total_volume"`
		PriceChange24h *float64           `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// parseSnapshot validates the expected response shape and builds a snapshot.
// The usd entries for price, market cap and volume must all be present.
func parseSnapshot(body []byte, now time.Time) (*MarketSnapshot, error) {
	var resp contractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if resp.MarketData == nil {
		return nil, fmt.Errorf("response missing market_data")
	}

	price, ok := resp.MarketData.CurrentPrice["usd"]
	if !ok {
		return nil, fmt.Errorf("response missing current_price.usd")
	}
	marketCap, ok := resp.MarketData.MarketCap["usd"]
	if !ok {
		return nil, fmt.Errorf("response missing market_cap.usd")
	}
	volume, ok := resp.MarketData.TotalVolume["usd"]
	if !ok {
		return nil, fmt.Errorf("response missing total_volume.usd")
	}

	snapshot := &MarketSnapshot{
		PriceUSD:     price,
		MarketCapUSD: marketCap,
		Volume24hUSD: volume,
		FetchedAt:    now,
	}
	// 24h change is null for freshly listed tokens; zero is the neutral value
	if resp.MarketData.PriceChange24h != nil {
		snapshot.PriceChange24h = *resp.MarketData.PriceChange24h
	}
	return snapshot, nil
}
