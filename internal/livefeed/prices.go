package livefeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const coinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"

// Price is one coin quote. Value is nil when the upstream omitted the coin.
type Price struct {
	Coin     string   `json:"coin"`
	Currency string   `json:"currency"`
	Value    *float64 `json:"value"`
}

// PriceClient reads spot prices from the CoinGecko simple price API.
type PriceClient struct {
	getter   httpGetter
	baseURL  string
	coins    []string
	currency string
}

// NewPriceClient creates a client quoting coins in currency.
func NewPriceClient(coins []string, currency string, timeout time.Duration) *PriceClient {
	return &PriceClient{
		getter:   newHTTPGetter(timeout),
		baseURL:  coinGeckoURL,
		coins:    coins,
		currency: strings.ToLower(currency),
	}
}

// Fetch returns one Price per configured coin, in configuration order.
func (c *PriceClient) Fetch(ctx context.Context) ([]Price, error) {
	params := url.Values{
		"ids":           {strings.Join(c.coins, ",")},
		"vs_currencies": {c.currency},
	}

	// {"bitcoin": {"usd": 68000}, "ethereum": {"usd": 3500}}
	var resp map[string]map[string]float64
	if err := c.getter.getJSON(ctx, c.baseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("prices: %w", err)
	}

	out := make([]Price, len(c.coins))
	for i, coin := range c.coins {
		out[i] = Price{Coin: coin, Currency: c.currency}
		if v, ok := resp[coin][c.currency]; ok {
			out[i].Value = &v
		}
	}
	return out, nil
}

// SamplePrices is served when the upstream has never answered.
func SamplePrices(currency string) []Price {
	btc, eth := 68000.0, 3500.0
	currency = strings.ToLower(currency)
	return []Price{
		{Coin: "bitcoin", Currency: currency, Value: &btc},
		{Coin: "ethereum", Currency: currency, Value: &eth},
	}
}
