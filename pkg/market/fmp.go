package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xhad/redagent/internal/logger"
)

const DefaultFMPBaseURL = "https://financialmodelingprep.com/api/v3"

type FMPConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// FMPClient talks to the Financial Modeling Prep REST API.
type FMPClient struct {
	config  FMPConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewFMPClient(config FMPConfig) (*FMPClient, error) {
	config.APIKey = strings.TrimSpace(config.APIKey)
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultFMPBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 4
	}

	return &FMPClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func (c *FMPClient) TopGainers(ctx context.Context, limit int) ([]Mover, error) {
	var movers []Mover
	if err := c.get(ctx, "/stock_market/gainers", nil, &movers); err != nil {
		return nil, err
	}
	return topMovers(movers, limit, true), nil
}

func (c *FMPClient) TopLosers(ctx context.Context, limit int) ([]Mover, error) {
	var movers []Mover
	if err := c.get(ctx, "/stock_market/losers", nil, &movers); err != nil {
		return nil, err
	}
	return topMovers(movers, limit, false), nil
}

func (c *FMPClient) SearchCompany(ctx context.Context, query string) ([]Company, error) {
	var companies []Company
	params := url.Values{"query": {query}}
	if err := c.get(ctx, "/search", params, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

func (c *FMPClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMarketAPI, err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.config.APIKey)
	endpoint := c.config.BaseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarketAPI, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarketAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrMarketAPI, err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Debug("market API %s returned %d: %s", path, resp.StatusCode, body)
		return fmt.Errorf("%w: %s returned status %d", ErrMarketAPI, path, resp.StatusCode)
	}

	// Errors such as an invalid key come back as an object instead of a list.
	var apiErr struct {
		Message string `json:"Error Message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("%w: %s", ErrMarketAPI, apiErr.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrMarketAPI, path, err)
	}
	return nil
}
