// Package market fetches daily stock movers and company lookups from
// Financial Modeling Prep, or from canned data in mock mode.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const DefaultLimit = 5

var (
	ErrMissingAPIKey = errors.New("API key must be provided when using the real API")
	ErrMarketAPI     = errors.New("market data request failed")
)

// Percent is a percentage change. The API sends numbers, older payloads
// send strings such as "+5.0" or "-2.1%".
type Percent float64

func (p *Percent) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*p = Percent(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid percentage %s", data)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "+"), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	*p = Percent(f)
	return nil
}

func (p Percent) String() string {
	return fmt.Sprintf("%+.2f%%", float64(p))
}

// Mover is one entry of the gainers or losers list.
type Mover struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	Change            float64 `json:"change"`
	ChangesPercentage Percent `json:"changesPercentage"`
}

type Company struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Currency          string `json:"currency,omitempty"`
	StockExchange     string `json:"stockExchange,omitempty"`
	ExchangeShortName string `json:"exchangeShortName,omitempty"`
	Sector            string `json:"sector,omitempty"`
}

type Client interface {
	TopGainers(ctx context.Context, limit int) ([]Mover, error)
	TopLosers(ctx context.Context, limit int) ([]Mover, error)
	SearchCompany(ctx context.Context, query string) ([]Company, error)
}

type Config struct {
	BaseURL   string
	APIKey    string
	UseMock   bool
	RateLimit float64
}

// NewClient returns the mock client when UseMock is set, the Financial
// Modeling Prep client otherwise.
func NewClient(config Config) (Client, error) {
	if config.UseMock {
		return NewMockClient(), nil
	}
	client, err := NewFMPClient(FMPConfig{
		BaseURL:   config.BaseURL,
		APIKey:    config.APIKey,
		RateLimit: config.RateLimit,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// topMovers sorts by change, descending for gainers and ascending for
// losers, and keeps the first limit entries.
func topMovers(movers []Mover, limit int, gainers bool) []Mover {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := append([]Mover(nil), movers...)
	sort.SliceStable(out, func(i, j int) bool {
		if gainers {
			return out[i].ChangesPercentage > out[j].ChangesPercentage
		}
		return out[i].ChangesPercentage < out[j].ChangesPercentage
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FormatMovers renders movers as a numbered list.
func FormatMovers(movers []Mover) string {
	if len(movers) == 0 {
		return "No data found."
	}
	var sb strings.Builder
	for i, m := range movers {
		name := m.Name
		if m.Symbol != "" && m.Symbol != m.Name {
			name = fmt.Sprintf("%s (%s)", m.Name, m.Symbol)
		}
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, name, m.ChangesPercentage)
	}
	return strings.TrimRight(sb.String(), "\n")
}
