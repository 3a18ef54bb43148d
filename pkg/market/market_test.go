package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Percent
	}{
		{`5.5`, 5.5},
		{`"+7.6"`, 7.6},
		{`"-2.1%"`, -2.1},
		{`" 3 "`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var p Percent
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.InDelta(t, float64(tt.want), float64(p), 1e-9)
		})
	}

	var p Percent
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &p))
	assert.Equal(t, "+7.60%", Percent(7.6).String())
}

func TestMockClient(t *testing.T) {
	ctx := context.Background()
	m := NewMockClient()

	gainers, err := m.TopGainers(ctx, 3)
	require.NoError(t, err)
	require.Len(t, gainers, 3)
	assert.Equal(t, []string{"NVIDIA", "META", "AMAZON"}, []string{gainers[0].Name, gainers[1].Name, gainers[2].Name})

	losers, err := m.TopLosers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, losers, DefaultLimit)
	assert.Equal(t, "INTEL", losers[0].Name)
	assert.Equal(t, "DISNEY", losers[4].Name)

	companies, err := m.SearchCompany(ctx, "Apple")
	require.NoError(t, err)
	assert.Equal(t, "Mock Company Apple", companies[0].Name)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Config{UseMock: true})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	c, err = NewClient(Config{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Nil(t, c)

	c, err = NewClient(Config{APIKey: "secret"})
	require.NoError(t, err)
	assert.IsType(t, &FMPClient{}, c)
}

func newFMPServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stock_market/gainers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "secret" {
			w.Write([]byte(`{"Error Message": "Invalid API KEY."}`))
			return
		}
		w.Write([]byte(`[
			{"symbol":"AAA","name":"Alpha","price":10,"change":0.5,"changesPercentage":5.26},
			{"symbol":"BBB","name":"Beta","price":20,"change":3,"changesPercentage":17.6},
			{"symbol":"CCC","name":"Gamma","price":5,"change":0.1,"changesPercentage":2.04}
		]`))
	})
	mux.HandleFunc("/stock_market/losers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"DDD","name":"Delta","changesPercentage":-1.5},
			{"symbol":"EEE","name":"Epsilon","changesPercentage":-9.25}
		]`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "apple", r.URL.Query().Get("query"))
		w.Write([]byte(`[{"symbol":"AAPL","name":"Apple Inc.","currency":"USD","stockExchange":"NASDAQ","exchangeShortName":"NASDAQ"}]`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFMPClient(t *testing.T) {
	server := newFMPServer(t)
	ctx := context.Background()

	c, err := NewFMPClient(FMPConfig{BaseURL: server.URL + "/", APIKey: "secret", RateLimit: 100})
	require.NoError(t, err)

	gainers, err := c.TopGainers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, gainers, 2)
	assert.Equal(t, "BBB", gainers[0].Symbol)
	assert.Equal(t, "AAA", gainers[1].Symbol)

	losers, err := c.TopLosers(ctx, 5)
	require.NoError(t, err)
	require.Len(t, losers, 2)
	assert.Equal(t, "EEE", losers[0].Symbol)

	companies, err := c.SearchCompany(ctx, "apple")
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "AAPL", companies[0].Symbol)
	assert.Equal(t, "NASDAQ", companies[0].ExchangeShortName)
}

func TestFMPClientErrors(t *testing.T) {
	server := newFMPServer(t)
	ctx := context.Background()

	c, err := NewFMPClient(FMPConfig{BaseURL: server.URL, APIKey: "wrong", RateLimit: 100})
	require.NoError(t, err)

	_, err = c.TopGainers(ctx, 5)
	assert.ErrorIs(t, err, ErrMarketAPI)
	assert.ErrorContains(t, err, "Invalid API KEY.")

	var out []Mover
	err = c.get(ctx, "/broken", nil, &out)
	assert.ErrorIs(t, err, ErrMarketAPI)
	assert.ErrorContains(t, err, "500")
}

func TestFormatMovers(t *testing.T) {
	assert.Equal(t, "No data found.", FormatMovers(nil))
	assert.Equal(t, "1. Alpha (AAA): +5.26%\n2. META: -1.00%", FormatMovers([]Mover{
		{Symbol: "AAA", Name: "Alpha", ChangesPercentage: 5.26},
		{Symbol: "META", Name: "META", ChangesPercentage: -1},
	}))
}
