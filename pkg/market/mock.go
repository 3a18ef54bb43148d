package market

import (
	"context"
	"fmt"
)

// MockClient serves fixed data so the assistant can run without an API key.
type MockClient struct {
	gainers []Mover
	losers  []Mover
}

func NewMockClient() *MockClient {
	return &MockClient{
		gainers: []Mover{
			{Symbol: "META", Name: "META", ChangesPercentage: 5.0},
			{Symbol: "AMZN", Name: "AMAZON", ChangesPercentage: 4.5},
			{Symbol: "NVDA", Name: "NVIDIA", ChangesPercentage: 7.6},
			{Symbol: "MAERSK", Name: "MAERSK", ChangesPercentage: 3.2},
			{Symbol: "STEAM", Name: "STEAM", ChangesPercentage: 4.1},
		},
		losers: []Mover{
			{Symbol: "INTC", Name: "INTEL", ChangesPercentage: -6.1},
			{Symbol: "BA", Name: "BOEING", ChangesPercentage: -3.4},
			{Symbol: "NKE", Name: "NIKE", ChangesPercentage: -2.2},
			{Symbol: "PFE", Name: "PFIZER", ChangesPercentage: -4.8},
			{Symbol: "DIS", Name: "DISNEY", ChangesPercentage: -1.9},
		},
	}
}

func (m *MockClient) TopGainers(_ context.Context, limit int) ([]Mover, error) {
	return topMovers(m.gainers, limit, true), nil
}

func (m *MockClient) TopLosers(_ context.Context, limit int) ([]Mover, error) {
	return topMovers(m.losers, limit, false), nil
}

func (m *MockClient) SearchCompany(_ context.Context, query string) ([]Company, error) {
	return []Company{
		{Symbol: "MOCK1", Name: fmt.Sprintf("Mock Company %s", query), Sector: "Technology"},
		{Symbol: "MOCK2", Name: fmt.Sprintf("Another Mock Company %s", query), Sector: "Finance"},
		{Symbol: "MOCK3", Name: fmt.Sprintf("Mock IT-Service %s", query), Sector: "Technology"},
	}, nil
}
