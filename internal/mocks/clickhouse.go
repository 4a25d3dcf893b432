package mocks

import (
	"context"
	"math/rand"

	"github.com/gridironhq/companion/internal/logger"
)

// MockClickHouseClient stands in for the ClickHouse analytics client during
// local development. ADP values jitter slightly between reads so the sync
// loop has something to propagate.
type MockClickHouseClient struct {
	baseADP map[string]float64
}

// NewMockClickHouseClient creates a mock analytics client seeded with
// plausible first-round-through-mid-round ADP values
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")

	return &MockClickHouseClient{
		baseADP: map[string]float64{
			"p1":  1.4,
			"p2":  2.8,
			"p3":  3.1,
			"p4":  5.6,
			"p5":  6.2,
			"p6":  8.9,
			"p7":  11.3,
			"p8":  14.7,
			"p9":  18.2,
			"p10": 22.5,
			"p11": 27.9,
			"p12": 33.4,
			"p13": 41.8,
			"p14": 48.6,
			"p15": 57.3,
			"p16": 66.1,
		},
	}
}

// GetADP returns a mock average draft position with slight variation
func (m *MockClickHouseClient) GetADP(ctx context.Context, playerID string) (float64, error) {
	base, ok := m.baseADP[playerID]
	if !ok {
		base = 120 // Deep-league territory for unknown players
	}
	return jitter(base), nil
}

// GetAllADP returns the full mock ADP map with slight variation
func (m *MockClickHouseClient) GetAllADP(ctx context.Context) (map[string]float64, error) {
	result := make(map[string]float64, len(m.baseADP))
	for id, base := range m.baseADP {
		result[id] = jitter(base)
	}
	return result, nil
}

// Close is a no-op for the mock
func (m *MockClickHouseClient) Close() error {
	return nil
}

// jitter shifts a value by up to ±10% for realism
func jitter(base float64) float64 {
	return base * (0.9 + rand.Float64()*0.2)
}
