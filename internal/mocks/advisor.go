package mocks

import (
	"context"
	"fmt"

	"github.com/gridironhq/companion/internal/advisor"
	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
)

// MockAdvisor returns canned recommendations for local development when no
// recommendation service is configured
type MockAdvisor struct{}

// NewMockAdvisor creates the mock recommendation client
func NewMockAdvisor() *MockAdvisor {
	logger.Info("Using MOCK recommendation service for local development")
	return &MockAdvisor{}
}

// Compare picks the first player and fabricates a reasoning blurb
func (m *MockAdvisor) Compare(ctx context.Context, players []models.Player) (*advisor.Comparison, error) {
	if len(players) < 2 {
		return nil, advisor.ErrTooFewPlayers
	}

	pick := players[0]
	return &advisor.Comparison{
		Recommendation: pick.FullName(),
		Reasoning:      fmt.Sprintf("%s has the stronger projected volume at %s.", pick.FullName(), pick.Position),
		Raw:            fmt.Sprintf("1. **Recommendation**: %s\n2. **Reasoning**: mock response", pick.FullName()),
	}, nil
}

// Evaluate keeps every candidate with a flat value estimate
func (m *MockAdvisor) Evaluate(ctx context.Context, league advisor.LeagueSettings, candidates []advisor.KeeperCandidate) (*advisor.KeeperResponse, error) {
	keep := make([]advisor.KeeperEntry, 0, len(candidates))
	for _, c := range candidates {
		keep = append(keep, advisor.KeeperEntry{
			PlayerID:     c.Player.PlayerID,
			Name:         c.Player.FullName(),
			EstimatedADP: float64(c.KeeperOverall) * 0.8,
			ValueVsADP:   float64(c.KeeperOverall) * 0.2,
			Reasoning:    "Mock evaluation: keeper cost is below estimated draft position.",
		})
	}

	return &advisor.KeeperResponse{
		Assumptions:     []string{"Mock data, no live projections"},
		Recommendations: advisor.KeeperRecommendations{Keep: keep, Bench: []advisor.KeeperEntry{}},
		Summary:         fmt.Sprintf("Keeping all %d candidates looks fine.", len(candidates)),
	}, nil
}
