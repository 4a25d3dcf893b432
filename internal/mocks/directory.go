package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
)

// MockDirectory serves a fixed player catalog for local development when no
// catalog service is configured. Player ids line up with the mock ClickHouse
// ADP seed, so the analytics sync fills the ADP cache end to end in dev.
type MockDirectory struct {
	players []models.Player

	mu  sync.RWMutex
	adp map[string]float64
}

// NewMockDirectory creates the mock catalog
func NewMockDirectory() *MockDirectory {
	logger.Info("Using MOCK player catalog for local development")

	return &MockDirectory{
		adp: make(map[string]float64),
		players: []models.Player{
			{PlayerID: "p1", FirstName: "Christian", LastName: "McCaffrey", Team: "SF", Position: models.PositionRB},
			{PlayerID: "p2", FirstName: "CeeDee", LastName: "Lamb", Team: "DAL", Position: models.PositionWR},
			{PlayerID: "p3", FirstName: "Tyreek", LastName: "Hill", Team: "MIA", Position: models.PositionWR},
			{PlayerID: "p4", FirstName: "Bijan", LastName: "Robinson", Team: "ATL", Position: models.PositionRB},
			{PlayerID: "p5", FirstName: "Ja'Marr", LastName: "Chase", Team: "CIN", Position: models.PositionWR},
			{PlayerID: "p6", FirstName: "Justin", LastName: "Jefferson", Team: "MIN", Position: models.PositionWR},
			{PlayerID: "p7", FirstName: "Breece", LastName: "Hall", Team: "NYJ", Position: models.PositionRB},
			{PlayerID: "p8", FirstName: "Amon-Ra", LastName: "St. Brown", Team: "DET", Position: models.PositionWR},
			{PlayerID: "p9", FirstName: "Jahmyr", LastName: "Gibbs", Team: "DET", Position: models.PositionRB},
			{PlayerID: "p10", FirstName: "Saquon", LastName: "Barkley", Team: "PHI", Position: models.PositionRB},
			{PlayerID: "p11", FirstName: "Puka", LastName: "Nacua", Team: "LAR", Position: models.PositionWR},
			{PlayerID: "p12", FirstName: "Travis", LastName: "Kelce", Team: "KC", Position: models.PositionTE},
			{PlayerID: "p13", FirstName: "Josh", LastName: "Allen", Team: "BUF", Position: models.PositionQB},
			{PlayerID: "p14", FirstName: "Jalen", LastName: "Hurts", Team: "PHI", Position: models.PositionQB},
			{PlayerID: "p15", FirstName: "Justin", LastName: "Tucker", Team: "BAL", Position: models.PositionK},
			{PlayerID: "p16", FirstName: "San Francisco", LastName: "49ers", Team: "SF", Position: models.PositionDEF},
		},
	}
}

// AllPlayers returns the fixed catalog
func (m *MockDirectory) AllPlayers(ctx context.Context) ([]models.Player, error) {
	out := make([]models.Player, len(m.players))
	copy(out, m.players)
	return out, nil
}

// PlayersByPosition filters the fixed catalog
func (m *MockDirectory) PlayersByPosition(ctx context.Context, position models.Position, team string) ([]models.Player, error) {
	var out []models.Player
	for _, p := range m.players {
		if p.Position != position {
			continue
		}
		if team != "" && !strings.EqualFold(p.Team, team) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// StartSync is a no-op for the mock
func (m *MockDirectory) StartSync(ctx context.Context) error {
	return nil
}

// SetADP replaces the average-draft-position map, mirroring the real client
func (m *MockDirectory) SetADP(adp map[string]float64) {
	copied := make(map[string]float64, len(adp))
	for id, v := range adp {
		copied[id] = v
	}

	m.mu.Lock()
	m.adp = copied
	m.mu.Unlock()
}

// GetADP returns the cached average draft position for a player, if known
func (m *MockDirectory) GetADP(playerID string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.adp[playerID]
	return v, ok
}
