// Package importer builds a starter cheat sheet from a bundled third-party
// overall-ranking list. Each entry is matched to a catalog player by exact
// name, team, and position; unmatched entries get a synthetic id so the
// sheet still imports whole.
package importer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
	"github.com/gridironhq/companion/internal/ranking"
)

//go:embed rankings.json
var bundledRankings []byte

// Catalog is the subset of the directory client the importer needs
type Catalog interface {
	AllPlayers(ctx context.Context) ([]models.Player, error)
}

// rankedEntry is one row of the bundled list, already in rank order
type rankedEntry struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Team      string `json:"team"`
	Position  string `json:"position"`
}

// BuildCheatSheet turns the bundled ranking list into a cheat sheet. The
// list's order becomes the ranking; no tiers are inserted.
func BuildCheatSheet(ctx context.Context, catalog Catalog) (*models.CheatSheet, error) {
	var entries []rankedEntry
	if err := json.Unmarshal(bundledRankings, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse bundled rankings: %w", err)
	}

	known, err := catalog.AllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load player catalog for import: %w", err)
	}

	byTuple := make(map[string]models.Player, len(known))
	for _, p := range known {
		byTuple[tupleKey(p.FirstName, p.LastName, p.Team, string(p.Position))] = p
	}

	sheet := &models.CheatSheet{
		ID:      uuid.NewString(),
		Name:    "Imported Rankings",
		Players: []models.Slot{},
	}

	matched := 0
	for _, e := range entries {
		p, ok := byTuple[tupleKey(e.FirstName, e.LastName, e.Team, e.Position)]
		if ok {
			matched++
		} else {
			p = models.Player{
				PlayerID:  uuid.NewString(),
				FirstName: e.FirstName,
				LastName:  e.LastName,
				Team:      e.Team,
				Position:  models.Position(strings.ToUpper(e.Position)),
			}
		}
		sheet.Players = ranking.AddPlayer(sheet.Players, p)
	}

	logger.Info("Imported bundled rankings", "entries", len(entries), "matched", matched)
	return sheet, nil
}

func tupleKey(first, last, team, position string) string {
	return strings.ToLower(first) + "|" + strings.ToLower(last) + "|" +
		strings.ToUpper(team) + "|" + strings.ToUpper(position)
}
