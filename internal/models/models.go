package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Position is a fantasy roster position
type Position string

const (
	PositionQB  Position = "QB"
	PositionRB  Position = "RB"
	PositionWR  Position = "WR"
	PositionTE  Position = "TE"
	PositionK   Position = "K"
	PositionDEF Position = "DEF"
)

// Positions lists every valid position in display order
var Positions = []Position{PositionQB, PositionRB, PositionWR, PositionTE, PositionK, PositionDEF}

// Valid reports whether p is one of the fixed position enumeration
func (p Position) Valid() bool {
	switch p {
	case PositionQB, PositionRB, PositionWR, PositionTE, PositionK, PositionDEF:
		return true
	}
	return false
}

// Player is immutable reference data owned by the player directory.
// The ranked-list engine never mutates a Player, only the wrapping slot state.
type Player struct {
	PlayerID   string   `json:"player_id"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Team       string   `json:"team"`
	Position   Position `json:"position"`
	ADP        float64  `json:"adp,omitempty"`
	IsInjured  bool     `json:"is_injured,omitempty"`
	IsFavorite bool     `json:"is_favorite,omitempty"`
}

// FullName returns the player's display name
func (p Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

// PlayerSlot wraps a Player with per-sheet/per-session state
type PlayerSlot struct {
	Player  Player
	Drafted bool
}

// TierMarker is an unranked labeled separator. Its ID is stable across edits.
type TierMarker struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Slot is one element of a ranked list: exactly one of Player or Tier is set.
// Construct through PlayerOf/TierOf so the invariant holds.
type Slot struct {
	Player *PlayerSlot
	Tier   *TierMarker
}

// PlayerOf wraps a player in a slot
func PlayerOf(p Player) Slot {
	return Slot{Player: &PlayerSlot{Player: p}}
}

// TierOf wraps a tier marker in a slot
func TierOf(t TierMarker) Slot {
	return Slot{Tier: &t}
}

// IsTier reports whether the slot is a tier marker
func (s Slot) IsTier() bool {
	return s.Tier != nil
}

// tierJSON is the stored form of a tier slot
type tierJSON struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

// playerJSON is the stored form of a player slot: the player fields flattened
// alongside the per-sheet drafted flag
type playerJSON struct {
	Player
	Drafted bool `json:"drafted,omitempty"`
}

// MarshalJSON encodes the slot in the persisted schema: tier slots carry
// "type":"tier", player slots are flat player objects
func (s Slot) MarshalJSON() ([]byte, error) {
	switch {
	case s.Tier != nil:
		return json.Marshal(tierJSON{Type: "tier", ID: s.Tier.ID, Title: s.Tier.Title})
	case s.Player != nil:
		return json.Marshal(playerJSON{Player: s.Player.Player, Drafted: s.Player.Drafted})
	}
	return nil, fmt.Errorf("slot has neither player nor tier")
}

// UnmarshalJSON decodes either slot variant by probing the type tag
func (s *Slot) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Type == "tier" {
		var t tierJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		s.Player = nil
		s.Tier = &TierMarker{ID: t.ID, Title: t.Title}
		return nil
	}

	var p playerJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	s.Tier = nil
	s.Player = &PlayerSlot{Player: p.Player, Drafted: p.Drafted}
	return nil
}

// CheatSheet is a named, user-authored ranked list of players.
// Order of Players is the sole source of rank.
type CheatSheet struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Players  []Slot    `json:"players"`
	Modified time.Time `json:"modified,omitempty"`
}

// Clone returns a deep copy of the sheet, so a snapshot handed to an
// asynchronous writer cannot observe later edits
func (c *CheatSheet) Clone() *CheatSheet {
	out := &CheatSheet{
		ID:       c.ID,
		Name:     c.Name,
		Modified: c.Modified,
		Players:  make([]Slot, len(c.Players)),
	}
	for i, s := range c.Players {
		switch {
		case s.Tier != nil:
			t := *s.Tier
			out.Players[i] = Slot{Tier: &t}
		case s.Player != nil:
			p := *s.Player
			out.Players[i] = Slot{Player: &p}
		}
	}
	return out
}

// SheetSummary is the index/listing entry for a cheat sheet. The index holds
// summary metadata only; the per-sheet record is the source of truth.
type SheetSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PlayerCount int       `json:"player_count"`
	Modified    time.Time `json:"modified,omitempty"`
}
