// Package draft derives a live-draft view from a cheat sheet: each player
// slot gains a drafted flag and the visible list is filtered on demand.
// Draft state lives only in the session, never in the stored sheet.
package draft

import (
	"sync"

	"github.com/gridironhq/companion/internal/models"
)

// Session tracks drafted players over one cheat sheet for the duration of a
// live draft
type Session struct {
	mu      sync.RWMutex
	sheetID string
	slots   []models.Slot
}

// NewSession starts a draft session over the given sheet. Every player enters
// undrafted regardless of what the sheet carried; tier markers pass through
// unchanged.
func NewSession(sheet *models.CheatSheet) *Session {
	slots := make([]models.Slot, 0, len(sheet.Players))
	for _, s := range sheet.Players {
		if s.IsTier() {
			slots = append(slots, s)
			continue
		}
		slots = append(slots, models.Slot{
			Player: &models.PlayerSlot{
				Player:  s.Player.Player,
				Drafted: false,
			},
		})
	}
	return &Session{
		sheetID: sheet.ID,
		slots:   slots,
	}
}

// SheetID returns the id of the sheet the session was started from
func (s *Session) SheetID() string {
	return s.sheetID
}

// ToggleDrafted flips the drafted flag of the player with the given id and
// reports the new state. An unknown id is a no-op and returns false.
func (s *Session) ToggleDrafted(playerID string) (drafted bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		if s.slots[i].IsTier() {
			continue
		}
		if s.slots[i].Player.Player.PlayerID == playerID {
			s.slots[i].Player.Drafted = !s.slots[i].Player.Drafted
			return s.slots[i].Player.Drafted, true
		}
	}
	return false, false
}

// Slots returns a copy of the full slot list with current drafted flags
func (s *Session) Slots() []models.Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copySlots(s.slots)
}

// VisibleSlots returns the slots that survive the current filters. Tier
// markers always pass; a player is excluded when hideDrafted is set and the
// player is drafted, or when a position filter is set and does not match.
// Relative order is preserved.
func (s *Session) VisibleSlots(hideDrafted bool, position models.Position) []models.Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := make([]models.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.IsTier() {
			visible = append(visible, slot)
			continue
		}
		if hideDrafted && slot.Player.Drafted {
			continue
		}
		if position != "" && slot.Player.Player.Position != position {
			continue
		}
		visible = append(visible, slot)
	}
	return s.copySlots(visible)
}

// DraftedCount returns how many players are currently marked drafted
func (s *Session) DraftedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, slot := range s.slots {
		if !slot.IsTier() && slot.Player.Drafted {
			count++
		}
	}
	return count
}

func (s *Session) copySlots(src []models.Slot) []models.Slot {
	out := make([]models.Slot, len(src))
	for i, slot := range src {
		if slot.IsTier() {
			tier := *slot.Tier
			out[i] = models.Slot{Tier: &tier}
			continue
		}
		ps := *slot.Player
		out[i] = models.Slot{Player: &ps}
	}
	return out
}
