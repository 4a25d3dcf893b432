// Package ranking implements the ranked-list engine behind cheat sheets: an
// ordered sequence of slots interleaving ranked players with unranked tier
// markers. All operations are pure (input list in, new list out); rank is
// defined entirely by order, and tier markers never consume rank numbers.
package ranking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gridironhq/companion/internal/models"
)

// ErrInvalidRank is returned when a requested rank falls outside
// 1..PlayerCount(list)
var ErrInvalidRank = errors.New("invalid rank")

// PlayerCount returns the number of player slots in the list
func PlayerCount(list []models.Slot) int {
	n := 0
	for _, s := range list {
		if !s.IsTier() {
			n++
		}
	}
	return n
}

// TierCount returns the number of tier markers in the list
func TierCount(list []models.Slot) int {
	n := 0
	for _, s := range list {
		if s.IsTier() {
			n++
		}
	}
	return n
}

// RankOf returns the 1-based player rank of the element at index: one plus the
// count of player slots strictly before it. Tier markers before the index do
// not count. The contract covers player-slot positions only; out-of-bounds
// indexes return rank 1 like the element at the head of the list.
func RankOf(list []models.Slot, index int) int {
	rank := 1
	if index < 0 || index >= len(list) {
		return rank
	}
	for i := 0; i < index; i++ {
		if !list[i].IsTier() {
			rank++
		}
	}
	return rank
}

// IndexForRank returns the index of the player slot holding the given rank,
// skipping tier markers while counting. When rank exceeds the player count it
// returns len(list), i.e. "insert at end" rather than failing.
func IndexForRank(list []models.Slot, rank int) int {
	count := 0
	for i, s := range list {
		if !s.IsTier() {
			count++
			if count == rank {
				return i
			}
		}
	}
	return len(list)
}

// MoveItem removes the element at from and reinserts it at to, where to is
// interpreted against the list after removal. It moves whichever slot variant
// sits at from, tier markers included. Out-of-bounds from returns the list
// unchanged.
func MoveItem(list []models.Slot, from, to int) []models.Slot {
	if from < 0 || from >= len(list) {
		return clone(list)
	}

	updated := clone(list)
	item := updated[from]
	updated = append(updated[:from], updated[from+1:]...)

	if to < 0 {
		to = 0
	}
	if to > len(updated) {
		to = len(updated)
	}

	updated = append(updated, models.Slot{})
	copy(updated[to+1:], updated[to:])
	updated[to] = item
	return updated
}

// UpdatePlayerRank moves the player slot at slotIndex so that its rank becomes
// newRank. A rank outside 1..PlayerCount fails with ErrInvalidRank and leaves
// the list untouched.
func UpdatePlayerRank(list []models.Slot, slotIndex, newRank int) ([]models.Slot, error) {
	total := PlayerCount(list)
	if newRank < 1 || newRank > total {
		return nil, fmt.Errorf("%w: rank %d not in 1..%d", ErrInvalidRank, newRank, total)
	}

	target := IndexForRank(list, newRank)
	return MoveItem(list, slotIndex, target), nil
}

// MoveTierToRank relocates the tier marker at tierIndex to sit immediately
// before the player currently holding aboveRank, or at the list end when
// aboveRank exceeds the player count.
func MoveTierToRank(list []models.Slot, tierIndex, aboveRank int) []models.Slot {
	target := IndexForRank(list, aboveRank)
	return MoveItem(list, tierIndex, target)
}

// RemovePlayer filters out the player slot matching playerID. Removing an
// absent id is a no-op; tier markers are never affected.
func RemovePlayer(list []models.Slot, playerID string) []models.Slot {
	out := make([]models.Slot, 0, len(list))
	for _, s := range list {
		if !s.IsTier() && s.Player.Player.PlayerID == playerID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// AddPlayer appends a player slot at the end of the list, taking the lowest
// current rank plus one. A player_id already present is rejected as a no-op;
// uniqueness is enforced here, not upstream.
func AddPlayer(list []models.Slot, player models.Player) []models.Slot {
	for _, s := range list {
		if !s.IsTier() && s.Player.Player.PlayerID == player.PlayerID {
			return clone(list)
		}
	}
	return append(clone(list), models.PlayerOf(player))
}

// InsertTier creates a tier marker with a fresh id and the given title. On a
// list with no existing tier it is inserted at the front; once any tier
// exists, new tiers append at the end. Callers wanting a specific position
// follow up with MoveTierToRank.
func InsertTier(list []models.Slot, title string) []models.Slot {
	tier := models.TierOf(models.TierMarker{
		ID:    uuid.NewString(),
		Title: title,
	})

	if TierCount(list) == 0 {
		out := make([]models.Slot, 0, len(list)+1)
		out = append(out, tier)
		return append(out, list...)
	}
	return append(clone(list), tier)
}

// NextTierTitle returns the default title for a new tier: "Tier N" where N is
// the current tier count plus one
func NextTierTitle(list []models.Slot) string {
	return fmt.Sprintf("Tier %d", TierCount(list)+1)
}

// DeleteTier filters out the tier marker with the matching id; no-op if absent
func DeleteTier(list []models.Slot, tierID string) []models.Slot {
	out := make([]models.Slot, 0, len(list))
	for _, s := range list {
		if s.IsTier() && s.Tier.ID == tierID {
			continue
		}
		out = append(out, s)
	}
	return out
}

func clone(list []models.Slot) []models.Slot {
	out := make([]models.Slot, len(list))
	copy(out, list)
	return out
}
