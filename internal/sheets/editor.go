package sheets

import (
	"context"
	"sync"
	"time"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
	"github.com/gridironhq/companion/internal/ranking"
)

// DefaultAutoSaveDelay is the quiet period between the last edit and the
// auto-save write
const DefaultAutoSaveDelay = time.Second

// Editor is the edit-session controller for one cheat sheet. It owns the
// in-memory list, applies ranking operations under a lock, and arms the
// debounced saver after every mutation. The saver reads the then-current
// sheet when it fires, so coalesced edits are never lost to a stale snapshot.
type Editor struct {
	mu      sync.Mutex
	adapter *Adapter
	sheet   *models.CheatSheet
	saver   *Saver
}

// NewEditor opens an edit session over the given sheet
func NewEditor(adapter *Adapter, sheet *models.CheatSheet, delay time.Duration) *Editor {
	e := &Editor{
		adapter: adapter,
		sheet:   sheet,
	}
	e.saver = NewSaver(delay, e.flush)
	return e
}

// flush persists a snapshot of the current sheet. Auto-save failures are
// logged, never surfaced: interrupting an editing flow over a background
// write is worse than retrying on the next mutation.
func (e *Editor) flush() {
	snapshot := e.Snapshot()
	if err := e.adapter.Save(context.Background(), snapshot); err != nil {
		logger.Error("Auto-save failed", "sheet_id", snapshot.ID, "error", err)
	}
}

// Snapshot returns a deep copy of the current sheet state
func (e *Editor) Snapshot() *models.CheatSheet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sheet.Clone()
}

// SheetID returns the id of the sheet under edit
func (e *Editor) SheetID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sheet.ID
}

// Rename updates the sheet's display name
func (e *Editor) Rename(name string) {
	e.mu.Lock()
	e.sheet.Name = name
	e.mu.Unlock()
	e.saver.Arm()
}

// AddPlayer appends a player at the lowest rank; duplicates are a no-op
func (e *Editor) AddPlayer(p models.Player) {
	e.mu.Lock()
	e.sheet.Players = ranking.AddPlayer(e.sheet.Players, p)
	e.mu.Unlock()
	e.saver.Arm()
}

// RemovePlayer drops the player with the given id; absent ids are a no-op
func (e *Editor) RemovePlayer(playerID string) {
	e.mu.Lock()
	e.sheet.Players = ranking.RemovePlayer(e.sheet.Players, playerID)
	e.mu.Unlock()
	e.saver.Arm()
}

// UpdatePlayerRank moves the slot at slotIndex to the given rank. On a rank
// validation failure the sheet is left untouched and no save is armed.
func (e *Editor) UpdatePlayerRank(slotIndex, newRank int) error {
	e.mu.Lock()
	updated, err := ranking.UpdatePlayerRank(e.sheet.Players, slotIndex, newRank)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.sheet.Players = updated
	e.mu.Unlock()
	e.saver.Arm()
	return nil
}

// InsertTier adds a tier marker with the given title, or the next default
// "Tier N" title when empty
func (e *Editor) InsertTier(title string) {
	e.mu.Lock()
	if title == "" {
		title = ranking.NextTierTitle(e.sheet.Players)
	}
	e.sheet.Players = ranking.InsertTier(e.sheet.Players, title)
	e.mu.Unlock()
	e.saver.Arm()
}

// MoveTierToRank relocates the tier at tierIndex above the given rank
func (e *Editor) MoveTierToRank(tierIndex, aboveRank int) {
	e.mu.Lock()
	e.sheet.Players = ranking.MoveTierToRank(e.sheet.Players, tierIndex, aboveRank)
	e.mu.Unlock()
	e.saver.Arm()
}

// DeleteTier drops the tier marker with the given id
func (e *Editor) DeleteTier(tierID string) {
	e.mu.Lock()
	e.sheet.Players = ranking.DeleteTier(e.sheet.Players, tierID)
	e.mu.Unlock()
	e.saver.Arm()
}

// MoveItem moves any slot from one index to another (drag-and-drop reorder)
func (e *Editor) MoveItem(from, to int) {
	e.mu.Lock()
	e.sheet.Players = ranking.MoveItem(e.sheet.Players, from, to)
	e.mu.Unlock()
	e.saver.Arm()
}

// Close tears down the edit session. With flush set, unsaved edits are
// written synchronously first; a failed flush leaves the session intact so
// the caller can retry. Only a successful close cancels the pending debounce
// timer, so a stale write cannot race a subsequent load. A save already in
// flight completes fire-and-forget.
func (e *Editor) Close(ctx context.Context, flush bool) error {
	if flush && e.saver.Pending() {
		if err := e.adapter.Save(ctx, e.Snapshot()); err != nil {
			return err
		}
	}
	e.saver.Close()
	return nil
}
