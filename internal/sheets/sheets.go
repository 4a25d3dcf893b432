// Package sheets maps cheat sheets onto the key-value store and owns the
// edit-session lifecycle, including the debounced auto-save.
//
// Two keys per sheet collection: "cheatSheet-{id}" holds the full sheet and is
// the source of truth; "cheatSheets" is the listing index and holds summary
// metadata only. Sheets are identified by id everywhere, never by name.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
	"github.com/gridironhq/companion/internal/store"
)

const (
	indexKey       = "cheatSheets"
	sheetKeyPrefix = "cheatSheet-"
	defaultName    = "Untitled"
)

func sheetKey(id string) string {
	return sheetKeyPrefix + id
}

// Adapter persists cheat sheets to the key-value store
type Adapter struct {
	kv store.Store
}

// NewAdapter creates a persistence adapter over the given store
func NewAdapter(kv store.Store) *Adapter {
	return &Adapter{kv: kv}
}

// CreateBlank allocates a new sheet with a fresh id, default name, and empty
// list. It does not persist: creation and first save are separate steps.
func (a *Adapter) CreateBlank() *models.CheatSheet {
	return &models.CheatSheet{
		ID:      uuid.NewString(),
		Name:    defaultName,
		Players: []models.Slot{},
	}
}

// Load reads the sheet stored under id. An absent key or a value that fails
// to parse returns (nil, nil): read failures are logged and swallowed so the
// caller proceeds with defaults instead of crashing.
func (a *Adapter) Load(ctx context.Context, id string) (*models.CheatSheet, error) {
	data, err := a.kv.Get(ctx, sheetKey(id))
	if err != nil {
		if err != store.ErrNotFound {
			logger.Error("Failed to read cheat sheet from store", "id", id, "error", err)
		}
		return nil, nil
	}

	var sheet models.CheatSheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		logger.Error("Failed to parse stored cheat sheet", "id", id, "error", err)
		return nil, nil
	}

	if sheet.Players == nil {
		sheet.Players = []models.Slot{}
	}
	return &sheet, nil
}

// Save writes the full sheet under its own key and rewrites the sheet's entry
// in the listing index, replacing in place when present and appending when new
func (a *Adapter) Save(ctx context.Context, sheet *models.CheatSheet) error {
	sheet.Modified = time.Now().UTC()

	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("failed to marshal cheat sheet %s: %w", sheet.ID, err)
	}
	if err := a.kv.Set(ctx, sheetKey(sheet.ID), data); err != nil {
		return fmt.Errorf("failed to write cheat sheet %s: %w", sheet.ID, err)
	}

	return a.updateIndex(ctx, summarize(sheet))
}

// List returns the listing index. Read failures come back as an empty list.
func (a *Adapter) List(ctx context.Context) ([]models.SheetSummary, error) {
	data, err := a.kv.Get(ctx, indexKey)
	if err != nil {
		if err != store.ErrNotFound {
			logger.Error("Failed to read cheat sheet index", "error", err)
		}
		return []models.SheetSummary{}, nil
	}

	var index []models.SheetSummary
	if err := json.Unmarshal(data, &index); err != nil {
		logger.Error("Failed to parse cheat sheet index", "error", err)
		return []models.SheetSummary{}, nil
	}
	return index, nil
}

// Remove deletes the sheet with the given id: both its record and its index
// entry. Removing an unknown id only rewrites the index.
func (a *Adapter) Remove(ctx context.Context, id string) error {
	if err := a.kv.Delete(ctx, sheetKey(id)); err != nil {
		return fmt.Errorf("failed to delete cheat sheet %s: %w", id, err)
	}

	index, _ := a.List(ctx)
	filtered := make([]models.SheetSummary, 0, len(index))
	for _, entry := range index {
		if entry.ID != id {
			filtered = append(filtered, entry)
		}
	}
	return a.writeIndex(ctx, filtered)
}

func (a *Adapter) updateIndex(ctx context.Context, entry models.SheetSummary) error {
	index, _ := a.List(ctx)

	replaced := false
	for i := range index {
		if index[i].ID == entry.ID {
			index[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, entry)
	}

	return a.writeIndex(ctx, index)
}

func (a *Adapter) writeIndex(ctx context.Context, index []models.SheetSummary) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal cheat sheet index: %w", err)
	}
	if err := a.kv.Set(ctx, indexKey, data); err != nil {
		return fmt.Errorf("failed to write cheat sheet index: %w", err)
	}
	return nil
}

func summarize(sheet *models.CheatSheet) models.SheetSummary {
	count := 0
	for _, s := range sheet.Players {
		if !s.IsTier() {
			count++
		}
	}
	return models.SheetSummary{
		ID:          sheet.ID,
		Name:        sheet.Name,
		PlayerCount: count,
		Modified:    sheet.Modified,
	}
}
