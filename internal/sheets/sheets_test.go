package sheets

import (
	"bytes"
	"context"
	"testing"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
	"github.com/gridironhq/companion/internal/ranking"
	"github.com/gridironhq/companion/internal/store"
)

func init() {
	logger.Init()
}

func testPlayer(id, first, last string) models.Player {
	return models.Player{
		PlayerID:  id,
		FirstName: first,
		LastName:  last,
		Team:      "KC",
		Position:  models.PositionWR,
	}
}

func TestCreateBlank(t *testing.T) {
	a := NewAdapter(store.NewMemoryStore())

	sheet := a.CreateBlank()
	if sheet.ID == "" {
		t.Error("blank sheet must get an id")
	}
	if sheet.Name != "Untitled" {
		t.Errorf("expected default name Untitled, got %q", sheet.Name)
	}
	if len(sheet.Players) != 0 {
		t.Errorf("expected empty list, got %d slots", len(sheet.Players))
	}

	// Creation does not persist: the listing stays empty until the first save
	index, err := a.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(index) != 0 {
		t.Errorf("expected empty index before first save, got %d entries", len(index))
	}

	other := a.CreateBlank()
	if other.ID == sheet.ID {
		t.Error("blank sheets must get distinct ids")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	a := NewAdapter(store.NewMemoryStore())
	ctx := context.Background()

	sheet := a.CreateBlank()
	sheet.Name = "My Rankings"
	sheet.Players = ranking.InsertTier(nil, "Tier 1")
	sheet.Players = ranking.AddPlayer(sheet.Players, testPlayer("p1", "Justin", "Jefferson"))
	sheet.Players = ranking.AddPlayer(sheet.Players, testPlayer("p2", "Christian", "McCaffrey"))

	if err := a.Save(ctx, sheet); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := a.Load(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for a saved sheet")
	}
	if loaded.Name != "My Rankings" {
		t.Errorf("name: expected My Rankings, got %q", loaded.Name)
	}
	if len(loaded.Players) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(loaded.Players))
	}
	if !loaded.Players[0].IsTier() || loaded.Players[0].Tier.Title != "Tier 1" {
		t.Errorf("slot 0 should be Tier 1, got %+v", loaded.Players[0])
	}
	if loaded.Players[1].IsTier() || loaded.Players[1].Player.Player.PlayerID != "p1" {
		t.Errorf("slot 1 should be player p1, got %+v", loaded.Players[1])
	}
	if loaded.Modified.IsZero() {
		t.Error("Save must stamp the modified time")
	}
}

func TestLoadAbsentReturnsNil(t *testing.T) {
	a := NewAdapter(store.NewMemoryStore())

	sheet, err := a.Load(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("absent sheet must not error, got %v", err)
	}
	if sheet != nil {
		t.Errorf("expected nil sheet, got %+v", sheet)
	}
}

func TestLoadCorruptValueReturnsNil(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()
	kv.Set(ctx, "cheatSheet-bad", []byte(`{not json`))

	a := NewAdapter(kv)
	sheet, err := a.Load(ctx, "bad")
	if err != nil {
		t.Fatalf("corrupt value must be swallowed, got %v", err)
	}
	if sheet != nil {
		t.Errorf("expected nil sheet for corrupt value, got %+v", sheet)
	}
}

func TestSaveUpdatesIndexInPlace(t *testing.T) {
	a := NewAdapter(store.NewMemoryStore())
	ctx := context.Background()

	first := a.CreateBlank()
	first.Name = "Sheet A"
	second := a.CreateBlank()
	second.Name = "Sheet B"

	if err := a.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := a.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Re-saving the first sheet must replace its entry, not append a duplicate
	first.Name = "Sheet A v2"
	first.Players = ranking.AddPlayer(first.Players, testPlayer("p1", "Ja'Marr", "Chase"))
	if err := a.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	index, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 index entries, got %d", len(index))
	}
	if index[0].ID != first.ID || index[0].Name != "Sheet A v2" {
		t.Errorf("index entry not replaced in place: %+v", index[0])
	}
	if index[0].PlayerCount != 1 {
		t.Errorf("index must carry the player count, got %d", index[0].PlayerCount)
	}
}

func TestIndexHoldsSummariesOnly(t *testing.T) {
	kv := store.NewMemoryStore()
	a := NewAdapter(kv)
	ctx := context.Background()

	sheet := a.CreateBlank()
	sheet.Players = ranking.AddPlayer(nil, testPlayer("p1", "Saquon", "Barkley"))
	if err := a.Save(ctx, sheet); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := kv.Get(ctx, "cheatSheets")
	if err != nil {
		t.Fatalf("index read failed: %v", err)
	}
	// The slot array lives only in the per-sheet record
	if bytes.Contains(raw, []byte(`"players"`)) || bytes.Contains(raw, []byte(`"player_id"`)) {
		t.Errorf("index must not duplicate the slot array: %s", raw)
	}
}

func TestRemoveDeletesRecordAndIndexEntry(t *testing.T) {
	a := NewAdapter(store.NewMemoryStore())
	ctx := context.Background()

	keep := a.CreateBlank()
	keep.Name = "Keep"
	drop := a.CreateBlank()
	drop.Name = "Drop"
	a.Save(ctx, keep)
	a.Save(ctx, drop)

	if err := a.Remove(ctx, drop.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if sheet, _ := a.Load(ctx, drop.ID); sheet != nil {
		t.Errorf("removed sheet still loads: %+v", sheet)
	}

	index, _ := a.List(ctx)
	if len(index) != 1 || index[0].ID != keep.ID {
		t.Errorf("expected only the kept sheet in the index, got %+v", index)
	}
}

func TestRemoveIsIDKeyed(t *testing.T) {
	// Two sheets sharing a name must not collide: deletion is keyed by id
	a := NewAdapter(store.NewMemoryStore())
	ctx := context.Background()

	one := a.CreateBlank()
	one.Name = "Draft Day"
	two := a.CreateBlank()
	two.Name = "Draft Day"
	a.Save(ctx, one)
	a.Save(ctx, two)

	if err := a.Remove(ctx, one.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if sheet, _ := a.Load(ctx, two.ID); sheet == nil {
		t.Error("removing one sheet deleted its same-named sibling")
	}
	index, _ := a.List(ctx)
	if len(index) != 1 || index[0].ID != two.ID {
		t.Errorf("expected sibling to survive in the index, got %+v", index)
	}
}
