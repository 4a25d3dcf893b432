package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gridironhq/companion/internal/advisor"
	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
	"github.com/gridironhq/companion/internal/pubsub"
	"github.com/gridironhq/companion/internal/sheets"
	"github.com/gridironhq/companion/internal/store"
)

func init() {
	logger.Init()
}

type fakeDirectory struct {
	players []models.Player
	adp     map[string]float64
	err     error
	synced  bool
}

func (f *fakeDirectory) AllPlayers(ctx context.Context) ([]models.Player, error) {
	return f.players, f.err
}

func (f *fakeDirectory) PlayersByPosition(ctx context.Context, position models.Position, team string) ([]models.Player, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Player
	for _, p := range f.players {
		if p.Position == position {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDirectory) StartSync(ctx context.Context) error {
	f.synced = true
	return f.err
}

func (f *fakeDirectory) GetADP(playerID string) (float64, bool) {
	v, ok := f.adp[playerID]
	return v, ok
}

type fakeAdvisor struct {
	comparison *advisor.Comparison
	keeper     *advisor.KeeperResponse
	err        error
}

func (f *fakeAdvisor) Compare(ctx context.Context, players []models.Player) (*advisor.Comparison, error) {
	if len(players) < 2 {
		return nil, advisor.ErrTooFewPlayers
	}
	return f.comparison, f.err
}

func (f *fakeAdvisor) Evaluate(ctx context.Context, league advisor.LeagueSettings, candidates []advisor.KeeperCandidate) (*advisor.KeeperResponse, error) {
	return f.keeper, f.err
}

func newTestHandlers(dir *fakeDirectory, adv *fakeAdvisor) *APIHandlers {
	if dir == nil {
		dir = &fakeDirectory{}
	}
	if adv == nil {
		adv = &fakeAdvisor{}
	}
	h := NewAPIHandlers(sheets.NewAdapter(store.NewMemoryStore()), dir, adv, pubsub.New())
	h.autoSaveDelay = 10 * time.Millisecond
	return h
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func getURL(handler http.HandlerFunc, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, w.Body.String())
	}
	return v
}

func createSheet(t *testing.T, h *APIHandlers, name string) models.CheatSheet {
	t.Helper()
	w := postJSON(t, h.CreateSheet, map[string]string{"name": name})
	if w.Code != http.StatusOK {
		t.Fatalf("CreateSheet returned %d: %s", w.Code, w.Body.String())
	}
	return decode[models.CheatSheet](t, w)
}

func TestCreateAndListSheets(t *testing.T) {
	h := newTestHandlers(nil, nil)

	sheet := createSheet(t, h, "My Board")
	if sheet.ID == "" || sheet.Name != "My Board" {
		t.Fatalf("unexpected sheet: %+v", sheet)
	}

	w := getURL(h.ListSheets, "/api/sheets")
	index := decode[[]models.SheetSummary](t, w)
	if len(index) != 1 || index[0].ID != sheet.ID {
		t.Errorf("expected the new sheet in the index, got %+v", index)
	}
}

func TestGetSheetNotFound(t *testing.T) {
	h := newTestHandlers(nil, nil)

	w := getURL(h.GetSheet, "/api/sheet?id=ghost")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = getURL(h.GetSheet, "/api/sheet")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing id must be 400, got %d", w.Code)
	}
}

func TestDeleteSheet(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Doomed")

	w := postJSON(t, h.DeleteSheet, map[string]string{"id": sheet.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("DeleteSheet returned %d: %s", w.Code, w.Body.String())
	}

	w = getURL(h.GetSheet, "/api/sheet?id="+sheet.ID)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted sheet must 404, got %d", w.Code)
	}
}

func TestEditorLifecycle(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Editing")

	w := postJSON(t, h.OpenEditor, map[string]string{"id": sheet.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("OpenEditor returned %d: %s", w.Code, w.Body.String())
	}

	player := models.Player{PlayerID: "p1", FirstName: "Saquon", LastName: "Barkley", Team: "PHI", Position: models.PositionRB}
	w = postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "add_player", "player": player})
	if w.Code != http.StatusOK {
		t.Fatalf("add_player returned %d: %s", w.Code, w.Body.String())
	}
	updated := decode[models.CheatSheet](t, w)
	if len(updated.Players) != 1 {
		t.Fatalf("expected 1 slot after add, got %d", len(updated.Players))
	}

	w = postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "insert_tier"})
	if w.Code != http.StatusOK {
		t.Fatalf("insert_tier returned %d: %s", w.Code, w.Body.String())
	}
	updated = decode[models.CheatSheet](t, w)
	if !updated.Players[0].IsTier() || updated.Players[0].Tier.Title != "Tier 1" {
		t.Errorf("tierless sheet gets its first tier on top, got %+v", updated.Players)
	}

	w = postJSON(t, h.CloseEditor, map[string]any{"id": sheet.ID, "flush": true})
	if w.Code != http.StatusOK {
		t.Fatalf("CloseEditor returned %d: %s", w.Code, w.Body.String())
	}

	// The flush must have persisted the edits
	w = getURL(h.GetSheet, "/api/sheet?id="+sheet.ID)
	persisted := decode[models.CheatSheet](t, w)
	if len(persisted.Players) != 2 {
		t.Errorf("expected flushed edits in the store, got %d slots", len(persisted.Players))
	}
}

// flakyStore flips writes between failing and working
type flakyStore struct {
	store.Store
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("store down")
	}
	return f.Store.Set(ctx, key, value)
}

func TestCloseEditorKeepsSessionOnFailedFlush(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemoryStore()}
	h := NewAPIHandlers(sheets.NewAdapter(fs), &fakeDirectory{}, &fakeAdvisor{}, pubsub.New())
	h.autoSaveDelay = time.Hour

	sheet := createSheet(t, h, "Flaky")
	postJSON(t, h.OpenEditor, map[string]string{"id": sheet.ID})

	player := models.Player{PlayerID: "p1", FirstName: "Garrett", LastName: "Wilson", Team: "NYJ", Position: models.PositionWR}
	postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "add_player", "player": player})

	fs.setFail(true)
	w := postJSON(t, h.CloseEditor, map[string]any{"id": sheet.ID, "flush": true})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failed flush must be 500, got %d", w.Code)
	}

	// The session must survive the failed flush so the close can be retried
	fs.setFail(false)
	w = postJSON(t, h.CloseEditor, map[string]any{"id": sheet.ID, "flush": true})
	if w.Code != http.StatusOK {
		t.Fatalf("retried close returned %d: %s", w.Code, w.Body.String())
	}

	w = getURL(h.GetSheet, "/api/sheet?id="+sheet.ID)
	persisted := decode[models.CheatSheet](t, w)
	if len(persisted.Players) != 1 {
		t.Errorf("retried flush must persist the edit, got %d slots", len(persisted.Players))
	}
}

func TestEditSheetInvalidRankIs400(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Ranks")
	postJSON(t, h.OpenEditor, map[string]string{"id": sheet.ID})

	player := models.Player{PlayerID: "p1", FirstName: "Nico", LastName: "Collins", Team: "HOU", Position: models.PositionWR}
	postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "add_player", "player": player})

	w := postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "update_rank", "slot_index": 0, "rank": 50})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range rank must be 400, got %d", w.Code)
	}
}

func TestEditSheetUnknownOpAndClosedEditor(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Ops")

	w := postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "rename", "name": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("edit without an open editor must be 404, got %d", w.Code)
	}

	postJSON(t, h.OpenEditor, map[string]string{"id": sheet.ID})
	w = postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "explode"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown op must be 400, got %d", w.Code)
	}
}

func TestDraftFlow(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Draft Day")
	postJSON(t, h.OpenEditor, map[string]string{"id": sheet.ID})

	rb := models.Player{PlayerID: "rb1", FirstName: "Bijan", LastName: "Robinson", Team: "ATL", Position: models.PositionRB}
	wr := models.Player{PlayerID: "wr1", FirstName: "Puka", LastName: "Nacua", Team: "LAR", Position: models.PositionWR}
	postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "add_player", "player": rb})
	postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "add_player", "player": wr})

	w := postJSON(t, h.StartDraft, map[string]string{"id": sheet.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("StartDraft returned %d: %s", w.Code, w.Body.String())
	}
	board := decode[[]models.Slot](t, w)
	if len(board) != 2 {
		t.Fatalf("expected 2 slots on the board, got %d", len(board))
	}

	w = postJSON(t, h.ToggleDrafted, map[string]string{"id": sheet.ID, "player_id": "rb1"})
	if w.Code != http.StatusOK {
		t.Fatalf("ToggleDrafted returned %d: %s", w.Code, w.Body.String())
	}

	w = getURL(h.DraftBoard, "/api/draft/board?id="+sheet.ID+"&hide_drafted=true")
	board = decode[[]models.Slot](t, w)
	if len(board) != 1 || board[0].Player.Player.PlayerID != "wr1" {
		t.Errorf("drafted player must be hidden, got %+v", board)
	}

	w = getURL(h.DraftBoard, "/api/draft/board?id="+sheet.ID+"&position=RB")
	board = decode[[]models.Slot](t, w)
	if len(board) != 1 || board[0].Player.Player.PlayerID != "rb1" {
		t.Errorf("position filter must keep only RBs, got %+v", board)
	}

	w = postJSON(t, h.ToggleDrafted, map[string]string{"id": sheet.ID, "player_id": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown player must be 404, got %d", w.Code)
	}
}

func TestDraftBoardInvalidPosition(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Filters")
	postJSON(t, h.StartDraft, map[string]string{"id": sheet.ID})

	w := getURL(h.DraftBoard, "/api/draft/board?id="+sheet.ID+"&position=GOALIE")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid position must be 400, got %d", w.Code)
	}
}

func TestListPlayers(t *testing.T) {
	dir := &fakeDirectory{players: []models.Player{
		{PlayerID: "p1", Position: models.PositionQB},
		{PlayerID: "p2", Position: models.PositionRB},
	}}
	h := newTestHandlers(dir, nil)

	w := getURL(h.ListPlayers, "/api/players")
	players := decode[[]models.Player](t, w)
	if len(players) != 2 {
		t.Errorf("expected full catalog, got %d", len(players))
	}

	w = getURL(h.ListPlayers, "/api/players?position=QB")
	players = decode[[]models.Player](t, w)
	if len(players) != 1 || players[0].PlayerID != "p1" {
		t.Errorf("expected only QBs, got %+v", players)
	}

	w = getURL(h.ListPlayers, "/api/players?position=GOALIE")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid position must be 400, got %d", w.Code)
	}
}

func TestListPlayersCarriesADP(t *testing.T) {
	dir := &fakeDirectory{
		players: []models.Player{
			{PlayerID: "p1", Position: models.PositionRB},
			{PlayerID: "p2", Position: models.PositionWR},
		},
		adp: map[string]float64{"p1": 3.2},
	}
	h := newTestHandlers(dir, nil)

	w := getURL(h.ListPlayers, "/api/players")
	players := decode[[]models.Player](t, w)
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(players))
	}
	if players[0].ADP != 3.2 {
		t.Errorf("synced player must carry its ADP, got %v", players[0].ADP)
	}
	if players[1].ADP != 0 {
		t.Errorf("player without ADP data must stay zero, got %v", players[1].ADP)
	}
}

func TestListPlayersCatalogDownIs502(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("connection refused")}
	h := newTestHandlers(dir, nil)

	w := getURL(h.ListPlayers, "/api/players")
	if w.Code != http.StatusBadGateway {
		t.Errorf("catalog failure must be 502, got %d", w.Code)
	}
}

func TestComparePlayers(t *testing.T) {
	adv := &fakeAdvisor{comparison: &advisor.Comparison{Recommendation: "Jefferson", Reasoning: "Volume."}}
	h := newTestHandlers(nil, adv)

	players := []models.Player{
		{PlayerID: "p1", Position: models.PositionWR},
		{PlayerID: "p2", Position: models.PositionWR},
	}
	w := postJSON(t, h.ComparePlayers, map[string]any{"players": players})
	if w.Code != http.StatusOK {
		t.Fatalf("ComparePlayers returned %d: %s", w.Code, w.Body.String())
	}
	cmp := decode[advisor.Comparison](t, w)
	if cmp.Recommendation != "Jefferson" {
		t.Errorf("unexpected comparison: %+v", cmp)
	}

	w = postJSON(t, h.ComparePlayers, map[string]any{"players": players[:1]})
	if w.Code != http.StatusBadRequest {
		t.Errorf("single-player comparison must be 400, got %d", w.Code)
	}
}

func TestKeeperRecommendationsValidation(t *testing.T) {
	adv := &fakeAdvisor{keeper: &advisor.KeeperResponse{Summary: "Keep them all."}}
	h := newTestHandlers(nil, adv)

	league := advisor.LeagueSettings{Teams: 12, Format: "ppr", QBSlots: 1, YourSlot: 4, KeepersAllowed: 2}
	candidate := map[string]any{
		"player": models.Player{PlayerID: "p1", Position: models.PositionRB},
		"round":  3,
		"pick":   4,
	}

	w := postJSON(t, h.KeeperRecommendations, map[string]any{"league": league, "players": []any{candidate}})
	if w.Code != http.StatusOK {
		t.Fatalf("KeeperRecommendations returned %d: %s", w.Code, w.Body.String())
	}
	resp := decode[advisor.KeeperResponse](t, w)
	if resp.Summary != "Keep them all." {
		t.Errorf("unexpected response: %+v", resp)
	}

	w = postJSON(t, h.KeeperRecommendations, map[string]any{"league": league, "players": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty candidate list must be 400, got %d", w.Code)
	}

	bad := map[string]any{"player": models.Player{PlayerID: "p1"}, "round": 2, "pick": 13}
	w = postJSON(t, h.KeeperRecommendations, map[string]any{"league": league, "players": []any{bad}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("pick beyond league size must be 400, got %d", w.Code)
	}
}

func TestSyncCatalog(t *testing.T) {
	dir := &fakeDirectory{}
	h := newTestHandlers(dir, nil)

	w := postJSON(t, h.SyncCatalog, map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("SyncCatalog returned %d: %s", w.Code, w.Body.String())
	}
	if !dir.synced {
		t.Error("sync must reach the directory client")
	}
}

func TestCloseAllFlushesEditors(t *testing.T) {
	h := newTestHandlers(nil, nil)
	sheet := createSheet(t, h, "Shutdown")
	postJSON(t, h.OpenEditor, map[string]string{"id": sheet.ID})

	player := models.Player{PlayerID: "p1", FirstName: "Josh", LastName: "Allen", Team: "BUF", Position: models.PositionQB}
	postJSON(t, h.EditSheet, map[string]any{"id": sheet.ID, "op": "add_player", "player": player})

	h.CloseAll(context.Background())

	w := getURL(h.GetSheet, "/api/sheet?id="+sheet.ID)
	persisted := decode[models.CheatSheet](t, w)
	if len(persisted.Players) != 1 {
		t.Errorf("shutdown must flush unsaved edits, got %d slots", len(persisted.Players))
	}
}
