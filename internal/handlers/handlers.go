package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gridironhq/companion/internal/advisor"
	"github.com/gridironhq/companion/internal/draft"
	"github.com/gridironhq/companion/internal/importer"
	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
	"github.com/gridironhq/companion/internal/pubsub"
	"github.com/gridironhq/companion/internal/ranking"
	"github.com/gridironhq/companion/internal/sheets"
)

// PlayerDirectory is the catalog surface the handlers need; satisfied by the
// directory client
type PlayerDirectory interface {
	AllPlayers(ctx context.Context) ([]models.Player, error)
	PlayersByPosition(ctx context.Context, position models.Position, team string) ([]models.Player, error)
	StartSync(ctx context.Context) error
	GetADP(playerID string) (float64, bool)
}

// Advisor is the recommendation surface the handlers need
type Advisor interface {
	Compare(ctx context.Context, players []models.Player) (*advisor.Comparison, error)
	Evaluate(ctx context.Context, league advisor.LeagueSettings, candidates []advisor.KeeperCandidate) (*advisor.KeeperResponse, error)
}

// APIHandlers contains all API handler methods. Open editors and live draft
// sessions are held in memory, keyed by sheet id.
type APIHandlers struct {
	adapter   *sheets.Adapter
	directory PlayerDirectory
	advisor   Advisor
	pubsub    *pubsub.PubSub

	autoSaveDelay time.Duration

	mu       sync.Mutex
	editors  map[string]*sheets.Editor
	sessions map[string]*draft.Session
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(adapter *sheets.Adapter, dir PlayerDirectory, adv Advisor, ps *pubsub.PubSub) *APIHandlers {
	return &APIHandlers{
		adapter:       adapter,
		directory:     dir,
		advisor:       adv,
		pubsub:        ps,
		autoSaveDelay: sheets.DefaultAutoSaveDelay,
		editors:       make(map[string]*sheets.Editor),
		sessions:      make(map[string]*draft.Session),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ListSheets returns the cheat sheet index
func (h *APIHandlers) ListSheets(w http.ResponseWriter, r *http.Request) {
	index, err := h.adapter.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, index)
}

// CreateSheet creates and persists a new cheat sheet
func (h *APIHandlers) CreateSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sheet := h.adapter.CreateBlank()
	if req.Name != "" {
		sheet.Name = req.Name
	}

	if err := h.adapter.Save(r.Context(), sheet); err != nil {
		logger.Error("Failed to save new cheat sheet", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.pubsub.Publish(pubsub.SheetUpdated(sheet.ID))

	writeJSON(w, sheet)
}

// ImportSheet builds a cheat sheet from the bundled ranking list
func (h *APIHandlers) ImportSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sheet, err := importer.BuildCheatSheet(r.Context(), h.directory)
	if err != nil {
		logger.Error("Failed to import bundled rankings", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if err := h.adapter.Save(r.Context(), sheet); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.pubsub.Publish(pubsub.SheetUpdated(sheet.ID))

	writeJSON(w, sheet)
}

// GetSheet returns one cheat sheet by id
func (h *APIHandlers) GetSheet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	sheet, err := h.adapter.Load(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sheet == nil {
		http.Error(w, "Sheet not found", http.StatusNotFound)
		return
	}

	writeJSON(w, sheet)
}

// DeleteSheet removes a cheat sheet. An open editor is torn down without
// flushing so a stale auto-save cannot resurrect the sheet.
func (h *APIHandlers) DeleteSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	if e, ok := h.editors[req.ID]; ok {
		e.Close(r.Context(), false)
		delete(h.editors, req.ID)
	}
	delete(h.sessions, req.ID)
	h.mu.Unlock()

	if err := h.adapter.Remove(r.Context(), req.ID); err != nil {
		logger.Error("Failed to delete cheat sheet", "id", req.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.pubsub.Publish(pubsub.SheetDeleted(req.ID))

	writeJSON(w, map[string]bool{"ok": true})
}

// OpenEditor starts an edit session over a sheet. Reopening an already-open
// sheet returns the existing session's state.
func (h *APIHandlers) OpenEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	if e, ok := h.editors[req.ID]; ok {
		h.mu.Unlock()
		writeJSON(w, e.Snapshot())
		return
	}
	h.mu.Unlock()

	sheet, err := h.adapter.Load(r.Context(), req.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sheet == nil {
		http.Error(w, "Sheet not found", http.StatusNotFound)
		return
	}

	e := sheets.NewEditor(h.adapter, sheet, h.autoSaveDelay)

	h.mu.Lock()
	h.editors[req.ID] = e
	h.mu.Unlock()

	writeJSON(w, e.Snapshot())
}

// CloseEditor ends an edit session. With flush set, unsaved edits are
// written before the session is dropped.
func (h *APIHandlers) CloseEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID    string `json:"id"`
		Flush bool   `json:"flush"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, ok := h.editorFor(req.ID)
	if !ok {
		http.Error(w, "No open editor for sheet", http.StatusNotFound)
		return
	}

	// The session is only dropped after a successful close, so a failed
	// flush can be retried without losing the unsaved edits
	if err := e.Close(r.Context(), req.Flush); err != nil {
		logger.Error("Failed to flush editor on close", "id", req.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	delete(h.editors, req.ID)
	h.mu.Unlock()

	h.pubsub.Publish(pubsub.SheetUpdated(req.ID))

	writeJSON(w, map[string]bool{"ok": true})
}

func (h *APIHandlers) editorFor(id string) (*sheets.Editor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.editors[id]
	return e, ok
}

// EditSheet applies one ranking operation to an open editor and returns the
// updated sheet. Validation failures come back as 400 with no state change.
func (h *APIHandlers) EditSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
		Op string `json:"op"`

		Name      string         `json:"name,omitempty"`
		Player    *models.Player `json:"player,omitempty"`
		PlayerID  string         `json:"player_id,omitempty"`
		TierID    string         `json:"tier_id,omitempty"`
		Title     string         `json:"title,omitempty"`
		SlotIndex int            `json:"slot_index,omitempty"`
		TierIndex int            `json:"tier_index,omitempty"`
		Rank      int            `json:"rank,omitempty"`
		From      int            `json:"from,omitempty"`
		To        int            `json:"to,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, ok := h.editorFor(req.ID)
	if !ok {
		http.Error(w, "No open editor for sheet", http.StatusNotFound)
		return
	}

	switch req.Op {
	case "rename":
		e.Rename(req.Name)
	case "add_player":
		if req.Player == nil {
			http.Error(w, "Missing player", http.StatusBadRequest)
			return
		}
		e.AddPlayer(*req.Player)
	case "remove_player":
		e.RemovePlayer(req.PlayerID)
	case "update_rank":
		if err := e.UpdatePlayerRank(req.SlotIndex, req.Rank); err != nil {
			if errors.Is(err, ranking.ErrInvalidRank) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case "insert_tier":
		e.InsertTier(req.Title)
	case "move_tier":
		e.MoveTierToRank(req.TierIndex, req.Rank)
	case "delete_tier":
		e.DeleteTier(req.TierID)
	case "move_item":
		e.MoveItem(req.From, req.To)
	default:
		http.Error(w, fmt.Sprintf("Unknown op %q", req.Op), http.StatusBadRequest)
		return
	}

	h.pubsub.Publish(pubsub.SheetUpdated(req.ID))

	writeJSON(w, e.Snapshot())
}

// StartDraft opens a live draft session over a sheet. An open editor's
// current state wins over the stored copy.
func (h *APIHandlers) StartDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var sheet *models.CheatSheet
	if e, ok := h.editorFor(req.ID); ok {
		sheet = e.Snapshot()
	} else {
		var err error
		sheet, err = h.adapter.Load(r.Context(), req.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if sheet == nil {
		http.Error(w, "Sheet not found", http.StatusNotFound)
		return
	}

	session := draft.NewSession(sheet)

	h.mu.Lock()
	h.sessions[req.ID] = session
	h.mu.Unlock()

	writeJSON(w, session.Slots())
}

// ToggleDrafted flips a player's drafted flag in a live session
func (h *APIHandlers) ToggleDrafted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID       string `json:"id"`
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	session, ok := h.sessions[req.ID]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "No draft session for sheet", http.StatusNotFound)
		return
	}

	drafted, found := session.ToggleDrafted(req.PlayerID)
	if !found {
		http.Error(w, "Player not in sheet", http.StatusNotFound)
		return
	}

	h.pubsub.Publish(pubsub.DraftToggled(req.ID, req.PlayerID, drafted))

	writeJSON(w, map[string]any{"player_id": req.PlayerID, "drafted": drafted})
}

// DraftBoard returns the session's slot list after the requested filters
func (h *APIHandlers) DraftBoard(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	session, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "No draft session for sheet", http.StatusNotFound)
		return
	}

	hideDrafted := r.URL.Query().Get("hide_drafted") == "true"
	position := models.Position(r.URL.Query().Get("position"))
	if position != "" && !position.Valid() {
		http.Error(w, "Invalid position filter", http.StatusBadRequest)
		return
	}

	writeJSON(w, session.VisibleSlots(hideDrafted, position))
}

// ListPlayers returns catalog players, optionally filtered by position and
// team, each annotated with the cached average draft position when the
// analytics sync knows one. Catalog failures surface as 502.
func (h *APIHandlers) ListPlayers(w http.ResponseWriter, r *http.Request) {
	position := models.Position(r.URL.Query().Get("position"))
	team := r.URL.Query().Get("team")

	var players []models.Player
	var err error
	if position != "" {
		if !position.Valid() {
			http.Error(w, "Invalid position", http.StatusBadRequest)
			return
		}
		players, err = h.directory.PlayersByPosition(r.Context(), position, team)
	} else {
		players, err = h.directory.AllPlayers(r.Context())
	}
	if err != nil {
		logger.Error("Failed to fetch players from catalog", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	for i := range players {
		if adp, ok := h.directory.GetADP(players[i].PlayerID); ok {
			players[i].ADP = adp
		}
	}

	writeJSON(w, players)
}

// SyncCatalog asks the catalog service to refresh its data
func (h *APIHandlers) SyncCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.directory.StartSync(r.Context()); err != nil {
		logger.Error("Catalog sync failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]bool{"ok": true})
}

// ComparePlayers submits two or more players for an AI comparison
func (h *APIHandlers) ComparePlayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Players []models.Player `json:"players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmp, err := h.advisor.Compare(r.Context(), req.Players)
	if err != nil {
		if errors.Is(err, advisor.ErrTooFewPlayers) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("Comparison request failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, cmp)
}

// KeeperRecommendations submits league settings and keeper candidates for
// evaluation. Round/pick pairs are converted to overall pick numbers here.
func (h *APIHandlers) KeeperRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		League  advisor.LeagueSettings `json:"league"`
		Players []struct {
			Player models.Player `json:"player"`
			Round  int           `json:"round"`
			Pick   int           `json:"pick"`
			Meta   string        `json:"meta,omitempty"`
		} `json:"players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.League.Teams < 2 {
		http.Error(w, "League must have at least 2 teams", http.StatusBadRequest)
		return
	}
	if len(req.Players) == 0 {
		http.Error(w, "At least one keeper candidate is required", http.StatusBadRequest)
		return
	}

	candidates := make([]advisor.KeeperCandidate, 0, len(req.Players))
	for _, p := range req.Players {
		if p.Round < 1 || p.Pick < 1 || p.Pick > req.League.Teams {
			http.Error(w, "Round and pick must fit the league size", http.StatusBadRequest)
			return
		}
		candidates = append(candidates, advisor.KeeperCandidate{
			Player:        p.Player,
			KeeperOverall: advisor.ComputeOverall(p.Round, p.Pick, req.League.Teams),
			Meta:          p.Meta,
		})
	}

	resp, err := h.advisor.Evaluate(r.Context(), req.League, candidates)
	if err != nil {
		logger.Error("Keeper evaluation failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, resp)
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.pubsub.Subscribe()
	defer h.pubsub.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case event := <-eventChan:
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-time.After(30 * time.Second):
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// CloseAll tears down all open editors and sessions, flushing unsaved edits.
// Called on shutdown.
func (h *APIHandlers) CloseAll(ctx context.Context) {
	h.mu.Lock()
	editors := h.editors
	h.editors = make(map[string]*sheets.Editor)
	h.sessions = make(map[string]*draft.Session)
	h.mu.Unlock()

	for id, e := range editors {
		if err := e.Close(ctx, true); err != nil {
			logger.Error("Failed to flush editor on shutdown", "id", id, "error", err)
		}
	}
}
