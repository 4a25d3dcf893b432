// Package directory is the HTTP client for the remote player catalog. It
// caches the full player list in memory with a TTL and layers an ADP map on
// top, fed by the analytics sync.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
)

// DefaultCacheTTL is how long a fetched player list is served from memory
// before the next call refetches
const DefaultCacheTTL = 5 * time.Minute

// Config holds the catalog connection settings, populated from the
// environment in main
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	CacheTTL     time.Duration
}

// Client fetches player records from the catalog service
type Client struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration

	mu        sync.RWMutex
	players   []models.Player
	fetchedAt time.Time
	adp       map[string]float64
}

// NewClient creates a catalog client. With client credentials configured the
// underlying transport fetches and refreshes OAuth2 tokens on its own;
// otherwise requests go out unauthenticated.
func NewClient(cfg Config) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = 30 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		ttl:        ttl,
		adp:        make(map[string]float64),
	}
}

// AllPlayers returns the full catalog, served from cache within the TTL
func (c *Client) AllPlayers(ctx context.Context) ([]models.Player, error) {
	c.mu.RLock()
	if c.players != nil && time.Since(c.fetchedAt) < c.ttl {
		cached := make([]models.Player, len(c.players))
		copy(cached, c.players)
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	players, err := c.fetchPlayers(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.players = players
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	out := make([]models.Player, len(players))
	copy(out, players)
	return out, nil
}

// PlayersByPosition returns catalog players at the given position, optionally
// narrowed to one team. Filtering happens client-side over the cached list.
func (c *Client) PlayersByPosition(ctx context.Context, position models.Position, team string) ([]models.Player, error) {
	all, err := c.AllPlayers(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Player, 0, len(all))
	for _, p := range all {
		if p.Position != position {
			continue
		}
		if team != "" && !strings.EqualFold(p.Team, team) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// FindPlayer looks a player up by exact (first, last, team, position) tuple.
// Returns false when no catalog entry matches.
func (c *Client) FindPlayer(ctx context.Context, first, last, team string, position models.Position) (models.Player, bool, error) {
	all, err := c.AllPlayers(ctx)
	if err != nil {
		return models.Player{}, false, err
	}

	for _, p := range all {
		if strings.EqualFold(p.FirstName, first) &&
			strings.EqualFold(p.LastName, last) &&
			strings.EqualFold(p.Team, team) &&
			p.Position == position {
			return p, true, nil
		}
	}
	return models.Player{}, false, nil
}

// StartSync asks the catalog service to refresh its upstream data, then drops
// the local cache so the next read refetches
func (c *Client) StartSync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start-sync", nil)
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog sync request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("catalog sync returned status %d", resp.StatusCode)
	}

	c.Invalidate()
	return nil
}

// Invalidate drops the cached player list
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.players = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// SetADP replaces the average-draft-position map. Called by the analytics
// sync loop.
func (c *Client) SetADP(adp map[string]float64) {
	copied := make(map[string]float64, len(adp))
	for id, v := range adp {
		copied[id] = v
	}

	c.mu.Lock()
	c.adp = copied
	c.mu.Unlock()

	logger.Debug("ADP cache updated", "players", len(copied))
}

// GetADP returns the cached average draft position for a player, if known
func (c *Client) GetADP(playerID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.adp[playerID]
	return v, ok
}

func (c *Client) fetchPlayers(ctx context.Context) ([]models.Player, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/players", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var players []models.Player
	if err := json.NewDecoder(resp.Body).Decode(&players); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	logger.Debug("Fetched player catalog", "players", len(players))
	return players, nil
}
