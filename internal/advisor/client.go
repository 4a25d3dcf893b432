// Package advisor is the HTTP client for the AI recommendation service:
// head-to-head player comparisons and keeper-value evaluations.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/models"
)

var (
	// ErrTooFewPlayers rejects comparison requests below the two-player minimum
	ErrTooFewPlayers = fmt.Errorf("at least two players are required for a comparison")

	recommendationPattern = regexp.MustCompile(`(?i)1\.\s?\*\*Recommendation\*\*:?\s?(.*)`)
	reasoningPattern      = regexp.MustCompile(`(?is)2\.\s?\*\*Reasoning\*\*:?\s?(.*)`)
)

// Comparison is the parsed result of a player comparison. When the service's
// free text does not match the expected shape, Recommendation carries the raw
// text and Reasoning is empty.
type Comparison struct {
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
	Raw            string `json:"raw"`
}

// LeagueSettings describes the keeper league for an evaluation request
type LeagueSettings struct {
	Teams          int    `json:"teams"`
	Format         string `json:"format"`
	QBSlots        int    `json:"qb_slots"`
	YourSlot       int    `json:"your_slot"`
	KeepersAllowed int    `json:"keepers_allowed"`
}

// KeeperCandidate is one player under keeper consideration. KeeperOverall is
// the overall pick number the keeper would cost.
type KeeperCandidate struct {
	Player        models.Player `json:"player"`
	KeeperOverall int           `json:"keeper_overall"`
	Meta          string        `json:"meta,omitempty"`
}

// KeeperEntry is one recommended player in the keep or bench bucket
type KeeperEntry struct {
	PlayerID      string  `json:"player_id"`
	Name          string  `json:"name"`
	EstimatedADP  float64 `json:"estimated_adp"`
	ValueVsADP    float64 `json:"value_vs_adp"`
	CapitalWeight float64 `json:"capital_weight,omitempty"`
	AdjustedValue float64 `json:"adjusted_value,omitempty"`
	RiskNotes     string  `json:"risk_notes,omitempty"`
	Reasoning     string  `json:"reasoning"`
}

// KeeperRecommendations splits candidates into keep and bench buckets
type KeeperRecommendations struct {
	Keep  []KeeperEntry `json:"keep"`
	Bench []KeeperEntry `json:"bench"`
}

// KeeperResponse is the structured keeper evaluation result
type KeeperResponse struct {
	Assumptions     []string              `json:"assumptions,omitempty"`
	Recommendations KeeperRecommendations `json:"recommendations"`
	Summary         string                `json:"summary,omitempty"`
}

// ComputeOverall converts a round and in-round pick to an overall pick number
func ComputeOverall(round, pick, teams int) int {
	return (round-1)*teams + pick
}

// Client talks to the recommendation service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a recommendation client against the given base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Compare submits two or more players and parses the free-text answer into a
// short recommendation and a long reasoning section
func (c *Client) Compare(ctx context.Context, players []models.Player) (*Comparison, error) {
	if len(players) < 2 {
		return nil, ErrTooFewPlayers
	}

	payload := struct {
		Players []models.Player `json:"players"`
	}{Players: players}

	var result struct {
		Recommendation string `json:"recommendation"`
	}
	if err := c.post(ctx, "/compare", payload, &result); err != nil {
		return nil, err
	}

	return parseComparison(result.Recommendation), nil
}

// Evaluate submits league settings and keeper candidates and returns the
// structured keep/bench recommendation
func (c *Client) Evaluate(ctx context.Context, league LeagueSettings, candidates []KeeperCandidate) (*KeeperResponse, error) {
	payload := struct {
		League  LeagueSettings    `json:"league"`
		Players []KeeperCandidate `json:"players"`
	}{League: league, Players: candidates}

	var result KeeperResponse
	if err := c.post(ctx, "/keeper-recs", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recommendation request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("recommendation service returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// parseComparison extracts the short and long answers from the service's
// free text. Unparseable text is kept whole as the recommendation so the
// caller still has something to show.
func parseComparison(text string) *Comparison {
	cmp := &Comparison{Raw: text}

	if m := recommendationPattern.FindStringSubmatch(text); m != nil {
		cmp.Recommendation = strings.TrimSpace(m[1])
	}
	if m := reasoningPattern.FindStringSubmatch(text); m != nil {
		cmp.Reasoning = strings.TrimSpace(m[1])
	}

	if cmp.Recommendation == "" {
		logger.Debug("Comparison text did not match expected shape, returning raw")
		cmp.Recommendation = strings.TrimSpace(text)
	}
	return cmp
}
