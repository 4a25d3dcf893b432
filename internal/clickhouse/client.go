// Package clickhouse pulls average-draft-position aggregates from the
// draft analytics warehouse. The sync loop in main feeds the results into
// the directory client's ADP cache.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ADPSource is what the sync loop needs; satisfied by Client and by the
// development mock
type ADPSource interface {
	GetAllADP(ctx context.Context) (map[string]float64, error)
	Close() error
}

// Client queries draft analytics from ClickHouse
type Client struct {
	conn driver.Conn
}

// NewClient connects to ClickHouse and verifies the connection
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

// GetADP returns the average overall draft position of one player across
// recent recorded drafts
func (c *Client) GetADP(ctx context.Context, playerID string) (float64, error) {
	var adp float64

	query := `
		SELECT avg(overall_pick) as adp
		FROM player_drafts
		WHERE player_id = $1
		AND drafted_at >= now() - INTERVAL 90 DAY
	`

	row := c.conn.QueryRow(ctx, query, playerID)
	if err := row.Scan(&adp); err != nil {
		return 0, err
	}

	return adp, nil
}

// GetAllADP returns the average overall draft position of every player with
// recent recorded drafts
func (c *Client) GetAllADP(ctx context.Context) (map[string]float64, error) {
	adp := make(map[string]float64)

	query := `
		SELECT
			player_id,
			avg(overall_pick) as adp
		FROM player_drafts
		WHERE drafted_at >= now() - INTERVAL 90 DAY
		GROUP BY player_id
	`

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var avg float64
		if err := rows.Scan(&id, &avg); err != nil {
			return nil, err
		}
		adp[id] = avg
	}

	return adp, nil
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
