package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/journey"
)

// SavedFunnel is a persisted funnel definition.
type SavedFunnel struct {
	journey.FunnelDefinition `yaml:",inline"`
	CreatedAt                time.Time `json:"created_at" yaml:"created_at"`
}

// SaveFunnel inserts a definition produced by the funnel draft.
func (p *Postgres) SaveFunnel(ctx context.Context, def journey.FunnelDefinition) error {
	id, err := uuid.Parse(def.ID)
	if err != nil {
		return fmt.Errorf("invalid funnel id: %w", err)
	}
	websiteID, err := uuid.Parse(def.WebsiteID)
	if err != nil {
		return fmt.Errorf("invalid website id: %w", err)
	}
	steps, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO funnel (funnel_id, website_id, name, steps, window_minutes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, websiteID, def.Name, string(steps), def.Window, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert funnel: %w", err)
	}
	return nil
}

// ListFunnels returns the funnels of a website, newest first.
func (p *Postgres) ListFunnels(ctx context.Context, websiteID uuid.UUID) ([]SavedFunnel, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT funnel_id, website_id, name, steps, window_minutes, created_at
		 FROM funnel
		 WHERE website_id = $1
		 ORDER BY created_at DESC`, websiteID)
	if err != nil {
		return nil, fmt.Errorf("query funnels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	funnels := make([]SavedFunnel, 0)
	for rows.Next() {
		var f SavedFunnel
		var steps []byte
		if err := rows.Scan(&f.ID, &f.WebsiteID, &f.Name, &steps, &f.Window, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan funnel: %w", err)
		}
		if err := json.Unmarshal(steps, &f.Steps); err != nil {
			return nil, fmt.Errorf("decode funnel steps: %w", err)
		}
		funnels = append(funnels, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funnels: %w", err)
	}
	return funnels, nil
}
