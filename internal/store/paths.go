// Package store reads journeys from and writes funnels to PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/journey"
)

// maxSequences caps how many distinct paths a query returns.
const maxSequences = 100

// PathQuery selects the visits a journey is built from. StartStep and EndStep
// are optional filters applied to the sequences, not to the flow.
type PathQuery struct {
	WebsiteID uuid.UUID
	StartAt   time.Time
	EndAt     time.Time
	Steps     int
	StartStep string
	EndStep   string
}

// Validate checks the query before it reaches the database.
func (q PathQuery) Validate() error {
	if q.WebsiteID == uuid.Nil {
		return errors.New("website id is required")
	}
	if !q.EndAt.After(q.StartAt) {
		return errors.New("end_at must be after start_at")
	}
	return journey.ValidateSteps(q.Steps)
}

// Key identifies the query for caching. Step filters are quoted so that a
// separator inside a name cannot collide with another query.
func (q PathQuery) Key() string {
	return fmt.Sprintf("%s|%d|%d|%d|%q|%q",
		q.WebsiteID, q.StartAt.Unix(), q.EndAt.Unix(), q.Steps, q.StartStep, q.EndStep)
}

// Postgres implements path and funnel storage over database/sql.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Paths returns one record per distinct visit sequence, most frequent first.
// A step is the custom event name for events, otherwise the URL path;
// consecutive repeats (reloads) collapse into one step.
func (p *Postgres) Paths(ctx context.Context, q PathQuery) ([]journey.PathRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, pathsQuery(q.Steps),
		q.WebsiteID, q.StartAt, q.EndAt, q.StartStep, q.EndStep)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []journey.PathRecord
	for rows.Next() {
		items := make([]sql.NullString, q.Steps)
		dest := make([]any, 0, q.Steps+1)
		for i := range items {
			dest = append(dest, &items[i])
		}
		var record journey.PathRecord
		dest = append(dest, &record.Count)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		for i, item := range items {
			record.Steps[i] = journey.Step{Name: item.String, Present: item.Valid}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paths: %w", err)
	}
	return records, nil
}

func pathsQuery(steps int) string {
	cols := make([]string, steps)
	pivots := make([]string, steps)
	endMatch := make([]string, steps)
	for i := 0; i < steps; i++ {
		cols[i] = fmt.Sprintf("e%d", i+1)
		pivots[i] = fmt.Sprintf("MAX(CASE WHEN step_number = %d THEN step END) AS e%d", i+1, i+1)
		endMatch[i] = fmt.Sprintf("e%d = $5", i+1)
	}
	columnList := strings.Join(cols, ", ")

	return fmt.Sprintf(`
		WITH raw AS (
			SELECT visit_id, created_at, event_id,
			       CASE WHEN event_type = 2 AND COALESCE(event_name, '') <> '' THEN event_name ELSE url_path END AS step
			FROM website_event
			WHERE website_id = $1
			  AND created_at BETWEEN $2 AND $3
		), deduped AS (
			SELECT visit_id, created_at, event_id, step,
			       LAG(step) OVER (PARTITION BY visit_id ORDER BY created_at, event_id) AS previous_step
			FROM raw
		), numbered AS (
			SELECT visit_id, step,
			       ROW_NUMBER() OVER (PARTITION BY visit_id ORDER BY created_at, event_id) AS step_number
			FROM deduped
			WHERE previous_step IS DISTINCT FROM step
		), paths AS (
			SELECT visit_id, %s
			FROM numbered
			WHERE step_number <= %d
			GROUP BY visit_id
		)
		SELECT %s, COUNT(*) AS count
		FROM paths
		WHERE ($4::text = '' OR e1 = $4)
		  AND ($5::text = '' OR %s)
		GROUP BY %s
		ORDER BY count DESC
		LIMIT %d`,
		strings.Join(pivots, ", "), steps,
		columnList,
		strings.Join(endMatch, " OR "),
		columnList, maxSequences)
}
