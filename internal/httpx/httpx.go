// Package httpx holds request parsing and response helpers shared by handlers.
package httpx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/pathflow/internal/journey"
)

// Error writes the standard error envelope.
func Error(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// QueryTime reads a timestamp given as unix milliseconds or RFC 3339.
// A missing parameter yields fallback.
func QueryTime(c fiber.Ctx, key string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	return ParseTime(raw)
}

func ParseTime(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return t.UTC(), nil
}

// ParseNodeRef parses "column:name", e.g. "1:/pricing". The name may itself
// contain colons.
func ParseNodeRef(raw string) (journey.NodeRef, error) {
	col, name, ok := strings.Cut(raw, ":")
	if !ok || name == "" {
		return journey.NodeRef{}, fmt.Errorf("invalid node %q, want column:name", raw)
	}
	c, err := strconv.Atoi(col)
	if err != nil || c < 0 || c >= journey.MaxSteps {
		return journey.NodeRef{}, fmt.Errorf("invalid node column %q", col)
	}
	return journey.NodeRef{Column: c, Name: name}, nil
}

// QueryNodeRef parses an optional node reference from the query string.
func QueryNodeRef(c fiber.Ctx, key string) (*journey.NodeRef, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	ref, err := ParseNodeRef(raw)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

var errMissingSelection = errors.New("active requires selected")

// QuerySelection builds a selection from ?selected= and ?active=. Active is
// applied through the hover rule so it must lie on the selected paths.
func QuerySelection(c fiber.Ctx, records []journey.PathRecord) (journey.Selection, error) {
	selected, err := QueryNodeRef(c, "selected")
	if err != nil {
		return journey.Selection{}, err
	}
	active, err := QueryNodeRef(c, "active")
	if err != nil {
		return journey.Selection{}, err
	}

	var sel journey.Selection
	if selected == nil {
		if active != nil {
			return sel, errMissingSelection
		}
		return sel, nil
	}
	sel = sel.Click(*selected)
	if active != nil {
		sel = sel.Hover(records, *active)
	}
	return sel, nil
}

// Timestamp decodes either unix milliseconds or an RFC 3339 string.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
