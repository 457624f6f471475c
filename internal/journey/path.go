// Package journey aggregates visitor path records into a multi-column flow,
// tracks drill-down selection state and drives funnel drafting.
package journey

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// MaxSteps is the widest journey (and longest funnel) supported.
	MaxSteps = 8
	// MinSteps is the narrowest journey worth drawing.
	MinSteps = 2
)

var (
	ErrInvalidSteps = errors.New("steps out of range")
	ErrTooManySteps = errors.New("path has more steps than supported")
)

// Step is one position in a path. Present distinguishes "no step" from an
// empty-named step.
type Step struct {
	Name    string
	Present bool
}

// PathRecord is one distinct observed sequence of steps and how many visitors
// followed exactly that sequence.
type PathRecord struct {
	Steps [MaxSteps]Step
	Count int64
}

// NewPathRecord builds a record from consecutive step names.
func NewPathRecord(count int64, items ...string) (PathRecord, error) {
	var r PathRecord
	if len(items) > MaxSteps {
		return r, fmt.Errorf("%w: %d > %d", ErrTooManySteps, len(items), MaxSteps)
	}
	if count < 0 {
		return r, fmt.Errorf("negative count %d", count)
	}
	for i, name := range items {
		r.Steps[i] = Step{Name: name, Present: true}
	}
	r.Count = count
	return r, nil
}

// MustPathRecord is NewPathRecord for fixtures; it panics on invalid input.
func MustPathRecord(count int64, items ...string) PathRecord {
	r, err := NewPathRecord(count, items...)
	if err != nil {
		panic(err)
	}
	return r
}

// Item returns the step name at column c and whether a step is present there.
func (r PathRecord) Item(c int) (string, bool) {
	if c < 0 || c >= MaxSteps || !r.Steps[c].Present {
		return "", false
	}
	return r.Steps[c].Name, true
}

// Has reports whether the record passes through name at column c.
func (r PathRecord) Has(c int, name string) bool {
	got, ok := r.Item(c)
	return ok && got == name
}

// Len is the index after the last present step.
func (r PathRecord) Len() int {
	for i := MaxSteps - 1; i >= 0; i-- {
		if r.Steps[i].Present {
			return i + 1
		}
	}
	return 0
}

type pathRecordJSON struct {
	Items []*string `json:"items"`
	Count int64     `json:"count"`
}

// MarshalJSON encodes the record as {"items": [...], "count": n}. Interior
// gaps encode as null; trailing gaps are dropped.
func (r PathRecord) MarshalJSON() ([]byte, error) {
	n := r.Len()
	out := pathRecordJSON{Items: make([]*string, n), Count: r.Count}
	for i := 0; i < n; i++ {
		if r.Steps[i].Present {
			name := r.Steps[i].Name
			out.Items[i] = &name
		}
	}
	return json.Marshal(out)
}

func (r *PathRecord) UnmarshalJSON(data []byte) error {
	var in pathRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Items) > MaxSteps {
		return fmt.Errorf("%w: %d > %d", ErrTooManySteps, len(in.Items), MaxSteps)
	}
	*r = PathRecord{Count: in.Count}
	for i, item := range in.Items {
		if item != nil {
			r.Steps[i] = Step{Name: *item, Present: true}
		}
	}
	return nil
}

// ValidateSteps checks a requested column count.
func ValidateSteps(steps int) error {
	if steps < MinSteps || steps > MaxSteps {
		return fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidSteps, steps, MinSteps, MaxSteps)
	}
	return nil
}

// PathsThrough returns the indexes of records passing through name at column c.
func PathsThrough(records []PathRecord, c int, name string) []int {
	var out []int
	for i := range records {
		if records[i].Has(c, name) {
			out = append(out, i)
		}
	}
	return out
}
