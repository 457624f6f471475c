package journey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	MinFunnelSteps = 2
	MaxFunnelSteps = 8

	// DefaultFunnelWindow is the conversion window in minutes.
	DefaultFunnelWindow = 60

	maxFunnelNameRunes = 100
)

var (
	ErrNotDrafting    = errors.New("funnel creation mode is not active")
	ErrInvalidSave    = errors.New("funnel needs between 2 and 8 steps")
	ErrSaveInProgress = errors.New("funnel save already in progress")
	ErrPersistence    = errors.New("failed to persist funnel")
)

// StepType tells a page path apart from a custom event.
type StepType string

const (
	StepPath  StepType = "path"
	StepEvent StepType = "event"
)

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	return t == StepPath || t == StepEvent
}

// StepTypeOf derives the step type from a node name.
func StepTypeOf(name string) StepType {
	if strings.HasPrefix(name, "/") {
		return StepPath
	}
	return StepEvent
}

// FunnelStep is one chosen node in a draft.
type FunnelStep struct {
	Column int      `json:"column"`
	Type   StepType `json:"type"`
	Value  string   `json:"value"`
}

// FunnelStepDef is a persisted funnel step.
type FunnelStepDef struct {
	Type  StepType `json:"type" yaml:"type"`
	Value string   `json:"value" yaml:"value"`
}

// FunnelDefinition is handed to the persistence collaborator on save.
type FunnelDefinition struct {
	ID        string          `json:"id" yaml:"id"`
	WebsiteID string          `json:"website_id,omitempty" yaml:"website_id,omitempty"`
	Name      string          `json:"name" yaml:"name"`
	Steps     []FunnelStepDef `json:"steps" yaml:"steps"`
	Window    int             `json:"window" yaml:"window_minutes"`
}

// FunnelSaver persists a funnel definition.
type FunnelSaver interface {
	SaveFunnel(ctx context.Context, def FunnelDefinition) error
}

// FunnelSaverFunc adapts a function to FunnelSaver.
type FunnelSaverFunc func(ctx context.Context, def FunnelDefinition) error

func (f FunnelSaverFunc) SaveFunnel(ctx context.Context, def FunnelDefinition) error {
	return f(ctx, def)
}

// DraftState is the funnel creation mode state.
type DraftState int

const (
	Inactive DraftState = iota
	Drafting
)

func (s DraftState) String() string {
	if s == Drafting {
		return "drafting"
	}
	return "inactive"
}

// FunnelDraft accumulates strictly left-to-right steps and persists them.
// It is safe for concurrent use; while a save is in flight every mutation is
// refused.
type FunnelDraft struct {
	mu        sync.Mutex
	state     DraftState
	steps     []FunnelStep
	saving    bool
	saver     FunnelSaver
	websiteID string
	window    int
	newID     func() string
}

// DraftOption configures a FunnelDraft.
type DraftOption func(*FunnelDraft)

// WithWebsite tags saved definitions with a website id.
func WithWebsite(id string) DraftOption {
	return func(d *FunnelDraft) { d.websiteID = id }
}

// WithWindow overrides the default conversion window (minutes).
func WithWindow(minutes int) DraftOption {
	return func(d *FunnelDraft) {
		if minutes > 0 {
			d.window = minutes
		}
	}
}

// WithIDGenerator overrides uuid generation for funnel ids.
func WithIDGenerator(fn func() string) DraftOption {
	return func(d *FunnelDraft) { d.newID = fn }
}

func NewFunnelDraft(saver FunnelSaver, opts ...DraftOption) *FunnelDraft {
	d := &FunnelDraft{
		saver:  saver,
		window: DefaultFunnelWindow,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enter starts funnel creation mode with an empty draft.
func (d *FunnelDraft) Enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Inactive {
		return false
	}
	d.state = Drafting
	d.steps = nil
	return true
}

// SelectNode appends a step when column is exactly the next one and the
// draft is not full. Rejected picks leave the draft untouched. An empty
// stepType is derived from value; unknown types are rejected.
func (d *FunnelDraft) SelectNode(column int, stepType StepType, value string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Drafting || d.saving {
		return false
	}
	if column != len(d.steps) || len(d.steps) >= MaxFunnelSteps {
		return false
	}
	if stepType == "" {
		stepType = StepTypeOf(value)
	}
	if !stepType.Valid() {
		return false
	}
	d.steps = append(d.steps, FunnelStep{Column: column, Type: stepType, Value: value})
	return true
}

// Cancel leaves funnel creation mode and discards the draft. It is refused
// while a save is in flight.
func (d *FunnelDraft) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saving {
		return false
	}
	d.state = Inactive
	d.steps = nil
	return true
}

// Escape is Cancel bound to the escape key.
func (d *FunnelDraft) Escape() bool {
	return d.Cancel()
}

// CanSave reports whether Save would attempt a write.
func (d *FunnelDraft) CanSave() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canSaveLocked()
}

func (d *FunnelDraft) canSaveLocked() bool {
	n := len(d.steps)
	return d.state == Drafting && !d.saving && n >= MinFunnelSteps && n <= MaxFunnelSteps
}

// Save hands the draft to the saver. On success the draft is cleared and
// creation mode ends. On failure the draft is left exactly as it was so the
// caller can retry.
func (d *FunnelDraft) Save(ctx context.Context) (*FunnelDefinition, error) {
	d.mu.Lock()
	switch {
	case d.state != Drafting:
		d.mu.Unlock()
		return nil, ErrNotDrafting
	case d.saving:
		d.mu.Unlock()
		return nil, ErrSaveInProgress
	case !d.canSaveLocked():
		d.mu.Unlock()
		return nil, ErrInvalidSave
	}
	def := d.definitionLocked()
	d.saving = true
	d.mu.Unlock()

	err := d.saver.SaveFunnel(ctx, def)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.saving = false
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	d.state = Inactive
	d.steps = nil
	return &def, nil
}

func (d *FunnelDraft) definitionLocked() FunnelDefinition {
	steps := make([]FunnelStepDef, len(d.steps))
	values := make([]string, len(d.steps))
	for i, s := range d.steps {
		steps[i] = FunnelStepDef{Type: s.Type, Value: s.Value}
		values[i] = s.Value
	}
	return FunnelDefinition{
		ID:        d.newID(),
		WebsiteID: d.websiteID,
		Name:      funnelName(values),
		Steps:     steps,
		Window:    d.window,
	}
}

func funnelName(values []string) string {
	name := "Journey: " + strings.Join(values, " → ")
	runes := []rune(name)
	if len(runes) > maxFunnelNameRunes {
		return string(runes[:maxFunnelNameRunes-1]) + "…"
	}
	return name
}

// State reports whether creation mode is active.
func (d *FunnelDraft) State() DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Saving reports whether a save is in flight.
func (d *FunnelDraft) Saving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saving
}

// Steps returns a copy of the draft.
func (d *FunnelDraft) Steps() []FunnelStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]FunnelStep(nil), d.steps...)
}

// Len is the number of chosen steps.
func (d *FunnelDraft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.steps)
}
