package journey

import "context"

// Mode is either BrowseMode or FunnelMode; exactly one is active per session.
type Mode interface {
	Name() string
}

// BrowseMode is the normal drill-down interaction.
type BrowseMode struct {
	Selection Selection
}

func (BrowseMode) Name() string { return "browse" }

// FunnelMode carves a funnel out of the flow. Selection is suspended.
type FunnelMode struct {
	Draft *FunnelDraft
}

func (FunnelMode) Name() string { return "funnel" }

// View is what the presentation layer renders after every event.
type View struct {
	Mode    string       `json:"mode"`
	Flow    *Flow        `json:"flow"`
	Draft   []FunnelStep `json:"draft,omitempty"`
	CanSave bool         `json:"can_save"`
	Saving  bool         `json:"saving"`
}

// Session binds one record set to the interaction state for it. It is not
// safe for concurrent use; callers serialize events.
type Session struct {
	records   []PathRecord
	version   uint64
	steps     int
	mode      Mode
	memo      Memo
	saver     FunnelSaver
	draftOpts []DraftOption
}

// NewSession starts in browse mode with nothing selected.
func NewSession(records []PathRecord, steps int, saver FunnelSaver, opts ...DraftOption) (*Session, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	s := &Session{
		steps:     steps,
		mode:      BrowseMode{},
		saver:     saver,
		draftOpts: opts,
	}
	s.SetRecords(records)
	return s, nil
}

// SetRecords replaces the record set after a data refresh.
func (s *Session) SetRecords(records []PathRecord) {
	s.records = append([]PathRecord(nil), records...)
	s.version++
}

// Click pins or unpins a node in browse mode, or picks the next funnel step
// in funnel mode. It reports whether state changed.
func (s *Session) Click(ref NodeRef) bool {
	switch m := s.mode.(type) {
	case BrowseMode:
		s.mode = BrowseMode{Selection: m.Selection.Click(ref)}
		return true
	case FunnelMode:
		return s.selectStep(m.Draft, ref)
	}
	return false
}

// SelectFunnelStep appends ref to the draft. The node must exist in the
// current flow; its step type is derived from the name. Outside funnel mode
// it does nothing.
func (s *Session) SelectFunnelStep(ref NodeRef) bool {
	m, ok := s.mode.(FunnelMode)
	if !ok {
		return false
	}
	return s.selectStep(m.Draft, ref)
}

func (s *Session) selectStep(draft *FunnelDraft, ref NodeRef) bool {
	if !s.hasNode(ref) {
		return false
	}
	return draft.SelectNode(ref.Column, StepTypeOf(ref.Name), ref.Name)
}

// Hover marks a node on the pinned paths as active. Ignored in funnel mode.
func (s *Session) Hover(ref NodeRef) bool {
	m, ok := s.mode.(BrowseMode)
	if !ok {
		return false
	}
	next := m.Selection.Hover(s.records, ref)
	s.mode = BrowseMode{Selection: next}
	return next.Active != nil && *next.Active == ref
}

// Unhover clears the active node.
func (s *Session) Unhover() {
	if m, ok := s.mode.(BrowseMode); ok {
		s.mode = BrowseMode{Selection: m.Selection.Unhover()}
	}
}

// Escape clears the selection, or leaves funnel mode discarding the draft.
// It reports false only when funnel mode could not be left.
func (s *Session) Escape() bool {
	switch m := s.mode.(type) {
	case BrowseMode:
		s.mode = BrowseMode{Selection: m.Selection.Escape()}
	case FunnelMode:
		if !m.Draft.Escape() {
			return false
		}
		s.mode = BrowseMode{}
	}
	return true
}

// EnterFunnel switches to funnel mode with an empty draft, dropping any
// selection.
func (s *Session) EnterFunnel() bool {
	if _, ok := s.mode.(FunnelMode); ok {
		return false
	}
	draft := NewFunnelDraft(s.saver, s.draftOpts...)
	draft.Enter()
	s.mode = FunnelMode{Draft: draft}
	return true
}

// CancelFunnel leaves funnel mode.
func (s *Session) CancelFunnel() bool {
	m, ok := s.mode.(FunnelMode)
	if !ok || !m.Draft.Cancel() {
		return false
	}
	s.mode = BrowseMode{}
	return true
}

// SaveFunnel persists the draft and returns to browse mode on success.
func (s *Session) SaveFunnel(ctx context.Context) (*FunnelDefinition, error) {
	draft, ok := s.Draft()
	if !ok {
		return nil, ErrNotDrafting
	}
	def, err := draft.Save(ctx)
	if err != nil {
		return nil, err
	}
	s.EndFunnel(draft)
	return def, nil
}

// Draft returns the current draft in funnel mode. The draft is safe to save
// without holding whatever lock serializes the session's other events.
func (s *Session) Draft() (*FunnelDraft, bool) {
	m, ok := s.mode.(FunnelMode)
	if !ok {
		return nil, false
	}
	return m.Draft, true
}

// EndFunnel returns to browse mode if draft is still the session's draft.
func (s *Session) EndFunnel(draft *FunnelDraft) {
	if m, ok := s.mode.(FunnelMode); ok && m.Draft == draft {
		s.mode = BrowseMode{}
	}
}

// Flow derives (or reuses) the flow for the current state. Funnel mode always
// uses unfiltered totals.
func (s *Session) Flow() *Flow {
	var sel Selection
	if m, ok := s.mode.(BrowseMode); ok {
		sel = m.Selection
	}
	return s.memo.Derive(s.version, s.records, s.steps, sel)
}

// View snapshots the session for rendering.
func (s *Session) View() View {
	v := View{Mode: s.mode.Name(), Flow: s.Flow()}
	if m, ok := s.mode.(FunnelMode); ok {
		v.Draft = m.Draft.Steps()
		v.CanSave = m.Draft.CanSave()
		v.Saving = m.Draft.Saving()
	}
	return v
}

func (s *Session) hasNode(ref NodeRef) bool {
	if ref.Column < 0 || ref.Column >= s.steps {
		return false
	}
	return len(PathsThrough(s.records, ref.Column, ref.Name)) > 0
}
