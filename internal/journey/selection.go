package journey

// NodeRef identifies a node by column and name.
type NodeRef struct {
	Column int    `json:"column"`
	Name   string `json:"name"`
}

// SelectionState is the drill-down state of the flow.
type SelectionState int

const (
	Idle SelectionState = iota
	Selected
	SelectedActive
)

func (s SelectionState) String() string {
	switch s {
	case Selected:
		return "selected"
	case SelectedActive:
		return "selected_active"
	default:
		return "idle"
	}
}

// Selection holds the pinned node and the hovered node. The zero value is Idle.
// Transitions return a new value; a Selection is never mutated in place.
type Selection struct {
	Selected *NodeRef `json:"selected,omitempty"`
	Active   *NodeRef `json:"active,omitempty"`
}

// State reports which of Idle, Selected or SelectedActive applies.
func (s Selection) State() SelectionState {
	switch {
	case s.Selected == nil:
		return Idle
	case s.Active == nil:
		return Selected
	default:
		return SelectedActive
	}
}

// Click pins ref, or returns to Idle when ref is already pinned. Any hover is
// discarded.
func (s Selection) Click(ref NodeRef) Selection {
	if s.Selected != nil && *s.Selected == ref {
		return Selection{}
	}
	return Selection{Selected: &ref}
}

// Hover marks ref as active when a node is pinned and ref lies on one of the
// pinned paths. Otherwise the selection is returned unchanged.
func (s Selection) Hover(records []PathRecord, ref NodeRef) Selection {
	if s.Selected == nil {
		return s
	}
	if len(s.activePaths(records, ref)) == 0 {
		return s
	}
	return Selection{Selected: s.Selected, Active: &ref}
}

// Unhover drops the active node.
func (s Selection) Unhover() Selection {
	if s.Selected == nil {
		return Selection{}
	}
	return Selection{Selected: s.Selected}
}

// Escape clears everything.
func (s Selection) Escape() Selection {
	return Selection{}
}

// SelectedPaths returns the indexes of records through the pinned node.
func (s Selection) SelectedPaths(records []PathRecord) []int {
	if s.Selected == nil {
		return nil
	}
	return PathsThrough(records, s.Selected.Column, s.Selected.Name)
}

// ActivePaths returns the hovered node's paths restricted to the pinned
// paths, so they are always a subset of SelectedPaths.
func (s Selection) ActivePaths(records []PathRecord) []int {
	if s.Selected == nil || s.Active == nil {
		return nil
	}
	return s.activePaths(records, *s.Active)
}

func (s Selection) activePaths(records []PathRecord, ref NodeRef) []int {
	var out []int
	for _, i := range s.SelectedPaths(records) {
		if records[i].Has(ref.Column, ref.Name) {
			out = append(out, i)
		}
	}
	return out
}
