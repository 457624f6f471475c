package journey

import "math"

// Flow is the fully derived journey for one record set and selection.
type Flow struct {
	Steps     int       `json:"steps"`
	Columns   []Column  `json:"columns"`
	Selection Selection `json:"selection"`
	State     string    `json:"state"`
}

// Derive builds the columns for records and links them under sel.
func Derive(records []PathRecord, steps int, sel Selection) *Flow {
	return Link(records, BuildColumns(records, steps), sel)
}

// Link computes lines, selected/active counts, column visitor totals and
// drop-off for columns built from records. The input columns are not modified.
func Link(records []PathRecord, columns []Column, sel Selection) *Flow {
	selectedPaths := sel.SelectedPaths(records)
	activePaths := sel.ActivePaths(records)
	hasSelection := sel.Selected != nil
	hasActive := hasSelection && sel.Active != nil

	out := make([]Column, len(columns))
	for c := range columns {
		col := Column{Index: c, Nodes: make([]Node, len(columns[c].Nodes))}
		for i, n := range columns[c].Nodes {
			n.Lines = []Line{}
			n.Selected, n.Active = false, false
			n.SelectedCount, n.ActiveCount = 0, 0

			switch {
			case !hasSelection:
				// Nothing pinned: raw totals, no lines.
				n.SelectedCount = n.TotalCount
				n.ActiveCount = n.TotalCount
			case c == 0:
				n.Selected = passes(records, selectedPaths, c, n.Name)
				n.Active = n.Selected && passes(records, activePaths, c, n.Name)
				n.SelectedCount = sumThrough(records, selectedPaths, c, n.Name)
				n.ActiveCount = sumThrough(records, activePaths, c, n.Name)
			default:
				n.Selected = passes(records, selectedPaths, c, n.Name)
				n.Active = n.Selected && passes(records, activePaths, c, n.Name)
				prev := out[c-1].Nodes
				for p := range prev {
					fromCount := transitions(records, selectedPaths, c, prev[p].Name, n.Name)
					if !n.Selected || !prev[p].Selected || fromCount == 0 {
						continue
					}
					n.Lines = append(n.Lines, Line{From: p, Count: fromCount})
					n.SelectedCount += fromCount
					if prev[p].Active {
						n.ActiveCount += fromCount
					}
				}
			}

			n.DisplayCount = displayCount(n, hasSelection, hasActive)
			col.VisitorCount += n.DisplayCount
			col.Nodes[i] = n
		}

		if c > 0 {
			previousTotal := out[c-1].VisitorCount
			if previousTotal > 0 {
				col.DropOff = float64(col.VisitorCount-previousTotal) / float64(previousTotal) * 100
				for i := range col.Nodes {
					remaining := int(math.Round(float64(col.Nodes[i].DisplayCount) / float64(previousTotal) * 100))
					col.Nodes[i].HasConversion = true
					col.Nodes[i].Remaining = remaining
					col.Nodes[i].Dropped = 100 - remaining
				}
			}
		}
		out[c] = col
	}

	return &Flow{
		Steps:     len(columns),
		Columns:   out,
		Selection: sel,
		State:     sel.State().String(),
	}
}

func displayCount(n Node, hasSelection, hasActive bool) int64 {
	switch {
	case hasActive && n.Active:
		return n.ActiveCount
	case hasSelection && n.Selected:
		return n.SelectedCount
	default:
		return n.TotalCount
	}
}

func passes(records []PathRecord, paths []int, c int, name string) bool {
	for _, i := range paths {
		if records[i].Has(c, name) {
			return true
		}
	}
	return false
}

func sumThrough(records []PathRecord, paths []int, c int, name string) int64 {
	var sum int64
	for _, i := range paths {
		if records[i].Has(c, name) {
			sum += records[i].Count
		}
	}
	return sum
}

func transitions(records []PathRecord, paths []int, c int, from, to string) int64 {
	var sum int64
	for _, i := range paths {
		if records[i].Has(c-1, from) && records[i].Has(c, to) {
			sum += records[i].Count
		}
	}
	return sum
}

// RoundPercent rounds a percentage for display.
func RoundPercent(v float64) int {
	return int(math.Round(v))
}
