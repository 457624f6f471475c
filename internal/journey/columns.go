package journey

import "sort"

// Line is an inbound connection from a node in the previous column.
type Line struct {
	From  int   `json:"from"` // index of the node in the previous column
	Count int64 `json:"count"`
}

// Node is one distinct step name at one column.
type Node struct {
	Column        int    `json:"column"`
	Name          string `json:"name"`
	TotalCount    int64  `json:"total_count"`
	SelectedCount int64  `json:"selected_count"`
	ActiveCount   int64  `json:"active_count"`
	DisplayCount  int64  `json:"display_count"`
	Selected      bool   `json:"selected"`
	Active        bool   `json:"active"`
	Lines         []Line `json:"lines"`
	Paths         []int  `json:"-"` // indexes into the record set

	HasConversion bool `json:"has_conversion"`
	Remaining     int  `json:"remaining"` // percent of the previous column total
	Dropped       int  `json:"dropped"`
}

// Column holds the nodes observed at one step position.
type Column struct {
	Index        int     `json:"index"`
	Nodes        []Node  `json:"nodes"`
	VisitorCount int64   `json:"visitor_count"`
	DropOff      float64 `json:"drop_off"`
}

// Find returns the index of the node called name, or -1.
func (c Column) Find(name string) int {
	for i := range c.Nodes {
		if c.Nodes[i].Name == name {
			return i
		}
	}
	return -1
}

// BuildColumns groups records into steps columns of per-name aggregates.
// Nodes are ordered by total count descending, ties by first appearance.
func BuildColumns(records []PathRecord, steps int) []Column {
	columns := make([]Column, steps)
	for c := 0; c < steps; c++ {
		columns[c] = Column{Index: c, Nodes: []Node{}}
		index := make(map[string]int)

		for i := range records {
			name, ok := records[i].Item(c)
			if !ok {
				continue
			}
			n, seen := index[name]
			if !seen {
				n = len(columns[c].Nodes)
				index[name] = n
				columns[c].Nodes = append(columns[c].Nodes, Node{Column: c, Name: name})
			}
			node := &columns[c].Nodes[n]
			node.TotalCount += records[i].Count
			node.Paths = append(node.Paths, i)
		}

		sort.SliceStable(columns[c].Nodes, func(a, b int) bool {
			return columns[c].Nodes[a].TotalCount > columns[c].Nodes[b].TotalCount
		})
	}
	return columns
}
