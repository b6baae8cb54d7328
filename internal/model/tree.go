package model

// Node is one tree node. Internal nodes send x to Left when
// x[Feature] < Threshold and to Right otherwise; leaves carry Value.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a flattened regression tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	n := 0
	for {
		node := t.Nodes[n]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] < node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
}

func (t Tree) depth() int {
	var walk func(n int) int
	walk = func(n int) int {
		node := t.Nodes[n]
		if node.Leaf {
			return 0
		}
		return 1 + max(walk(node.Left), walk(node.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}
