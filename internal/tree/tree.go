// Package tree reconstructs the nested item forest from the flat,
// sort-ordered rows the store returns.
package tree

import "shoplist/internal/store"

// Node is an item plus its ordered children.
type Node struct {
	store.Item
	Children []*Node `json:"children,omitempty"`
}

// Build turns a flat slice of items, already ordered by sort key, into a
// forest. Children keep the relative order of the input, so they arrive
// pre-sorted. An item whose parent id is not present in the input (for
// example after cross-list corruption) is treated as a root item rather
// than dropped; that is defined behavior, not an error.
//
// Build is a pure function of its input and safe to call repeatedly.
func Build(items []store.Item) []*Node {
	byID := make(map[string]*Node, len(items))
	nodes := make([]*Node, 0, len(items))
	for _, item := range items {
		node := &Node{Item: item}
		byID[item.ID] = node
		nodes = append(nodes, node)
	}

	roots := []*Node{}
	for _, node := range nodes {
		if node.Parent != nil {
			if parent, ok := byID[*node.Parent]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// Flatten walks the forest depth-first and returns the items in the
// parent-before-children order Build accepts back.
func Flatten(roots []*Node) []store.Item {
	items := make([]store.Item, 0, len(roots))
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, node := range nodes {
			items = append(items, node.Item)
			walk(node.Children)
		}
	}
	walk(roots)
	return items
}
