// Package group arranges the tenant's groups into a hierarchy.
package group

import (
	"cmp"
	"slices"
)

// Group is a named set of users. Groups form a forest through
// ParentGroupID.
type Group struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenantId"`
	Name          string  `json:"name"`
	DisplayName   string  `json:"displayName"`
	Description   string  `json:"description"`
	ParentGroupID *string `json:"parentGroupId"`
}

// Node is a group with its children.
type Node struct {
	Group    Group   `json:"group"`
	Children []*Node `json:"children,omitempty"`
}

// Walk visits n and its descendants depth first, passing each depth.
func (n *Node) Walk(fn func(node *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Tree builds the forest of groups. A group whose parent is missing, or
// whose parent chain loops back to itself, becomes a root. Siblings are
// ordered by name, then id.
func Tree(groups []Group) []*Node {
	nodes := make(map[string]*Node, len(groups))
	for _, g := range groups {
		nodes[g.ID] = &Node{Group: g}
	}

	var roots []*Node
	for _, g := range groups {
		n := nodes[g.ID]
		parent, ok := parentOf(g, nodes)
		if !ok || inCycle(g.ID, nodes) {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	sortNodes(roots)
	return roots
}

func parentOf(g Group, nodes map[string]*Node) (*Node, bool) {
	if g.ParentGroupID == nil || *g.ParentGroupID == "" || *g.ParentGroupID == g.ID {
		return nil, false
	}
	p, ok := nodes[*g.ParentGroupID]
	return p, ok
}

// inCycle reports whether following parents from id returns to id.
func inCycle(id string, nodes map[string]*Node) bool {
	seen := map[string]bool{id: true}
	cur := nodes[id].Group
	for {
		p, ok := parentOf(cur, nodes)
		if !ok {
			return false
		}
		if p.Group.ID == id {
			return true
		}
		if seen[p.Group.ID] {
			return false
		}
		seen[p.Group.ID] = true
		cur = p.Group
	}
}

func sortNodes(nodes []*Node) {
	slices.SortFunc(nodes, func(a, b *Node) int {
		if c := cmp.Compare(a.Group.Name, b.Group.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Group.ID, b.Group.ID)
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
