package rules

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoRoot indicates a flat node set contains no root node.
var ErrNoRoot = errors.New("rule tree has no root node")

// ErrMultipleRoots indicates a flat node set contains more than one root.
var ErrMultipleRoots = errors.New("rule tree has multiple root nodes")

// ErrOrphanNode indicates a flat node references a parent that is not part
// of the set.
var ErrOrphanNode = errors.New("rule node references unknown parent")

// FlatNode is the storage form of a Node: one row per node, tree structure
// carried by parent/root uuid back-references instead of owned children.
type FlatNode struct {
	ID         string   `json:"id,omitempty"`
	UUID       string   `json:"uuid"`
	ParentUUID string   `json:"parent_uuid,omitempty"`
	RootUUID   string   `json:"root_uuid"`
	Type       NodeType `json:"type"`
	Group      Group    `json:"group,omitempty"`
	Path       string   `json:"path,omitempty"`
	Operator   Operator `json:"operator"`
	Value      any      `json:"value,omitempty"`
	Priority   int      `json:"priority"` // Child ordering within the parent
}

// Flatten converts a tree into its storage rows. Nodes without a UUID get
// one assigned; parent and root references are rewritten from the tree
// structure so stale back-references on the input cannot leak through.
func Flatten(root *Node) []*FlatNode {
	if root == nil {
		return nil
	}

	if root.UUID == "" {
		root.UUID = uuid.New().String()
	}

	var rows []*FlatNode

	var walk func(n *Node, parentUUID string, priority int)

	walk = func(n *Node, parentUUID string, priority int) {
		if n.UUID == "" {
			n.UUID = uuid.New().String()
		}

		rows = append(rows, &FlatNode{
			ID:         n.ID,
			UUID:       n.UUID,
			ParentUUID: parentUUID,
			RootUUID:   root.UUID,
			Type:       n.Type,
			Group:      n.Group,
			Path:       n.Path,
			Operator:   n.Operator,
			Value:      n.Value,
			Priority:   priority,
		})

		for i, child := range n.Children {
			walk(child, n.UUID, i)
		}
	}

	walk(root, "", 0)

	return rows
}

// Unflatten rebuilds an evaluable tree from storage rows. Exactly one row
// must have no parent; children are ordered by their stored priority.
func Unflatten(rows []*FlatNode) (*Node, error) {
	if len(rows) == 0 {
		return nil, ErrNoRoot
	}

	byUUID := make(map[string]*Node, len(rows))
	order := make(map[string]int, len(rows))

	for _, row := range rows {
		byUUID[row.UUID] = &Node{
			ID:       row.ID,
			UUID:     row.UUID,
			RootUUID: row.RootUUID,
			Type:     row.Type,
			Group:    row.Group,
			Path:     row.Path,
			Operator: row.Operator,
			Value:    row.Value,
		}
		order[row.UUID] = row.Priority
	}

	var root *Node

	for _, row := range rows {
		node := byUUID[row.UUID]

		if row.ParentUUID == "" {
			if root != nil {
				return nil, ErrMultipleRoots
			}

			root = node

			continue
		}

		parent, ok := byUUID[row.ParentUUID]
		if !ok {
			return nil, fmt.Errorf("%w: node %s parent %s", ErrOrphanNode, row.UUID, row.ParentUUID)
		}

		node.ParentUUID = row.ParentUUID
		parent.Children = append(parent.Children, node)
	}

	if root == nil {
		return nil, ErrNoRoot
	}

	sortChildren(root, order)

	return root, nil
}

func sortChildren(n *Node, order map[string]int) {
	for i := 1; i < len(n.Children); i++ {
		for k := i; k > 0 && order[n.Children[k].UUID] < order[n.Children[k-1].UUID]; k-- {
			n.Children[k], n.Children[k-1] = n.Children[k-1], n.Children[k]
		}
	}

	for _, child := range n.Children {
		sortChildren(child, order)
	}
}
