package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Node {
	return &Node{
		Type:     NodeTypeWrapper,
		Operator: OperatorAnd,
		Children: []*Node{
			{Type: NodeTypeString, Group: GroupUser, Path: "plan", Operator: OperatorEquals, Value: "pro"},
			{
				Type:     NodeTypeWrapper,
				Operator: OperatorOr,
				Children: []*Node{
					{Type: NodeTypeNumber, Group: GroupUser, Path: "age", Operator: OperatorGreaterThan, Value: float64(18)},
					{Type: NodeTypeBoolean, Group: GroupUser, Path: "verified", Operator: OperatorEquals, Value: true},
				},
			},
		},
	}
}

func TestFlattenAssignsUUIDsAndBackReferences(t *testing.T) {
	root := sampleTree()

	rows := Flatten(root)
	require.Len(t, rows, 5)

	assert.NotEmpty(t, rows[0].UUID)
	assert.Empty(t, rows[0].ParentUUID)

	for _, row := range rows {
		assert.NotEmpty(t, row.UUID)
		assert.Equal(t, rows[0].UUID, row.RootUUID)

		if row.UUID != rows[0].UUID {
			assert.NotEmpty(t, row.ParentUUID)
		}
	}
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	root := sampleTree()

	rows := Flatten(root)

	rebuilt, err := Unflatten(rows)
	require.NoError(t, err)

	require.Len(t, rebuilt.Children, 2)
	assert.Equal(t, OperatorAnd, rebuilt.Operator)
	assert.Equal(t, "plan", rebuilt.Children[0].Path)
	assert.Equal(t, OperatorOr, rebuilt.Children[1].Operator)
	require.Len(t, rebuilt.Children[1].Children, 2)
	assert.Equal(t, "age", rebuilt.Children[1].Children[0].Path)
	assert.Equal(t, "verified", rebuilt.Children[1].Children[1].Path)
}

func TestUnflattenOrdersSiblingsByPriority(t *testing.T) {
	rows := []*FlatNode{
		{UUID: "root", RootUUID: "root", Type: NodeTypeWrapper, Operator: OperatorAnd},
		{UUID: "b", ParentUUID: "root", RootUUID: "root", Type: NodeTypeString, Path: "b", Operator: OperatorEquals, Priority: 1},
		{UUID: "a", ParentUUID: "root", RootUUID: "root", Type: NodeTypeString, Path: "a", Operator: OperatorEquals, Priority: 0},
	}

	root, err := Unflatten(rows)
	require.NoError(t, err)

	require.Len(t, root.Children, 2)
	assert.Equal(t, "a", root.Children[0].Path)
	assert.Equal(t, "b", root.Children[1].Path)
}

func TestUnflattenErrors(t *testing.T) {
	_, err := Unflatten(nil)
	assert.ErrorIs(t, err, ErrNoRoot)

	_, err = Unflatten([]*FlatNode{
		{UUID: "r1", Type: NodeTypeWrapper, Operator: OperatorAnd},
		{UUID: "r2", Type: NodeTypeWrapper, Operator: OperatorAnd},
	})
	assert.ErrorIs(t, err, ErrMultipleRoots)

	_, err = Unflatten([]*FlatNode{
		{UUID: "r", Type: NodeTypeWrapper, Operator: OperatorAnd},
		{UUID: "child", ParentUUID: "ghost", Type: NodeTypeString, Operator: OperatorEquals},
	})
	assert.ErrorIs(t, err, ErrOrphanNode)
}

func TestEventNames(t *testing.T) {
	root := &Node{
		Type:     NodeTypeWrapper,
		Operator: OperatorAnd,
		Children: []*Node{
			{Type: NodeTypeWrapper, Group: GroupEvent, Path: EventNamePath, Operator: OperatorAnd, Value: "purchase"},
			{Type: NodeTypeWrapper, Group: GroupEvent, Path: EventNamePath, Operator: OperatorAnd, Value: "signup"},
			{Type: NodeTypeWrapper, Group: GroupEvent, Path: EventNamePath, Operator: OperatorAnd, Value: "purchase"},
		},
	}

	assert.Equal(t, []string{"purchase", "signup"}, root.EventNames())
}
