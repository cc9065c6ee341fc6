package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/value"
)

func TestNode_SortedLabels_DoesNotAliasSourceOrder(t *testing.T) {
	n := value.Node{Labels: []string{"Person", "Employee"}}

	sorted := n.SortedLabels()

	require.Equal(t, []string{"Employee", "Person"}, sorted)
	require.Equal(t, []string{"Person", "Employee"}, n.Labels, "source order must survive sorting a copy")
}

func TestClassificationPredicates(t *testing.T) {
	require.True(t, value.IsTemporal(value.TemporalOf(value.Temporal{Kind: value.TemporalDate, ISO8601: "2024-01-01"})))
	require.False(t, value.IsTemporal(value.StringOf("2024-01-01")))

	require.True(t, value.IsFiniteNumeric(value.IntOf(1)))
	require.True(t, value.IsFiniteNumeric(value.UintOf(1)))
	require.True(t, value.IsFiniteNumeric(value.FloatOf(1.5)))
	require.False(t, value.IsFiniteNumeric(value.SpecialFloatOf(value.SpecialNaN)))

	require.True(t, value.IsGraphElement(value.NodeOf(value.Node{})))
	require.True(t, value.IsGraphElement(value.RelationshipOf(value.Relationship{})))
	require.True(t, value.IsGraphElement(value.PathOf(value.Path{})))
	require.False(t, value.IsGraphElement(value.StringOf("x")))
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "node", value.KindNode.String())
	require.Equal(t, "unrecognized", value.KindUnrecognized.String())
}
