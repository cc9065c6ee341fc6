package hashid_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/hashid"
	"github.com/n4jet/neo4j-export/value"
)

func TestCanonicalJSON_SortsKeysAndDropsNulls(t *testing.T) {
	props := map[string]value.Value{
		"name": value.StringOf("John"),
		"age":  value.IntOf(30),
		"nick": value.Null(),
	}
	got := hashid.CanonicalJSON(props)
	require.Equal(t, `{"age":30,"name":"John"}`, got)
}

func TestNodeHash_S2FromSpec(t *testing.T) {
	props := map[string]value.Value{
		"name": value.StringOf("John"),
		"age":  value.IntOf(30),
	}
	got := hashid.NodeHash([]string{"Person", "Employee"}, props)
	want := hashid.Sha256Hex(`node:Employee+Person:{"age":30,"name":"John"}`)
	require.Equal(t, want, got)
	require.Len(t, got, 64)
}

func TestNodeHash_EmptyLabelsAndProps(t *testing.T) {
	got := hashid.NodeHash(nil, nil)
	want := hashid.Sha256Hex("node::")
	require.Equal(t, want, got)
}

func TestNodeHash_Deterministic(t *testing.T) {
	props := map[string]value.Value{"a": value.IntOf(1), "b": value.StringOf("x")}
	h1 := hashid.NodeHash([]string{"B", "A"}, props)
	h2 := hashid.NodeHash([]string{"A", "B"}, props)
	require.Equal(t, h1, h2, "label order must not affect the hash")
}

func TestRelationshipHash_UsesElementIDsNotContentHashes(t *testing.T) {
	props := map[string]value.Value{"since": value.IntOf(2020)}
	got := hashid.RelationshipHash("KNOWS", "n1", "n2", props)
	want := hashid.Sha256Hex(`rel:KNOWS:n1:n2:{"since":2020}`)
	require.Equal(t, want, got)
}

func TestMemStore_PutGetLen(t *testing.T) {
	s := hashid.NewMemStore(0)
	require.Equal(t, 0, s.Len())
	s.Put("n1", "hash1")
	s.Put("n2", "hash2")
	require.Equal(t, 2, s.Len())

	v, ok := s.Get("n1")
	require.True(t, ok)
	require.Equal(t, "hash1", v)

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestFileEndpointStore_ReadAfterWrite(t *testing.T) {
	s, err := hashid.NewFileEndpointStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	s.Put("n1", "hashA")
	s.Put("n2", "hashB")

	v, ok := s.Get("n1")
	require.True(t, ok)
	require.Equal(t, "hashA", v)
	require.Equal(t, 2, s.Len())

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestCanonicalJSON_NestedListsAndMaps(t *testing.T) {
	inner := map[string]value.Value{"x": value.IntOf(1)}
	props := map[string]value.Value{
		"tags":   value.ListOf([]value.Value{value.StringOf("a"), value.StringOf("b")}),
		"nested": value.MapOf([]string{"x"}, inner),
	}
	got := hashid.CanonicalJSON(props)
	require.Equal(t, `{"nested":{"x":1},"tags":["a","b"]}`, got)
}
