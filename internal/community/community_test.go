package community

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func names(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func TestTree(t *testing.T) {
	list := []Community{
		{ID: "3", ParentID: ptr("1"), Name: "Tostión"},
		{ID: "1", Name: "Café"},
		{ID: "2", ParentID: ptr("1"), Name: "Cosecha"},
		{ID: "4", ParentID: ptr("2"), Name: "Recolección"},
		{ID: "5", Name: "Cacao"},
		{ID: "6", ParentID: ptr("gone"), Name: "Huérfana"},
	}
	tree := Tree(list)

	assert.Equal(t, []string{"Cacao", "Café", "Huérfana"}, names(tree))
	cafe := tree[1]
	assert.Equal(t, []string{"Cosecha", "Tostión"}, names(cafe.Children))
	assert.Equal(t, []string{"Recolección"}, names(cafe.Children[0].Children))
	assert.Empty(t, cafe.Children[0].Children[0].Children)
}

func TestTreeIgnoresCycles(t *testing.T) {
	list := []Community{
		{ID: "a", ParentID: ptr("b"), Name: "A"},
		{ID: "b", ParentID: ptr("a"), Name: "B"},
		{ID: "r", Name: "Root"},
		{ID: "s", ParentID: ptr("s"), Name: "Self"},
	}
	assert.Equal(t, []string{"Root", "Self"}, names(Tree(list)))
}

func TestTreeLeavesSerializeEmptyChildren(t *testing.T) {
	raw, err := json.Marshal(Tree([]Community{{ID: "1", Name: "Solo"}}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"children":[]`)
}
