package graphsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_BuildsParentLinks(t *testing.T) {
	tree := NewTree[string, string, float64](nil)
	root := tree.AddRoot("r", false)
	a := tree.AddChild(root, "go-a", "a", false)
	b := tree.AddChild(root, "go-b", "b", false)
	a1 := tree.AddChild(a, "go-a1", "a1", true)

	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, []NodeID{root.ID()}, tree.Roots())
	assert.Equal(t, []NodeID{a.ID(), b.ID()}, tree.Children(root.ID()))
	assert.Equal(t, []NodeID{root.ID()}, tree.Children(NoParent))

	assert.Equal(t, NoParent, root.ParentID())
	_, hasParent := root.Parent()
	assert.False(t, hasParent)

	parent, ok := a1.Parent()
	require.True(t, ok)
	assert.Same(t, a, parent)
	assert.Equal(t, 2, a1.Depth())
	assert.Equal(t, "go-a1", a1.Action())
	assert.True(t, a1.IsGoal())
	assert.Equal(t, Path[string]{"r", "a", "a1"}, a1.Path())
	assert.Equal(t, 2, b.Siblings())
	assert.Equal(t, 1, a1.Siblings())
}

func TestTree_NodeOutOfRange(t *testing.T) {
	tree := NewTree[string, string, float64](nil)
	tree.AddRoot("r", false)

	assert.Nil(t, tree.Node(-1))
	assert.Nil(t, tree.Node(5))
	assert.NotNil(t, tree.Node(0))
}

func TestNode_StructurallyEqualPathsShareKeys(t *testing.T) {
	tree := NewTree[string, string, float64](nil)
	r1 := tree.AddRoot("r", false)
	r2 := tree.AddRoot("r", false)
	x1 := tree.AddChild(r1, "", "x", false)
	x2 := tree.AddChild(r2, "", "x", false)

	assert.NotEqual(t, x1.ID(), x2.ID())
	assert.Equal(t, x1.Key(), x2.Key())
	assert.Equal(t, KeyOf(x1.Path(), tree.KeyFunc()), x1.Key())
}

func TestNode_CustomStateKey(t *testing.T) {
	type point struct{ X, Y int }
	tree := NewTree[point, string, int](func(p point) string {
		return string(rune('a'+p.X)) + string(rune('a'+p.Y))
	})
	root := tree.AddRoot(point{0, 0}, false)
	child := tree.AddChild(root, "right", point{1, 0}, false)

	assert.Equal(t, []string{"aa", "ba"}, child.Key().Steps())
}

func TestNode_LabelAndAnnotations(t *testing.T) {
	tree := NewTree[string, string, float64](nil)
	n := tree.AddRoot("r", false)

	_, ok := n.Label()
	assert.False(t, ok)
	assert.False(t, n.Labeled())

	n.SetLabel(2.5)
	v, ok := n.Label()
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	assert.True(t, n.Labeled())

	_, ok = n.Annotation(AnnotationSamples)
	assert.False(t, ok)
	n.SetAnnotation(AnnotationSamples, 3)
	got, ok := n.Annotation(AnnotationSamples)
	assert.True(t, ok)
	assert.Equal(t, 3, got)

	all := n.Annotations()
	all[AnnotationSamples] = 99
	got, _ = n.Annotation(AnnotationSamples)
	assert.Equal(t, 3, got, "Annotations must return a copy")

	assert.False(t, n.Dead())
	n.SetAnnotation(AnnotationDead, true)
	assert.True(t, n.Dead())
}

func TestDefaultStateKey(t *testing.T) {
	assert.Equal(t, "plain", DefaultStateKey("plain"))
	assert.Equal(t, "7", DefaultStateKey(keyed(7)))
	assert.Equal(t, "42", DefaultStateKey(42))
	assert.Equal(t, `[]string{"a"}`, DefaultStateKey([]string{"a"}))
}

type keyed int

func (k keyed) Key() string { return string(rune('0' + int(k))) }
