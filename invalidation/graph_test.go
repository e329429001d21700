package invalidation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraph_Closure(t *testing.T) {
	g := NewGraph()
	// A depends on B depends on C
	g.AddDependency("A", "B")
	g.AddDependency("B", "C")

	assert.Equal(t, []string{"C", "B", "A"}, g.Closure("C", true, 0))
	assert.Equal(t, []string{"C", "B"}, g.Closure("C", false, 0))
	assert.Equal(t, []string{"C", "B"}, g.Closure("C", true, 1))
	assert.Equal(t, []string{"A"}, g.Closure("A", true, 0))
	assert.Equal(t, []string{"missing"}, g.Closure("missing", true, 0))
}

func TestGraph_Cycle(t *testing.T) {
	g := NewGraph()
	g.AddDependency("a", "b")
	g.AddDependency("b", "c")
	g.AddDependency("c", "a")

	assert.Equal(t, []string{"a", "c", "b"}, g.Closure("a", true, 0))
}

func TestGraph_Diamond(t *testing.T) {
	g := NewGraph()
	g.AddDependency("left", "root")
	g.AddDependency("right", "root")
	g.AddDependency("leaf", "left")
	g.AddDependency("leaf", "right")

	assert.Equal(t, []string{"root", "left", "right", "leaf"}, g.Closure("root", true, 0))
	assert.Equal(t, []string{"left", "right"}, g.Sources("leaf"))
}

func TestGraph_RemoveKey(t *testing.T) {
	g := NewGraph()
	g.AddDependency("A", "B")
	g.AddDependency("B", "C")
	g.AddDependency("B", "B")
	g.AddDependency("", "C")
	assert.Equal(t, 2, g.Len())

	g.RemoveKey("B")
	assert.Empty(t, g.Dependents("C"))
	assert.Empty(t, g.Sources("A"))
	assert.Equal(t, 0, g.Len())
}

func TestGraph_Forget(t *testing.T) {
	g := NewGraph()
	g.AddDependency("A", "B")
	g.AddDependency("B", "C")

	g.Forget("B")
	assert.Empty(t, g.Dependents("C"))
	assert.Equal(t, []string{"A"}, g.Dependents("B"))
	assert.Equal(t, 1, g.Len())
}

func TestGraph_SourceTags(t *testing.T) {
	g := NewGraph()
	g.TagSource("a", []string{"t"})
	assert.Empty(t, g.SourcesTagged("t"), "keys without dependents are not indexed")

	g.AddDependency("d", "a")
	g.AddDependency("e", "b")
	g.TagSource("a", []string{"t", "u"})
	g.TagSource("b", []string{"u"})
	assert.Equal(t, []string{"a"}, g.SourcesTagged("t"))
	assert.Equal(t, []string{"a", "b"}, g.SourcesTagged("u", "t"))
	assert.Equal(t, []string{"b"}, g.SourcesMatching(regexp.MustCompile(`^b`)))
	assert.Nil(t, g.SourcesMatching(nil))

	g.TagSource("a", []string{"v"})
	assert.Empty(t, g.SourcesTagged("t"), "rewrite replaces tags")
	assert.Equal(t, []string{"a"}, g.SourcesTagged("v"))

	g.Forget("d")
	assert.Empty(t, g.SourcesTagged("v"), "last dependent gone")

	g.RemoveKey("b")
	assert.Empty(t, g.SourcesTagged("u"))
}
