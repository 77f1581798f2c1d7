package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidComponent(t *testing.T) {
	assert.True(t, IsValidComponent("app1"))
	assert.False(t, IsValidComponent(""))
	assert.False(t, IsValidComponent("a/b"))
}

func TestComposeHierarchy(t *testing.T) {
	app := Application("app1")
	assert.Equal(t, "/clusterlib/1.0/root/applications/app1", app)

	g := Group(app, "g")
	assert.Equal(t, app+"/groups/g", g)

	n := Node(g, "n1")
	assert.Equal(t, g+"/nodes/n1", n)

	d := DataDistribution(g, "d")
	assert.Equal(t, g+"/distributions/d", d)

	p := PropertyList(n, "p")
	assert.Equal(t, n+"/propertyLists/p", p)

	q := Queue(g, "q")
	assert.Equal(t, g+"/queues/q", q)

	ps := ProcessSlot(n, "s1")
	assert.Equal(t, n+"/processSlots/s1", ps)
}

func TestNameAndParentKey(t *testing.T) {
	app := Application("app1")
	g := Group(app, "g")
	n := Node(g, "n1")

	assert.Equal(t, "n1", Name(n))
	assert.Equal(t, g, ParentKey(n))
	assert.Equal(t, app, ParentKey(g))
}

func TestAttribute(t *testing.T) {
	app := Application("app1")
	assert.Equal(t, app+"/clientState", Attribute(app, "clientState"))
}
