package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentID_Hierarchy(t *testing.T) {
	id := ComponentID("Foo",
		ScopeSegment(ComponentClass, "Foo"),
		ScopeSegment(ComponentMethod, "bar"))
	assert.Equal(t, "Foo|class:Foo|method:bar", id)
}

func TestComponentID_FileLevel(t *testing.T) {
	assert.Equal(t, "Foo", ComponentID("Foo"))
}

func TestParentSegment(t *testing.T) {
	assert.Equal(t, "class:Foo", ParentSegment("Foo|class:Foo|method:bar"))
	assert.Equal(t, "", ParentSegment("Foo|class:Foo"), "single-segment ids declare no parent")
	assert.Equal(t, "", ParentSegment("Foo"))
}

func TestSegmentName(t *testing.T) {
	assert.Equal(t, "bar", SegmentName("method:bar"))
	assert.Equal(t, "plain", SegmentName("plain"))
}

func TestLocation_Contains(t *testing.T) {
	outer := Location{StartLine: 1, EndLine: 10}
	inner := Location{StartLine: 3, EndLine: 5}
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
}

func TestComponentType_IsContainer(t *testing.T) {
	assert.True(t, ComponentClass.IsContainer())
	assert.True(t, ComponentFile.IsContainer())
	assert.False(t, ComponentMethod.IsContainer())
}
