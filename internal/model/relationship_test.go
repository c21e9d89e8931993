package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationshipID_Deterministic(t *testing.T) {
	a := RelationshipID("src", "dst", RelCalls)
	b := RelationshipID("src", "dst", RelCalls)
	assert.Equal(t, a, b)
	assert.Equal(t, "src->dst#calls", a)
}

func TestRelationshipID_DistinguishesType(t *testing.T) {
	assert.NotEqual(t,
		RelationshipID("src", "dst", RelCalls),
		RelationshipID("src", "dst", RelImports))
}

func TestNewRelationship_ClampsConfidence(t *testing.T) {
	low := NewRelationship("a", "b", RelCalls, -1)
	high := NewRelationship("a", "b", RelCalls, 2)
	assert.Equal(t, 0.0, low.Confidence)
	assert.Equal(t, 1.0, high.Confidence)
}

func TestIsContainment_Family(t *testing.T) {
	assert.True(t, RelContains.IsContainment())
	assert.True(t, RelClassContainsMethod.IsContainment())
	assert.False(t, RelCalls.IsContainment())
	assert.False(t, RelEmbeddedInScope.IsContainment())
}
