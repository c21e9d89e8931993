package model

// RelationshipType classifies directed edges between components.
type RelationshipType string

const (
	RelContains        RelationshipType = "contains"
	RelCalls           RelationshipType = "calls"
	RelExtends         RelationshipType = "extends"
	RelImplements      RelationshipType = "implements"
	RelImports         RelationshipType = "imports"
	RelReferences      RelationshipType = "references"
	RelEmbeddedInScope RelationshipType = "embedded-in-scope"

	// Specific containment labels chosen from the parent-type x child-type
	// table; all are members of the contains family.
	RelClassContainsMethod        RelationshipType = "class-contains-method"
	RelClassContainsProperty      RelationshipType = "class-contains-property"
	RelInterfaceContainsMethod    RelationshipType = "interface-contains-method"
	RelInterfaceContainsProperty  RelationshipType = "interface-contains-property"
	RelEnumContainsMember         RelationshipType = "enum-contains-member"
	RelModuleContainsFunction     RelationshipType = "module-contains-function"
	RelNamespaceContainsComponent RelationshipType = "namespace-contains-component"
)

// containsFamily is the set of relationship types that express containment.
var containsFamily = map[RelationshipType]bool{
	RelContains:                   true,
	RelClassContainsMethod:        true,
	RelClassContainsProperty:      true,
	RelInterfaceContainsMethod:    true,
	RelInterfaceContainsProperty:  true,
	RelEnumContainsMember:         true,
	RelModuleContainsFunction:     true,
	RelNamespaceContainsComponent: true,
}

// IsContainment reports whether t is a containment-family edge.
func (t RelationshipType) IsContainment() bool {
	return containsFamily[t]
}

// Relationship is a typed, directed edge between two component ids, or
// between a component id and an unresolved symbolic reference.
type Relationship struct {
	ID              string           `json:"id"`
	Type            RelationshipType `json:"type"`
	SourceID        string           `json:"sourceId"`
	TargetID        string           `json:"targetId"`
	Confidence      float64          `json:"confidence"`
	NeedsResolution bool             `json:"needsResolution,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// RelationshipID derives a relationship id from its (source, target, type)
// triple. The id is a pure function of the triple so re-inserting the same
// observation is idempotent.
func RelationshipID(sourceID, targetID string, t RelationshipType) string {
	return sourceID + "->" + targetID + "#" + string(t)
}

// NewRelationship builds a relationship with its derived id.
func NewRelationship(sourceID, targetID string, t RelationshipType, confidence float64) Relationship {
	return Relationship{
		ID:         RelationshipID(sourceID, targetID, t),
		Type:       t,
		SourceID:   sourceID,
		TargetID:   targetID,
		Confidence: ClampConfidence(confidence),
	}
}

// ClampConfidence clamps c into [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
