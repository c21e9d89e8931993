package parser

import (
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
)

// containmentLabels maps (parent type, child type) pairs to the specific
// containment edge label. Unmatched pairs fall back to the generic
// contains edge.
var containmentLabels = map[[2]model.ComponentType]model.RelationshipType{
	{model.ComponentClass, model.ComponentMethod}:         model.RelClassContainsMethod,
	{model.ComponentClass, model.ComponentConstructor}:    model.RelClassContainsMethod,
	{model.ComponentClass, model.ComponentAccessor}:       model.RelClassContainsMethod,
	{model.ComponentClass, model.ComponentProperty}:       model.RelClassContainsProperty,
	{model.ComponentClass, model.ComponentVariable}:       model.RelClassContainsProperty,
	{model.ComponentInterface, model.ComponentMethod}:     model.RelInterfaceContainsMethod,
	{model.ComponentInterface, model.ComponentProperty}:   model.RelInterfaceContainsProperty,
	{model.ComponentEnum, model.ComponentVariable}:        model.RelEnumContainsMember,
	{model.ComponentEnum, model.ComponentProperty}:        model.RelEnumContainsMember,
	{model.ComponentModule, model.ComponentFunction}:      model.RelModuleContainsFunction,
	{model.ComponentNamespace, model.ComponentClass}:      model.RelNamespaceContainsComponent,
	{model.ComponentNamespace, model.ComponentInterface}:  model.RelNamespaceContainsComponent,
	{model.ComponentNamespace, model.ComponentFunction}:   model.RelNamespaceContainsComponent,
	{model.ComponentNamespace, model.ComponentVariable}:   model.RelNamespaceContainsComponent,
}

// containmentLabel picks the edge label for a parent/child type pair.
func containmentLabel(parent, child model.ComponentType) model.RelationshipType {
	if label, ok := containmentLabels[[2]model.ComponentType{parent, child}]; ok {
		return label
	}
	return model.RelContains
}

// InferContainment derives containment edges for a flat component list.
// No AST is assumed: structure comes from (i) the parent segment encoded
// in each hierarchical id and (ii) proximity (smallest container whose
// line range encloses the member). Components left uncovered are linked
// to the file component so every non-file component has at least one
// incoming containment edge. ParentID fields are filled as a side effect.
func InferContainment(components []model.Component) []model.Relationship {
	var file *model.Component
	byName := make(map[string][]*model.Component)
	for i := range components {
		c := &components[i]
		if c.Type == model.ComponentFile && file == nil {
			file = c
		}
		byName[c.Name] = append(byName[c.Name], c)
	}

	var edges []model.Relationship
	seen := make(map[string]bool)
	add := func(parent, child *model.Component, confidence float64) {
		t := containmentLabel(parent.Type, child.Type)
		rel := model.NewRelationship(parent.ID, child.ID, t, confidence)
		if seen[rel.ID] {
			return
		}
		seen[rel.ID] = true
		edges = append(edges, rel)
		if child.ParentID == "" {
			child.ParentID = parent.ID
		}
	}

	for i := range components {
		child := &components[i]
		if child.Type == model.ComponentFile {
			continue
		}

		if parent := matchDeclaredParent(child, byName); parent != nil {
			add(parent, child, 0.9)
			continue
		}

		if parent := matchByProximity(child, components); parent != nil {
			add(parent, child, 0.75)
			continue
		}

		if file != nil && file != child {
			add(file, child, 0.6)
		}
	}
	return edges
}

// matchDeclaredParent resolves the parent-name segment encoded in the
// child's hierarchical id to a container-eligible component.
func matchDeclaredParent(child *model.Component, byName map[string][]*model.Component) *model.Component {
	seg := model.ParentSegment(child.ID)
	if seg == "" {
		return nil
	}
	name := model.SegmentName(seg)
	for _, cand := range byName[name] {
		if cand == child || !cand.Type.IsContainer() || cand.Type == model.ComponentFile {
			continue
		}
		// The declared parent must actually be a prefix of the child id.
		if strings.HasPrefix(child.ID, cand.ID+model.ScopeSeparator) {
			return cand
		}
	}
	// Fall back to name+type match for ids built by flat extraction.
	for _, cand := range byName[name] {
		if cand != child && cand.Type.IsContainer() && cand.Type != model.ComponentFile {
			return cand
		}
	}
	return nil
}

// matchByProximity finds the smallest container component whose line
// range fully encloses the child's range.
func matchByProximity(child *model.Component, components []model.Component) *model.Component {
	var best *model.Component
	for i := range components {
		cand := &components[i]
		if cand == child || !cand.Type.IsContainer() || cand.Type == model.ComponentFile {
			continue
		}
		if !cand.Location.Contains(child.Location) {
			continue
		}
		if best == nil || cand.Location.LineSpan() < best.Location.LineSpan() {
			best = cand
		}
	}
	return best
}
