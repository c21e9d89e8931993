package parser

import (
	"regexp"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
)

// Generic cross-cutting relationship extraction, usable by any language
// support when richer analysis is unavailable. All heuristics are
// best-effort: moderate confidence, never an error.

// callableTypes are component types that can appear as callers/callees.
var callableTypes = map[model.ComponentType]bool{
	model.ComponentFunction:    true,
	model.ComponentMethod:      true,
	model.ComponentConstructor: true,
	model.ComponentAccessor:    true,
}

// DetectCallEdges flags a calls edge whenever a callee's name appears as
// a word immediately followed by an opening parenthesis inside a
// caller's source slice. One pattern is compiled per callee, not per
// (caller, callee) pair.
func DetectCallEdges(components []model.Component) []model.Relationship {
	var edges []model.Relationship
	seen := make(map[string]bool)

	for j := range components {
		callee := &components[j]
		if !callableTypes[callee.Type] || callee.Name == "" {
			continue
		}
		var re *regexp.Regexp
		for i := range components {
			caller := &components[i]
			// Same-name pairs would match the caller's own declaration
			// line, so skip them before touching the pattern.
			if i == j || !callableTypes[caller.Type] || caller.Code == "" || caller.Name == callee.Name {
				continue
			}
			if re == nil {
				var err error
				re, err = regexp.Compile(`\b` + regexp.QuoteMeta(callee.Name) + `\s*\(`)
				if err != nil {
					break
				}
			}
			if !re.MatchString(caller.Code) {
				continue
			}
			rel := model.NewRelationship(caller.ID, callee.ID, model.RelCalls, 0.6)
			if seen[rel.ID] {
				continue
			}
			seen[rel.ID] = true
			edges = append(edges, rel)
		}
	}
	return edges
}

// inheritancePatterns per language family. Group 1 is the child name,
// group 2 the parent list.
var (
	extendsRe    = regexp.MustCompile(`\bclass\s+(\w+)[^{]*?\bextends\s+([\w.\\]+)`)
	implementsRe = regexp.MustCompile(`\bclass\s+(\w+)[^{]*?\bimplements\s+([\w.\\,\s]+?)\s*(?:\{|$)`)
	ifaceExtRe   = regexp.MustCompile(`\binterface\s+(\w+)\s+extends\s+([\w.\\,\s]+?)\s*(?:\{|$)`)
	pythonBaseRe = regexp.MustCompile(`(?m)^\s*class\s+(\w+)\s*\(([^)]+)\)\s*:`)
)

// DetectInheritanceEdges pattern-matches extends/implements-style header
// syntax. family is "c-like" (java/js/ts/php) or "python".
func DetectInheritanceEdges(content string, components []model.Component, family string) []model.Relationship {
	byName := make(map[string]*model.Component)
	for i := range components {
		c := &components[i]
		if _, ok := byName[c.Name]; !ok {
			byName[c.Name] = c
		}
	}

	var edges []model.Relationship
	seen := make(map[string]bool)
	add := func(childName, parentName string, t model.RelationshipType) {
		child, ok := byName[childName]
		if !ok {
			return
		}
		parentName = strings.TrimSpace(parentName)
		if parentName == "" || parentName == "object" {
			return
		}
		targetID := parentName
		needs := true
		if parent, ok := byName[parentName]; ok {
			targetID = parent.ID
			needs = false
		}
		rel := model.NewRelationship(child.ID, targetID, t, 0.8)
		rel.NeedsResolution = needs
		if seen[rel.ID] {
			return
		}
		seen[rel.ID] = true
		edges = append(edges, rel)
	}

	switch family {
	case "python":
		for _, m := range pythonBaseRe.FindAllStringSubmatch(content, -1) {
			for _, base := range strings.Split(m[2], ",") {
				add(m[1], base, model.RelExtends)
			}
		}
	default: // c-like
		for _, m := range extendsRe.FindAllStringSubmatch(content, -1) {
			add(m[1], m[2], model.RelExtends)
		}
		for _, m := range implementsRe.FindAllStringSubmatch(content, -1) {
			for _, iface := range strings.Split(m[2], ",") {
				add(m[1], iface, model.RelImplements)
			}
		}
		for _, m := range ifaceExtRe.FindAllStringSubmatch(content, -1) {
			for _, parent := range strings.Split(m[2], ",") {
				add(m[1], parent, model.RelExtends)
			}
		}
	}
	return edges
}

// importPatterns per language. Group 1 (or the first non-empty group) is
// the import specifier.
var importPatterns = map[string][]*regexp.Regexp{
	"javascript": {
		regexp.MustCompile(`(?m)^\s*import\s+(?:[\w${},*\s]+\s+from\s+)?['"]([^'"]+)['"]`),
		regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`),
	},
	"typescript": {
		regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?(?:[\w${},*\s]+\s+from\s+)?['"]([^'"]+)['"]`),
	},
	"python": {
		regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`),
		regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
	},
	"go": {
		regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s+)?"([^"]+)"`),
		regexp.MustCompile(`(?m)^\s*(?:\w+\s+)?"([^"]+)"\s*$`),
	},
	"php": {
		regexp.MustCompile(`(?m)^\s*use\s+([\w\\]+)`),
		regexp.MustCompile(`\b(?:require|include)(?:_once)?\s*\(?\s*['"]([^'"]+)['"]`),
	},
	"rust": {
		regexp.MustCompile(`(?m)^\s*use\s+([\w:]+)`),
	},
}

// DetectImportEdges pattern-matches per-language import syntax. Targets
// are unresolved symbolic references (the target file has not been
// located), so every edge is marked NeedsResolution.
func DetectImportEdges(content, filePath, language string) []model.Relationship {
	patterns, ok := importPatterns[language]
	if !ok {
		return nil
	}

	sourceID := model.ComponentID(FileBase(filePath))
	var edges []model.Relationship
	seen := make(map[string]bool)

	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			target := strings.TrimSpace(m[1])
			if target == "" {
				continue
			}
			rel := model.NewRelationship(sourceID, target, model.RelImports, 0.8)
			rel.NeedsResolution = true
			if seen[rel.ID] {
				continue
			}
			seen[rel.ID] = true
			edges = append(edges, rel)
		}
	}
	return edges
}
