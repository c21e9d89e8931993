package lang

import (
	"context"
	"regexp"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// CSS is a detector-based support for stylesheets, a typical delegate
// for style regions inside markup.
type CSS struct{}

var _ parser.LanguageSupport = (*CSS)(nil)

var (
	cssRuleRe   = regexp.MustCompile(`(?m)^\s*([^@{}\s][^{]*?)\s*\{`)
	cssAtRe     = regexp.MustCompile(`(?m)^\s*(@(?:media|supports|keyframes)[^{]*)\{`)
	cssImportRe = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']?([^"')\s;]+)`)
)

func (s *CSS) Language() string     { return "css" }
func (s *CSS) Extensions() []string { return []string{".css", ".scss", ".less"} }

func (s *CSS) Profile() parser.Profile {
	return parser.Profile{
		Level:        model.LevelBasic,
		Backend:      model.BackendDetectorsOnly,
		Capabilities: []model.Capability{model.CapSymbols, model.CapRanges},
	}
}

func (s *CSS) ValidateSyntax(content []byte) []model.ParseError {
	if balancedBraces(string(content)) {
		return nil
	}
	return []model.ParseError{{
		Message:  "unbalanced braces",
		Severity: model.SeverityError,
		Code:     model.CodeSyntaxError,
		Source:   "css-parser",
	}}
}

func (s *CSS) DetectComponents(_ context.Context, content []byte, filePath string) ([]model.Component, error) {
	text := string(content)
	offsets := lineOffsets(text)
	stack := parser.NewScopeStack(filePath)

	components := []model.Component{parser.FileComponent(filePath, s.Language(), content)}
	seen := make(map[string]bool)

	for _, re := range []*regexp.Regexp{cssAtRe, cssRuleRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			selector := strings.Join(strings.Fields(text[m[2]:m[3]]), " ")
			if selector == "" {
				continue
			}
			end := findBlockEnd(text, m[1]-1)
			id := stack.ChildID(model.ComponentSection, selector)
			if seen[id] {
				continue
			}
			seen[id] = true
			components = append(components, model.Component{
				ID:       id,
				Name:     selector,
				Type:     model.ComponentSection,
				Language: s.Language(),
				FilePath: filePath,
				Location: model.Location{
					StartLine:   lineOf(offsets, m[0]),
					EndLine:     lineOf(offsets, end),
					StartColumn: columnOf(offsets, m[0]),
					EndColumn:   columnOf(offsets, end),
				},
				Code: sliceCode(text, m[0], end+1),
			})
		}
	}

	return components, nil
}

func (s *CSS) DetectRelationships(_ context.Context, content []byte, filePath string, _ []model.Component) ([]model.Relationship, error) {
	sourceID := model.ComponentID(parser.FileBase(filePath))
	var rels []model.Relationship
	seen := make(map[string]bool)
	for _, m := range cssImportRe.FindAllStringSubmatch(string(content), -1) {
		rel := model.NewRelationship(sourceID, m[1], model.RelImports, 0.8)
		rel.NeedsResolution = true
		if seen[rel.ID] {
			continue
		}
		seen[rel.ID] = true
		rels = append(rels, rel)
	}
	return rels, nil
}
