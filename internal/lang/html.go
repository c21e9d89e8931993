package lang

import (
	"context"
	"regexp"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// HTML is a detector-based support for markup. Embedded script/style/php
// regions are located by the shared block scanner's scope scan, so HTML
// does not implement BoundaryDetector.
type HTML struct{}

var _ parser.LanguageSupport = (*HTML)(nil)

var (
	htmlIDElemRe = regexp.MustCompile(`<([a-zA-Z][\w-]*)\b[^>]*\bid=["']([\w-]+)["'][^>]*>`)
	htmlTitleRe  = regexp.MustCompile(`(?is)<title[^>]*>\s*(.*?)\s*</title>`)
	htmlLinkRe   = regexp.MustCompile(`(?i)<link\b[^>]*\bhref=["']([^"']+)["']`)
	htmlScriptRe = regexp.MustCompile(`(?i)<script\b[^>]*\bsrc=["']([^"']+)["']`)
)

func (s *HTML) Language() string     { return "html" }
func (s *HTML) Extensions() []string { return []string{".html", ".htm", ".xhtml"} }

func (s *HTML) Profile() parser.Profile {
	return parser.Profile{
		Level:        model.LevelBasic,
		Backend:      model.BackendDetectorsOnly,
		Capabilities: []model.Capability{model.CapSymbols, model.CapRanges},
	}
}

// ValidateSyntax is a no-op for markup: browsers are famously lenient
// and so are we.
func (s *HTML) ValidateSyntax([]byte) []model.ParseError { return nil }

func (s *HTML) DetectComponents(_ context.Context, content []byte, filePath string) ([]model.Component, error) {
	text := string(content)
	offsets := lineOffsets(text)
	stack := parser.NewScopeStack(filePath)

	components := []model.Component{parser.FileComponent(filePath, s.Language(), content)}

	if m := htmlTitleRe.FindStringSubmatchIndex(text); m != nil {
		title := text[m[2]:m[3]]
		components = append(components, model.Component{
			ID:       stack.ChildID(model.ComponentSection, "title"),
			Name:     title,
			Type:     model.ComponentSection,
			Language: s.Language(),
			FilePath: filePath,
			Location: model.Location{
				StartLine:   lineOf(offsets, m[0]),
				EndLine:     lineOf(offsets, m[1]-1),
				StartColumn: columnOf(offsets, m[0]),
				EndColumn:   columnOf(offsets, m[1]-1),
			},
		})
	}

	// Elements carrying an id attribute are the addressable structure of
	// a document.
	for _, m := range htmlIDElemRe.FindAllStringSubmatchIndex(text, -1) {
		tag := text[m[2]:m[3]]
		id := text[m[4]:m[5]]
		line := lineOf(offsets, m[0])
		components = append(components, model.Component{
			ID:       stack.ChildID(model.ComponentSection, id),
			Name:     id,
			Type:     model.ComponentSection,
			Language: s.Language(),
			FilePath: filePath,
			Location: model.Location{
				StartLine:   line,
				EndLine:     line,
				StartColumn: columnOf(offsets, m[0]),
				EndColumn:   columnOf(offsets, m[1]-1),
			},
			Metadata: map[string]any{"tag": tag},
		})
	}

	return components, nil
}

// DetectRelationships reports external references (stylesheets, script
// sources) as unresolved imports from the document.
func (s *HTML) DetectRelationships(_ context.Context, content []byte, filePath string, _ []model.Component) ([]model.Relationship, error) {
	text := string(content)
	sourceID := model.ComponentID(parser.FileBase(filePath))

	var rels []model.Relationship
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{htmlLinkRe, htmlScriptRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			rel := model.NewRelationship(sourceID, m[1], model.RelImports, 0.8)
			rel.NeedsResolution = true
			if seen[rel.ID] {
				continue
			}
			seen[rel.ID] = true
			rels = append(rels, rel)
		}
	}
	return rels, nil
}
