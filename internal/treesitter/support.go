// Package treesitter provides grammar-backed language supports for Go,
// Python, Rust, and TypeScript. These parse at semantic level with the
// tree-sitter backend. A new tree-sitter parser is created per call, so
// a Support is safe for sequential reuse across files.
package treesitter

import (
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// extractor walks a parsed tree and emits components and relationships.
type extractor interface {
	Extract(root *tree_sitter.Node, source []byte, filePath string) ([]model.Component, []model.Relationship)
}

// Support implements parser.LanguageSupport over a tree-sitter grammar.
type Support struct {
	language   string
	extensions []string
	tsLang     *tree_sitter.Language
	ext        extractor
}

var _ parser.LanguageSupport = (*Support)(nil)

func (s *Support) Language() string     { return s.language }
func (s *Support) Extensions() []string { return s.extensions }

func (s *Support) Profile() parser.Profile {
	return parser.Profile{
		Level:   model.LevelSemantic,
		Backend: model.BackendTreeSitter,
		Capabilities: []model.Capability{
			model.CapSymbols, model.CapRelationships, model.CapRanges, model.CapTypes,
		},
	}
}

// maxSyntaxErrors caps the diagnostics reported per file.
const maxSyntaxErrors = 10

// ValidateSyntax reports tree-sitter ERROR nodes. The backend is known
// to produce false positives on valid-but-unusual input, so these are
// advisory: extraction continues regardless.
func (s *Support) ValidateSyntax(content []byte) []model.ParseError {
	tree, err := s.parse(content)
	if err != nil {
		return []model.ParseError{{
			Message:  err.Error(),
			Severity: model.SeverityError,
			Code:     model.CodeSyntaxError,
			Source:   s.language + "-parser",
		}}
	}
	defer tree.Close()

	var errs []model.ParseError
	collectErrorNodes(tree.RootNode(), &errs, s.language)
	return errs
}

func collectErrorNodes(node *tree_sitter.Node, errs *[]model.ParseError, language string) {
	if len(*errs) >= maxSyntaxErrors {
		return
	}
	if node.IsError() || node.IsMissing() {
		loc := nodeLocation(node)
		*errs = append(*errs, model.ParseError{
			Message:  fmt.Sprintf("syntax error near line %d", loc.StartLine),
			Severity: model.SeverityError,
			Location: &loc,
			Code:     model.CodeSyntaxError,
			Source:   language + "-parser",
		})
		return
	}
	if !node.HasError() {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			collectErrorNodes(child, errs, language)
		}
	}
}

func (s *Support) DetectComponents(_ context.Context, content []byte, filePath string) ([]model.Component, error) {
	tree, err := s.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	components := []model.Component{parser.FileComponent(filePath, s.language, content)}
	extracted, _ := s.ext.Extract(tree.RootNode(), content, filePath)
	components = append(components, extracted...)
	return components, nil
}

func (s *Support) DetectRelationships(_ context.Context, content []byte, filePath string, components []model.Component) ([]model.Relationship, error) {
	tree, err := s.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	_, rels := s.ext.Extract(tree.RootNode(), content, filePath)
	return resolveTargets(rels, components), nil
}

func (s *Support) parse(content []byte) (*tree_sitter.Tree, error) {
	p := tree_sitter.NewParser()
	defer p.Close()
	if err := p.SetLanguage(s.tsLang); err != nil {
		return nil, fmt.Errorf("treesitter: set language %s: %w", s.language, err)
	}
	tree := p.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("treesitter: nil tree for %s", s.language)
	}
	return tree, nil
}

// resolveTargets rewrites edges whose target is a bare symbol name to
// the matching component id when one exists; everything else stays an
// unresolved symbolic reference.
func resolveTargets(rels []model.Relationship, components []model.Component) []model.Relationship {
	byName := make(map[string]string, len(components))
	for _, c := range components {
		if _, ok := byName[c.Name]; !ok {
			byName[c.Name] = c.ID
		}
	}
	out := make([]model.Relationship, 0, len(rels))
	seen := make(map[string]bool, len(rels))
	for _, rel := range rels {
		if rel.NeedsResolution && rel.Type != model.RelImports {
			if id, ok := byName[rel.TargetID]; ok {
				rel.TargetID = id
				rel.NeedsResolution = false
			}
		}
		rel.ID = model.RelationshipID(rel.SourceID, rel.TargetID, rel.Type)
		if seen[rel.ID] {
			continue
		}
		seen[rel.ID] = true
		out = append(out, rel)
	}
	return out
}

// --- shared node helpers ---

// nodeLocation converts tree-sitter's 0-based positions to the model's
// 1-based inclusive Location.
func nodeLocation(node *tree_sitter.Node) model.Location {
	start := node.StartPosition()
	end := node.EndPosition()
	return model.Location{
		StartLine:   int(start.Row) + 1,
		EndLine:     int(end.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndColumn:   int(end.Column) + 1,
	}
}

// maxCodeSlice bounds the verbatim source stored on a component.
const maxCodeSlice = 2000

func nodeCode(node *tree_sitter.Node, source []byte) string {
	code := node.Utf8Text(source)
	if len(code) > maxCodeSlice {
		code = code[:maxCodeSlice]
	}
	return code
}

// fieldText returns the text of a named child field, or "".
func fieldText(node *tree_sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Utf8Text(source)
}

// semanticEdgeConfidence is the confidence assigned to edges observed
// directly in a parsed syntax tree.
const semanticEdgeConfidence = 0.9

// callSite is a raw call observation pending attribution to its
// enclosing callable.
type callSite struct {
	line   int
	callee string
}

// attributeCalls turns raw call sites into call edges sourced from the
// smallest enclosing callable, or from the file when the call sits at
// top level. Targets start as symbolic names; resolveTargets maps them
// to component ids afterwards.
func attributeCalls(sites []callSite, components []model.Component, fileID string) []model.Relationship {
	rels := make([]model.Relationship, 0, len(sites))
	for _, site := range sites {
		source := enclosingCallable(components, site.line)
		if source == "" {
			source = fileID
		}
		rel := model.NewRelationship(source, site.callee, model.RelCalls, semanticEdgeConfidence)
		rel.NeedsResolution = true
		rels = append(rels, rel)
	}
	return rels
}

// importEdge builds an unresolved import edge from the file component.
func importEdge(fileID, path string) model.Relationship {
	rel := model.NewRelationship(fileID, path, model.RelImports, semanticEdgeConfidence)
	rel.NeedsResolution = true
	return rel
}

// enclosingCallable finds the component whose range contains line and is
// callable, preferring the smallest. Used to attribute call edges.
func enclosingCallable(components []model.Component, line int) string {
	best := ""
	bestSpan := 0
	for _, c := range components {
		switch c.Type {
		case model.ComponentFunction, model.ComponentMethod, model.ComponentConstructor:
		default:
			continue
		}
		if line < c.Location.StartLine || line > c.Location.EndLine {
			continue
		}
		span := c.Location.LineSpan()
		if best == "" || span < bestSpan {
			best = c.ID
			bestSpan = span
		}
	}
	return best
}
