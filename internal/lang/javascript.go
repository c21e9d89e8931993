package lang

import (
	"context"
	"regexp"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// JavaScript is a detector-based support for JavaScript source.
type JavaScript struct{}

var _ parser.LanguageSupport = (*JavaScript)(nil)

var (
	jsClassRe  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?class\s+(\w+)`)
	jsFuncRe   = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`)
	jsArrowRe  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:\([^)\n]*\)|\w+)\s*=>`)
	jsMethodRe = regexp.MustCompile(`(?m)^\s+(?:static\s+)?(?:async\s+)?(get\s+|set\s+)?(\w+)\s*\([^)\n]*\)\s*\{`)
)

// jsKeywords are control keywords that jsMethodRe would otherwise match.
var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"catch": true, "function": true, "return": true,
}

func (s *JavaScript) Language() string      { return "javascript" }
func (s *JavaScript) Extensions() []string  { return []string{".js", ".jsx", ".mjs", ".cjs"} }

func (s *JavaScript) Profile() parser.Profile {
	return parser.Profile{
		Level:        model.LevelStructural,
		Backend:      model.BackendDetectorsOnly,
		Capabilities: []model.Capability{model.CapSymbols, model.CapRelationships, model.CapRanges},
	}
}

func (s *JavaScript) ValidateSyntax(content []byte) []model.ParseError {
	if balancedBraces(string(content)) {
		return nil
	}
	return []model.ParseError{{
		Message:  "unbalanced braces",
		Severity: model.SeverityError,
		Code:     model.CodeSyntaxError,
		Source:   "javascript-parser",
	}}
}

func (s *JavaScript) DetectComponents(_ context.Context, content []byte, filePath string) ([]model.Component, error) {
	text := string(content)
	offsets := lineOffsets(text)
	stack := parser.NewScopeStack(filePath)

	components := []model.Component{parser.FileComponent(filePath, s.Language(), content)}

	for _, m := range jsClassRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		end := findBlockEnd(text, m[1])
		classID := stack.Push(model.ComponentClass, name)
		components = append(components, model.Component{
			ID:       classID,
			Name:     name,
			Type:     model.ComponentClass,
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
		components = append(components, s.classMembers(text, offsets, filePath, stack, m[0], end)...)
		stack.Pop()
	}

	for _, m := range jsFuncRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		if insideAny(components, lineOf(offsets, m[0])) {
			continue
		}
		end := findBlockEnd(text, m[1])
		components = append(components, model.Component{
			ID:       stack.ChildID(model.ComponentFunction, name),
			Name:     name,
			Type:     model.ComponentFunction,
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

	for _, m := range jsArrowRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		if insideAny(components, lineOf(offsets, m[0])) {
			continue
		}
		end := findBlockEnd(text, m[1])
		components = append(components, model.Component{
			ID:       stack.ChildID(model.ComponentFunction, name),
			Name:     name,
			Type:     model.ComponentFunction,
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

	return components, nil
}

// classMembers extracts methods, accessors, and the constructor from a
// class body delimited by [bodyStart, bodyEnd].
func (s *JavaScript) classMembers(text string, offsets []int, filePath string, stack *parser.ScopeStack, bodyStart, bodyEnd int) []model.Component {
	var members []model.Component
	body := text[bodyStart : bodyEnd+1]

	for _, m := range jsMethodRe.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[4]:m[5]]
		if jsKeywords[name] {
			continue
		}
		t := model.ComponentMethod
		if name == "constructor" {
			t = model.ComponentConstructor
		} else if m[2] >= 0 {
			t = model.ComponentAccessor
		}
		abs := bodyStart + m[0]
		end := findBlockEnd(text, bodyStart+m[1]-1)
		members = append(members, model.Component{
			ID:       stack.ChildID(t, name),
			Name:     name,
			Type:     t,
			Language: s.Language(),
			FilePath: filePath,
			Location: model.Location{
				StartLine:   lineOf(offsets, abs),
				EndLine:     lineOf(offsets, end),
				StartColumn: columnOf(offsets, abs),
				EndColumn:   columnOf(offsets, end),
			},
			Code: sliceCode(text, abs, end+1),
		})
	}
	return members
}

func (s *JavaScript) DetectRelationships(_ context.Context, content []byte, filePath string, components []model.Component) ([]model.Relationship, error) {
	text := string(content)
	var rels []model.Relationship
	rels = append(rels, parser.DetectCallEdges(components)...)
	rels = append(rels, parser.DetectInheritanceEdges(text, components, "c-like")...)
	rels = append(rels, parser.DetectImportEdges(text, filePath, "javascript")...)
	return rels, nil
}

// insideAny reports whether line falls inside an already extracted
// class-like component, keeping nested declarations from double
// registration at top level.
func insideAny(components []model.Component, line int) bool {
	for _, c := range components {
		if c.Type != model.ComponentClass && c.Type != model.ComponentInterface {
			continue
		}
		if line > c.Location.StartLine && line < c.Location.EndLine {
			return true
		}
	}
	return false
}

// TypeScriptDetector is the detector-based fallback for TypeScript when
// the grammar-backed support is unavailable (e.g. inside script tags
// typed lang=ts). It reuses the JavaScript extraction with TS
// extensions.
type TypeScriptDetector struct {
	JavaScript
}

func (s *TypeScriptDetector) Language() string     { return "typescript" }
func (s *TypeScriptDetector) Extensions() []string { return []string{".ts", ".tsx"} }

func (s *TypeScriptDetector) DetectRelationships(ctx context.Context, content []byte, filePath string, components []model.Component) ([]model.Relationship, error) {
	text := string(content)
	var rels []model.Relationship
	rels = append(rels, parser.DetectCallEdges(components)...)
	rels = append(rels, parser.DetectInheritanceEdges(text, components, "c-like")...)
	rels = append(rels, parser.DetectImportEdges(text, filePath, "typescript")...)
	return rels, nil
}

// jsStripComments is exported for reuse by sibling supports that share
// the brace-matching extraction but need comment-free text first.
func jsStripComments(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '/' && i+1 < len(text) {
			if text[i+1] == '/' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
				sb.WriteByte('\n')
				continue
			}
			if text[i+1] == '*' {
				j := strings.Index(text[i+2:], "*/")
				if j < 0 {
					break
				}
				// Preserve line structure inside the comment.
				sb.WriteString(strings.Repeat("\n", strings.Count(text[i:i+2+j+2], "\n")))
				i += 2 + j + 1
				continue
			}
		}
		sb.WriteByte(text[i])
	}
	return sb.String()
}
