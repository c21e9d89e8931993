package lang

import (
	"context"
	"regexp"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// PHP is a detector-based support for PHP source. PHP files commonly
// interleave HTML, so this support locates the HTML spans between its
// own tags itself (BoundaryDetector) instead of using the shared
// scanner, which would report the PHP regions.
type PHP struct{}

var (
	_ parser.LanguageSupport  = (*PHP)(nil)
	_ parser.BoundaryDetector = (*PHP)(nil)
)

var (
	phpOpenRe     = regexp.MustCompile(`<\?(?:php\b|=)`)
	phpClassRe    = regexp.MustCompile(`(?m)^\s*(?:abstract\s+|final\s+)?class\s+(\w+)`)
	phpIfaceRe    = regexp.MustCompile(`(?m)^\s*interface\s+(\w+)`)
	phpFuncRe     = regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|protected\s+)?(?:static\s+)?function\s+&?(\w+)\s*\(`)
	phpPropertyRe = regexp.MustCompile(`(?m)^\s*(?:public|private|protected)\s+(?:static\s+)?(?:\??[\w\\]+\s+)?\$(\w+)`)
	htmlTagRe     = regexp.MustCompile(`<\s*[a-zA-Z!]`)
)

func (s *PHP) Language() string     { return "php" }
func (s *PHP) Extensions() []string { return []string{".php", ".phtml"} }

func (s *PHP) Profile() parser.Profile {
	return parser.Profile{
		Level:        model.LevelStructural,
		Backend:      model.BackendDetectorsOnly,
		Capabilities: []model.Capability{model.CapSymbols, model.CapRelationships, model.CapRanges},
	}
}

func (s *PHP) ValidateSyntax(content []byte) []model.ParseError {
	text := string(content)
	// Only the PHP regions are held to PHP syntax; interleaved HTML is
	// expected and not an error.
	for _, span := range phpSpans(text) {
		if !balancedBraces(jsStripComments(text[span[0]:span[1]])) {
			return []model.ParseError{{
				Message:  "unbalanced braces in php region",
				Severity: model.SeverityError,
				Code:     model.CodeSyntaxError,
				Source:   "php-parser",
			}}
		}
	}
	return nil
}

func (s *PHP) DetectComponents(_ context.Context, content []byte, filePath string) ([]model.Component, error) {
	text := string(content)
	offsets := lineOffsets(text)
	stack := parser.NewScopeStack(filePath)

	components := []model.Component{parser.FileComponent(filePath, s.Language(), content)}

	type classSpan struct {
		id         string
		start, end int
	}
	var classes []classSpan

	for _, re := range []*regexp.Regexp{phpClassRe, phpIfaceRe} {
		t := model.ComponentClass
		if re == phpIfaceRe {
			t = model.ComponentInterface
		}
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			name := text[m[2]:m[3]]
			end := findBlockEnd(text, m[1])
			id := stack.ChildID(t, name)
			components = append(components, model.Component{
				ID:       id,
				Name:     name,
				Type:     t,
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
			classes = append(classes, classSpan{id: id, start: m[0], end: end})
		}
	}

	for _, m := range phpFuncRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		end := findBlockEnd(text, m[1])
		loc := model.Location{
			StartLine:   lineOf(offsets, m[0]),
			EndLine:     lineOf(offsets, end),
			StartColumn: columnOf(offsets, m[0]),
			EndColumn:   columnOf(offsets, end),
		}

		// Functions inside a class body are methods under that class's
		// scope; free functions hang off the file root.
		t := model.ComponentFunction
		id := ""
		for _, cs := range classes {
			if m[0] > cs.start && m[0] < cs.end {
				t = model.ComponentMethod
				if name == "__construct" {
					t = model.ComponentConstructor
				}
				id = cs.id + model.ScopeSeparator + model.ScopeSegment(t, name)
				break
			}
		}
		if id == "" {
			id = stack.ChildID(t, name)
		}

		components = append(components, model.Component{
			ID:       id,
			Name:     name,
			Type:     t,
			Language: s.Language(),
			FilePath: filePath,
			Location: loc,
			Code:     sliceCode(text, m[0], end+1),
		})
	}

	for _, m := range phpPropertyRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		line := lineOf(offsets, m[0])
		id := stack.ChildID(model.ComponentProperty, name)
		for _, cs := range classes {
			if m[0] > cs.start && m[0] < cs.end {
				id = cs.id + model.ScopeSeparator + model.ScopeSegment(model.ComponentProperty, name)
				break
			}
		}
		components = append(components, model.Component{
			ID:       id,
			Name:     name,
			Type:     model.ComponentProperty,
			Language: s.Language(),
			FilePath: filePath,
			Location: model.Location{
				StartLine:   line,
				EndLine:     line,
				StartColumn: columnOf(offsets, m[0]),
				EndColumn:   columnOf(offsets, m[1]),
			},
		})
	}

	return components, nil
}

func (s *PHP) DetectRelationships(_ context.Context, content []byte, filePath string, components []model.Component) ([]model.Relationship, error) {
	text := string(content)
	var rels []model.Relationship
	rels = append(rels, parser.DetectCallEdges(components)...)
	rels = append(rels, parser.DetectInheritanceEdges(text, components, "c-like")...)
	rels = append(rels, parser.DetectImportEdges(text, filePath, "php")...)
	return rels, nil
}

// DetectBoundaries returns the HTML spans lying outside the file's
// <?php ... ?> regions. Coordinates are in the containing file's space.
func (s *PHP) DetectBoundaries(content []byte, _ string) []model.CodeBlock {
	text := string(content)
	offsets := lineOffsets(text)
	spans := phpSpans(text)

	var blocks []model.CodeBlock
	addGap := func(start, end int) {
		gap := text[start:end]
		if strings.TrimSpace(gap) == "" || !htmlTagRe.MatchString(gap) {
			return
		}
		// Trim leading/trailing blank space so the block covers content.
		lead := len(gap) - len(strings.TrimLeft(gap, " \t\r\n"))
		trail := len(gap) - len(strings.TrimRight(gap, " \t\r\n"))
		s0, e0 := start+lead, end-trail
		blocks = append(blocks, model.CodeBlock{
			Language:    "html",
			StartLine:   lineOf(offsets, s0),
			EndLine:     lineOf(offsets, e0-1),
			StartColumn: columnOf(offsets, s0),
			EndColumn:   columnOf(offsets, e0-1),
			StartByte:   s0,
			EndByte:     e0,
			Confidence:  0.85,
			Source:      model.BlockSourceDetector,
			Metadata: map[string]any{
				"detector":    "php-gap",
				"startMarker": "?>",
				"endMarker":   "<?php",
			},
		})
	}

	prev := 0
	for _, span := range spans {
		addGap(prev, span[0])
		prev = span[1]
	}
	addGap(prev, len(text))
	return blocks
}

// phpSpans returns the byte ranges of <?php ... ?> regions, inclusive of
// the tags. A missing closing tag extends the final region to EOF.
func phpSpans(text string) [][2]int {
	var spans [][2]int
	pos := 0
	for {
		loc := phpOpenRe.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		close := strings.Index(text[pos+loc[1]:], "?>")
		if close < 0 {
			spans = append(spans, [2]int{start, len(text)})
			break
		}
		end := pos + loc[1] + close + len("?>")
		spans = append(spans, [2]int{start, end})
		pos = end
	}
	return spans
}
