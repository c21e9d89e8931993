package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

func findComponent(components []model.Component, name string, t model.ComponentType) *model.Component {
	for i := range components {
		if components[i].Name == name && components[i].Type == t {
			return &components[i]
		}
	}
	return nil
}

func TestPHP_ClassMembers(t *testing.T) {
	content := []byte(`<?php
class Greeter {
    private $count = 0;
    public function __construct() {
    }
    public function hello() {
    }
}
?>
`)

	comps, err := (&PHP{}).DetectComponents(context.Background(), content, "greeter.php")
	require.NoError(t, err)

	ids := make(map[string]model.ComponentType, len(comps))
	for _, c := range comps {
		ids[c.ID] = c.Type
	}

	assert.Equal(t, model.ComponentClass, ids["greeter|class:Greeter"])
	assert.Equal(t, model.ComponentConstructor, ids["greeter|class:Greeter|constructor:__construct"])
	assert.Equal(t, model.ComponentMethod, ids["greeter|class:Greeter|method:hello"])
	assert.Equal(t, model.ComponentProperty, ids["greeter|class:Greeter|property:count"])
}

func TestPHP_DetectBoundaries_HTMLGaps(t *testing.T) {
	content := []byte("<p>top</p>\n<?php $x = 1; ?>\n<p>bottom</p>\n")

	blocks := (&PHP{}).DetectBoundaries(content, "index.php")
	require.Len(t, blocks, 2, "html on either side of the php region")

	assert.Equal(t, "html", blocks[0].Language)
	assert.Equal(t, 1, blocks[0].StartLine)
	assert.Equal(t, 1, blocks[0].EndLine)
	assert.Equal(t, model.BlockSourceDetector, blocks[0].Source)

	assert.Equal(t, 3, blocks[1].StartLine)
	assert.Equal(t, 3, blocks[1].EndLine)
}

func TestPHPSpans_MissingCloseRunsToEOF(t *testing.T) {
	text := "<?php\n$x = 1;\n"
	spans := phpSpans(text)
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0][0])
	assert.Equal(t, len(text), spans[0][1])
}

// TestPHP_DelegatesEmbeddedHTML covers a php file whose trailing html
// fragment is handed to the html parser and merged back with remapped
// positions and scope edges.
func TestPHP_DelegatesEmbeddedHTML(t *testing.T) {
	content := []byte("<?php\nfunction greet() {\n} ?>\n<div>\n<p id=\"msg\">Hello</p>\n</div>\n")

	php := parser.New(&PHP{}, nil)
	php.RegisterDelegate("html", parser.New(&HTML{}, nil))

	result := php.ParseContent(context.Background(), content, "index.php", parser.DefaultOptions())
	require.Empty(t, result.Errors)

	greet := findComponent(result.Components, "greet", model.ComponentFunction)
	require.NotNil(t, greet, "php extraction still runs on the php region")

	block := findComponent(result.Components, "html-block", model.ComponentEmbeddedCode)
	require.NotNil(t, block, "the delegate's file component becomes an embedded-code component")
	assert.Equal(t, "index|embedded-code:html@4", block.ID)

	msg := findComponent(result.Components, "msg", model.ComponentSection)
	require.NotNil(t, msg, "html components survive the merge")
	assert.Equal(t, "index|embedded-code:html@4|section:msg", msg.ID,
		"embedded ids are re-rooted under the synthetic scope")
	assert.GreaterOrEqual(t, msg.Location.StartLine, 4, "positions are remapped into file space")
	assert.LessOrEqual(t, msg.Location.EndLine, 6)
	assert.Equal(t, "index.php", msg.FilePath)

	require.NotNil(t, msg.ScopeContext)
	assert.Equal(t, []string{"php", "html"}, msg.ScopeContext.LanguageStack)

	rel := findRelationship(result.Relationships, model.RelEmbeddedInScope, msg.ID, "index")
	require.NotNil(t, rel, "every embedded component links to its enclosing php component")
}

// TestPHP_ReconstructsInterleavedHTML covers the multi-boundary path:
// html on both sides of a php region is reassembled into one synthetic
// document, parsed once, and mapped back to original file coordinates.
func TestPHP_ReconstructsInterleavedHTML(t *testing.T) {
	content := []byte("<p id=\"top\">Top</p>\n<?php\nfunction mid() {\n}\n?>\n<p id=\"bot\">Bottom</p>\n")

	php := parser.New(&PHP{}, nil)
	php.RegisterDelegate("html", parser.New(&HTML{}, nil))

	result := php.ParseContent(context.Background(), content, "page.php", parser.DefaultOptions())
	require.Empty(t, result.Errors)

	require.NotNil(t, findComponent(result.Components, "mid", model.ComponentFunction))

	top := findComponent(result.Components, "top", model.ComponentSection)
	require.NotNil(t, top, "the fragment before the php region survives")
	assert.Equal(t, 1, top.Location.StartLine)

	bot := findComponent(result.Components, "bot", model.ComponentSection)
	require.NotNil(t, bot, "the fragment after the php region survives")
	assert.Equal(t, 6, bot.Location.StartLine,
		"positions map back through the reconstruction segments")

	for _, c := range result.Components {
		if c.ScopeContext == nil {
			continue
		}
		rel := findRelationship(result.Relationships, model.RelEmbeddedInScope, c.ID, "page")
		require.NotNil(t, rel, "embedded component %s must link to its enclosing scope", c.ID)
		assert.NotNil(t, rel.Metadata["provenance"],
			"scope edges carry provenance like extraction-time edges")
	}
}

func findRelationship(rels []model.Relationship, t model.RelationshipType, source, target string) *model.Relationship {
	for i := range rels {
		if rels[i].Type == t && rels[i].SourceID == source && rels[i].TargetID == target {
			return &rels[i]
		}
	}
	return nil
}
