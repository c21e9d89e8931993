package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/polyscan/internal/model"
)

func callable(id, name string, t model.ComponentType, code string) model.Component {
	return model.Component{ID: id, Name: name, Type: t, Code: code}
}

func TestDetectCallEdges(t *testing.T) {
	components := []model.Component{
		callable("app|function:main", "main", model.ComponentFunction,
			"function main() {\n  helper();\n  helper();\n}"),
		callable("app|function:helper", "helper", model.ComponentFunction,
			"function helper() {\n  return 1;\n}"),
		callable("app|class:App", "App", model.ComponentClass, "class App {}"),
	}

	edges := DetectCallEdges(components)
	require.Len(t, edges, 1, "repeated call sites collapse into one edge")

	assert.Equal(t, "app|function:main", edges[0].SourceID)
	assert.Equal(t, "app|function:helper", edges[0].TargetID)
	assert.Equal(t, model.RelCalls, edges[0].Type)
	assert.Equal(t, 0.6, edges[0].Confidence)
}

func TestDetectCallEdges_SameNameSkipped(t *testing.T) {
	// Overloads of the same name would match their own declaration line.
	components := []model.Component{
		callable("a|function:run", "run", model.ComponentFunction, "function run() { run(); }"),
		callable("b|function:run", "run", model.ComponentFunction, "function run() {}"),
	}

	assert.Empty(t, DetectCallEdges(components))
}

func TestDetectCallEdges_WordBoundary(t *testing.T) {
	components := []model.Component{
		callable("app|function:setup", "setup", model.ComponentFunction,
			"function setup() {\n  presetup();\n}"),
		callable("app|function:presetup", "presetup", model.ComponentFunction, "function presetup() {}"),
	}

	edges := DetectCallEdges(components)
	require.Len(t, edges, 1, "setup must not match inside presetup")
	assert.Equal(t, "app|function:setup", edges[0].SourceID)
	assert.Equal(t, "app|function:presetup", edges[0].TargetID)
}

func TestDetectInheritanceEdges_CLike(t *testing.T) {
	content := "class Dog extends Animal {}\nclass Cat implements Pet {\n}\n"
	components := []model.Component{
		{ID: "zoo|class:Dog", Name: "Dog", Type: model.ComponentClass},
		{ID: "zoo|class:Cat", Name: "Cat", Type: model.ComponentClass},
		{ID: "zoo|class:Animal", Name: "Animal", Type: model.ComponentClass},
	}

	edges := DetectInheritanceEdges(content, components, "c-like")
	require.Len(t, edges, 2)

	extends := findRelationship(edges, model.RelExtends, "zoo|class:Dog", "zoo|class:Animal")
	require.NotNil(t, extends, "known parents resolve to component ids")
	assert.False(t, extends.NeedsResolution)

	implements := findRelationship(edges, model.RelImplements, "zoo|class:Cat", "Pet")
	require.NotNil(t, implements, "unknown parents stay symbolic")
	assert.True(t, implements.NeedsResolution)
}

func TestDetectInheritanceEdges_Python(t *testing.T) {
	content := "class Dog(Animal, object):\n    pass\n"
	components := []model.Component{
		{ID: "zoo|class:Dog", Name: "Dog", Type: model.ComponentClass},
	}

	edges := DetectInheritanceEdges(content, components, "python")
	require.Len(t, edges, 1, "object bases are dropped")
	assert.Equal(t, "Animal", edges[0].TargetID)
}

func TestDetectImportEdges(t *testing.T) {
	content := "import { x } from './util'\nconst y = require('./util')\n"

	edges := DetectImportEdges(content, "src/app.js", "javascript")
	require.Len(t, edges, 1, "both forms of the same specifier collapse")
	assert.Equal(t, "app", edges[0].SourceID)
	assert.Equal(t, "./util", edges[0].TargetID)
	assert.True(t, edges[0].NeedsResolution)

	assert.Empty(t, DetectImportEdges(content, "app.xyz", "unknown-language"))
}
