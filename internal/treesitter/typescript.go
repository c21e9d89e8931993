package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// NewTypeScript returns the grammar-backed support for TypeScript source.
func NewTypeScript() *Support {
	return &Support{
		language:   "typescript",
		extensions: []string{".ts", ".tsx"},
		tsLang:     tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		ext:        &tsExtractor{},
	}
}

// tsExtractor extracts components and edges from TypeScript source.
type tsExtractor struct{}

type tsState struct {
	fileBase   string
	filePath   string
	segments   []string
	components []model.Component
	calls      []callSite
	imports    []string
	heritage   []model.Relationship
}

func (e *tsExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]model.Component, []model.Relationship) {
	st := &tsState{
		fileBase: parser.FileBase(filePath),
		filePath: filePath,
	}
	st.walk(root, source)

	fileID := model.ComponentID(st.fileBase)
	rels := attributeCalls(st.calls, st.components, fileID)
	for _, path := range st.imports {
		rels = append(rels, importEdge(fileID, path))
	}
	rels = append(rels, st.heritage...)
	return st.components, rels
}

func (st *tsState) walk(node *tree_sitter.Node, source []byte) {
	switch node.Kind() {
	case "class_declaration", "abstract_class_declaration":
		if name := fieldText(node, "name", source); name != "" {
			id := st.id(model.ComponentClass, name)
			st.add(node, source, model.ComponentClass, name, id)
			st.addHeritage(node, source, id)
			st.segments = append(st.segments, model.ScopeSegment(model.ComponentClass, name))
			st.walkChildren(node, source)
			st.segments = st.segments[:len(st.segments)-1]
			return
		}

	case "interface_declaration":
		if name := fieldText(node, "name", source); name != "" {
			id := st.id(model.ComponentInterface, name)
			st.add(node, source, model.ComponentInterface, name, id)
			st.addHeritage(node, source, id)
		}
		return

	case "type_alias_declaration":
		if name := fieldText(node, "name", source); name != "" {
			st.add(node, source, model.ComponentClass, name, st.id(model.ComponentClass, name))
		}
		return

	case "enum_declaration":
		if name := fieldText(node, "name", source); name != "" {
			st.add(node, source, model.ComponentEnum, name, st.id(model.ComponentEnum, name))
		}
		return

	case "function_declaration":
		if name := fieldText(node, "name", source); name != "" {
			st.add(node, source, model.ComponentFunction, name, st.id(model.ComponentFunction, name))
		}

	case "method_definition":
		if name := fieldText(node, "name", source); name != "" {
			t := model.ComponentMethod
			switch {
			case name == "constructor":
				t = model.ComponentConstructor
			case tsIsAccessor(node):
				t = model.ComponentAccessor
			}
			st.add(node, source, t, name, st.id(t, name))
		}

	case "public_field_definition":
		if name := fieldText(node, "name", source); name != "" {
			st.add(node, source, model.ComponentProperty, name, st.id(model.ComponentProperty, name))
		}
		return

	case "lexical_declaration":
		st.addArrowFunctions(node, source)

	case "import_statement":
		if src := fieldText(node, "source", source); src != "" {
			st.imports = append(st.imports, strings.Trim(src, `"'`))
		}
		return

	case "call_expression":
		fn := node.ChildByFieldName("function")
		if fn != nil {
			switch fn.Kind() {
			case "identifier", "member_expression":
				if callee := fn.Utf8Text(source); callee != "" {
					st.calls = append(st.calls, callSite{
						line:   int(node.StartPosition().Row) + 1,
						callee: callee,
					})
				}
			}
		}
	}

	st.walkChildren(node, source)
}

func (st *tsState) walkChildren(node *tree_sitter.Node, source []byte) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			st.walk(child, source)
		}
	}
}

// addArrowFunctions registers const/let bindings whose initializer is an
// arrow function or function expression as function components.
func (st *tsState) addArrowFunctions(node *tree_sitter.Node, source []byte) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		value := child.ChildByFieldName("value")
		if value == nil {
			continue
		}
		switch value.Kind() {
		case "arrow_function", "function_expression":
			if name := fieldText(child, "name", source); name != "" {
				st.add(node, source, model.ComponentFunction, name, st.id(model.ComponentFunction, name))
			}
		}
	}
}

// addHeritage emits extends/implements edges from a declaration's
// class_heritage or extends_type_clause children.
func (st *tsState) addHeritage(node *tree_sitter.Node, source []byte, sourceID string) {
	emit := func(target string, t model.RelationshipType) {
		if target == "" {
			return
		}
		rel := model.NewRelationship(sourceID, target, t, semanticEdgeConfidence)
		rel.NeedsResolution = true
		st.heritage = append(st.heritage, rel)
	}
	collect := func(clause *tree_sitter.Node, t model.RelationshipType) {
		for i := uint(0); i < clause.ChildCount(); i++ {
			child := clause.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "identifier", "type_identifier", "member_expression", "nested_type_identifier":
				emit(child.Utf8Text(source), t)
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "class_heritage":
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub == nil {
					continue
				}
				switch sub.Kind() {
				case "extends_clause":
					collect(sub, model.RelExtends)
				case "implements_clause":
					collect(sub, model.RelImplements)
				}
			}
		case "extends_type_clause":
			collect(child, model.RelExtends)
		}
	}
}

// tsIsAccessor reports whether a method_definition is a get/set
// accessor, signalled by a leading keyword child.
func tsIsAccessor(node *tree_sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "get", "set":
			return true
		}
	}
	return false
}

func (st *tsState) id(t model.ComponentType, name string) string {
	segs := make([]string, len(st.segments), len(st.segments)+1)
	copy(segs, st.segments)
	return model.ComponentID(st.fileBase, append(segs, model.ScopeSegment(t, name))...)
}

func (st *tsState) add(node *tree_sitter.Node, source []byte, t model.ComponentType, name, id string) {
	st.components = append(st.components, model.Component{
		ID:       id,
		Name:     name,
		Type:     t,
		Language: "typescript",
		FilePath: st.filePath,
		Location: nodeLocation(node),
		Code:     nodeCode(node, source),
	})
}
