package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// NewRust returns the grammar-backed support for Rust source.
func NewRust() *Support {
	return &Support{
		language:   "rust",
		extensions: []string{".rs"},
		tsLang:     tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		ext:        &rsExtractor{},
	}
}

// rsExtractor extracts components and edges from Rust source. Impl-block
// methods are scoped under a class segment named after the impl target
// type.
type rsExtractor struct{}

type rsState struct {
	fileBase   string
	filePath   string
	components []model.Component
	calls      []callSite
	imports    []string
	impls      []model.Relationship
}

func (e *rsExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]model.Component, []model.Relationship) {
	st := &rsState{
		fileBase: parser.FileBase(filePath),
		filePath: filePath,
	}

	cursor := root.Walk()
	defer cursor.Close()
	st.walk(cursor, source)

	fileID := model.ComponentID(st.fileBase)
	rels := attributeCalls(st.calls, st.components, fileID)
	for _, path := range st.imports {
		rels = append(rels, importEdge(fileID, path))
	}
	rels = append(rels, st.impls...)
	return st.components, rels
}

func (st *rsState) walk(cursor *tree_sitter.TreeCursor, source []byte) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_item":
		st.addNamed(node, source, model.ComponentFunction)

	case "struct_item", "type_item":
		st.addNamed(node, source, model.ComponentClass)

	case "enum_item":
		st.addNamed(node, source, model.ComponentEnum)

	case "trait_item":
		st.addNamed(node, source, model.ComponentInterface)

	case "impl_item":
		st.addImpl(node, source)
		// The impl body was handled above; do not descend or the
		// methods would be re-emitted as free functions.
		return

	case "use_declaration":
		if path := fieldText(node, "argument", source); path != "" {
			st.imports = append(st.imports, path)
		}

	case "call_expression":
		fn := node.ChildByFieldName("function")
		if fn != nil {
			switch fn.Kind() {
			case "identifier", "scoped_identifier", "field_expression":
				if callee := fn.Utf8Text(source); callee != "" {
					st.calls = append(st.calls, callSite{
						line:   int(node.StartPosition().Row) + 1,
						callee: callee,
					})
				}
			}
		}
	}

	if cursor.GotoFirstChild() {
		st.walk(cursor, source)
		for cursor.GotoNextSibling() {
			st.walk(cursor, source)
		}
		cursor.GotoParent()
	}
}

func (st *rsState) addNamed(node *tree_sitter.Node, source []byte, t model.ComponentType) {
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	st.add(node, source, t, name, model.ComponentID(st.fileBase, model.ScopeSegment(t, name)))
}

// addImpl extracts the methods of an impl block under the target type's
// class scope, and an implements edge when the impl names a trait.
func (st *rsState) addImpl(node *tree_sitter.Node, source []byte) {
	typeName := rsBaseType(fieldText(node, "type", source))
	if typeName == "" {
		return
	}
	classID := model.ComponentID(st.fileBase, model.ScopeSegment(model.ComponentClass, typeName))

	if trait := rsBaseType(fieldText(node, "trait", source)); trait != "" {
		rel := model.NewRelationship(classID, trait, model.RelImplements, semanticEdgeConfidence)
		rel.NeedsResolution = true
		st.impls = append(st.impls, rel)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil || child.Kind() != "function_item" {
			continue
		}
		name := fieldText(child, "name", source)
		if name == "" {
			continue
		}
		t := model.ComponentMethod
		if name == "new" {
			t = model.ComponentConstructor
		}
		st.add(child, source, t, name, classID+model.ScopeSeparator+model.ScopeSegment(t, name))

		// Calls inside the impl body are still observed even though the
		// walk does not descend into it.
		st.collectCalls(child, source)
	}
}

func (st *rsState) collectCalls(node *tree_sitter.Node, source []byte) {
	if node.Kind() == "call_expression" {
		fn := node.ChildByFieldName("function")
		if fn != nil {
			switch fn.Kind() {
			case "identifier", "scoped_identifier", "field_expression":
				if callee := fn.Utf8Text(source); callee != "" {
					st.calls = append(st.calls, callSite{
						line:   int(node.StartPosition().Row) + 1,
						callee: callee,
					})
				}
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			st.collectCalls(child, source)
		}
	}
}

func (st *rsState) add(node *tree_sitter.Node, source []byte, t model.ComponentType, name, id string) {
	st.components = append(st.components, model.Component{
		ID:       id,
		Name:     name,
		Type:     t,
		Language: "rust",
		FilePath: st.filePath,
		Location: nodeLocation(node),
		Code:     nodeCode(node, source),
	})
}

// rsBaseType strips generic arguments and reference decoration from a
// type expression, leaving the bare type name.
func rsBaseType(t string) string {
	t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "&"))
	if idx := strings.IndexByte(t, '<'); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}
