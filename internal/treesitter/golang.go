package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// NewGo returns the grammar-backed support for Go source.
func NewGo() *Support {
	return &Support{
		language:   "go",
		extensions: []string{".go"},
		tsLang:     tree_sitter.NewLanguage(tree_sitter_go.Language()),
		ext:        &goExtractor{},
	}
}

// goExtractor extracts components and edges from Go source. Methods are
// scoped under their receiver type even when the type declaration lives
// in another file.
type goExtractor struct{}

type goState struct {
	fileBase   string
	language   string
	filePath   string
	components []model.Component
	calls      []callSite
	imports    []string
}

func (e *goExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]model.Component, []model.Relationship) {
	st := &goState{
		fileBase: parser.FileBase(filePath),
		language: "go",
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
	return st.components, rels
}

func (st *goState) walk(cursor *tree_sitter.TreeCursor, source []byte) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_declaration":
		if name := fieldText(node, "name", source); name != "" {
			st.add(node, source, model.ComponentFunction, name,
				model.ComponentID(st.fileBase, model.ScopeSegment(model.ComponentFunction, name)))
		}

	case "method_declaration":
		st.addMethod(node, source)

	case "type_declaration":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil || child.Kind() != "type_spec" {
				continue
			}
			st.addTypeSpec(child, source)
		}

	case "import_spec":
		if path := goImportPath(node, source); path != "" {
			st.imports = append(st.imports, path)
		}

	case "call_expression":
		fn := node.ChildByFieldName("function")
		if fn != nil {
			switch fn.Kind() {
			case "identifier", "selector_expression":
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

// addMethod scopes the method under a class segment named after its
// receiver base type.
func (st *goState) addMethod(node *tree_sitter.Node, source []byte) {
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	recv := goReceiverType(node, source)
	if recv == "" {
		st.add(node, source, model.ComponentFunction, name,
			model.ComponentID(st.fileBase, model.ScopeSegment(model.ComponentFunction, name)))
		return
	}
	st.add(node, source, model.ComponentMethod, name,
		model.ComponentID(st.fileBase,
			model.ScopeSegment(model.ComponentClass, recv),
			model.ScopeSegment(model.ComponentMethod, name)))
}

func (st *goState) addTypeSpec(node *tree_sitter.Node, source []byte) {
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	t := model.ComponentClass
	if typeNode := node.ChildByFieldName("type"); typeNode != nil && typeNode.Kind() == "interface_type" {
		t = model.ComponentInterface
	}
	st.add(node, source, t, name, model.ComponentID(st.fileBase, model.ScopeSegment(t, name)))
}

func (st *goState) add(node *tree_sitter.Node, source []byte, t model.ComponentType, name, id string) {
	st.components = append(st.components, model.Component{
		ID:       id,
		Name:     name,
		Type:     t,
		Language: st.language,
		FilePath: st.filePath,
		Location: nodeLocation(node),
		Code:     nodeCode(node, source),
	})
}

// goReceiverType returns the base type name of a method receiver,
// without pointer or type-parameter decoration.
func goReceiverType(node *tree_sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := uint(0); i < recv.ChildCount(); i++ {
		child := recv.Child(i)
		if child == nil || child.Kind() != "parameter_declaration" {
			continue
		}
		t := strings.TrimPrefix(fieldText(child, "type", source), "*")
		if idx := strings.IndexByte(t, '['); idx >= 0 {
			t = t[:idx]
		}
		return strings.TrimSpace(t)
	}
	return ""
}

func goImportPath(node *tree_sitter.Node, source []byte) string {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "interpreted_string_literal" {
				pathNode = child
				break
			}
		}
	}
	if pathNode == nil {
		return ""
	}
	return strings.Trim(pathNode.Utf8Text(source), "\"")
}
