package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// NewPython returns the grammar-backed support for Python source.
func NewPython() *Support {
	return &Support{
		language:   "python",
		extensions: []string{".py", ".pyw"},
		tsLang:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
		ext:        &pyExtractor{},
	}
}

// pyExtractor extracts components and edges from Python source. The walk
// carries a scope stack so nested classes and functions get hierarchical
// ids.
type pyExtractor struct{}

type pyState struct {
	fileBase   string
	filePath   string
	segments   []string
	components []model.Component
	calls      []callSite
	imports    []string
	extends    []model.Relationship
}

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]model.Component, []model.Relationship) {
	st := &pyState{
		fileBase: parser.FileBase(filePath),
		filePath: filePath,
	}
	st.walk(root, source)

	fileID := model.ComponentID(st.fileBase)
	rels := attributeCalls(st.calls, st.components, fileID)
	for _, path := range st.imports {
		rels = append(rels, importEdge(fileID, path))
	}
	rels = append(rels, st.extends...)
	return st.components, rels
}

func (st *pyState) walk(node *tree_sitter.Node, source []byte) {
	switch node.Kind() {
	case "class_definition":
		if name := fieldText(node, "name", source); name != "" {
			id := st.id(model.ComponentClass, name)
			st.add(node, source, model.ComponentClass, name, id)
			st.addBases(node, source, id)
			st.segments = append(st.segments, model.ScopeSegment(model.ComponentClass, name))
			st.walkChildren(node, source)
			st.segments = st.segments[:len(st.segments)-1]
			return
		}

	case "function_definition":
		if name := fieldText(node, "name", source); name != "" {
			t := model.ComponentFunction
			if st.inClass() {
				t = model.ComponentMethod
				if name == "__init__" {
					t = model.ComponentConstructor
				}
			}
			st.add(node, source, t, name, st.id(t, name))
			st.segments = append(st.segments, model.ScopeSegment(t, name))
			st.walkChildren(node, source)
			st.segments = st.segments[:len(st.segments)-1]
			return
		}

	case "import_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "dotted_name":
				st.imports = append(st.imports, child.Utf8Text(source))
			case "aliased_import":
				if name := fieldText(child, "name", source); name != "" {
					st.imports = append(st.imports, name)
				}
			}
		}
		return

	case "import_from_statement":
		if module := fieldText(node, "module_name", source); module != "" {
			st.imports = append(st.imports, module)
		}
		return

	case "call":
		fn := node.ChildByFieldName("function")
		if fn != nil {
			switch fn.Kind() {
			case "identifier", "attribute":
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

func (st *pyState) walkChildren(node *tree_sitter.Node, source []byte) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			st.walk(child, source)
		}
	}
}

// addBases emits extends edges for the superclass list. Keyword
// arguments like metaclass= are not inheritance and are skipped.
func (st *pyState) addBases(node *tree_sitter.Node, source []byte, classID string) {
	supers := node.ChildByFieldName("superclasses")
	if supers == nil {
		return
	}
	for i := uint(0); i < supers.ChildCount(); i++ {
		child := supers.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier", "attribute":
			base := child.Utf8Text(source)
			if base == "" || base == "object" {
				continue
			}
			rel := model.NewRelationship(classID, base, model.RelExtends, semanticEdgeConfidence)
			rel.NeedsResolution = true
			st.extends = append(st.extends, rel)
		}
	}
}

func (st *pyState) inClass() bool {
	if len(st.segments) == 0 {
		return false
	}
	return strings.HasPrefix(st.segments[len(st.segments)-1], string(model.ComponentClass)+":")
}

func (st *pyState) id(t model.ComponentType, name string) string {
	segs := make([]string, len(st.segments), len(st.segments)+1)
	copy(segs, st.segments)
	return model.ComponentID(st.fileBase, append(segs, model.ScopeSegment(t, name))...)
}

func (st *pyState) add(node *tree_sitter.Node, source []byte, t model.ComponentType, name, id string) {
	st.components = append(st.components, model.Component{
		ID:       id,
		Name:     name,
		Type:     t,
		Language: "python",
		FilePath: st.filePath,
		Location: nodeLocation(node),
		Code:     nodeCode(node, source),
	})
}
