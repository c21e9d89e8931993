package model

import "strings"

// ComponentType classifies structural units extracted from source text.
type ComponentType string

const (
	ComponentFile         ComponentType = "file"
	ComponentClass        ComponentType = "class"
	ComponentInterface    ComponentType = "interface"
	ComponentFunction     ComponentType = "function"
	ComponentMethod       ComponentType = "method"
	ComponentProperty     ComponentType = "property"
	ComponentConstructor  ComponentType = "constructor"
	ComponentAccessor     ComponentType = "accessor"
	ComponentEnum         ComponentType = "enum"
	ComponentVariable     ComponentType = "variable"
	ComponentModule       ComponentType = "module"
	ComponentNamespace    ComponentType = "namespace"
	ComponentSection      ComponentType = "section"
	ComponentEmbeddedCode ComponentType = "embedded-code"
)

// containerTypes are component types eligible to contain other components.
var containerTypes = map[ComponentType]bool{
	ComponentFile:      true,
	ComponentClass:     true,
	ComponentInterface: true,
	ComponentEnum:      true,
	ComponentModule:    true,
	ComponentNamespace: true,
	ComponentSection:   true,
}

// IsContainer reports whether t can contain other components.
func (t ComponentType) IsContainer() bool {
	return containerTypes[t]
}

// Location is a line/column range within a file. Lines and columns are
// 1-based; EndLine/EndColumn are inclusive.
type Location struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartColumn int `json:"startColumn"`
	EndColumn   int `json:"endColumn"`
}

// Contains reports whether other's line range nests inside l.
func (l Location) Contains(other Location) bool {
	return l.StartLine <= other.StartLine && l.EndLine >= other.EndLine
}

// LineSpan returns the number of lines covered by l.
func (l Location) LineSpan() int {
	return l.EndLine - l.StartLine + 1
}

// ScopeContext records how a delegated component was produced: the stack
// of languages entered, the chain of enclosing component ids, and the
// textual markers that bounded the embedded region.
type ScopeContext struct {
	LanguageStack  []string `json:"languageStack"`
	ComponentChain []string `json:"componentChain,omitempty"`
	StartMarker    string   `json:"startMarker,omitempty"`
	EndMarker      string   `json:"endMarker,omitempty"`
}

// Component is a named structural unit extracted from source text.
// ID is hierarchical (see ComponentID) and unique within one ParseResult.
type Component struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         ComponentType  `json:"type"`
	Language     string         `json:"language"`
	FilePath     string         `json:"filePath"`
	Location     Location       `json:"location"`
	Code         string         `json:"code,omitempty"`
	ParentID     string         `json:"parentId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ScopeContext *ScopeContext  `json:"scopeContext,omitempty"`
}

// ScopeSeparator joins the segments of a hierarchical component id.
const ScopeSeparator = "|"

// ComponentID builds a hierarchical component id from a file base name and
// a stack of "type:name" scope segments. A method bar inside class Foo in
// file Foo.php yields "Foo|class:Foo|method:bar".
func ComponentID(fileBase string, segments ...string) string {
	if len(segments) == 0 {
		return fileBase
	}
	return fileBase + ScopeSeparator + strings.Join(segments, ScopeSeparator)
}

// ScopeSegment formats one scope-stack entry.
func ScopeSegment(t ComponentType, name string) string {
	return string(t) + ":" + name
}

// ParentSegment returns the declared parent "type:name" segment of a
// hierarchical id, or "" when the id encodes no parent (file-level ids and
// ids with a single segment).
func ParentSegment(id string) string {
	parts := strings.Split(id, ScopeSeparator)
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}

// SegmentName extracts the name half of a "type:name" segment.
func SegmentName(segment string) string {
	if i := strings.IndexByte(segment, ':'); i >= 0 {
		return segment[i+1:]
	}
	return segment
}
