package parser

import "github.com/dusk-indust/polyscan/internal/model"

// ScopeStack tracks the chain of enclosing scopes during extraction and
// produces hierarchical component ids. It is an explicit stack owned by
// one parse invocation, so iterative (non-recursive) extraction works
// the same as tree-walking extraction and state resets deterministically
// between files.
type ScopeStack struct {
	fileBase string
	segments []string
}

// NewScopeStack creates a stack rooted at the file's base name.
func NewScopeStack(filePath string) *ScopeStack {
	return &ScopeStack{fileBase: FileBase(filePath)}
}

// Push enters a scope. Returns the id of the pushed scope.
func (s *ScopeStack) Push(t model.ComponentType, name string) string {
	s.segments = append(s.segments, model.ScopeSegment(t, name))
	return s.ID()
}

// Pop leaves the innermost scope. Popping an empty stack is a no-op.
func (s *ScopeStack) Pop() {
	if len(s.segments) > 0 {
		s.segments = s.segments[:len(s.segments)-1]
	}
}

// Depth returns the number of scopes currently entered.
func (s *ScopeStack) Depth() int {
	return len(s.segments)
}

// ID returns the id of the current scope: the file base joined with
// every entered "type:name" segment.
func (s *ScopeStack) ID() string {
	return model.ComponentID(s.fileBase, s.segments...)
}

// ChildID returns the id a component of the given type and name would
// have inside the current scope, without pushing it.
func (s *ScopeStack) ChildID(t model.ComponentType, name string) string {
	segs := make([]string, len(s.segments), len(s.segments)+1)
	copy(segs, s.segments)
	segs = append(segs, model.ScopeSegment(t, name))
	return model.ComponentID(s.fileBase, segs...)
}

// Reset clears all entered scopes, keeping the file root.
func (s *ScopeStack) Reset() {
	s.segments = s.segments[:0]
}
