// Package parser implements the shared behavior every concrete language
// parser inherits: the parse pipeline, hierarchical identity, containment
// inference, and recursive delegation into embedded-language regions.
package parser

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
)

// Profile declares the provenance a language support stamps on its output.
type Profile struct {
	Level        model.ParsingLevel
	Backend      model.Backend
	Capabilities []model.Capability
}

// LanguageSupport is the primitive contract a concrete per-language
// parser provides. Everything else (pipeline, delegation, containment)
// is inherited from Parser.
// Implementations: lang.* (detector-based), treesitter.* (grammar-based),
// bridge.Support (subprocess-backed).
type LanguageSupport interface {
	// Language returns the language tag, e.g. "php".
	Language() string

	// Extensions returns the file extensions this parser claims,
	// including the leading dot.
	Extensions() []string

	// Profile reports the parsing level, backend, and capability flags
	// stamped on every component and relationship this support produces.
	Profile() Profile

	// DetectComponents extracts structural components from content.
	DetectComponents(ctx context.Context, content []byte, filePath string) ([]model.Component, error)

	// DetectRelationships extracts typed edges between the given
	// components (and unresolved symbolic targets).
	DetectRelationships(ctx context.Context, content []byte, filePath string, components []model.Component) ([]model.Relationship, error)

	// ValidateSyntax reports syntax diagnostics for content. Whether
	// these are fatal is a per-support policy (see StrictSyntax).
	ValidateSyntax(content []byte) []model.ParseError
}

// BoundaryDetector is an optional interface for supports that locate
// embedded-language regions themselves instead of relying on the shared
// block scanner (e.g. PHP finding the HTML between its tags).
type BoundaryDetector interface {
	DetectBoundaries(content []byte, filePath string) []model.CodeBlock
}

// StrictSyntax is an optional interface for supports that treat any
// syntax-validation error as fatal for the file. Supports not
// implementing it are lenient: errors are attached but extraction
// continues.
type StrictSyntax interface {
	SyntaxErrorsFatal() bool
}

// FileBase returns the base file name without extension, the root of
// every hierarchical component id for that file.
func FileBase(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileComponent builds the top-level file component every support's
// DetectComponents should emit first.
func FileComponent(filePath, language string, content []byte) model.Component {
	lines := strings.Count(string(content), "\n") + 1
	endCol := 1
	if i := strings.LastIndexByte(string(content), '\n'); i >= 0 && i < len(content)-1 {
		endCol = len(content) - i - 1
	} else if i < 0 {
		endCol = len(content)
	}
	return model.Component{
		ID:       model.ComponentID(FileBase(filePath)),
		Name:     filepath.Base(filePath),
		Type:     model.ComponentFile,
		Language: language,
		FilePath: filePath,
		Location: model.Location{StartLine: 1, EndLine: lines, StartColumn: 1, EndColumn: endCol},
	}
}
