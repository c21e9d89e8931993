package model

import "time"

// ParsingLevel ranks the depth of analysis a parse pass performed.
type ParsingLevel string

const (
	LevelSemantic   ParsingLevel = "semantic"
	LevelStructural ParsingLevel = "structural"
	LevelBasic      ParsingLevel = "basic"
)

// Backend identifies the extraction machinery behind a parse pass.
type Backend string

const (
	BackendAST           Backend = "ast"
	BackendTreeSitter    Backend = "tree-sitter"
	BackendDetectorsOnly Backend = "detectors-only"
	BackendHybrid        Backend = "hybrid"
	BackendTextMate      Backend = "textmate"
)

// Capability flags what a parser backend can produce.
type Capability string

const (
	CapSymbols       Capability = "symbols"
	CapRelationships Capability = "relationships"
	CapRanges        Capability = "ranges"
	CapTypes         Capability = "types"
	CapControlFlow   Capability = "control-flow"
	CapIncremental   Capability = "incremental"
)

// Severity levels for parse diagnostics.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Error codes surfaced on ParseError.
const (
	CodeFileNotFound  = "FILE_NOT_FOUND"
	CodeParseTimeout  = "PARSE_TIMEOUT"
	CodeInternalPanic = "INTERNAL_PANIC"
	CodeSyntaxError   = "SYNTAX_ERROR"
	CodeDelegateError = "DELEGATE_ERROR"
	CodeUnsupported   = "UNSUPPORTED_FILE"
)

// ParseError is a fatal-or-advisory diagnostic raised during parsing.
type ParseError struct {
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	Location *Location `json:"location,omitempty"`
	Code     string    `json:"code,omitempty"`
	Source   string    `json:"source,omitempty"`
}

// ParseWarning is a non-fatal diagnostic raised during parsing.
type ParseWarning struct {
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
	Code     string    `json:"code,omitempty"`
	Source   string    `json:"source,omitempty"`
}

// ResultMetadata summarizes a ParseResult.
type ResultMetadata struct {
	FilePath          string        `json:"filePath"`
	Language          string        `json:"language"`
	ParseTime         time.Duration `json:"parseTime"`
	ComponentCount    int           `json:"componentCount"`
	RelationshipCount int           `json:"relationshipCount"`
	ParsingLevel      ParsingLevel  `json:"parsingLevel,omitempty"`
	Capabilities      []Capability  `json:"capabilities,omitempty"`
	Backend           Backend       `json:"backend,omitempty"`
}

// ParseResult is the engine's primary output contract for one file.
type ParseResult struct {
	Components    []Component    `json:"components"`
	Relationships []Relationship `json:"relationships"`
	Errors        []ParseError   `json:"errors"`
	Warnings      []ParseWarning `json:"warnings"`
	Metadata      ResultMetadata `json:"metadata"`
}

// ErrorResult builds the single-error result shape used for fatal
// per-file failures (read errors, panics, timeouts). The batch caller
// never sees one file's failure abort the run.
func ErrorResult(filePath, language, source, code, message string, parseTime time.Duration) *ParseResult {
	return &ParseResult{
		Components:    []Component{},
		Relationships: []Relationship{},
		Errors: []ParseError{{
			Message:  message,
			Severity: SeverityError,
			Code:     code,
			Source:   source,
		}},
		Warnings: []ParseWarning{},
		Metadata: ResultMetadata{
			FilePath:  filePath,
			Language:  language,
			ParseTime: parseTime,
		},
	}
}

// Refresh recomputes the component and relationship counts.
func (r *ParseResult) Refresh() {
	r.Metadata.ComponentCount = len(r.Components)
	r.Metadata.RelationshipCount = len(r.Relationships)
}
