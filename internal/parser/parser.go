package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/scanner"
)

// Parser composes a LanguageSupport with the shared parse behavior:
// validation, extraction, provenance stamping, containment inference,
// and delegation to embedded-language parsers. One Parser instance may
// parse many files; each parse owns its own state.
type Parser struct {
	support   LanguageSupport
	scanner   *scanner.Scanner
	delegates map[string]*Parser
}

// New creates a Parser for the given support. sc may be nil for parsers
// that never delegate or that implement BoundaryDetector themselves.
func New(support LanguageSupport, sc *scanner.Scanner) *Parser {
	return &Parser{
		support:   support,
		scanner:   sc,
		delegates: make(map[string]*Parser),
	}
}

// Language returns the parser's language tag.
func (p *Parser) Language() string {
	return p.support.Language()
}

// Support exposes the underlying primitive implementation.
func (p *Parser) Support() LanguageSupport {
	return p.support
}

// CanParse reports whether the file extension is among the support's
// declared extensions.
func (p *Parser) CanParse(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, e := range p.support.Extensions() {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// RegisterDelegate associates another parser to be invoked for embedded
// boundaries of that language.
func (p *Parser) RegisterDelegate(language string, delegate *Parser) {
	p.delegates[strings.ToLower(language)] = delegate
}

// ParseFile reads and parses path. Read failures become a single-error
// result: one file's failure must never abort a batch.
func (p *Parser) ParseFile(ctx context.Context, path string, opts Options) *model.ParseResult {
	start := time.Now()
	opts.emit(StageReading, path)

	content, err := os.ReadFile(path)
	if err != nil {
		code := "READ_ERROR"
		msg := fmt.Sprintf("read %s: %v", path, err)
		if errors.Is(err, fs.ErrNotExist) {
			code = model.CodeFileNotFound
			msg = fmt.Sprintf("file not found: %s", path)
		}
		return model.ErrorResult(path, p.Language(), p.sourceTag(), code, msg, time.Since(start))
	}
	return p.ParseContent(ctx, content, path, opts)
}

// ParseContent parses raw content. It never raises past its boundary:
// any unexpected error is converted into a single-error result.
func (p *Parser) ParseContent(ctx context.Context, content []byte, filePath string, opts Options) (result *model.ParseResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = model.ErrorResult(filePath, p.Language(), p.sourceTag(),
				model.CodeInternalPanic, fmt.Sprintf("unexpected error: %v", r), time.Since(start))
		}
	}()

	if opts.Timeout > 0 && !opts.IsEmbedded {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	result = p.parse(ctx, content, filePath, opts, start)
	return result
}

// parse runs the sequential pipeline: validate, extract, infer
// containment, delegate, finalize. Ordering matters: later steps depend
// on earlier position bookkeeping being stable.
func (p *Parser) parse(ctx context.Context, content []byte, filePath string, opts Options, start time.Time) *model.ParseResult {
	profile := p.support.Profile()
	result := &model.ParseResult{
		Components:    []model.Component{},
		Relationships: []model.Relationship{},
		Errors:        []model.ParseError{},
		Warnings:      []model.ParseWarning{},
		Metadata: model.ResultMetadata{
			FilePath:     filePath,
			Language:     p.Language(),
			ParsingLevel: profile.Level,
			Capabilities: profile.Capabilities,
			Backend:      profile.Backend,
		},
	}

	// 1. Validate. Lenient by default: malformed input still yields
	// partial structure unless the support declares errors fatal.
	syntaxErrs := p.support.ValidateSyntax(content)
	result.Errors = append(result.Errors, syntaxErrs...)
	if len(syntaxErrs) > 0 && p.syntaxErrorsFatal() {
		result.Metadata.ParseTime = time.Since(start)
		opts.emit(StageDone, filePath)
		return result
	}

	// 2. Extract components and relationships.
	opts.emit(StageExtracting, filePath)
	components, err := p.support.DetectComponents(ctx, content, filePath)
	if err != nil {
		return p.timeoutOrError(ctx, filePath, err, start)
	}
	relationships, err := p.support.DetectRelationships(ctx, content, filePath, components)
	if err != nil {
		return p.timeoutOrError(ctx, filePath, err, start)
	}

	// Containment inference guarantees every non-file component has an
	// incoming containment edge.
	relationships = appendNewRelationships(relationships, InferContainment(components))

	stampProvenance(components, relationships, profile, p.Language())
	result.Components = components
	result.Relationships = relationships

	// 3-6. Delegate embedded regions.
	if opts.EnableDelegation && len(p.delegates) > 0 {
		opts.emit(StageDelegating, filePath)
		p.delegate(ctx, content, filePath, opts, result)
	}

	if ctx.Err() != nil {
		return p.timeoutOrError(ctx, filePath, ctx.Err(), start)
	}

	result.Metadata.ParseTime = time.Since(start)
	result.Refresh()
	opts.emit(StageDone, filePath)
	return result
}

// timeoutOrError converts an extraction failure to the single-error
// result shape, distinguishing timeouts so callers can tell "file too
// slow" from "malformed input".
func (p *Parser) timeoutOrError(ctx context.Context, filePath string, err error, start time.Time) *model.ParseResult {
	code := model.CodeSyntaxError
	msg := err.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		code = model.CodeParseTimeout
		msg = fmt.Sprintf("parse of %s exceeded the configured timeout", filePath)
	}
	return model.ErrorResult(filePath, p.Language(), p.sourceTag(), code, msg, time.Since(start))
}

// syntaxErrorsFatal reports the support's validation policy.
func (p *Parser) syntaxErrorsFatal() bool {
	if strict, ok := p.support.(StrictSyntax); ok {
		return strict.SyntaxErrorsFatal()
	}
	return false
}

// sourceTag identifies this parser in diagnostics.
func (p *Parser) sourceTag() string {
	return p.Language() + "-parser"
}

// stampProvenance records parsing level, capability flags, and backend on
// every component and relationship.
func stampProvenance(components []model.Component, relationships []model.Relationship, profile Profile, language string) {
	caps := make([]string, len(profile.Capabilities))
	for i, c := range profile.Capabilities {
		caps[i] = string(c)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	for i := range components {
		if components[i].Metadata == nil {
			components[i].Metadata = make(map[string]any, 3)
		}
		components[i].Metadata["parsingLevel"] = string(profile.Level)
		components[i].Metadata["capabilities"] = caps
		components[i].Metadata["backend"] = string(profile.Backend)
	}
	for i := range relationships {
		if relationships[i].Metadata == nil {
			relationships[i].Metadata = make(map[string]any, 2)
		}
		relationships[i].Metadata["provenance"] = map[string]any{
			"parser":    language + "-parser",
			"backend":   string(profile.Backend),
			"pass":      string(profile.Level),
			"timestamp": now,
		}
	}
}

// appendNewRelationships appends edges from extra whose ids are not
// already present in rels.
func appendNewRelationships(rels []model.Relationship, extra []model.Relationship) []model.Relationship {
	seen := make(map[string]bool, len(rels))
	for _, r := range rels {
		seen[r.ID] = true
	}
	for _, r := range extra {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		rels = append(rels, r)
	}
	return rels
}
