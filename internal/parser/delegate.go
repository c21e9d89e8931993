package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
)

// reconstructionPairs lists (parent, embedded) language pairs whose
// interleaved boundaries must be reassembled into one synthetic document
// before delegation (e.g. PHP containing interleaved HTML). Pairs not
// listed delegate each boundary independently. Reconstruction assumes
// exactly one enclosing foreign language; deeper interleavings fall back
// to per-boundary delegation.
var reconstructionPairs = map[[2]string]bool{
	{"php", "html"}: true,
	{"html", "php"}: true,
}

// fallbackMarkers supplies boundary markers when the block carries none.
var fallbackMarkers = map[string][2]string{
	"php":        {"<?php", "?>"},
	"javascript": {"<script>", "</script>"},
	"typescript": {"<script>", "</script>"},
	"css":        {"<style>", "</style>"},
}

// delegate finds embedded-language boundaries and merges each delegate's
// output into result. A failing delegate is skipped with a warning; it
// never aborts the parent file's parse.
func (p *Parser) delegate(ctx context.Context, content []byte, filePath string, opts Options, result *model.ParseResult) {
	boundaries := p.detectBoundaries(content, filePath, result)
	if len(boundaries) == 0 {
		return
	}

	groups, order := groupBoundaries(boundaries, p.Language())
	for _, lang := range order {
		delegate, ok := p.delegates[lang]
		if !ok {
			continue
		}
		group := groups[lang]

		if len(group) > 1 && reconstructionPairs[[2]string{p.Language(), lang}] {
			p.delegateReconstructed(ctx, content, filePath, opts, result, delegate, lang, group)
			continue
		}
		for _, boundary := range group {
			p.delegateBoundary(ctx, content, filePath, opts, result, delegate, boundary)
		}
	}
}

// detectBoundaries prefers the support's own boundary primitive, falling
// back to the shared block scanner.
func (p *Parser) detectBoundaries(content []byte, filePath string, result *model.ParseResult) []model.CodeBlock {
	if bd, ok := p.support.(BoundaryDetector); ok {
		return bd.DetectBoundaries(content, filePath)
	}
	if p.scanner == nil {
		return nil
	}
	scan, err := p.scanner.Scan(filePath, content)
	if err != nil {
		result.Warnings = append(result.Warnings, model.ParseWarning{
			Message: fmt.Sprintf("boundary scan failed: %v", err),
			Source:  p.sourceTag(),
		})
		return nil
	}
	return scan.Blocks
}

// groupBoundaries buckets boundaries by language, skipping the parent's
// own language, and preserves first-seen language order.
func groupBoundaries(boundaries []model.CodeBlock, ownLanguage string) (map[string][]model.CodeBlock, []string) {
	groups := make(map[string][]model.CodeBlock)
	var order []string
	for _, b := range boundaries {
		lang := strings.ToLower(b.Language)
		if lang == "" || lang == ownLanguage {
			continue
		}
		if _, ok := groups[lang]; !ok {
			order = append(order, lang)
		}
		groups[lang] = append(groups[lang], b)
	}
	return groups, order
}

// delegateBoundary parses a single boundary independently, offsetting the
// delegate's positions by the boundary's start line/column.
func (p *Parser) delegateBoundary(ctx context.Context, content []byte, filePath string, opts Options, result *model.ParseResult, delegate *Parser, boundary model.CodeBlock) {
	region := sliceRegion(content, boundary)
	if len(region) == 0 {
		return
	}

	enclosingID := findEnclosingID(result.Components, boundary.Location())
	childOpts := p.childOptions(opts, delegate.Language(), enclosingID, boundary)

	childRes := delegate.ParseContent(ctx, region, filePath, childOpts)
	if delegateFailed(childRes) {
		p.warnDelegateFailure(result, delegate.Language(), boundary, childRes)
		return
	}

	lineOff := boundary.StartLine - 1
	colOff := boundary.StartColumn - 1
	remap := func(loc model.Location) model.Location {
		return offsetLocation(loc, lineOff, colOff)
	}
	p.mergeDelegated(result, childRes, filePath, delegate.Language(), boundary, remap, childOpts.LanguageStack)
}

// reconSegment is one (original-range <-> reconstructed-range)
// correspondence used for mapping delegate output back onto the
// original file's coordinates.
type reconSegment struct {
	origStart, origEnd   int // 1-based original lines
	reconStart, reconEnd int // 1-based reconstructed lines
}

// delegateReconstructed concatenates same-language regions into a single
// synthetic document (intervening foreign spans replaced by an inert
// placeholder line), parses it once, and maps positions back through the
// segment correspondences.
func (p *Parser) delegateReconstructed(ctx context.Context, content []byte, filePath string, opts Options, result *model.ParseResult, delegate *Parser, lang string, group []model.CodeBlock) {
	sorted := make([]model.CodeBlock, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartByte < sorted[j].StartByte })

	var sb strings.Builder
	var segments []reconSegment
	reconLine := 1
	for i, b := range sorted {
		region := sliceRegion(content, b)
		if len(region) == 0 {
			continue
		}
		if i > 0 {
			// Inert placeholder standing in for the foreign span.
			sb.WriteString("\n")
			reconLine++
		}
		text := string(region)
		lines := strings.Count(text, "\n") + 1
		segments = append(segments, reconSegment{
			origStart:  b.StartLine,
			origEnd:    b.EndLine,
			reconStart: reconLine,
			reconEnd:   reconLine + lines - 1,
		})
		sb.WriteString(text)
		sb.WriteString("\n")
		reconLine += lines
	}
	if len(segments) == 0 {
		return
	}

	first := sorted[0]
	enclosingID := findEnclosingID(result.Components, first.Location())
	childOpts := p.childOptions(opts, lang, enclosingID, first)

	childRes := delegate.ParseContent(ctx, []byte(sb.String()), filePath, childOpts)
	if delegateFailed(childRes) {
		p.warnDelegateFailure(result, lang, first, childRes)
		return
	}

	remap := func(loc model.Location) model.Location {
		return remapReconstructed(loc, segments)
	}
	merged := first
	merged.EndLine = sorted[len(sorted)-1].EndLine
	merged.EndByte = sorted[len(sorted)-1].EndByte
	merged.Source = model.BlockSourceMerged
	p.mergeDelegated(result, childRes, filePath, lang, merged, remap, childOpts.LanguageStack)
}

// childOptions builds the options for a recursive delegation call.
func (p *Parser) childOptions(opts Options, lang, enclosingID string, boundary model.CodeBlock) Options {
	stack := make([]string, 0, len(opts.LanguageStack)+2)
	stack = append(stack, opts.LanguageStack...)
	if len(stack) == 0 {
		stack = append(stack, p.Language())
	}
	stack = append(stack, lang)

	return Options{
		EnableDelegation: opts.EnableDelegation,
		Progress:         opts.Progress,
		IsEmbedded:       true,
		ParentLanguage:   p.Language(),
		ParentScope:      enclosingID,
		OffsetLine:       boundary.StartLine - 1,
		OffsetColumn:     boundary.StartColumn - 1,
		LanguageStack:    stack,
	}
}

// mergeDelegated folds a delegate's result into the parent result:
// positions remapped, ids re-rooted under a synthetic embedded-code
// component, scope context attached, and an embedded-in-scope edge from
// every embedded component to its nearest enclosing parent component.
func (p *Parser) mergeDelegated(result *model.ParseResult, childRes *model.ParseResult, filePath, lang string, boundary model.CodeBlock, remap func(model.Location) model.Location, langStack []string) {
	oldRoot := FileBase(filePath)
	newRoot := oldRoot + model.ScopeSeparator +
		model.ScopeSegment(model.ComponentEmbeddedCode, fmt.Sprintf("%s@%d", lang, boundary.StartLine))

	startMarker, endMarker := boundaryMarkers(boundary, lang)

	var rerooted []model.Component
	for _, comp := range childRes.Components {
		comp.Location = remap(comp.Location)
		comp.ID = rerootID(comp.ID, oldRoot, newRoot)
		comp.ParentID = rerootID(comp.ParentID, oldRoot, newRoot)
		comp.FilePath = filePath
		if comp.Type == model.ComponentFile {
			comp.Type = model.ComponentEmbeddedCode
			comp.Name = lang + "-block"
		}
		rerooted = append(rerooted, comp)
	}

	// The enclosing component is the smallest parent component whose
	// range contains the (remapped) boundary.
	enclosingID := findEnclosingID(result.Components, boundary.Location())
	chain := componentChain(result.Components, enclosingID)

	scopeCtx := &model.ScopeContext{
		LanguageStack:  langStack,
		ComponentChain: chain,
		StartMarker:    startMarker,
		EndMarker:      endMarker,
	}

	var scopeEdges []model.Relationship
	for i := range rerooted {
		rerooted[i].ScopeContext = scopeCtx
		if enclosingID != "" {
			scopeEdges = append(scopeEdges, model.NewRelationship(rerooted[i].ID, enclosingID, model.RelEmbeddedInScope, boundary.Confidence))
		}
	}
	// Scope edges originate in the parent parse, so they carry the
	// parent's provenance like any extraction-time edge.
	stampProvenance(nil, scopeEdges, p.support.Profile(), p.Language())
	result.Relationships = appendNewRelationships(result.Relationships, scopeEdges)
	result.Components = append(result.Components, rerooted...)

	var rels []model.Relationship
	for _, rel := range childRes.Relationships {
		rel.SourceID = rerootID(rel.SourceID, oldRoot, newRoot)
		if !rel.NeedsResolution {
			rel.TargetID = rerootID(rel.TargetID, oldRoot, newRoot)
		}
		rel.ID = model.RelationshipID(rel.SourceID, rel.TargetID, rel.Type)
		rels = append(rels, rel)
	}
	result.Relationships = appendNewRelationships(result.Relationships, rels)

	for _, e := range childRes.Errors {
		if e.Location != nil {
			loc := remap(*e.Location)
			e.Location = &loc
		}
		e.Source = "embedded:" + lang
		result.Errors = append(result.Errors, e)
	}
	for _, w := range childRes.Warnings {
		if w.Location != nil {
			loc := remap(*w.Location)
			w.Location = &loc
		}
		w.Source = "embedded:" + lang
		result.Warnings = append(result.Warnings, w)
	}
	result.Refresh()
}

// warnDelegateFailure records a skipped boundary. Skip-with-warning keeps
// the engine's lenient-degradation behavior: a failing delegate never
// aborts the parent parse.
func (p *Parser) warnDelegateFailure(result *model.ParseResult, lang string, boundary model.CodeBlock, childRes *model.ParseResult) {
	msg := fmt.Sprintf("delegate %s failed for block at lines %d-%d", lang, boundary.StartLine, boundary.EndLine)
	if len(childRes.Errors) > 0 {
		msg += ": " + childRes.Errors[0].Message
	}
	loc := boundary.Location()
	result.Warnings = append(result.Warnings, model.ParseWarning{
		Message:  msg,
		Location: &loc,
		Code:     model.CodeDelegateError,
		Source:   p.sourceTag(),
	})
}

// delegateFailed reports whether a delegate produced nothing but errors.
func delegateFailed(res *model.ParseResult) bool {
	return res == nil || (len(res.Components) == 0 && len(res.Errors) > 0)
}

// sliceRegion extracts the boundary's byte range, guarding bounds.
func sliceRegion(content []byte, b model.CodeBlock) []byte {
	start, end := b.StartByte, b.EndByte
	if start < 0 {
		start = 0
	}
	if end > len(content) {
		end = len(content)
	}
	if start >= end {
		return nil
	}
	return content[start:end]
}

// offsetLocation shifts a delegate-local location into the parent's
// coordinate space. Columns shift only on the first line of the region.
func offsetLocation(loc model.Location, lineOff, colOff int) model.Location {
	out := loc
	out.StartLine += lineOff
	out.EndLine += lineOff
	if loc.StartLine == 1 {
		out.StartColumn += colOff
	}
	if loc.EndLine == 1 {
		out.EndColumn += colOff
	}
	return out
}

// remapReconstructed maps a location in the reconstructed document back
// to original file coordinates through the segment correspondences.
func remapReconstructed(loc model.Location, segments []reconSegment) model.Location {
	out := loc
	out.StartLine = remapLine(loc.StartLine, segments, false)
	out.EndLine = remapLine(loc.EndLine, segments, true)
	if out.EndLine < out.StartLine {
		out.EndLine = out.StartLine
	}
	return out
}

// remapLine maps one reconstructed line to its original line. Lines that
// fall on placeholder rows clamp to the nearest segment edge; clampDown
// selects the preceding segment's end instead of the following start.
func remapLine(line int, segments []reconSegment, clampDown bool) int {
	for _, seg := range segments {
		if line >= seg.reconStart && line <= seg.reconEnd {
			return seg.origStart + (line - seg.reconStart)
		}
	}
	if clampDown {
		for i := len(segments) - 1; i >= 0; i-- {
			if line > segments[i].reconEnd {
				return segments[i].origEnd
			}
		}
	} else {
		for _, seg := range segments {
			if line < seg.reconStart {
				return seg.origStart
			}
		}
	}
	if len(segments) > 0 {
		return segments[len(segments)-1].origEnd
	}
	return line
}

// rerootID rewrites a delegate-local hierarchical id under the parent's
// synthetic embedded-code scope.
func rerootID(id, oldRoot, newRoot string) string {
	if id == "" {
		return ""
	}
	if id == oldRoot {
		return newRoot
	}
	if strings.HasPrefix(id, oldRoot+model.ScopeSeparator) {
		return newRoot + id[len(oldRoot):]
	}
	return id
}

// findEnclosingID returns the id of the smallest non-embedded component
// whose range contains loc, preferring specific components over the file
// component.
func findEnclosingID(components []model.Component, loc model.Location) string {
	var best *model.Component
	var file *model.Component
	for i := range components {
		c := &components[i]
		if c.Type == model.ComponentFile {
			if file == nil {
				file = c
			}
			continue
		}
		if c.Type == model.ComponentEmbeddedCode || c.ScopeContext != nil {
			continue
		}
		if !c.Location.Contains(loc) {
			continue
		}
		if best == nil || c.Location.LineSpan() < best.Location.LineSpan() {
			best = c
		}
	}
	if best != nil {
		return best.ID
	}
	if file != nil {
		return file.ID
	}
	return ""
}

// componentChain walks ParentID links from id outward, innermost first.
func componentChain(components []model.Component, id string) []string {
	if id == "" {
		return nil
	}
	byID := make(map[string]*model.Component, len(components))
	for i := range components {
		byID[components[i].ID] = &components[i]
	}
	var chain []string
	for cur := id; cur != ""; {
		chain = append(chain, cur)
		c, ok := byID[cur]
		if !ok || c.ParentID == cur {
			break
		}
		cur = c.ParentID
	}
	return chain
}

// boundaryMarkers reads the textual markers recorded by the scanner,
// falling back to the per-language defaults.
func boundaryMarkers(b model.CodeBlock, lang string) (string, string) {
	var start, end string
	if b.Metadata != nil {
		start, _ = b.Metadata["startMarker"].(string)
		end, _ = b.Metadata["endMarker"].(string)
	}
	if start == "" || end == "" {
		if def, ok := fallbackMarkers[lang]; ok {
			if start == "" {
				start = def[0]
			}
			if end == "" {
				end = def[1]
			}
		}
	}
	return start, end
}
