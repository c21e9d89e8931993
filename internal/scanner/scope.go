package scanner

import (
	"regexp"
	"strings"

	"github.com/dusk-indust/polyscan/internal/model"
)

// scopeState enumerates the states of the unified scope scanner.
type scopeState int

const (
	scopeText scopeState = iota
	scopeScript
	scopeStyle
	scopePHP
	scopeFence
	scopeFrontMatter
)

var (
	scriptOpenRe = regexp.MustCompile(`(?i)<script\b[^>]*>`)
	scriptLangRe = regexp.MustCompile(`(?i)\b(?:lang|type)=["']?(?:text/|application/)?([\w+-]+)["']?`)
	styleOpenRe  = regexp.MustCompile(`(?i)<style\b[^>]*>`)
	fenceOpenRe  = regexp.MustCompile("^```([\\w+-]*)\\s*$")
)

// scopeRegion tracks one open embedded region while scanning.
type scopeRegion struct {
	language    string
	confidence  float64
	startLine   int // first content line, 1-based
	startByte   int
	startMarker string
	endMarker   string
}

// scopeScan is the general-purpose scope-based scan: a single line-driven
// state machine recognizing common embedding patterns (script/style tags,
// php regions, fenced code, front matter). It returns content-only spans
// tagged textmate; markers are recorded in block metadata.
func scopeScan(text string) []model.CodeBlock {
	var blocks []model.CodeBlock

	state := scopeText
	var region scopeRegion

	lines := strings.Split(text, "\n")
	offset := 0

	emit := func(endLine, endByte int) {
		if endLine < region.startLine {
			// Region closed before any content line; nothing to emit.
			return
		}
		endCol := 1
		if endLine-1 < len(lines) {
			endCol = len(lines[endLine-1])
			if endCol == 0 {
				endCol = 1
			}
		}
		blocks = append(blocks, model.CodeBlock{
			Language:    region.language,
			StartLine:   region.startLine,
			EndLine:     endLine,
			StartColumn: 1,
			EndColumn:   endCol,
			StartByte:   region.startByte,
			EndByte:     endByte,
			Confidence:  region.confidence,
			Source:      model.BlockSourceTextMate,
			Metadata: map[string]any{
				"detector":    "scope",
				"startMarker": region.startMarker,
				"endMarker":   region.endMarker,
			},
		})
	}

	for i, line := range lines {
		lineNo := i + 1
		lineEnd := offset + len(line)

		switch state {
		case scopeText:
			trimmed := strings.TrimSpace(line)

			// Front matter opens only on the very first line.
			if lineNo == 1 && trimmed == "---" {
				state = scopeFrontMatter
				region = scopeRegion{
					language:    "yaml",
					confidence:  0.9,
					startLine:   lineNo + 1,
					startByte:   lineEnd + 1,
					startMarker: "---",
					endMarker:   "---",
				}
				break
			}

			if m := fenceOpenRe.FindStringSubmatch(trimmed); m != nil && m[1] != "" {
				state = scopeFence
				region = scopeRegion{
					language:    strings.ToLower(m[1]),
					confidence:  0.85,
					startLine:   lineNo + 1,
					startByte:   lineEnd + 1,
					startMarker: "```" + m[1],
					endMarker:   "```",
				}
				break
			}

			if loc := scriptOpenRe.FindStringIndex(line); loc != nil {
				lang := "javascript"
				if lm := scriptLangRe.FindStringSubmatch(line[loc[0]:loc[1]]); lm != nil {
					lang = normalizeScriptLang(lm[1])
				}
				if close := strings.Index(strings.ToLower(line[loc[1]:]), "</script>"); close >= 0 {
					// Inline script on one line.
					blocks = append(blocks, inlineBlock(lang, 0.9, lineNo, offset, line, loc[1], loc[1]+close, "<script>", "</script>"))
					break
				}
				state = scopeScript
				region = scopeRegion{
					language:    lang,
					confidence:  0.9,
					startLine:   lineNo + 1,
					startByte:   lineEnd + 1,
					startMarker: line[loc[0]:loc[1]],
					endMarker:   "</script>",
				}
				break
			}

			if loc := styleOpenRe.FindStringIndex(line); loc != nil {
				if close := strings.Index(strings.ToLower(line[loc[1]:]), "</style>"); close >= 0 {
					blocks = append(blocks, inlineBlock("css", 0.9, lineNo, offset, line, loc[1], loc[1]+close, "<style>", "</style>"))
					break
				}
				state = scopeStyle
				region = scopeRegion{
					language:    "css",
					confidence:  0.9,
					startLine:   lineNo + 1,
					startByte:   lineEnd + 1,
					startMarker: line[loc[0]:loc[1]],
					endMarker:   "</style>",
				}
				break
			}

			if open := strings.Index(line, "<?php"); open >= 0 {
				after := open + len("<?php")
				if close := strings.Index(line[after:], "?>"); close >= 0 {
					blocks = append(blocks, inlineBlock("php", 0.95, lineNo, offset, line, after, after+close, "<?php", "?>"))
					break
				}
				state = scopePHP
				region = scopeRegion{
					language:    "php",
					confidence:  0.95,
					startLine:   lineNo + 1,
					startByte:   lineEnd + 1,
					startMarker: "<?php",
					endMarker:   "?>",
				}
			}

		case scopeScript:
			if strings.Contains(strings.ToLower(line), "</script>") {
				emit(lineNo-1, offset-1)
				state = scopeText
			}

		case scopeStyle:
			if strings.Contains(strings.ToLower(line), "</style>") {
				emit(lineNo-1, offset-1)
				state = scopeText
			}

		case scopePHP:
			if strings.Contains(line, "?>") {
				emit(lineNo-1, offset-1)
				state = scopeText
			}

		case scopeFence:
			if strings.TrimSpace(line) == "```" {
				emit(lineNo-1, offset-1)
				state = scopeText
			}

		case scopeFrontMatter:
			if strings.TrimSpace(line) == "---" {
				emit(lineNo-1, offset-1)
				state = scopeText
			}
		}

		offset = lineEnd + 1
	}

	// Unterminated regions close at end of input. PHP commonly omits the
	// closing tag; fences and tags are closed leniently the same way.
	if state != scopeText {
		emit(len(lines), len(text))
	}

	return blocks
}

// inlineBlock builds a single-line content block between two markers that
// open and close on the same line. innerStart/innerEnd are indexes into
// line bounding the embedded content.
func inlineBlock(lang string, conf float64, lineNo, lineOffset int, line string, innerStart, innerEnd int, startMarker, endMarker string) model.CodeBlock {
	return model.CodeBlock{
		Language:    lang,
		StartLine:   lineNo,
		EndLine:     lineNo,
		StartColumn: innerStart + 1,
		EndColumn:   innerEnd,
		StartByte:   lineOffset + innerStart,
		EndByte:     lineOffset + innerEnd,
		Confidence:  conf,
		Source:      model.BlockSourceTextMate,
		Metadata: map[string]any{
			"detector":    "scope",
			"startMarker": startMarker,
			"endMarker":   endMarker,
		},
	}
}

// normalizeScriptLang maps script tag lang/type attributes to language names.
func normalizeScriptLang(attr string) string {
	switch strings.ToLower(attr) {
	case "ts", "typescript":
		return "typescript"
	case "module", "javascript", "js", "ecmascript":
		return "javascript"
	default:
		return strings.ToLower(attr)
	}
}
