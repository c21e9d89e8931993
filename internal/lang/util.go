// Package lang provides detector-based language supports: regex-driven
// component extraction for languages without a grammar binding. These
// parse at structural level with the detectors-only backend and lean on
// the generic heuristics for relationships.
package lang

import "strings"

// maxCodeSlice bounds the verbatim source stored on a component.
const maxCodeSlice = 2000

// lineOffsets returns the byte offset of each line start.
func lineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineOf converts a byte offset to a 1-based line number.
func lineOf(offsets []int, pos int) int {
	lo, hi := 0, len(offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if offsets[mid] <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

// columnOf converts a byte offset to a 1-based column number.
func columnOf(offsets []int, pos int) int {
	line := lineOf(offsets, pos)
	return pos - offsets[line-1] + 1
}

// findBlockEnd returns the byte index of the brace matching the opening
// brace at or after start, or len(text)-1 when unbalanced (lenient:
// malformed input still yields a usable range). String and comment
// contents are skipped well enough for structural extraction.
func findBlockEnd(text string, start int) int {
	open := strings.IndexByte(text[start:], '{')
	if open < 0 {
		return len(text) - 1
	}
	depth := 0
	inString := byte(0)
	for i := start + open; i < len(text); i++ {
		c := text[i]
		if inString != 0 {
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(text) - 1
}

// sliceCode extracts and truncates the source slice for a component.
func sliceCode(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return ""
	}
	code := text[start:end]
	if len(code) > maxCodeSlice {
		code = code[:maxCodeSlice]
	}
	return code
}

// balancedBraces reports whether braces balance outside strings.
func balancedBraces(text string) bool {
	depth := 0
	inString := byte(0)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString != 0 {
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
