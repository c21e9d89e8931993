// Package scanner segments raw file text into language-tagged regions.
// It is a pure function of (path, content) and has no dependency on the
// parser layer.
package scanner

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/dusk-indust/polyscan/internal/model"
)

// Scanner locates embedded-language blocks in file text. The detector
// rule table is loaded lazily once per Scanner.
type Scanner struct {
	rulesPath string

	once  sync.Once
	table *RuleTable
	rules []compiledRule
}

// ScanMetadata summarizes one scan.
type ScanMetadata struct {
	Backend    model.Backend `json:"backend"`
	Confidence float64       `json:"confidence"`
	BlockCount int           `json:"blockCount"`
}

// ScanResult is the ordered list of detected blocks plus scan provenance.
type ScanResult struct {
	Blocks   []model.CodeBlock `json:"blocks"`
	Metadata ScanMetadata      `json:"metadata"`
}

// New creates a Scanner. rulesPath may be empty to use the embedded
// default rule table.
func New(rulesPath string) *Scanner {
	return &Scanner{rulesPath: rulesPath}
}

// Scan segments the file into language-tagged blocks. If content is nil
// it is read from disk; a read failure is a hard failure for this file
// only. The scope-based scan runs first; the detector rule table is the
// fallback. An empty result means the caller should treat the whole file
// as a single region in its own declared language.
func (s *Scanner) Scan(filePath string, content []byte) (*ScanResult, error) {
	if content == nil {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("scanner: read %s: %w", filePath, err)
		}
		content = data
	}

	text := string(content)
	idx := newLineIndex(text)

	// Priority 1: the unified scope-based scan.
	if blocks := scopeScan(text); len(blocks) > 0 {
		ranked := rankBlocks(blocks)
		return &ScanResult{
			Blocks: ranked,
			Metadata: ScanMetadata{
				Backend:    model.BackendTextMate,
				Confidence: meanConfidence(ranked),
				BlockCount: len(ranked),
			},
		}, nil
	}

	// Priority 2: the configurable detector rule table.
	blocks := s.detectorScan(text, idx)
	ranked := rankBlocks(blocks)
	return &ScanResult{
		Blocks: ranked,
		Metadata: ScanMetadata{
			Backend:    model.BackendDetectorsOnly,
			Confidence: meanConfidence(ranked),
			BlockCount: len(ranked),
		},
	}, nil
}

// load compiles the rule table exactly once.
func (s *Scanner) load() {
	s.once.Do(func() {
		s.table = loadRuleTable(s.rulesPath)
		s.rules = s.table.compile()
	})
}

// detectorScan runs every compiled rule against the whole text. Rule
// failures are logged and skipped, never fatal.
func (s *Scanner) detectorScan(text string, idx *lineIndex) []model.CodeBlock {
	s.load()

	var blocks []model.CodeBlock
	for _, rule := range s.rules {
		matches := rule.re.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			groups := submatchStrings(text, m)
			lang, err := resolveLanguage(rule.Language, groups)
			if err != nil {
				log.Printf("scanner: rule %s: %v (match skipped)", rule.category, err)
				continue
			}
			lang = s.table.normalizeLanguage(lang)
			if lang == "" {
				continue
			}

			startLine, startCol := idx.locate(m[0])
			endLine, endCol := idx.locate(maxInt(m[0], m[1]-1))
			blocks = append(blocks, model.CodeBlock{
				Language:    lang,
				StartLine:   startLine,
				EndLine:     endLine,
				StartColumn: startCol,
				EndColumn:   endCol,
				StartByte:   m[0],
				EndByte:     m[1],
				Confidence:  rule.Confidence,
				Source:      model.BlockSourceDetector,
				Metadata: map[string]any{
					"detector": rule.category,
					"pattern":  rule.Pattern,
					"priority": rule.Priority,
				},
			})
		}
	}
	return blocks
}

// rankBlocks sorts by priority (desc) then confidence (desc) and
// deduplicates by (language, startLine, endLine), keeping the best block
// per key.
func rankBlocks(blocks []model.CodeBlock) []model.CodeBlock {
	sort.SliceStable(blocks, func(i, j int) bool {
		pi, pj := blockPriority(blocks[i]), blockPriority(blocks[j])
		if pi != pj {
			return pi > pj
		}
		return blocks[i].Confidence > blocks[j].Confidence
	})

	type key struct {
		lang       string
		start, end int
	}
	seen := make(map[key]bool, len(blocks))
	out := make([]model.CodeBlock, 0, len(blocks))
	for _, b := range blocks {
		k := key{b.Language, b.StartLine, b.EndLine}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}

	// Present blocks in document order after ranking resolved duplicates.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].StartColumn < out[j].StartColumn
	})
	return out
}

func blockPriority(b model.CodeBlock) int {
	if b.Metadata == nil {
		return 0
	}
	if p, ok := b.Metadata["priority"].(int); ok {
		return p
	}
	return 0
}

func meanConfidence(blocks []model.CodeBlock) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range blocks {
		sum += b.Confidence
	}
	return sum / float64(len(blocks))
}

func submatchStrings(text string, m []int) []string {
	groups := make([]string, 0, len(m)/2)
	for i := 0; i < len(m); i += 2 {
		if m[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, text[m[i]:m[i+1]])
	}
	return groups
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// lineIndex converts byte offsets to 1-based line/column pairs.
type lineIndex struct {
	starts []int // byte offset of each line start
}

func newLineIndex(text string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

// locate returns the 1-based line and column containing the byte offset.
func (li *lineIndex) locate(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - li.starts[lo] + 1
}
