package model

// BlockSource tags which detection path produced a code block.
type BlockSource string

const (
	BlockSourceDetector BlockSource = "detector"
	BlockSourceMerged   BlockSource = "merged"
	BlockSourceTextMate BlockSource = "textmate"
)

// CodeBlock is a candidate region of a file tagged with a language.
// All coordinates are expressed in the containing file's space.
type CodeBlock struct {
	Language    string         `json:"language"`
	StartLine   int            `json:"startLine"`
	EndLine     int            `json:"endLine"`
	StartColumn int            `json:"startColumn"`
	EndColumn   int            `json:"endColumn"`
	StartByte   int            `json:"startByte"`
	EndByte     int            `json:"endByte"`
	Confidence  float64        `json:"confidence"`
	Source      BlockSource    `json:"source"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Location converts the block's line/column range to a Location.
func (b CodeBlock) Location() Location {
	return Location{
		StartLine:   b.StartLine,
		EndLine:     b.EndLine,
		StartColumn: b.StartColumn,
		EndColumn:   b.EndColumn,
	}
}
