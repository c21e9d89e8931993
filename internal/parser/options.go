package parser

import "time"

// ProgressStage identifies a coarse milestone within one file's parse.
type ProgressStage string

const (
	StageReading    ProgressStage = "reading"
	StageExtracting ProgressStage = "extracting"
	StageDelegating ProgressStage = "delegating"
	StageDone       ProgressStage = "done"
)

// ProgressFunc is invoked synchronously at each milestone. It may be nil.
type ProgressFunc func(stage ProgressStage, filePath string)

// Options configure one parse invocation. The embedding fields are set
// automatically on recursive delegation calls, never by outside callers.
type Options struct {
	// EnableDelegation controls whether embedded-language regions are
	// handed to registered delegate parsers.
	EnableDelegation bool

	// Timeout bounds the whole parse of one file. Zero means no limit.
	// On expiry the in-flight parse is abandoned and a PARSE_TIMEOUT
	// error result is returned; parsing is not resumable.
	Timeout time.Duration

	// Progress receives milestone callbacks. May be nil.
	Progress ProgressFunc

	// Embedding context, set on recursive calls.
	IsEmbedded     bool
	ParentLanguage string
	ParentScope    string
	OffsetLine     int
	OffsetColumn   int

	// LanguageStack is the chain of languages entered so far, outermost
	// first. Set on recursive calls.
	LanguageStack []string
}

// DefaultOptions returns the options used when the caller passes the
// zero value's semantics: delegation on, 30s timeout.
func DefaultOptions() Options {
	return Options{
		EnableDelegation: true,
		Timeout:          30 * time.Second,
	}
}

// emit fires the progress callback if one is registered.
func (o Options) emit(stage ProgressStage, filePath string) {
	if o.Progress != nil {
		o.Progress(stage, filePath)
	}
}
