package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/polyscan/internal/model"
)

// fakeSupport is a scriptable LanguageSupport for pipeline tests.
type fakeSupport struct {
	language   string
	extensions []string
	profile    Profile
	components []model.Component
	rels       []model.Relationship
	syntaxErrs []model.ParseError
	panicOn    bool
	fatal      bool
	delay      time.Duration
}

func (f *fakeSupport) Language() string     { return f.language }
func (f *fakeSupport) Extensions() []string { return f.extensions }
func (f *fakeSupport) Profile() Profile     { return f.profile }

func (f *fakeSupport) ValidateSyntax([]byte) []model.ParseError { return f.syntaxErrs }

func (f *fakeSupport) DetectComponents(ctx context.Context, _ []byte, _ string) ([]model.Component, error) {
	if f.panicOn {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	out := make([]model.Component, len(f.components))
	copy(out, f.components)
	return out, nil
}

func (f *fakeSupport) DetectRelationships(context.Context, []byte, string, []model.Component) ([]model.Relationship, error) {
	out := make([]model.Relationship, len(f.rels))
	copy(out, f.rels)
	return out, nil
}

func (f *fakeSupport) SyntaxErrorsFatal() bool { return f.fatal }

func newFakeSupport() *fakeSupport {
	return &fakeSupport{
		language:   "fake",
		extensions: []string{".ext"},
		profile: Profile{
			Level:        model.LevelStructural,
			Backend:      model.BackendDetectorsOnly,
			Capabilities: []model.Capability{model.CapSymbols, model.CapRelationships, model.CapRanges},
		},
	}
}

func findRelationship(rels []model.Relationship, t model.RelationshipType, source, target string) *model.Relationship {
	for i := range rels {
		if rels[i].Type == t && rels[i].SourceID == source && rels[i].TargetID == target {
			return &rels[i]
		}
	}
	return nil
}

func TestParseContent_ClassWithMethod(t *testing.T) {
	support := newFakeSupport()
	classID := model.ComponentID("Foo", model.ScopeSegment(model.ComponentClass, "Foo"))
	methodID := model.ComponentID("Foo",
		model.ScopeSegment(model.ComponentClass, "Foo"),
		model.ScopeSegment(model.ComponentMethod, "bar"))
	support.components = []model.Component{
		FileComponent("Foo.ext", "fake", []byte("class Foo { bar() {} }")),
		{ID: classID, Name: "Foo", Type: model.ComponentClass, Language: "fake", FilePath: "Foo.ext",
			Location: model.Location{StartLine: 1, EndLine: 5}},
		{ID: methodID, Name: "bar", Type: model.ComponentMethod, Language: "fake", FilePath: "Foo.ext",
			Location: model.Location{StartLine: 2, EndLine: 4}},
	}

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("class Foo { bar() {} }"), "Foo.ext", DefaultOptions())

	require.Empty(t, result.Errors)
	assert.Equal(t, "Foo|class:Foo|method:bar", methodID)

	rel := findRelationship(result.Relationships, model.RelClassContainsMethod, classID, methodID)
	require.NotNil(t, rel, "containment inference should link the class to its method")
	assert.Equal(t, classID+"->"+methodID+"#class-contains-method", rel.ID)
}

func TestParseContent_ComponentIDsUnique(t *testing.T) {
	support := newFakeSupport()
	classID := model.ComponentID("Foo", model.ScopeSegment(model.ComponentClass, "Foo"))
	support.components = []model.Component{
		FileComponent("Foo.ext", "fake", nil),
		{ID: classID, Name: "Foo", Type: model.ComponentClass, Location: model.Location{StartLine: 1, EndLine: 5}},
		{ID: classID + "|method:bar", Name: "bar", Type: model.ComponentMethod, Location: model.Location{StartLine: 2, EndLine: 3}},
		{ID: classID + "|method:baz", Name: "baz", Type: model.ComponentMethod, Location: model.Location{StartLine: 4, EndLine: 4}},
	}

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("x"), "Foo.ext", DefaultOptions())

	seen := make(map[string]bool)
	for _, c := range result.Components {
		assert.False(t, seen[c.ID], "duplicate component id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestParseContent_StampsProvenance(t *testing.T) {
	support := newFakeSupport()
	support.components = []model.Component{FileComponent("a.ext", "fake", nil)}

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("x"), "a.ext", DefaultOptions())

	require.NotEmpty(t, result.Components)
	meta := result.Components[0].Metadata
	assert.Equal(t, "structural", meta["parsingLevel"])
	assert.Equal(t, "detectors-only", meta["backend"])
	assert.Equal(t, model.LevelStructural, result.Metadata.ParsingLevel)
	assert.Equal(t, model.BackendDetectorsOnly, result.Metadata.Backend)
}

func TestParseContent_PanicBecomesErrorResult(t *testing.T) {
	support := newFakeSupport()
	support.panicOn = true

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("x"), "a.ext", DefaultOptions())

	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.CodeInternalPanic, result.Errors[0].Code)
	assert.Empty(t, result.Components)
}

func TestParseContent_FatalSyntaxStopsExtraction(t *testing.T) {
	support := newFakeSupport()
	support.fatal = true
	support.syntaxErrs = []model.ParseError{{
		Message: "bad input", Severity: model.SeverityError, Code: model.CodeSyntaxError,
	}}
	support.components = []model.Component{FileComponent("a.ext", "fake", nil)}

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("x"), "a.ext", DefaultOptions())

	require.Len(t, result.Errors, 1)
	assert.Empty(t, result.Components, "fatal validation must stop extraction")
}

func TestParseContent_LenientSyntaxKeepsPartialStructure(t *testing.T) {
	support := newFakeSupport()
	support.syntaxErrs = []model.ParseError{{
		Message: "suspicious", Severity: model.SeverityError, Code: model.CodeSyntaxError,
	}}
	support.components = []model.Component{FileComponent("a.ext", "fake", nil)}

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("x"), "a.ext", DefaultOptions())

	assert.Len(t, result.Errors, 1)
	assert.NotEmpty(t, result.Components, "lenient validation keeps partial structure")
}

func TestParseContent_TimeoutCode(t *testing.T) {
	support := newFakeSupport()
	support.delay = 2 * time.Second

	opts := DefaultOptions()
	opts.Timeout = 20 * time.Millisecond

	p := New(support, nil)
	result := p.ParseContent(context.Background(), []byte("x"), "a.ext", opts)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.CodeParseTimeout, result.Errors[0].Code,
		"a slow file must be distinguishable from a malformed one")
	assert.Empty(t, result.Components)
}

func TestParseFile_MissingFile(t *testing.T) {
	p := New(newFakeSupport(), nil)
	result := p.ParseFile(context.Background(), "no/such/file.ext", DefaultOptions())

	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.CodeFileNotFound, result.Errors[0].Code)
	assert.Equal(t, "no/such/file.ext", result.Metadata.FilePath)
}

func TestCanParse_ByExtension(t *testing.T) {
	p := New(newFakeSupport(), nil)
	assert.True(t, p.CanParse("dir/Foo.ext"))
	assert.True(t, p.CanParse("Foo.EXT"))
	assert.False(t, p.CanParse("Foo.other"))
}

func TestProgressEvents(t *testing.T) {
	support := newFakeSupport()
	support.components = []model.Component{FileComponent("a.ext", "fake", nil)}

	var stages []ProgressStage
	opts := DefaultOptions()
	opts.Progress = func(stage ProgressStage, _ string) {
		stages = append(stages, stage)
	}

	p := New(support, nil)
	p.ParseContent(context.Background(), []byte("x"), "a.ext", opts)

	assert.Contains(t, stages, StageExtracting)
	assert.Equal(t, StageDone, stages[len(stages)-1])
}

func TestScopeStack(t *testing.T) {
	stack := NewScopeStack("src/Foo.ext")
	assert.Equal(t, "Foo", stack.ID())

	classID := stack.Push(model.ComponentClass, "Foo")
	assert.Equal(t, "Foo|class:Foo", classID)
	assert.Equal(t, "Foo|class:Foo|method:bar", stack.ChildID(model.ComponentMethod, "bar"))

	stack.Pop()
	assert.Equal(t, "Foo", stack.ID())
}
