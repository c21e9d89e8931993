package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
)

// Support adapts a bridge Client into a LanguageSupport, so languages
// parsed by an external process plug into the core like native ones.
type Support struct {
	client     *Client
	language   string
	extensions []string
}

var _ parser.LanguageSupport = (*Support)(nil)

// NewSupport wraps client as the support for one language.
func NewSupport(client *Client, language string, extensions []string) *Support {
	return &Support{
		client:     client,
		language:   language,
		extensions: extensions,
	}
}

func (s *Support) Language() string     { return s.language }
func (s *Support) Extensions() []string { return s.extensions }

func (s *Support) Profile() parser.Profile {
	return parser.Profile{
		Level:   model.LevelSemantic,
		Backend: model.BackendAST,
		Capabilities: []model.Capability{
			model.CapSymbols, model.CapRelationships, model.CapRanges,
		},
	}
}

// ValidateSyntax defers to the external parser: its diagnostics come
// back attached to the parse result instead.
func (s *Support) ValidateSyntax([]byte) []model.ParseError { return nil }

// parseResult is the result shape the child returns for parse requests.
type parseResult struct {
	Components    []model.Component    `json:"components"`
	Relationships []model.Relationship `json:"relationships"`
	Errors        []model.ParseError   `json:"errors,omitempty"`
}

func (s *Support) DetectComponents(ctx context.Context, content []byte, filePath string) ([]model.Component, error) {
	res, err := s.parseContent(ctx, content, filePath)
	if err != nil {
		return nil, err
	}
	components := []model.Component{parser.FileComponent(filePath, s.language, content)}
	return append(components, res.Components...), nil
}

func (s *Support) DetectRelationships(ctx context.Context, content []byte, filePath string, _ []model.Component) ([]model.Relationship, error) {
	res, err := s.parseContent(ctx, content, filePath)
	if err != nil {
		return nil, err
	}
	return res.Relationships, nil
}

func (s *Support) parseContent(ctx context.Context, content []byte, filePath string) (*parseResult, error) {
	raw, err := s.client.Call(ctx, CommandParseContent, ParseContentPayload{
		FilePath: filePath,
		Content:  string(content),
		Language: s.language,
	})
	if err != nil {
		return nil, err
	}
	var res parseResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bridge: decode %s result: %w", s.language, err)
	}
	return &res, nil
}
