package scanner

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DetectorRule is one externally configured detection rule. Pattern is a
// Go regexp executed against the whole file text. Language may reference a
// capture group as "$1" etc., in which case the matched text (normalized)
// becomes the block language.
type DetectorRule struct {
	Pattern    string  `yaml:"pattern"`
	Language   string  `yaml:"language"`
	Confidence float64 `yaml:"confidence"`
	Priority   int     `yaml:"priority"`
	Multiline  bool    `yaml:"multiline,omitempty"`
}

// RuleTable groups detector rules by category (shebang, fenced-code,
// markup-script, sfc-section, heredoc, templating, css-in-js,
// front-matter, ...).
type RuleTable struct {
	Categories map[string][]DetectorRule `yaml:"categories"`

	// LanguageAliases normalizes language names captured from source text
	// (e.g. "js" -> "javascript").
	LanguageAliases map[string]string `yaml:"languageAliases,omitempty"`
}

// defaultRules is the rule table shipped with the binary, used when no
// external rules file is configured.
//
//go:embed rules.yml
var defaultRules []byte

// compiledRule pairs a DetectorRule with its compiled pattern.
type compiledRule struct {
	DetectorRule
	category string
	re       *regexp.Regexp
}

// loadRuleTable reads and parses a rule table. An empty path loads the
// embedded default table. Any failure returns the minimal built-in
// fallback (shebang detection only) instead of an error: a broken rules
// file must never abort scanning.
func loadRuleTable(path string) *RuleTable {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Printf("scanner: read rules %s: %v; using shebang fallback", path, err)
			return fallbackRuleTable()
		}
		data = b
	}

	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		log.Printf("scanner: parse rules: %v; using shebang fallback", err)
		return fallbackRuleTable()
	}
	if len(table.Categories) == 0 {
		return fallbackRuleTable()
	}
	return &table
}

// fallbackRuleTable is the minimal built-in table: shebang detection only.
func fallbackRuleTable() *RuleTable {
	return &RuleTable{
		Categories: map[string][]DetectorRule{
			"shebang": {
				{Pattern: `^#!.*?(?:/|\benv\s+)(\w+)\s*$`, Language: "$1", Confidence: 0.95, Priority: 100, Multiline: true},
			},
		},
		LanguageAliases: defaultAliases(),
	}
}

func defaultAliases() map[string]string {
	return map[string]string{
		"js":   "javascript",
		"jsx":  "javascript",
		"node": "javascript",
		"ts":   "typescript",
		"tsx":  "typescript",
		"py":   "python",
		"py3":  "python",
		"rb":   "ruby",
		"sh":   "shell",
		"bash": "shell",
		"zsh":  "shell",
		"yml":  "yaml",
		"golang": "go",
	}
}

// compile builds the executable rule set, logging and skipping rules whose
// patterns fail to compile. Pattern errors never abort the scan.
func (t *RuleTable) compile() []compiledRule {
	var rules []compiledRule
	for category, list := range t.Categories {
		for _, r := range list {
			expr := r.Pattern
			if r.Multiline && !strings.HasPrefix(expr, "(?m)") {
				expr = "(?m)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				log.Printf("scanner: rule %s/%q: %v (skipped)", category, r.Pattern, err)
				continue
			}
			rules = append(rules, compiledRule{DetectorRule: r, category: category, re: re})
		}
	}
	return rules
}

// normalizeLanguage resolves a raw language tag (possibly captured from
// the source text) through the alias map and lowercases it.
func (t *RuleTable) normalizeLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if t.LanguageAliases != nil {
		if norm, ok := t.LanguageAliases[lang]; ok {
			return norm
		}
	}
	if norm, ok := defaultAliases()[lang]; ok {
		return norm
	}
	return lang
}

// resolveLanguage expands a rule's language spec against a regexp match.
// "$1"-style specs are replaced with the corresponding capture group.
func resolveLanguage(spec string, groups []string) (string, error) {
	if !strings.HasPrefix(spec, "$") {
		return spec, nil
	}
	idx, err := strconv.Atoi(spec[1:])
	if err != nil || idx < 1 || idx >= len(groups) {
		return "", fmt.Errorf("scanner: bad capture reference %q", spec)
	}
	return groups[idx], nil
}
