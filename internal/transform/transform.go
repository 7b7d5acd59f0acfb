// =============================================================================
// COVID Scenes - Table Transformation
// =============================================================================
//
// This module reshapes a raw table before record parsing, so sources whose
// columns or values differ from the canonical state/date/cases/deaths layout
// can still be loaded.
//
// STEPS (in order):
//   1. Column aliases rename headers (e.g. Province_State -> state)
//   2. Field rules rewrite cell values, one action after another
//
// EXAMPLE CONFIGURATION:
//   transform:
//     column_aliases:
//       province_state: state
//       confirmed: cases
//     rules:
//       - field: state
//         actions:
//           - type: normalize_whitespace
//           - type: lookup
//             lookup_table: {"New York": "NY"}
//       - field: cases
//         actions:
//           - type: replace
//             find: ","
//
// =============================================================================

package transform

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/covid-scenes/internal/csvparser"
)

// =============================================================================
// CONFIGURATION TYPES
// =============================================================================

// Rules configures the transformation of a table.
type Rules struct {
	// ColumnAliases maps a source header to the column it stands for.
	// Keys are matched case-insensitively.
	ColumnAliases map[string]string `yaml:"column_aliases" envconfig:"COLUMN_ALIASES"`

	// Fields lists value rewrites per column.
	Fields []FieldRule `yaml:"rules" ignored:"true"`
}

// FieldRule is the ordered list of actions applied to one column.
type FieldRule struct {
	Field   string   `yaml:"field"`
	Actions []Action `yaml:"actions"`
}

// Action is one value rewrite.
type Action struct {
	// Type is one of the Action* constants.
	Type string `yaml:"type"`

	// Find is the substring or pattern for replace and regex_replace.
	Find string `yaml:"find,omitempty"`

	// Value is the replacement, or the default for lookup_with_default and
	// if_empty_use_default.
	Value string `yaml:"value,omitempty"`

	// LookupTable is used by lookup and lookup_with_default.
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// Supported action types.
const (
	ActionTrim                = "trim"
	ActionNormalizeWhitespace = "normalize_whitespace"
	ActionUppercase           = "uppercase"
	ActionLowercase           = "lowercase"
	ActionTitleCase           = "title_case"
	ActionReplace             = "replace"
	ActionRegexReplace        = "regex_replace"
	ActionLookup              = "lookup"
	ActionLookupWithDefault   = "lookup_with_default"
	ActionIfEmptyUseDefault   = "if_empty_use_default"
)

// Empty reports whether r changes nothing.
func (r Rules) Empty() bool {
	return len(r.ColumnAliases) == 0 && len(r.Fields) == 0
}

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies compiled Rules to tables.
type Transformer struct {
	aliases map[string]string
	fields  []compiledRule

	// fingerprint is the canonical YAML of the rules.
	fingerprint string
}

type compiledRule struct {
	field string
	steps []func(string) string
}

var whitespace = regexp.MustCompile(`\s+`)

// New compiles rules.
//
// RETURNS:
//   - The Transformer.
//   - An error naming the field and action that is unknown or invalid.
func New(rules Rules) (*Transformer, error) {
	t := &Transformer{aliases: make(map[string]string, len(rules.ColumnAliases))}
	for from, to := range rules.ColumnAliases {
		t.aliases[strings.ToLower(strings.TrimSpace(from))] = strings.TrimSpace(to)
	}

	for _, rule := range rules.Fields {
		if strings.TrimSpace(rule.Field) == "" {
			return nil, fmt.Errorf("transformation rule has no field")
		}
		compiled := compiledRule{field: rule.Field}
		for _, action := range rule.Actions {
			step, err := compile(action)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", rule.Field, err)
			}
			compiled.steps = append(compiled.steps, step)
		}
		t.fields = append(t.fields, compiled)
	}

	// yaml.v3 sorts map keys, so equal rules give equal text.
	out, err := yaml.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	t.fingerprint = string(out)
	return t, nil
}

// Fingerprint identifies the rules. Two transformers with equal rules have
// equal fingerprints.
func (t *Transformer) Fingerprint() string {
	return t.fingerprint
}

// compile turns one action into a value function.
func compile(action Action) (func(string) string, error) {
	switch action.Type {
	case ActionTrim:
		return strings.TrimSpace, nil

	case ActionNormalizeWhitespace:
		return func(v string) string {
			return strings.TrimSpace(whitespace.ReplaceAllString(v, " "))
		}, nil

	case ActionUppercase:
		return strings.ToUpper, nil

	case ActionLowercase:
		return strings.ToLower, nil

	case ActionTitleCase:
		caser := cases.Title(language.English)
		return caser.String, nil

	case ActionReplace:
		if action.Find == "" {
			return nil, fmt.Errorf("%s needs find", action.Type)
		}
		return func(v string) string {
			return strings.ReplaceAll(v, action.Find, action.Value)
		}, nil

	case ActionRegexReplace:
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", action.Find, err)
		}
		return func(v string) string {
			return re.ReplaceAllString(v, action.Value)
		}, nil

	case ActionLookup:
		return func(v string) string {
			if replacement, ok := action.LookupTable[v]; ok {
				return replacement
			}
			return v
		}, nil

	case ActionLookupWithDefault:
		return func(v string) string {
			if replacement, ok := action.LookupTable[v]; ok {
				return replacement
			}
			return action.Value
		}, nil

	case ActionIfEmptyUseDefault:
		return func(v string) string {
			if strings.TrimSpace(v) == "" {
				return action.Value
			}
			return v
		}, nil

	default:
		return nil, fmt.Errorf("unknown transformation %q", action.Type)
	}
}

// Apply rewrites table in place: headers first, then values. A rule whose
// field is not a column is ignored.
func (t *Transformer) Apply(table *csvparser.Table) {
	for i, h := range table.Headers {
		if to, ok := t.aliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			table.Headers[i] = to
		}
	}

	for _, rule := range t.fields {
		col := columnIndex(table.Headers, rule.field)
		if col < 0 {
			continue
		}
		for r := range table.Rows {
			fields := table.Rows[r].Fields
			if col >= len(fields) {
				continue
			}
			v := fields[col]
			for _, step := range rule.steps {
				v = step(v)
			}
			fields[col] = v
		}
	}
}

// columnIndex finds name among headers, ignoring case. The first match wins.
func columnIndex(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
