package graph

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var builtinRules []byte

// Rule is one (predicate, transform) pair of the parameter rule table.
type Rule struct {
	Name string `yaml:"name" json:"name"`
	When string `yaml:"when" json:"when"`
	Set  string `yaml:"set" json:"set"`
}

// RuleInput describes the node a rule is evaluated against.
type RuleInput struct {
	TypeID      string
	Description string
	Service     string
	Kind        Kind
	Categories  []string
}

type compiledRule struct {
	Rule
	when *vm.Program
	set  *gojq.Code
}

// RuleTable is an ordered, compiled rule list. It is immutable after
// construction and safe for concurrent use.
type RuleTable struct {
	rules []compiledRule
}

var jqVariables = []string{"$description", "$service", "$weekday", "$hour"}

func ruleEnv(in RuleInput) map[string]any {
	text := in.Description + " " + in.Service
	cats := in.Categories
	if cats == nil {
		cats = []string{}
	}
	return map[string]any{
		"typeId":      in.TypeID,
		"description": in.Description,
		"service":     in.Service,
		"kind":        string(in.Kind),
		"categories":  cats,
		"weekday":     DetectWeekday(text),
		"hour":        DetectHour(text),
	}
}

// NewRuleTable compiles rules in order. Every predicate and transform is
// compiled up front so a malformed table fails at load time.
func NewRuleTable(rules []Rule) (*RuleTable, error) {
	t := &RuleTable{rules: make([]compiledRule, 0, len(rules))}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i+1)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if strings.TrimSpace(r.When) == "" || strings.TrimSpace(r.Set) == "" {
			return nil, fmt.Errorf("rule %q: 'when' and 'set' are required", r.Name)
		}

		when, err := expr.Compile(r.When, expr.Env(ruleEnv(RuleInput{})), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid predicate: %w", r.Name, err)
		}

		parsed, err := gojq.Parse(r.Set)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid transform %q: %w", r.Name, r.Set, err)
		}
		code, err := gojq.Compile(parsed, gojq.WithVariables(jqVariables))
		if err != nil {
			return nil, fmt.Errorf("rule %q: failed to compile transform: %w", r.Name, err)
		}

		t.rules = append(t.rules, compiledRule{Rule: r, when: when, set: code})
	}
	return t, nil
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules parses and compiles a YAML rule document.
func LoadRules(r io.Reader) (*RuleTable, error) {
	var f rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return NewRuleTable(f.Rules)
}

// LoadRulesFile parses and compiles the YAML rule file at path.
func LoadRulesFile(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied rules path
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return LoadRules(bytes.NewReader(data))
}

var loadDefaultRules = sync.OnceValues(func() (*RuleTable, error) {
	return LoadRules(bytes.NewReader(builtinRules))
})

// DefaultRules returns the built-in rule table.
func DefaultRules() (*RuleTable, error) {
	return loadDefaultRules()
}

// Len returns the number of rules.
func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Names returns the rule names in evaluation order.
func (t *RuleTable) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.Name
	}
	return out
}

// Match returns the name of the first rule whose predicate holds for in.
func (t *RuleTable) Match(in RuleInput) (string, bool, error) {
	r, err := t.match(ruleEnv(in))
	if err != nil || r == nil {
		return "", false, err
	}
	return r.Name, true, nil
}

func (t *RuleTable) match(env map[string]any) (*compiledRule, error) {
	if t == nil {
		return nil, nil
	}
	for i := range t.rules {
		out, err := expr.Run(t.rules[i].when, env)
		if err != nil {
			return nil, fmt.Errorf("rule %q: predicate failed: %w", t.rules[i].Name, err)
		}
		if ok, _ := out.(bool); ok {
			return &t.rules[i], nil
		}
	}
	return nil, nil
}

// Apply runs the first matching rule's transform over params and returns the
// result with the matched rule name. When no rule matches, params is returned
// unchanged with an empty name. params is never modified.
func (t *RuleTable) Apply(in RuleInput, params map[string]any) (map[string]any, string, error) {
	env := ruleEnv(in)
	r, err := t.match(env)
	if err != nil {
		return params, "", err
	}
	if r == nil {
		return params, "", nil
	}

	input, err := normalizeForJQ(params)
	if err != nil {
		return params, r.Name, fmt.Errorf("rule %q: failed to normalize parameters: %w", r.Name, err)
	}
	iter := r.set.Run(input, in.Description, in.Service, env["weekday"], env["hour"])
	v, ok := iter.Next()
	if !ok {
		return params, r.Name, fmt.Errorf("rule %q: transform produced no output", r.Name)
	}
	if err, isErr := v.(error); isErr {
		return params, r.Name, fmt.Errorf("rule %q: transform error: %w", r.Name, err)
	}
	out, isMap := v.(map[string]any)
	if !isMap {
		return params, r.Name, fmt.Errorf("rule %q: transform returned %T, want object", r.Name, v)
	}
	return out, r.Name, nil
}

// normalizeForJQ converts params into the JSON value types gojq accepts.
func normalizeForJQ(v map[string]any) (any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

var weekdays = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

var wordRe = regexp.MustCompile(`[a-z]+`)

// DetectWeekday returns the first weekday named in text (0 = Sunday), or -1.
func DetectWeekday(text string) int {
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if d, ok := weekdays[strings.TrimSuffix(w, "s")]; ok {
			return d
		}
	}
	return -1
}

var (
	meridiemRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\b`)
	clockRe    = regexp.MustCompile(`(?i)\bat\s+(\d{1,2}):(\d{2})\b`)
)

// DetectHour returns the hour of day (0-23) mentioned in text, or -1.
// "9am", "5 pm", "at 17:30", "noon" and "midnight" are understood.
func DetectHour(text string) int {
	if m := meridiemRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			pm := strings.EqualFold(m[3], "p")
			switch {
			case pm && h != 12:
				h += 12
			case !pm && h == 12:
				h = 0
			}
			return h
		}
	}
	if m := clockRe.FindStringSubmatch(text); m != nil {
		if h, _ := strconv.Atoi(m[1]); h <= 23 {
			return h
		}
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "noon"):
		return 12
	case strings.Contains(lower, "midnight"):
		return 0
	}
	return -1
}
