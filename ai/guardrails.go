package ai

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// GuardrailConfig defines the checks applied to a task before it is sent to
// a completion provider.
type GuardrailConfig struct {
	MaxTaskLength int      `yaml:"max_task_length" json:"maxTaskLength"`
	BlockPatterns []string `yaml:"block_patterns" json:"blockPatterns"`
	MaskPII       bool     `yaml:"mask_pii" json:"maskPII"`
}

// DefaultGuardrailConfig returns a GuardrailConfig that rejects common
// prompt-injection phrasings and masks PII.
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		MaxTaskLength: 8000,
		MaskPII:       true,
		BlockPatterns: []string{
			`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`,
			`(?i)you\s+are\s+now\s+`,
			`(?i)pretend\s+you\s+are`,
			`(?i)reveal\s+(your\s+)?system\s+prompt`,
		},
	}
}

// GuardrailResult contains the outcome of a guardrail check.
type GuardrailResult struct {
	Allowed     bool     `json:"allowed"`
	Reasons     []string `json:"reasons,omitempty"`
	MaskedInput string   `json:"maskedInput,omitempty"`
}

// Guardrails enforces input constraints. It is immutable after construction.
type Guardrails struct {
	config      GuardrailConfig
	patterns    []*regexp.Regexp
	piiPatterns []piiPattern
}

type piiPattern struct {
	regex       *regexp.Regexp
	replacement string
}

func defaultPIIPatterns() []piiPattern {
	return []piiPattern{
		{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[EMAIL REDACTED]"},
		{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN REDACTED]"},
		{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[CREDIT CARD REDACTED]"},
		{regexp.MustCompile(`(?:\+1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[PHONE REDACTED]"},
		{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP REDACTED]"},
	}
}

// NewGuardrails compiles the block patterns in config.
func NewGuardrails(config GuardrailConfig) (*Guardrails, error) {
	g := &Guardrails{config: config, piiPatterns: defaultPIIPatterns()}
	for _, pat := range config.BlockPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid block pattern %q: %w", pat, err)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// CheckInput checks the length limit and block patterns, and masks PII when
// configured.
func (g *Guardrails) CheckInput(ctx context.Context, input string) (*GuardrailResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &GuardrailResult{Allowed: true}

	if g.config.MaxTaskLength > 0 {
		if n := utf8.RuneCountInString(input); n > g.config.MaxTaskLength {
			result.Allowed = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("input too long: %d > limit %d characters", n, g.config.MaxTaskLength))
		}
	}
	for _, re := range g.patterns {
		if re.MatchString(input) {
			result.Allowed = false
			result.Reasons = append(result.Reasons, fmt.Sprintf("input matches blocked pattern: %s", re.String()))
		}
	}
	if g.config.MaskPII {
		result.MaskedInput = g.MaskPII(input)
	}
	return result, nil
}

// Sanitize returns the text to send onwards: the masked input when masking
// is enabled, otherwise the input itself. A rejected input yields a
// *GuardrailError.
func (g *Guardrails) Sanitize(ctx context.Context, input string) (string, error) {
	res, err := g.CheckInput(ctx, input)
	if err != nil {
		return "", err
	}
	if !res.Allowed {
		return "", &GuardrailError{Reasons: res.Reasons}
	}
	if g.config.MaskPII {
		return res.MaskedInput, nil
	}
	return input, nil
}

// MaskPII replaces emails, SSNs, card numbers, phone numbers and IPv4
// addresses with placeholders.
func (g *Guardrails) MaskPII(input string) string {
	masked := input
	for _, pp := range g.piiPatterns {
		masked = pp.regex.ReplaceAllString(masked, pp.replacement)
	}
	return masked
}
