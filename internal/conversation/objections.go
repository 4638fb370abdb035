package conversation

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Objection is a static catalogue entry. Read-only reference data; never
// mutated at runtime.
type Objection struct {
	ID                  string            `yaml:"id"`
	Category            string            `yaml:"category"`
	TriggerPatterns     []string          `yaml:"trigger_patterns"`
	BeliefToFix         string            `yaml:"belief_to_fix"`
	DiagnosticQuestions []string          `yaml:"diagnostic_questions"`
	CoreReframe         string            `yaml:"core_reframe"`
	ResponseTemplates   map[string]string `yaml:"response_templates"`
	FinancingHook       string            `yaml:"financing_hook"`
	// SoftClose suppresses offering concrete times in favor of an
	// open-ended follow-up question. Pushing a binary time choice on an
	// undecided lead is a known failure mode.
	SoftClose bool `yaml:"soft_close"`

	compiled []*regexp.Regexp
}

//go:embed objections.yaml
var objectionsYAML []byte

var objectionCatalogue []*Objection

func init() {
	catalogue, err := loadObjectionCatalogue(objectionsYAML)
	if err != nil {
		panic("invalid objection catalogue: " + err.Error())
	}
	objectionCatalogue = catalogue
}

func loadObjectionCatalogue(raw []byte) ([]*Objection, error) {
	var doc struct {
		Objections []*Objection `yaml:"objections"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	for _, obj := range doc.Objections {
		if obj.ID == "" {
			return nil, fmt.Errorf("objection with empty id")
		}
		if obj.ResponseTemplates["en"] == "" || obj.ResponseTemplates["es"] == "" {
			return nil, fmt.Errorf("objection %s: en and es templates are required", obj.ID)
		}
		for _, pattern := range obj.TriggerPatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("objection %s: bad pattern %q: %w", obj.ID, pattern, err)
			}
			obj.compiled = append(obj.compiled, re)
		}
	}
	return doc.Objections, nil
}

// DetectObjection matches the message against the catalogue in its fixed
// iteration order, first match wins. Returns nil for empty text or no match.
func DetectObjection(text string) *Objection {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	for _, obj := range objectionCatalogue {
		for _, re := range obj.compiled {
			if re.MatchString(trimmed) {
				return obj
			}
		}
	}
	return nil
}

// Template returns the response template for the given language, falling
// back to English.
func (o *Objection) Template(language string) string {
	if t, ok := o.ResponseTemplates[strings.ToLower(language)]; ok && t != "" {
		return t
	}
	return o.ResponseTemplates["en"]
}

// FormatContext renders the objection as briefing context for the generative
// responder: the belief to fix, the reframe, and the localized template.
func (o *Objection) FormatContext(language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Objection detected: %s (%s)\n", o.ID, o.Category)
	fmt.Fprintf(&sb, "Belief to fix: %s\n", o.BeliefToFix)
	fmt.Fprintf(&sb, "Reframe: %s\n", o.CoreReframe)
	if len(o.DiagnosticQuestions) > 0 {
		fmt.Fprintf(&sb, "Diagnostic question: %s\n", o.DiagnosticQuestions[0])
	}
	fmt.Fprintf(&sb, "Suggested reply: %s\n", o.Template(language))
	if o.FinancingHook != "" {
		fmt.Fprintf(&sb, "Financing (total project only, never the deposit): %s\n", o.FinancingHook)
	}
	if o.SoftClose {
		sb.WriteString("Soft close: do not offer concrete times; end with an open question.\n")
	}
	return sb.String()
}
