package conversation

import (
	"regexp"
	"strings"
)

// Intents is the flat per-turn classification result. Several intents may be
// true at once; the hard-skip router owns precedence.
type Intents struct {
	Scheduling             bool
	SlotSelection          bool
	Deposit                bool
	Reschedule             bool
	Cancel                 bool
	ConsultPathChoice      bool
	TranslatorAffirm       bool
	ProcessOrPriceQuestion bool
	Objection              bool
	ObjectionType          string
}

// Any reports whether at least one intent fired.
func (i Intents) Any() bool {
	return i.Scheduling || i.SlotSelection || i.Deposit || i.Reschedule ||
		i.Cancel || i.ConsultPathChoice || i.TranslatorAffirm ||
		i.ProcessOrPriceQuestion || i.Objection
}

// ClassifyContext is the lightweight context the classifier needs beyond the
// message text. All fields derive from the canonical state.
type ClassifyContext struct {
	// HasCoreTattooInfo gates weak booking affirmatives.
	HasCoreTattooInfo bool
	// LatePhase also gates weak booking affirmatives.
	LatePhase bool
	// AwaitingTranslatorConfirm means the last outbound turn asked the lead
	// to confirm the translator path, so a bare affirmative confirms it.
	AwaitingTranslatorConfirm bool
}

var (
	// Strong booking signals fire in any conversation phase.
	strongSchedulingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(what|which)\s+(times?|days?)\b`),
		regexp.MustCompile(`(?i)\bavailab(le|ility)\b`),
		regexp.MustCompile(`(?i)\bwhen\s+(can|could|are|do)\b`),
		regexp.MustCompile(`(?i)\bschedul(e|ing)\b`),
		regexp.MustCompile(`(?i)\bbook\s+(a|an|my|the|me)\b`),
		regexp.MustCompile(`(?i)\bset\s+(something|it|that)\s+up\b`),
		regexp.MustCompile(`(?i)\bget\s+(on|in)\s+the\s+(books|calendar)\b`),
	}

	// Weak booking signals: bare affirmatives. Only counted when the lead
	// already has core tattoo details or the conversation is late-phase,
	// otherwise a polite "ok" would trigger a false-positive booking flow.
	weakAffirmativePattern = regexp.MustCompile(
		`(?i)^\s*(yes|yeah|yep|ya|ok|okay|sure|sounds good|perfect|let'?s do it|i'?m down|si|sí|claro|dale)\s*[.!]*\s*$`)

	ordinalSelectionPattern = regexp.MustCompile(
		`(?i)\bthe\s+(first|second|third|fourth|1st|2nd|3rd|4th)\s+(one|option|time|slot)?\b`)
	optionSelectionPattern = regexp.MustCompile(`(?i)^\s*(option|number|#)?\s*([1-9])\s*[.!]*\s*$`)
	daySelectionPattern    = regexp.MustCompile(
		`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b.*\b(one|works|at|time|option)\b`)
	timeSelectionPattern = regexp.MustCompile(`(?i)\bthe\s+\d{1,2}(:\d{2})?\s*(am|pm)\s*(one|slot|time)?\b`)

	depositPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bdeposit\b`),
		regexp.MustCompile(`(?i)\bpay(ing|ment)?\b`),
		regexp.MustCompile(`(?i)\bsend\s+(me\s+)?(the\s+)?link\b`),
		regexp.MustCompile(`(?i)\bhow\s+do\s+i\s+(pay|put\s+money\s+down)\b`),
	}

	reschedulePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bre-?schedul(e|ing)\b`),
		regexp.MustCompile(`(?i)\b(move|change|push|switch)\s+(my|the|our)\s+(appointment|consult(ation)?|time|call)\b`),
		regexp.MustCompile(`(?i)\b(a\s+)?different\s+(time|day)\b.*\b(appointment|consult|instead)\b`),
	}

	cancelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcancel(l?ing|l?ed)?\b`),
		regexp.MustCompile(`(?i)\bcall\s+(it|this)\s+off\b`),
		regexp.MustCompile(`(?i)\bcan'?t\s+make\s+it\b`),
	}

	translatorPattern = regexp.MustCompile(`(?i)\b(translator|interpreter|traductor(a)?|int[eé]rprete)\b`)

	processQuestionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhow\s+(much|does|do|long|it\s+works?)\b`),
		regexp.MustCompile(`(?i)\b(price|pricing|cost|rate|ballpark|quote)\b`),
		regexp.MustCompile(`(?i)\bcu[aá]nto\s+(cuesta|sale|vale)\b`),
		regexp.MustCompile(`(?i)\bwhat\s+(happens|is\s+included|do\s+i\s+need)\b`),
		regexp.MustCompile(`(?i)\b(process|consult(ation)?)\b.*\?`),
	}
)

// Classify maps a raw inbound message into the turn's intent flags. Pure and
// total: empty or whitespace-only text yields all-false intents.
func Classify(messageText string, ctx ClassifyContext) Intents {
	var intents Intents

	text := strings.TrimSpace(messageText)
	if text == "" {
		return intents
	}

	intents.Reschedule = matchesAny(text, reschedulePatterns)
	intents.Cancel = matchesAny(text, cancelPatterns)

	intents.SlotSelection = detectSlotSelection(text)

	strong := matchesAny(text, strongSchedulingPatterns)
	weak := weakAffirmativePattern.MatchString(text)
	intents.Scheduling = strong || (weak && (ctx.HasCoreTattooInfo || ctx.LatePhase))

	// A bare "reschedule" also implies wanting new times; selection does not.
	if intents.SlotSelection && !strong {
		intents.Scheduling = false
	}

	intents.Deposit = matchesAny(text, depositPatterns)

	if choice := DetectConsultChoice(text); choice != "" {
		intents.ConsultPathChoice = true
	}

	intents.TranslatorAffirm = translatorPattern.MatchString(text) ||
		(weak && ctx.AwaitingTranslatorConfirm)

	intents.ProcessOrPriceQuestion = matchesAny(text, processQuestionPatterns)

	if obj := DetectObjection(text); obj != nil {
		intents.Objection = true
		intents.ObjectionType = obj.ID
	}

	return intents
}

// detectSlotSelection recognizes references to a previously offered concrete
// slot: ordinals, option numbers, weekday fragments, and "the 3pm one".
func detectSlotSelection(text string) bool {
	if ordinalSelectionPattern.MatchString(text) {
		return true
	}
	if optionSelectionPattern.MatchString(text) {
		return true
	}
	if daySelectionPattern.MatchString(text) {
		return true
	}
	return timeSelectionPattern.MatchString(text)
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
