// Package rules turns natural-language editing rules into typed intent records.
//
// Parsing is keyword and pattern driven. The confidence score is a fixed
// additive heuristic over clarity signals (explicit numbers, modal verbs,
// named linguistic phenomena); it ranks rules against each other and says
// nothing about whether a rule is sensible.
package rules

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Category is the group a rule was declared under.
type Category string

const (
	CategoryAllowed   Category = "allowed"
	CategoryForbidden Category = "forbidden"
	CategoryFocus     Category = "focus"
	CategoryBoundary  Category = "boundary"
)

// Intent is the parsed meaning of a rule's category.
type Intent string

const (
	IntentPermission  Intent = "permission"
	IntentProhibition Intent = "prohibition"
	IntentBoundary    Intent = "boundary"
	IntentFocus       Intent = "focus"
	IntentUnknown     Intent = "unknown"
)

// Comparison operators extracted from quantifier phrases.
const (
	CompareLTE    = "lte"
	CompareGTE    = "gte"
	CompareApprox = "approx"
)

// ApproxTolerance is the band attached to "approximately"-style quantifiers.
const ApproxTolerance = 0.05

// DefaultScope applies when a rule names no scope.
const DefaultScope = "document"

// RuleText is one natural-language rule and the category it was declared under.
type RuleText struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// Params holds everything extracted from a rule's text.
type Params struct {
	Percentages []float64 `json:"percentages,omitempty"`
	Counts      []int     `json:"counts,omitempty"`
	Scope       string    `json:"scope"`
	Comparison  string    `json:"comparison,omitempty"`
	Tolerance   float64   `json:"tolerance,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Context     []string  `json:"context,omitempty"`
}

// HasTopic reports whether topic was mentioned.
func (p Params) HasTopic(topic string) bool {
	for _, t := range p.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ParsedRule is the typed record produced from one RuleText.
type ParsedRule struct {
	Category   Category `json:"category"`
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Params     Params   `json:"params"`
	Source     string   `json:"source"`
}

// Confidence weights.
const (
	confidenceBase       = 0.5
	confidenceNumber     = 0.2
	confidenceModal      = 0.15
	confidencePhenomenon = 0.15
)

var (
	percentPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:%|percent\b|per\s+cent\b)`)
	numberPattern  = regexp.MustCompile(`\b\d+\b`)
	scopePattern   = regexp.MustCompile(`(?i)\b(document|paragraph|sentence|word)s?\b`)
	modalPattern   = regexp.MustCompile(`(?i)\b(must|never|always|only|should)\b|\bdo\s+not\b|\bdon'?t\b`)

	phenomenonPattern = regexp.MustCompile(`(?i)\b(passive\s+voice|subject[-\s]verb\s+agreement|comma\s+splices?|run-on\s+sentences?|tenses?|spelling|punctuation|grammar|capitali[sz]ation)\b`)
)

// comparisons is ordered so longer phrases win over their substrings
// ("no more than" before "more than").
var comparisons = []struct {
	phrase string
	op     string
}{
	{"no more than", CompareLTE},
	{"no less than", CompareGTE},
	{"not more than", CompareLTE},
	{"not exceed", CompareLTE},
	{"at most", CompareLTE},
	{"up to", CompareLTE},
	{"maximum", CompareLTE},
	{"fewer than", CompareLTE},
	{"less than", CompareLTE},
	{"under", CompareLTE},
	{"at least", CompareGTE},
	{"minimum", CompareGTE},
	{"more than", CompareGTE},
	{"approximately", CompareApprox},
	{"roughly", CompareApprox},
	{"around", CompareApprox},
	{"about", CompareApprox},
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

var numberWordPattern = regexp.MustCompile(`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty)\b`)

// topicPatterns maps topic names to the words that mention them.
var topicPatterns = map[string]*regexp.Regexp{
	"grammar":       regexp.MustCompile(`(?i)\bgramma(r|tical)\b`),
	"spelling":      regexp.MustCompile(`(?i)\b(spelling|typos?|misspell\w*)\b`),
	"punctuation":   regexp.MustCompile(`(?i)\b(punctuation|commas?|apostrophes?|periods?)\b`),
	"voice":         regexp.MustCompile(`(?i)\bvoice\b`),
	"tone":          regexp.MustCompile(`(?i)\btone\b`),
	"content":       regexp.MustCompile(`(?i)\b(content|facts?|information)\b`),
	"meaning":       regexp.MustCompile(`(?i)\bmeaning\b`),
	"style":         regexp.MustCompile(`(?i)\bstyl(e|istic)\b`),
	"length":        regexp.MustCompile(`(?i)\b(length|shorter|longer)\b`),
	"clarity":       regexp.MustCompile(`(?i)\b(clarity|clear(er)?)\b`),
	"passive_voice": regexp.MustCompile(`(?i)\bpassive\s+voice\b`),
	"formatting":    regexp.MustCompile(`(?i)\b(formatting|format|layout)\b`),
}

// contextPatterns map tags ("document:email") to the words that imply them.
var contextPatterns = []struct {
	tag     string
	pattern *regexp.Regexp
}{
	{"document:email", regexp.MustCompile(`(?i)\be-?mails?\b`)},
	{"document:essay", regexp.MustCompile(`(?i)\bessays?\b`)},
	{"document:report", regexp.MustCompile(`(?i)\breports?\b`)},
	{"document:article", regexp.MustCompile(`(?i)\barticles?\b`)},
	{"document:academic_paper", regexp.MustCompile(`(?i)\b(academic\s+papers?|research\s+papers?)\b`)},
	{"document:blog", regexp.MustCompile(`(?i)\bblog(\s+posts?)?\b`)},
	{"document:documentation", regexp.MustCompile(`(?i)\bdocumentation\b`)},
	{"document:legal", regexp.MustCompile(`(?i)\b(legal|contracts?)\b`)},
	{"audience:students", regexp.MustCompile(`(?i)\bstudents?\b`)},
	{"audience:executives", regexp.MustCompile(`(?i)\bexecutives?\b`)},
	{"audience:general", regexp.MustCompile(`(?i)\bgeneral\s+(audience|public|readers?)\b`)},
	{"audience:technical", regexp.MustCompile(`(?i)\btechnical\b`)},
	{"audience:children", regexp.MustCompile(`(?i)\b(children|kids)\b`)},
	{"style:formal", regexp.MustCompile(`(?i)\bformal\b`)},
	{"style:casual", regexp.MustCompile(`(?i)\b(casual|informal)\b`)},
	{"style:concise", regexp.MustCompile(`(?i)\b(concise|brief)\b`)},
	{"style:academic", regexp.MustCompile(`(?i)\bacademic\b`)},
	{"style:friendly", regexp.MustCompile(`(?i)\bfriendly\b`)},
	{"style:professional", regexp.MustCompile(`(?i)\bprofessional\b`)},
}

// Parse turns one rule into a ParsedRule. It never fails; rules under an
// unrecognized category get IntentUnknown.
func Parse(rule RuleText) ParsedRule {
	text := strings.TrimSpace(rule.Text)
	params := extractParams(text)
	return ParsedRule{
		Category:   rule.Category,
		Intent:     intentFor(rule.Category),
		Confidence: score(text, params),
		Params:     params,
		Source:     text,
	}
}

// ParseAll parses rules in order.
func ParseAll(rules []RuleText) []ParsedRule {
	out := make([]ParsedRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, Parse(r))
	}
	return out
}

func intentFor(c Category) Intent {
	switch c {
	case CategoryAllowed:
		return IntentPermission
	case CategoryForbidden:
		return IntentProhibition
	case CategoryBoundary:
		return IntentBoundary
	case CategoryFocus:
		return IntentFocus
	}
	return IntentUnknown
}

func extractParams(text string) Params {
	p := Params{Scope: DefaultScope}

	var percentSpans [][]int
	for _, m := range percentPattern.FindAllStringSubmatchIndex(text, -1) {
		if v, err := strconv.ParseFloat(text[m[2]:m[3]], 64); err == nil {
			p.Percentages = append(p.Percentages, v)
			percentSpans = append(percentSpans, m[:2])
		}
	}
	for _, m := range numberPattern.FindAllStringIndex(text, -1) {
		if insideAny(m[0], percentSpans) {
			continue
		}
		if v, err := strconv.Atoi(text[m[0]:m[1]]); err == nil {
			p.Counts = append(p.Counts, v)
		}
	}
	for _, w := range numberWordPattern.FindAllString(text, -1) {
		p.Counts = append(p.Counts, numberWords[strings.ToLower(w)])
	}

	if m := scopePattern.FindStringSubmatch(text); m != nil {
		p.Scope = strings.ToLower(m[1])
	}

	lower := strings.ToLower(text)
	for _, c := range comparisons {
		if containsPhrase(lower, c.phrase) {
			p.Comparison = c.op
			if c.op == CompareApprox {
				p.Tolerance = ApproxTolerance
			}
			break
		}
	}

	for topic, re := range topicPatterns {
		if re.MatchString(text) {
			p.Topics = append(p.Topics, topic)
		}
	}
	sort.Strings(p.Topics)

	for _, c := range contextPatterns {
		if c.pattern.MatchString(text) {
			p.Context = append(p.Context, c.tag)
		}
	}
	return p
}

func score(text string, p Params) float64 {
	c := confidenceBase
	if len(p.Percentages) > 0 || len(p.Counts) > 0 {
		c += confidenceNumber
	}
	if modalPattern.MatchString(text) {
		c += confidenceModal
	}
	if phenomenonPattern.MatchString(text) {
		c += confidencePhenomenon
	}
	return math.Min(1.0, math.Round(c*100)/100)
}

// containsPhrase matches phrase on word boundaries.
func containsPhrase(s, phrase string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func insideAny(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}
