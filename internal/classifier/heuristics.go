package classifier

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/queryfed/queryfed/internal/config"
)

// Decision is the heuristic pass outcome. Unknown defers to the AI pass.
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionConversation
	DecisionInformation
)

func (d Decision) String() string {
	switch d {
	case DecisionConversation:
		return "conversation"
	case DecisionInformation:
		return "information"
	default:
		return "unknown"
	}
}

// Question punctuation across scripts: Latin, fullwidth, Arabic, inverted
// Spanish, Greek erotimatiko.
var questionMarks = []rune{'?', '？', '؟', '¿', ';'}

var (
	reDatePattern  = regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}([-/.]\d{1,4})?`)
	reTimePattern  = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\b`)
	reNumericRange = regexp.MustCompile(`\d+\s*(-|to|\.\.)\s*\d+`)
	reNumericList  = regexp.MustCompile(`\d+\s*,\s*\d+`)
	reNumberGroup  = regexp.MustCompile(`\d+(\.\d+)?`)
)

const comparisonSymbols = "+-*/%=<>$€£¥₺"

// longQueryMinChars marks the length above which a punctuation-bearing
// multi-token query is treated as a likely data request.
const longQueryMinChars = 40

// Signals are the independent structural features feeding the heuristic
// score. Kept visible so tests can assert individual detections.
type Signals struct {
	QuestionPunctuation bool
	HasDigits           bool
	MultipleNumbers     bool
	ManyTokens          bool
	MathOrCurrency      bool
	DateOrTime          bool
	RangeOrList         bool
	IDLikeToken         bool
}

// Score sums the active signals.
func (s Signals) Score() int {
	n := 0
	for _, b := range []bool{
		s.QuestionPunctuation, s.HasDigits, s.MultipleNumbers, s.ManyTokens,
		s.MathOrCurrency, s.DateOrTime, s.RangeOrList, s.IDLikeToken,
	} {
		if b {
			n++
		}
	}
	return n
}

// DetectSignals computes the structural signals for a raw query. Pure, no I/O.
func DetectSignals(query string) Signals {
	tokens := Tokenize(query)

	var s Signals
	for _, q := range questionMarks {
		if strings.ContainsRune(query, q) {
			s.QuestionPunctuation = true
			break
		}
	}
	for _, r := range query {
		if unicode.IsDigit(r) {
			s.HasDigits = true
			break
		}
	}
	s.MultipleNumbers = len(reNumberGroup.FindAllString(query, 3)) >= 2
	s.ManyTokens = len(tokens) >= 5
	s.MathOrCurrency = strings.ContainsAny(query, comparisonSymbols)
	s.DateOrTime = reDatePattern.MatchString(query) || reTimePattern.MatchString(query)
	s.RangeOrList = reNumericRange.MatchString(query) || reNumericList.MatchString(query)
	for _, tok := range tokens {
		if isIDLike(tok) {
			s.IDLikeToken = true
			break
		}
	}
	return s
}

// Heuristic runs the I/O-free classification pass against the configured
// cutoffs. Short symbol-free queries resolve to Conversation; queries with
// enough structural signals resolve to Information; the rest stay Unknown
// and go to the AI-backed pass.
func Heuristic(query string, rc config.RoutingConfig) (Decision, Signals) {
	s := DetectSignals(query)
	tokens := Tokenize(query)

	cutoff := rc.HeuristicScoreCutoff
	if len(query) > longQueryMinChars && s.QuestionPunctuation && len(tokens) >= 6 {
		cutoff = rc.HeuristicScoreCutoffLong
	}
	if s.Score() >= cutoff {
		return DecisionInformation, s
	}

	if len(tokens) <= rc.ShortQueryMaxTokens &&
		len(strings.TrimSpace(query)) <= rc.ShortQueryMaxChars &&
		!s.HasDigits && !s.IDLikeToken && !s.MathOrCurrency {
		return DecisionConversation, s
	}

	return DecisionUnknown, s
}

// dataRequestShape reports whether a query strongly looks like a data
// request even after the model said otherwise: question punctuation, long
// body, six or more tokens. Guards against false negatives on long
// analytical questions.
func dataRequestShape(query string) bool {
	s := DetectSignals(query)
	return s.QuestionPunctuation &&
		len(query) > longQueryMinChars &&
		len(Tokenize(query)) >= 6
}

// Tokenize splits a query into ordered, unique, lowercased tokens on any
// non-letter non-digit boundary.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		low := strings.ToLower(f)
		if _, ok := seen[low]; ok {
			continue
		}
		seen[low] = struct{}{}
		out = append(out, low)
	}
	return out
}

// isIDLike reports tokens mixing letters and digits, e.g. order numbers.
func isIDLike(tok string) bool {
	if len(tok) < 3 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range tok {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
