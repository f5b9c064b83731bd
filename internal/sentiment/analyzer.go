// Package sentiment maps free text onto one facial emotion using a small
// keyword lexicon with negation and intensifier modifiers.
package sentiment

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultKeywordLimit is used when ExtractKeywords is given limit <= 0.
	DefaultKeywordLimit = 5

	minKeywordRunes = 3
)

// tokenSplitter matches whitespace and common punctuation. Apostrophes are
// kept so contractions such as "don't" stay whole.
var tokenSplitter = regexp.MustCompile("[\\s.,!?;:\"“”()\\[\\]{}<>*`…]+")

// Options tunes scoring. Zero fields take the defaults.
type Options struct {
	Threshold         float64 // minimum winning score, exclusive (default 0.2)
	NegationWindow    int     // tokens a negation stays active for (default 4)
	IntensifierFactor float64 // multiplier for intensified matches (default 1.5)
	ConfidenceScale   float64 // score that maps to confidence 1 (default 3)
}

// DefaultOptions returns the standard scoring parameters.
func DefaultOptions() Options {
	return Options{
		Threshold:         0.2,
		NegationWindow:    4,
		IntensifierFactor: 1.5,
		ConfidenceScale:   3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.NegationWindow <= 0 {
		o.NegationWindow = d.NegationWindow
	}
	if o.IntensifierFactor <= 0 {
		o.IntensifierFactor = d.IntensifierFactor
	}
	if o.ConfidenceScale <= 0 {
		o.ConfidenceScale = d.ConfidenceScale
	}
	return o
}

// Result is the outcome of one Analyze call.
type Result struct {
	Emotion    Emotion             `json:"emotion"`
	Confidence float64             `json:"confidence"`
	Scores     map[Emotion]float64 `json:"scores"`
}

// Analyzer scores text against a Lexicon. It holds no per-call state and is
// safe for concurrent use.
type Analyzer struct {
	lexicon *Lexicon
	opts    Options
}

// NewAnalyzer creates an analyzer over the default lexicon.
func NewAnalyzer(opts Options) *Analyzer {
	return NewAnalyzerWithLexicon(DefaultLexicon(), opts)
}

// NewAnalyzerWithLexicon creates an analyzer over a custom lexicon.
func NewAnalyzerWithLexicon(lex *Lexicon, opts Options) *Analyzer {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Analyzer{lexicon: lex, opts: opts.withDefaults()}
}

// Options returns the effective scoring options.
func (a *Analyzer) Options() Options {
	return a.opts
}

func neutral() Result {
	scores := make(map[Emotion]float64, len(scoredLabels))
	for _, label := range scoredLabels {
		scores[label] = 0
	}
	return Result{Emotion: EmotionNeutral, Confidence: 0, Scores: scores}
}

// AnalyzeValue is the fail-soft entry for untyped callers: anything other
// than a string (or non-nil *string) is neutral.
func (a *Analyzer) AnalyzeValue(v any) Result {
	switch t := v.(type) {
	case string:
		return a.Analyze(t)
	case *string:
		if t != nil {
			return a.Analyze(*t)
		}
	}
	return neutral()
}

// Analyze returns the dominant emotion in text.
//
// A negation token makes the next NegationWindow scanned tokens score -1
// instead of +1 (a sign flip, not a cancellation). An intensifier scales the
// next non-modifier token by IntensifierFactor and is consumed by it whether
// or not that token matches. The winner must strictly exceed Threshold;
// ties go to the label earliest in Labels().
func (a *Analyzer) Analyze(text string) Result {
	result := neutral()
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return result
	}

	negationLeft := 0
	intensified := false

	for _, tok := range tokens {
		switch {
		case a.lexicon.IsNegation(tok):
			negationLeft = a.opts.NegationWindow
			continue
		case a.lexicon.IsIntensifier(tok):
			intensified = true
		default:
			for _, label := range scoredLabels {
				if !a.lexicon.keywords[label].has(tok) {
					continue
				}
				score := 1.0
				if negationLeft > 0 {
					score = -1.0
				}
				if intensified {
					score *= a.opts.IntensifierFactor
				}
				result.Scores[label] += score
			}
			intensified = false
		}

		if negationLeft > 0 {
			negationLeft--
		}
	}

	best := a.opts.Threshold
	for _, label := range scoredLabels {
		if s := result.Scores[label]; s > best {
			best = s
			result.Emotion = label
		}
	}

	if result.Emotion != EmotionNeutral {
		result.Confidence = math.Min(best/a.opts.ConfidenceScale, 1)
	}
	return result
}

// ExtractKeywords returns up to limit distinct non-stop-word tokens of at
// least three runes, most frequent first. Ties keep first-seen order.
func (a *Analyzer) ExtractKeywords(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}

	type ranked struct {
		token string
		count int
	}

	index := make(map[string]*ranked)
	var order []*ranked
	for _, tok := range tokenize(text) {
		if utf8.RuneCountInString(tok) < minKeywordRunes || IsStopWord(tok) {
			continue
		}
		if r, ok := index[tok]; ok {
			r.count++
			continue
		}
		r := &ranked{token: tok, count: 1}
		index[tok] = r
		order = append(order, r)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]string, len(order))
	for i, r := range order {
		out[i] = r.token
	}
	return out
}

// tokenize lowercases text and splits it on whitespace and punctuation.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "’", "'")

	parts := tokenSplitter.Split(text, -1)
	tokens := parts[:0]
	for _, p := range parts {
		p = strings.Trim(p, "'")
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
