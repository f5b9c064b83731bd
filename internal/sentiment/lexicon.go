package sentiment

// Emotion is a facial emotion label produced by the analyzer.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionConfused  Emotion = "confused"
)

// scoredLabels is the fixed scan order used for scoring and tie-breaking.
var scoredLabels = []Emotion{
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionSurprised,
	EmotionConfused,
}

// Labels returns the five scored emotion labels in scan order.
func Labels() []Emotion {
	out := make([]Emotion, len(scoredLabels))
	copy(out, scoredLabels)
	return out
}

type tokenSet map[string]struct{}

func newTokenSet(tokens ...string) tokenSet {
	s := make(tokenSet, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

func (s tokenSet) has(tok string) bool {
	_, ok := s[tok]
	return ok
}

// Lexicon holds the keyword and modifier tables. It is never mutated after
// construction and is safe to share between analyzers.
type Lexicon struct {
	keywords     map[Emotion]tokenSet
	negations    tokenSet
	intensifiers tokenSet
}

// NewLexicon builds a lexicon from raw tables. Tokens must already be
// lowercase. Labels outside the five scored emotions are ignored.
func NewLexicon(keywords map[Emotion][]string, negations, intensifiers []string) *Lexicon {
	lex := &Lexicon{
		keywords:     make(map[Emotion]tokenSet, len(scoredLabels)),
		negations:    newTokenSet(negations...),
		intensifiers: newTokenSet(intensifiers...),
	}
	for _, label := range scoredLabels {
		lex.keywords[label] = newTokenSet(keywords[label]...)
	}
	return lex
}

// Keywords returns a copy of the trigger tokens for label.
func (l *Lexicon) Keywords(label Emotion) []string {
	set := l.keywords[label]
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	return out
}

// IsNegation reports whether tok flips the sign of the next matches.
func (l *Lexicon) IsNegation(tok string) bool { return l.negations.has(tok) }

// IsIntensifier reports whether tok scales the next match.
func (l *Lexicon) IsIntensifier(tok string) bool { return l.intensifiers.has(tok) }

// DefaultLexicon returns the built-in English tables.
func DefaultLexicon() *Lexicon {
	return NewLexicon(
		map[Emotion][]string{
			EmotionHappy: {
				"happy", "glad", "joy", "joyful", "great", "good", "excellent",
				"awesome", "wonderful", "fantastic", "love", "lovely", "excited",
				"delighted", "pleased", "cheerful", "fun", "nice", "thanks",
				"thank", "yay", "perfect", "brilliant", "enjoy",
				"😊", "😀", "😄", "😃", "🙂", "😁", "❤️", "🎉", "👍",
			},
			EmotionSad: {
				"sad", "unhappy", "sorry", "depressed", "miserable", "cry",
				"crying", "tears", "lonely", "disappointed", "disappointing",
				"unfortunately", "regret", "heartbroken", "upset", "grief",
				"gloomy", "hurt",
				"😢", "😭", "☹️", "🙁", "😞", "💔",
			},
			EmotionAngry: {
				"angry", "mad", "furious", "annoyed", "annoying", "hate",
				"rage", "irritated", "frustrated", "frustrating", "outraged",
				"terrible", "awful", "horrible", "disgusting", "livid",
				"😠", "😡", "🤬", "👎",
			},
			EmotionSurprised: {
				"surprised", "surprise", "surprising", "wow", "whoa", "amazing",
				"unexpected", "shocked", "shocking", "astonished", "incredible",
				"unbelievable", "omg", "suddenly", "stunned",
				"😮", "😲", "😯", "🤯", "😱",
			},
			EmotionConfused: {
				"confused", "confusing", "unclear", "unsure", "puzzled",
				"puzzling", "strange", "weird", "hmm", "perplexed", "baffled",
				"lost", "uncertain",
				"🤔", "😕", "🤷",
			},
		},
		[]string{
			"not", "no", "never", "don't", "doesn't", "didn't", "isn't",
			"aren't", "wasn't", "weren't", "can't", "cannot", "won't",
			"wouldn't", "shouldn't", "couldn't", "nothing", "nobody",
			"neither", "nor", "without", "hardly",
		},
		[]string{
			"very", "really", "extremely", "so", "super", "incredibly",
			"totally", "absolutely", "truly", "highly", "especially",
			"deeply", "terribly",
		},
	)
}

// stopWords are dropped from keyword extraction.
var stopWords = newTokenSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"had", "her", "was", "one", "our", "out", "has", "him", "his", "how",
	"its", "may", "new", "now", "old", "see", "two", "who", "did", "get",
	"let", "put", "say", "she", "too", "use", "this", "that", "with",
	"have", "from", "they", "will", "would", "there", "their", "what",
	"about", "which", "when", "make", "like", "time", "just", "know",
	"take", "into", "your", "some", "could", "them", "than", "then",
	"also", "been", "were", "said", "each", "does", "doing", "done",
	"very", "really", "here", "where", "should", "these", "those",
	"because", "while", "being", "over", "only", "such", "more", "most",
	"other", "after", "before", "again", "once", "both", "few", "own",
	"same", "yes", "why", "off", "don't", "it's", "i'm", "you're",
	"can't", "won't", "isn't", "didn't", "doesn't", "ours", "yours",
	"myself", "yourself", "itself", "then", "them", "what's", "let's",
)

// IsStopWord reports whether tok is excluded from keyword extraction.
func IsStopWord(tok string) bool { return stopWords.has(tok) }
