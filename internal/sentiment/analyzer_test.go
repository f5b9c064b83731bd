package sentiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(Options{})
}

func TestAnalyze_EmptyInputsAreNeutral(t *testing.T) {
	a := newTestAnalyzer()
	var nilStr *string

	for _, got := range []Result{
		a.Analyze(""),
		a.Analyze("   \n\t"),
		a.AnalyzeValue(nil),
		a.AnalyzeValue(nilStr),
		a.AnalyzeValue(42),
	} {
		assert.Equal(t, EmotionNeutral, got.Emotion)
		assert.Zero(t, got.Confidence)
		assert.Len(t, got.Scores, 5)
	}
}

func TestAnalyze_HappyOnlyText(t *testing.T) {
	a := newTestAnalyzer()
	for _, text := range []string{"happy", "great good", "joy joy wonderful", "😊"} {
		got := a.Analyze(text)
		assert.Equal(t, EmotionHappy, got.Emotion, text)
		assert.Greater(t, got.Confidence, 0.0, text)
	}
}

func TestAnalyze_EndToEndSentences(t *testing.T) {
	a := newTestAnalyzer()

	got := a.Analyze("I am very happy and excited!")
	assert.Equal(t, EmotionHappy, got.Emotion)
	assert.InDelta(t, 2.5, got.Scores[EmotionHappy], 1e-9)
	assert.Greater(t, got.Confidence, 0.3)

	got = a.Analyze("This is not good at all, I am very sad")
	assert.Equal(t, EmotionSad, got.Emotion)
	assert.InDelta(t, -1.0, got.Scores[EmotionHappy], 1e-9)
	assert.InDelta(t, 1.5, got.Scores[EmotionSad], 1e-9)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestAnalyze_NegationFlipsSign(t *testing.T) {
	a := newTestAnalyzer()

	got := a.Analyze("not happy")
	assert.Equal(t, EmotionNeutral, got.Emotion)
	assert.Less(t, got.Scores[EmotionHappy], 0.0)
	assert.Zero(t, got.Confidence)

	got = a.Analyze("I don't feel happy")
	assert.Equal(t, EmotionNeutral, got.Emotion)
	assert.InDelta(t, -1.0, got.Scores[EmotionHappy], 1e-9)

	// curly apostrophes normalise to the same negation token
	got = a.Analyze("I don’t feel happy")
	assert.InDelta(t, -1.0, got.Scores[EmotionHappy], 1e-9)
}

func TestAnalyze_NegationWindow(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		text  string
		happy float64
	}{
		{"not happy", -1},
		{"not a b c happy", -1},       // fourth token after negation is still negated
		{"not a b c d happy", 1},      // fifth token is outside the window
		{"not a b not c d happy", -1}, // a second negation restarts the window
		{"not very happy", -1.5},      // modifiers count toward the window
	}

	for _, tc := range tests {
		got := a.Analyze(tc.text)
		assert.InDelta(t, tc.happy, got.Scores[EmotionHappy], 1e-9, tc.text)
	}
}

func TestAnalyze_IntensifierConsumedByNextToken(t *testing.T) {
	a := newTestAnalyzer()

	got := a.Analyze("very happy happy")
	assert.InDelta(t, 2.5, got.Scores[EmotionHappy], 1e-9)

	// an unmatched token still consumes the intensifier
	got = a.Analyze("very much happy")
	assert.InDelta(t, 1.0, got.Scores[EmotionHappy], 1e-9)

	// stacked intensifiers do not compound
	got = a.Analyze("really very happy")
	assert.InDelta(t, 1.5, got.Scores[EmotionHappy], 1e-9)
}

func TestAnalyze_ThresholdAndConfidenceCap(t *testing.T) {
	a := newTestAnalyzer()

	got := a.Analyze("happy happy happy happy happy")
	assert.Equal(t, EmotionHappy, got.Emotion)
	assert.Equal(t, 1.0, got.Confidence)

	strict := NewAnalyzer(Options{Threshold: 1.5})
	got = strict.Analyze("angry")
	assert.Equal(t, EmotionNeutral, got.Emotion)
}

func TestAnalyze_TieGoesToFirstLabel(t *testing.T) {
	a := newTestAnalyzer()
	got := a.Analyze("sad angry")
	assert.Equal(t, EmotionSad, got.Emotion)

	got = a.Analyze("weird wow")
	assert.Equal(t, EmotionSurprised, got.Emotion)
}

func TestAnalyze_EachLabelReachable(t *testing.T) {
	a := newTestAnalyzer()
	tests := map[string]Emotion{
		"I hate this, it is so annoying": EmotionAngry,
		"Wow, that was unexpected!":       EmotionSurprised,
		"Hmm, I'm confused and unsure":    EmotionConfused,
		"I'm sorry, that is sad news":     EmotionSad,
		"The weather is mild today":       EmotionNeutral,
	}
	for text, want := range tests {
		assert.Equal(t, want, a.Analyze(text).Emotion, text)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newTestAnalyzer()
	text := "Wow, this is really great but also a bit confusing"
	first := a.Analyze(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, a.Analyze(text))
	}
}

func TestExtractKeywords(t *testing.T) {
	a := newTestAnalyzer()
	text := "The robot face speaks. The robot face smiles, and the robot waves at you!"

	got := a.ExtractKeywords(text, 3)
	assert.Equal(t, []string{"robot", "face", "speaks"}, got)

	got = a.ExtractKeywords(text, 0)
	assert.Len(t, got, DefaultKeywordLimit)
}

func TestExtractKeywords_Properties(t *testing.T) {
	a := newTestAnalyzer()
	inputs := []string{
		"",
		"a an it is on",
		"Go is a fun language; I'd say it's really fun to write Go code!",
		"Speech synthesis, sentiment analysis and speech queues: speech everywhere.",
	}

	for _, text := range inputs {
		for _, limit := range []int{1, 2, 5, 10} {
			got := a.ExtractKeywords(text, limit)
			require.LessOrEqual(t, len(got), limit)

			seen := map[string]bool{}
			for _, kw := range got {
				assert.False(t, IsStopWord(kw), kw)
				assert.GreaterOrEqual(t, len([]rune(kw)), 3, kw)
				assert.Contains(t, strings.ToLower(text), kw)
				assert.False(t, seen[kw], "duplicate %q", kw)
				seen[kw] = true
			}
		}
	}

	assert.Equal(t, "speech", a.ExtractKeywords(inputs[3], 1)[0])
}
