package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/normanking/cortexface/internal/tts"
)

func TestSelectDefaultVoice(t *testing.T) {
	localAU := tts.Voice{Name: "Karen", Lang: "en-AU", VoiceURI: "local:karen", LocalService: true}
	cloudAU := tts.Voice{Name: "Cloud AU", Lang: "en-AU", VoiceURI: "cloud:en-AU"}

	tests := []struct {
		name      string
		voices    []tts.Voice
		preferred string
		lang      string
		want      string
	}{
		{"configured name wins", []tts.Voice{cloudUS, localGB}, "Daniel", "en-US", "Daniel"},
		{"configured uri wins", []tts.Voice{cloudUS, localGB}, "local:daniel", "en-US", "Daniel"},
		{"unknown configured voice falls through", []tts.Voice{localGB, cloudUS}, "Nobody", "en-US", "Cloud US"},
		{"exact locale prefers network", []tts.Voice{localUS, cloudUS}, "", "en-US", "Cloud US"},
		{"exact locale falls back to local", []tts.Voice{cloudDE, localUS}, "", "en-US", "Samantha"},
		{"locale match ignores case and underscores", []tts.Voice{cloudUS, localGB}, "", "EN_gb", "Daniel"},
		{"exact beats prefix network", []tts.Voice{cloudAU, localUS}, "", "en-US", "Samantha"},
		{"prefix prefers network", []tts.Voice{localAU, cloudDE, cloudAU}, "", "en-US", "Cloud AU"},
		{"prefix falls back to local", []tts.Voice{cloudDE, localAU, localGB}, "", "en-US", "Karen"},
		{"first voice last", []tts.Voice{cloudDE, localAU}, "", "fr-FR", "Cloud DE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectDefaultVoice(tc.voices, tc.preferred, tc.lang)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got.Name)
		})
	}

	_, ok := SelectDefaultVoice(nil, "", "en-US")
	assert.False(t, ok)
}

func TestFindVoice(t *testing.T) {
	voices := []tts.Voice{cloudUS, localUS}

	v, ok := findVoice(voices, 1)
	assert.True(t, ok)
	assert.Equal(t, "Samantha", v.Name)

	v, ok = findVoice(voices, "cloud:en-US")
	assert.True(t, ok)
	assert.Equal(t, "Cloud US", v.Name)

	_, ok = findVoice(voices, localUS)
	assert.True(t, ok)

	for _, key := range []any{"", "missing", 2, -1, nil, 1.0} {
		_, ok := findVoice(voices, key)
		assert.False(t, ok, "%v", key)
	}
}
