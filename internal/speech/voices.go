package speech

import (
	"strings"

	"github.com/normanking/cortexface/internal/tts"
)

// SelectDefaultVoice picks a voice for lang. In order: the preferred name or
// URI, an exact locale match, a primary subtag match, then the first voice.
// Both language steps take a network voice over a local one when the engine
// offers both.
func SelectDefaultVoice(voices []tts.Voice, preferred, lang string) (tts.Voice, bool) {
	if len(voices) == 0 {
		return tts.Voice{}, false
	}

	if preferred != "" {
		for _, v := range voices {
			if v.Name == preferred || v.VoiceURI == preferred {
				return v, true
			}
		}
	}

	want := canonicalLang(lang)
	if want != "" {
		if v, ok := preferNetwork(voices, func(v tts.Voice) bool {
			return canonicalLang(v.Lang) == want
		}); ok {
			return v, true
		}

		primary := primarySubtag(want)
		if v, ok := preferNetwork(voices, func(v tts.Voice) bool {
			return primarySubtag(canonicalLang(v.Lang)) == primary
		}); ok {
			return v, true
		}
	}

	return voices[0], true
}

func preferNetwork(voices []tts.Voice, match func(tts.Voice) bool) (tts.Voice, bool) {
	var local *tts.Voice
	for i := range voices {
		if !match(voices[i]) {
			continue
		}
		if !voices[i].LocalService {
			return voices[i], true
		}
		if local == nil {
			local = &voices[i]
		}
	}
	if local != nil {
		return *local, true
	}
	return tts.Voice{}, false
}

// findVoice resolves an index or a name/URI against voices
func findVoice(voices []tts.Voice, nameOrIndex any) (tts.Voice, bool) {
	switch key := nameOrIndex.(type) {
	case int:
		if key >= 0 && key < len(voices) {
			return voices[key], true
		}
	case string:
		if key == "" {
			break
		}
		for _, v := range voices {
			if v.Name == key || v.VoiceURI == key {
				return v, true
			}
		}
	case tts.Voice:
		return findVoice(voices, key.VoiceURI)
	}
	return tts.Voice{}, false
}

func canonicalLang(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
}

func primarySubtag(lang string) string {
	if i := strings.IndexByte(lang, '-'); i >= 0 {
		return lang[:i]
	}
	return lang
}
