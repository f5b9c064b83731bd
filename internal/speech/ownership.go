package speech

import (
	"reflect"
	"sync"

	"github.com/normanking/cortexface/internal/tts"
)

// owners tracks engines driven by a live Manager
var owners sync.Map

func acquireEngine(e tts.Engine) bool {
	if !reflect.TypeOf(e).Comparable() {
		return true
	}
	_, loaded := owners.LoadOrStore(e, struct{}{})
	return !loaded
}

func releaseEngine(e tts.Engine) {
	if !reflect.TypeOf(e).Comparable() {
		return
	}
	owners.Delete(e)
}
