package speech

import (
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// dispatcher runs user callbacks one at a time, in submission order, on its
// own goroutine. Callbacks never run under the manager lock.
type dispatcher struct {
	logger zerolog.Logger

	mu     sync.Mutex
	queue  []task
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

type task struct {
	name string
	fn   func()
}

func newDispatcher(logger zerolog.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) post(name string, fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, task{name: name, fn: fn})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if d.closed || len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			t := d.queue[0]
			d.queue[0] = task{}
			d.queue = d.queue[1:]
			d.mu.Unlock()

			supervise(d.logger, t.name, t.fn)
		}
	}
}

// close drops pending callbacks. It does not wait, so it is safe to call
// from inside a callback.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.queue = nil
	close(d.done)
}

// supervise runs fn, logging and swallowing any panic
func supervise(logger zerolog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("callback", name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Callback panicked")
		}
	}()
	fn()
}
