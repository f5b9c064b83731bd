package speech

import (
	"time"
)

// Stall recovery actions, reported as the Name of EventStall
const (
	StallActionResume   = "resume"
	StallActionResubmit = "resubmit"
)

func (m *Manager) startWatchdogLocked() {
	if !m.watchdog || m.watchdogStop != nil {
		return
	}
	stop := make(chan struct{})
	m.watchdogStop = stop
	go m.runWatchdog(stop, m.cfg.WatchdogInterval)
}

func (m *Manager) stopWatchdogLocked() {
	if m.watchdogStop != nil {
		close(m.watchdogStop)
		m.watchdogStop = nil
	}
}

func (m *Manager) runWatchdog(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.checkStall()
		}
	}
}

// checkStall makes one recovery attempt when the current utterance has been
// silent longer than the stall threshold. Monitoring continues afterwards.
func (m *Manager) checkStall() {
	m.mu.Lock()
	req := m.current
	if m.closed || req == nil || req.id == "" || m.paused {
		m.mu.Unlock()
		return
	}
	silent := time.Since(m.lastEventAt)
	if silent <= m.cfg.StallThreshold {
		m.mu.Unlock()
		return
	}
	id := req.id
	m.lastEventAt = time.Now()
	m.mu.Unlock()

	m.engineMu.Lock()
	if m.engine.Paused() {
		m.engine.Resume()
		m.engineMu.Unlock()
		m.reportStall(id, silent, StallActionResume)
		return
	}

	// detach first so the engine's interrupt error for id is ignored
	m.mu.Lock()
	if m.current != req || req.id != id {
		m.mu.Unlock()
		m.engineMu.Unlock()
		return
	}
	req.id = ""
	m.mu.Unlock()

	m.engine.Cancel()
	m.engineMu.Unlock()

	m.reportStall(id, silent, StallActionResubmit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.current != req {
		return
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
	}
	m.restartTimer = time.AfterFunc(m.cfg.RestartDelay, func() { m.restart(req) })
}

func (m *Manager) restart(req *request) {
	m.mu.Lock()
	ok := !m.closed && m.current == req && req.id == ""
	m.restartTimer = nil
	m.mu.Unlock()

	if ok {
		m.submit(req)
	}
}

func (m *Manager) reportStall(id string, silent time.Duration, action string) {
	m.logger.Warn().
		Str("utterance", id).
		Dur("silent", silent).
		Str("action", action).
		Msg("Speech engine stalled")
	m.metrics.RecordStall(action)
	m.emit(Event{Type: EventStall, UtteranceID: id, Name: action, ElapsedTime: silent})
}
