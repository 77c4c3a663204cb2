package capture

import "time"

// Pacer switches the read rate between an idle and an active FPS. Motion
// raises the rate immediately; the rate drops back once no motion has been
// seen for the idle timeout.
type Pacer struct {
	idleFPS     int
	activeFPS   int
	idleTimeout time.Duration
	active      bool
	lastMotion  time.Time
}

// NewPacer creates a Pacer in idle mode.
func NewPacer(idleFPS, activeFPS int, idleTimeout time.Duration) *Pacer {
	if idleFPS <= 0 {
		idleFPS = DefaultFPS
	}
	if activeFPS < idleFPS {
		activeFPS = idleFPS
	}
	return &Pacer{
		idleFPS:     idleFPS,
		activeFPS:   activeFPS,
		idleTimeout: idleTimeout,
	}
}

// Observe records whether the latest frame showed motion. It returns the FPS
// to use from now on and whether it differs from the previous one.
func (p *Pacer) Observe(motion bool, now time.Time) (fps int, changed bool) {
	switch {
	case motion:
		p.lastMotion = now
		if !p.active {
			p.active = true
			return p.activeFPS, true
		}
	case p.active && now.Sub(p.lastMotion) > p.idleTimeout:
		p.active = false
		return p.idleFPS, true
	}
	return p.FPS(), false
}

// Active reports whether the pacer is in active mode.
func (p *Pacer) Active() bool {
	return p.active
}

// FPS returns the current rate.
func (p *Pacer) FPS() int {
	if p.active {
		return p.activeFPS
	}
	return p.idleFPS
}

// Interval returns the time between frames at the current rate.
func (p *Pacer) Interval() time.Duration {
	return time.Second / time.Duration(p.FPS())
}
