package session

import "time"

// fpsMeter reports the reciprocal of the interval between consecutive ticks.
type fpsMeter struct {
	prev time.Time
}

func newFPSMeter(start time.Time) *fpsMeter {
	return &fpsMeter{prev: start}
}

func (m *fpsMeter) Tick(now time.Time) float64 {
	d := now.Sub(m.prev)
	m.prev = now
	if d <= 0 {
		return 0
	}
	return 1 / d.Seconds()
}
