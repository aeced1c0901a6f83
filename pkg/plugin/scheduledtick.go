package plugin

import "time"

// ScheduledTick fires fn every N base heartbeats, accumulating the
// wall-clock diff across ticks and firing each time the accumulated
// time reaches N × heartbeat. The threshold is wall-clock time, so a
// loop running behind schedule (diff larger than heartbeat) reaches it
// in fewer than N ticks.
type ScheduledTick struct {
	heartbeat time.Duration
	n         uint32
	fn        func()

	accumulated time.Duration
}

// NewScheduledTick returns a Ticker that calls fn once every n
// heartbeats of length heartbeat.
func NewScheduledTick(heartbeat time.Duration, n uint32, fn func()) *ScheduledTick {
	return &ScheduledTick{heartbeat: heartbeat, n: n, fn: fn}
}

// Tick implements Ticker.
func (s *ScheduledTick) Tick(diff time.Duration) {
	s.accumulated += diff
	threshold := s.heartbeat * time.Duration(s.n)
	if s.accumulated >= threshold {
		s.accumulated -= threshold
		s.fn()
	}
}
