// Package tickloop implements the fixed-cadence driver: it owns the
// core and database fiber pools, runs the plugin registry's pre/tick/
// post hooks once per heartbeat, and drives the not_started through
// joined lifecycle state machine.
package tickloop

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenwickgames/realtimecore/pkg/events"
	"github.com/fenwickgames/realtimecore/pkg/fiberpool"
	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/metrics"
	"github.com/fenwickgames/realtimecore/pkg/plugin"
)

// EventSink is the subset of events.Broker the loop needs to report a
// tick that ran over its heartbeat budget.
type EventSink interface {
	Publish(event *events.Event)
}

// Clock abstracts time.Now/time.Sleep so tests can drive the loop
// without real wall-clock waits.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time     { return time.Now() }
func (realClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// RealClock is the production Clock.
var RealClock Clock = realClock{}

// NetworkStarter is the subset of netio.Socket the loop needs to bring
// receive goroutines up and down.
type NetworkStarter interface {
	Start(ctx context.Context, nnet int)
	Close() error
}

// State is a position in the loop's lifecycle state machine.
type State int32

const (
	NotStarted State = iota
	StartingNetwork
	StartingPools
	Running
	Stopping
	Joined
)

// Loop drives one tick-driven server instance.
type Loop struct {
	Heartbeat time.Duration
	Clock     Clock
	Registry  *plugin.Registry

	CorePool *fiberpool.Pool
	NCore    int
	JoinPool bool

	DBPool *fiberpool.Pool
	NDB    int

	Network NetworkStarter
	NNet    int

	Events EventSink

	state atomic.Int32

	mu       sync.Mutex
	stopCh   chan struct{}
	joinedCh chan struct{}

	meanIntervalNanos atomic.Int64
	lastDurationNanos atomic.Int64
	tickCount         atomic.Int64
}

// Stats snapshots the running loop's tick cadence for the admin
// surface.
type Stats struct {
	MeanIntervalMs     float64
	LastTickDurationMs float64
	TickCount          int64
}

// Stats returns the loop's current cadence snapshot.
func (l *Loop) Stats() Stats {
	return Stats{
		MeanIntervalMs:     float64(l.meanIntervalNanos.Load()) / float64(time.Millisecond),
		LastTickDurationMs: float64(l.lastDurationNanos.Load()) / float64(time.Millisecond),
		TickCount:          l.tickCount.Load(),
	}
}

// NewLoop constructs a Loop with the given heartbeat and real clock.
func NewLoop(heartbeat time.Duration, registry *plugin.Registry, corePool *fiberpool.Pool, ncore int, joinPool bool) *Loop {
	return &Loop{
		Heartbeat: heartbeat,
		Clock:     RealClock,
		Registry:  registry,
		CorePool:  corePool,
		NCore:     ncore,
		JoinPool:  joinPool,
	}
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Start implements the startup sequence: network threads, then (if a
// database pool was configured) the DB pool, then the main tick fiber
// scheduled on the core pool before the core pool's own workers start.
func (l *Loop) Start(ctx context.Context) {
	l.state.Store(int32(StartingNetwork))
	if l.Network != nil {
		l.Network.Start(ctx, l.NNet)
	}

	l.state.Store(int32(StartingPools))
	if l.DBPool != nil {
		l.DBPool.Start(l.NDB, false)
	}

	l.mu.Lock()
	l.stopCh = make(chan struct{})
	l.joinedCh = make(chan struct{})
	l.mu.Unlock()

	l.CorePool.Push(func() { l.run(ctx) })
	l.CorePool.Start(l.NCore, l.JoinPool)

	l.state.Store(int32(Running))
}

// run is the main tick fiber: EMA drift compensation, hook dispatch,
// heartbeat sleep.
func (l *Loop) run(ctx context.Context) {
	logger := log.WithComponent("tickloop")
	last := l.Clock.Now()
	diffMean := l.Heartbeat // seed at the nominal rate to avoid a cold-start transient

	l.mu.Lock()
	stopCh := l.stopCh
	joinedCh := l.joinedCh
	l.mu.Unlock()

	for {
		select {
		case <-stopCh:
			close(joinedCh)
			return
		case <-ctx.Done():
			close(joinedCh)
			return
		default:
		}

		tickStart := l.Clock.Now()
		diff := tickStart.Sub(last)
		last = tickStart
		diffMean = ema(diffMean, diff)

		l.Registry.RunPreTick()
		l.Registry.RunTick(diff)

		elapsed := l.Clock.Now().Sub(tickStart)
		updateTime := elapsed + (ceilMillis(diffMean) - l.Heartbeat)
		if updateTime < l.Heartbeat {
			l.Clock.Sleep(l.Heartbeat - updateTime)
		} else {
			logger.Warn().Dur("update_time", updateTime).Dur("heartbeat", l.Heartbeat).Msg("tick running over heartbeat budget")
			if l.Events != nil {
				l.Events.Publish(&events.Event{
					Type:    events.EventTickSlow,
					Message: "tick exceeded heartbeat budget",
				})
			}
		}

		l.Registry.RunPostTick()

		l.meanIntervalNanos.Store(int64(diffMean))
		l.lastDurationNanos.Store(int64(elapsed))
		l.tickCount.Add(1)

		metrics.TicksTotal.Inc()
		metrics.TickIntervalSeconds.Observe(diff.Seconds())
		metrics.TickDurationSeconds.Observe(elapsed.Seconds())
	}
}

func ema(mean, sample time.Duration) time.Duration {
	return time.Duration(0.95*float64(mean) + 0.05*float64(sample))
}

func ceilMillis(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(float64(d)/float64(time.Millisecond))) * time.Millisecond
}

// Stop requests the main tick fiber to exit, waits for it via the
// two-party barrier, then drains both pools and closes the network
// socket.
func (l *Loop) Stop() {
	l.state.Store(int32(Stopping))

	l.mu.Lock()
	stopCh := l.stopCh
	joinedCh := l.joinedCh
	l.mu.Unlock()

	if stopCh == nil {
		l.state.Store(int32(Joined))
		return
	}

	close(stopCh)
	<-joinedCh

	l.CorePool.End()
	if l.DBPool != nil {
		l.DBPool.End()
	}
	if l.Network != nil {
		if err := l.Network.Close(); err != nil {
			log.WithComponent("tickloop").Warn().Err(err).Msg("error closing network socket")
		}
	}

	l.state.Store(int32(Joined))
}
