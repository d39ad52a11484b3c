// Package scheduler implements the callout queue and heartbeat set
// described in spec §4.7: a single cooperative tick loop that fires due
// callouts in deadline order, then heartbeats in stable order.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

// Invoker runs a named function on an object as an independent top-level
// dispatch, under its own instruction budget, per spec §4.7. Implemented
// by the interpreter.
type Invoker interface {
	Dispatch(obj *object.Object, player *object.Object, fn string, args []value.Value) (value.Value, error)
}

// NetworkPump is implemented by the telnet front-end: it drains whatever
// input lines accumulated on connections since the last tick and
// dispatches them, preserving per-connection FIFO order and round-robin
// fairness across connections. Wired so the scheduler can enforce spec
// §4.7/§5's tick ordering (callouts, then heartbeats, then network
// input) from one place without importing internal/telnet.
type NetworkPump interface {
	PumpInput(now time.Time)
}

// ReloadPump is implemented by the master package: DrainPending applies
// any mudlib file-change events queued by the fsnotify watcher goroutine
// since the last tick. Wired so hot reload only ever mutates the object
// table from this one tick-loop goroutine, per spec §5's single-threaded
// scripting contract, rather than racing it from the watcher goroutine.
type ReloadPump interface {
	DrainPending()
}

// Scheduler owns the tick loop. The tick interval is read fresh on every
// iteration from the tick field, the single source of truth resolved for
// spec §9's open question (configurable via --tick, default 2s).
type Scheduler struct {
	table   *object.Table
	invoker Invoker
	log     *zap.Logger

	mu   sync.Mutex
	tick time.Duration

	stopCh chan struct{}
	doneCh chan struct{}

	resets  map[*object.Object]*resetEntry
	network NetworkPump
	reload  ReloadPump
}

type resetEntry struct {
	interval time.Duration
	next     time.Time
}

// New constructs a Scheduler with the given tick interval.
func New(table *object.Table, invoker Invoker, tick time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		table: table, invoker: invoker, tick: tick, log: log,
		stopCh: make(chan struct{}), doneCh: make(chan struct{}),
		resets: make(map[*object.Object]*resetEntry),
	}
}

// SetNetworkPump wires the telnet front-end's input drain into the tick
// loop, called last in RunOnce per spec §4.7's ordering.
func (s *Scheduler) SetNetworkPump(n NetworkPump) { s.network = n }

// SetReloadPump wires the master's queued-fsnotify-event drain into the
// tick loop, called before the network pump so reloaded code is in
// place before the tick's command dispatch runs.
func (s *Scheduler) SetReloadPump(r ReloadPump) { s.reload = r }

// SetTick changes the tick interval; the next loop iteration picks it up.
func (s *Scheduler) SetTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = d
}

func (s *Scheduler) currentTick() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Run drives the tick loop until Stop is called, blocking the caller;
// cmd/lpgo's server mode calls it last, after starting the telnet accept
// loop in its own goroutine.
func (s *Scheduler) Run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(s.currentTick()):
			s.RunOnce(time.Now())
		}
	}
}

// Stop signals the loop to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// RunOnce executes exactly one tick's worth of work: due callouts in
// deadline order (ties by insertion order), then heartbeats in stable
// object order, then due resets, then the reload pump and the network
// pump when wired. It is exported directly so tests can drive
// deterministic ticks without a real clock.
func (s *Scheduler) RunOnce(now time.Time) {
	s.fireCallouts(now)
	s.fireHeartbeats()
	s.fireResets(now)
	if s.reload != nil {
		s.reload.DrainPending()
	}
	if s.network != nil {
		s.network.PumpInput(now)
	}
}

func (s *Scheduler) fireResets(now time.Time) {
	for obj, e := range s.resets {
		if obj.Destructed() {
			delete(s.resets, obj)
			continue
		}
		if !e.next.After(now) {
			e.next = now.Add(e.interval)
			if _, err := s.invoker.Dispatch(obj, nil, "reset", nil); err != nil {
				s.log.Warn("reset failed", zap.String("object", obj.ID()), zap.Error(err))
			}
		}
	}
}

// SetReset implements set_reset(interval) per spec §4.9: schedules a
// periodic reset() dispatch on obj every interval. A non-positive
// interval cancels any existing schedule for obj.
func (s *Scheduler) SetReset(obj *object.Object, interval time.Duration) {
	if obj == nil {
		return
	}
	if obj.Destructed() || interval <= 0 {
		delete(s.resets, obj)
		return
	}
	s.resets[obj] = &resetEntry{interval: interval, next: time.Now().Add(interval)}
}

func (s *Scheduler) fireCallouts(now time.Time) {
	due := s.dueCallouts(now)
	for _, c := range due {
		s.table.RemoveCallout(c.Object, c)
		if c.Object.Destructed() {
			continue
		}
		if _, err := s.invoker.Dispatch(c.Object, nil, c.Func, c.Args); err != nil {
			s.log.Warn("callout failed", zap.String("object", c.Object.ID()), zap.String("func", c.Func), zap.Error(err))
		}
	}
}

func (s *Scheduler) dueCallouts(now time.Time) []*object.Callout {
	var due []*object.Callout
	for _, obj := range s.table.AllLiveObjects() {
		for _, c := range obj.Callouts() {
			if !c.Deadline.After(now) {
				due = append(due, c)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Deadline.Equal(due[j].Deadline) {
			return due[i].Seq < due[j].Seq
		}
		return due[i].Deadline.Before(due[j].Deadline)
	})
	return due
}

func (s *Scheduler) fireHeartbeats() {
	for _, obj := range s.table.AllHeartbeatObjects() {
		if _, err := s.invoker.Dispatch(obj, nil, "heart_beat", nil); err != nil {
			s.log.Warn("heart_beat failed", zap.String("object", obj.ID()), zap.Error(err))
		}
	}
}

// CallOut registers a one-shot deferred call, implementing call_out per
// spec §4.7. Delays are measured in whole seconds.
func (s *Scheduler) CallOut(obj *object.Object, fn string, delaySeconds int64, args []value.Value) *object.Callout {
	deadline := time.Now().Add(time.Duration(delaySeconds) * time.Second)
	return s.table.AddCallout(obj, fn, deadline, args)
}

// SetHeartBeat implements set_heart_beat(0/1).
func (s *Scheduler) SetHeartBeat(obj *object.Object, on bool) {
	s.table.EnableHeartbeat(obj, on)
}
