package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

const (
	// StartupTimeout bounds the startup handshake. Generous, to cover
	// cold-loading a sizable engine payload.
	StartupTimeout = 30 * time.Second

	// CallTimeout bounds every live correlated operation.
	CallTimeout = 10 * time.Second

	// backlog sizes the command and event channels. Commands preserve
	// program order through the single channel regardless.
	backlog = 64
)

// dispatcher is the engine side of a bridge. It runs entirely inside
// the context goroutine, so implementations need no locking: boot runs
// once before the command loop, dispatch handles one command, and tick
// performs one scheduled batch when tickC fires (nil when idle).
type dispatcher interface {
	boot() error
	dispatch(env message.Envelope, emit func(message.Event))
	tickC() <-chan time.Time
	tick(emit func(message.Event))
}

// Host owns one isolated execution context: the engine goroutine, the
// channels into and out of it, the correlator, and the lifecycle state.
// It is the single shared shape both bridge instances are built from.
type Host struct {
	newDispatcher func() dispatcher
	onEvent       func(message.Event)

	state *stateMachine
	corr  *correlator
	seq   atomic.Uint64

	startupTimeout time.Duration
	callTimeout    time.Duration

	mu         sync.Mutex
	cmds       chan message.Envelope
	done       chan struct{}
	stopped    bool
	startWait  chan struct{}
	startDone  bool
	startErr   error
	startTimer *time.Timer
	subs       map[int]func(message.Event)
	nextSub    int
	wg         sync.WaitGroup
}

// newHost wires a host around a dispatcher factory. onEvent, which may
// be nil, runs on the event pump goroutine before subscribers.
func newHost(state *stateMachine, onEvent func(message.Event), newDispatcher func() dispatcher) (h *Host) {
	return &Host{
		newDispatcher:  newDispatcher,
		onEvent:        onEvent,
		state:          state,
		corr:           newCorrelator(),
		startupTimeout: StartupTimeout,
		callTimeout:    CallTimeout,
		subs:           map[int]func(message.Event){},
	}
}

// Start performs the one-time startup handshake: it spawns the engine
// goroutine and resolves when the readiness event arrives. Concurrent
// calls before resolution share the same pending result rather than
// spawning a second context; calling Start once ready is a no-op
// success. On failure or timeout the context is torn down and a fresh
// Start is required.
func (h *Host) Start(ctx context.Context) (err error) {
	h.mu.Lock()
	switch h.state.current() {
	case StateUninitialized:
		h.begin()
	case StateInitializing:
		// Join the in-flight handshake.
	default:
		h.mu.Unlock()
		return nil
	}
	wait := h.startWait
	h.mu.Unlock()

	select {
	case <-wait:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.mu.Lock()
	err = h.startErr
	h.mu.Unlock()

	return
}

// begin spawns a fresh context. Caller holds h.mu.
func (h *Host) begin() {
	h.cmds = make(chan message.Envelope, backlog)
	h.done = make(chan struct{})
	h.stopped = false
	h.startWait = make(chan struct{})
	h.startDone = false
	h.startErr = nil

	_ = h.state.to(StateInitializing)

	events := make(chan message.Event, backlog)
	disp := h.newDispatcher()

	// gen identifies this context generation: lifecycle callbacks carry
	// it so a stale generation's events can never complete or tear down
	// a successor's handshake.
	gen := h.done
	h.startTimer = time.AfterFunc(h.startupTimeout, func() {
		h.fail(ErrStartupTimeout, gen)
	})

	h.wg.Add(2)
	go h.loop(disp, h.cmds, events, h.done)
	go h.pump(events, gen)
}

// loop is the execution context: it boots the dispatcher, announces
// readiness, then serves commands and scheduler ticks until told to
// stop. A panic anywhere engine-side surfaces as a Crash event, the
// transport-failure path.
func (h *Host) loop(disp dispatcher, cmds <-chan message.Envelope, events chan<- message.Event, done <-chan struct{}) {
	defer h.wg.Done()
	defer close(events)

	emit := func(ev message.Event) {
		// Shutdown wins over publishing: once done is closed a dying
		// engine must not buffer further events.
		select {
		case <-done:
			return
		default:
		}

		select {
		case events <- ev:
		case <-done:
		}
	}

	if err := guard(func() error { return disp.boot() }); err != nil {
		emit(message.Crash{Message: err.Error()})
		return
	}
	emit(message.Ready{})

	for {
		select {
		case <-done:
			return
		case env := <-cmds:
			if err := guard(func() error { disp.dispatch(env, emit); return nil }); err != nil {
				emit(message.Crash{Message: err.Error()})
				return
			}
		case <-disp.tickC():
			if err := guard(func() error { disp.tick(emit); return nil }); err != nil {
				emit(message.Crash{Message: err.Error()})
				return
			}
		}
	}
}

// guard converts an engine-side panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CrashError{Message: f("panic: %v", r)}
		}
	}()

	return fn()
}

// pump fans events out: correlator first, then the frontend hook, then
// subscribers. Subscribers observe every event independently of any
// pending one-shot operation. Events buffered by a generation that has
// already been torn down are drained without effect.
func (h *Host) pump(events <-chan message.Event, gen chan struct{}) {
	defer h.wg.Done()

	for ev := range events {
		live := h.live(gen)

		switch ev := ev.(type) {
		case message.Ready:
			h.ready(gen)
		case message.Crash:
			h.fail(&CrashError{Message: ev.Message}, gen)
		}

		if !live {
			continue
		}

		h.corr.observe(ev)

		if h.onEvent != nil {
			h.onEvent(ev)
		}
		for _, fn := range h.subscribers() {
			fn(ev)
		}
	}
}

// live reports whether gen is still the current, untorn generation.
func (h *Host) live(gen chan struct{}) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.done == gen && !h.stopped
}

// ready completes a successful handshake. A readiness report from any
// other generation is ignored.
func (h *Host) ready(gen chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done != gen || h.startDone {
		return
	}

	if h.startTimer != nil {
		h.startTimer.Stop()
	}
	_ = h.state.to(StateReady)
	h.startDone = true
	close(h.startWait)
}

// fail tears the context down: pending operations reject with cause,
// the state returns to Uninitialized, and a waiting Start resolves with
// the same cause. Idempotent, and a no-op unless gen is the current
// generation.
func (h *Host) fail(cause error, gen chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done != gen {
		return
	}

	h.failLocked(cause)
}

func (h *Host) failLocked(cause error) {
	if h.done == nil || h.stopped {
		return
	}

	h.stopped = true
	close(h.done)

	if h.startTimer != nil {
		h.startTimer.Stop()
	}
	if !h.startDone {
		h.startDone = true
		h.startErr = cause
		close(h.startWait)
	}

	_ = h.state.to(StateUninitialized)
	h.corr.failAll(cause)
}

// Terminate destroys the context, clears pending operations and
// subscriptions, and returns to Uninitialized. Idempotent, and safe to
// call without ever having started.
func (h *Host) Terminate() {
	h.mu.Lock()
	h.failLocked(ErrTerminated)
	h.mu.Unlock()

	h.wg.Wait()

	h.mu.Lock()
	h.subs = map[int]func(message.Event){}
	h.mu.Unlock()
}

// transport returns the live channels, or ErrNotInitialized when the
// handshake has not completed. The same rejection applies to every
// command type.
func (h *Host) transport() (cmds chan<- message.Envelope, done <-chan struct{}, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state.current() {
	case StateUninitialized, StateInitializing:
		err = ErrNotInitialized
		return
	}

	return h.cmds, h.done, nil
}

// Send forwards a fire-and-forget command, preserving program order.
func (h *Host) Send(cmd message.Command) (err error) {
	if err = cmd.Validate(); err != nil {
		return
	}

	cmds, done, err := h.transport()
	if err != nil {
		return
	}

	select {
	case cmds <- message.Envelope{Cmd: cmd}:
	case <-done:
		err = ErrTerminated
	}

	return
}

// Call issues a correlated command and waits for the completion event,
// a transport failure, or the operation timeout, whichever is first.
func (h *Host) Call(ctx context.Context, cmd message.Command) (ev message.Event, err error) {
	if err = cmd.Validate(); err != nil {
		return
	}

	cmds, done, err := h.transport()
	if err != nil {
		return
	}

	seq := h.seq.Add(1)
	res := h.corr.add(seq, message.Kind(cmd), h.callTimeout)

	select {
	case cmds <- message.Envelope{Seq: seq, Cmd: cmd}:
	case <-done:
		h.corr.drop(seq)
		return nil, ErrTerminated
	}

	select {
	case out := <-res:
		return out.ev, out.err
	case <-ctx.Done():
		h.corr.drop(seq)
		return nil, ctx.Err()
	}
}

// Subscribe registers an event observer and returns its cancel func.
func (h *Host) Subscribe(fn func(message.Event)) (cancel func()) {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *Host) subscribers() (out []func(message.Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, fn := range h.subs {
		out = append(out, fn)
	}

	return
}
