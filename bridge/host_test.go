package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

var errBootFailed = errors.New("boot failed")

// fakeDispatcher lets host tests script the engine side without a real
// execution core.
type fakeDispatcher struct {
	bootErr    error
	bootDelay  time.Duration
	boots      atomic.Int32
	onBoot     func() error
	onDispatch func(env message.Envelope, emit func(message.Event))
}

func (d *fakeDispatcher) boot() error {
	d.boots.Add(1)
	if d.onBoot != nil {
		return d.onBoot()
	}
	time.Sleep(d.bootDelay)
	return d.bootErr
}

func (d *fakeDispatcher) dispatch(env message.Envelope, emit func(message.Event)) {
	if d.onDispatch != nil {
		d.onDispatch(env, emit)
	}
}

func (d *fakeDispatcher) tickC() <-chan time.Time { return nil }

func (d *fakeDispatcher) tick(func(message.Event)) {}

func newFakeHost(fd *fakeDispatcher) *Host {
	return newHost(newStateMachine(), nil, func() dispatcher { return fd })
}

func TestHost_StartAndTerminate(t *testing.T) {
	assert := assert.New(t)

	fd := &fakeDispatcher{}
	h := newFakeHost(fd)

	assert.NoError(h.Start(context.Background()))
	assert.Equal(StateReady, h.state.current())

	// Start once ready is a no-op success.
	assert.NoError(h.Start(context.Background()))
	assert.Equal(int32(1), fd.boots.Load())

	h.Terminate()
	assert.Equal(StateUninitialized, h.state.current())

	// Terminate is idempotent.
	h.Terminate()
}

func TestHost_TerminateWithoutStart(t *testing.T) {
	h := newFakeHost(&fakeDispatcher{})
	h.Terminate()

	assert.Equal(t, StateUninitialized, h.state.current())
}

func TestHost_StartSingleFlight(t *testing.T) {
	assert := assert.New(t)

	fd := &fakeDispatcher{bootDelay: 50 * time.Millisecond}
	h := newFakeHost(fd)
	defer h.Terminate()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.Start(context.Background())
		}()
	}
	wg.Wait()

	// Back-to-back startups share one context creation, and every
	// caller observes the same resolution.
	assert.Equal(int32(1), fd.boots.Load())
	for _, err := range errs {
		assert.NoError(err)
	}
}

func TestHost_StartBootFailure(t *testing.T) {
	assert := assert.New(t)

	fd := &fakeDispatcher{bootErr: errBootFailed}
	h := newFakeHost(fd)

	err := h.Start(context.Background())
	assert.Error(err)

	var crash *CrashError
	assert.ErrorAs(err, &crash)
	assert.Equal(StateUninitialized, h.state.current())

	// A fresh Start retries with a fresh context.
	fd.bootErr = nil
	h.wg.Wait()
	assert.NoError(h.Start(context.Background()))
	assert.Equal(int32(2), fd.boots.Load())

	h.Terminate()
}

func TestHost_StartTimeout(t *testing.T) {
	assert := assert.New(t)

	fd := &fakeDispatcher{bootDelay: 500 * time.Millisecond}
	h := newFakeHost(fd)
	h.startupTimeout = 30 * time.Millisecond

	err := h.Start(context.Background())
	assert.ErrorIs(err, ErrStartupTimeout)
	assert.Equal(StateUninitialized, h.state.current())

	h.Terminate()
}

func TestHost_StaleGenerationIgnored(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// The first context's boot wedges; later ones boot instantly.
	release := make(chan struct{})
	var gens atomic.Int32
	factory := func() dispatcher {
		n := gens.Add(1)
		return &fakeDispatcher{onBoot: func() error {
			if n == 1 {
				<-release
			}
			return nil
		}}
	}

	h := newHost(newStateMachine(), nil, factory)
	h.startupTimeout = 20 * time.Millisecond

	require.ErrorIs(h.Start(context.Background()), ErrStartupTimeout)

	h.mu.Lock()
	stale := h.done
	h.mu.Unlock()

	// A fresh context completes its own handshake.
	h.startupTimeout = StartupTimeout
	require.NoError(h.Start(context.Background()))

	// The wedged engine wakes up late; its lifecycle reports belong to
	// the dead generation and must not touch the live one.
	close(release)
	h.ready(stale)
	assert.Equal(StateReady, h.state.current())

	h.fail(&CrashError{Message: "stale"}, stale)
	assert.Equal(StateReady, h.state.current())
	assert.NoError(h.Send(message.Stop{}))

	h.Terminate()
}

func TestHost_NotInitialized(t *testing.T) {
	assert := assert.New(t)

	h := newFakeHost(&fakeDispatcher{})

	// Every command rejects with the same error before startup.
	assert.ErrorIs(h.Send(message.Run{}), ErrNotInitialized)
	assert.ErrorIs(h.Send(message.Stop{}), ErrNotInitialized)

	_, err := h.Call(context.Background(), message.GetState{})
	assert.ErrorIs(err, ErrNotInitialized)
	_, err = h.Call(context.Background(), message.Step{})
	assert.ErrorIs(err, ErrNotInitialized)
}

func TestHost_CallResolvesOnce(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fd := &fakeDispatcher{}
	fd.onDispatch = func(env message.Envelope, emit func(message.Event)) {
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: &message.Snapshot{PC: 42}})
	}
	h := newFakeHost(fd)
	defer h.Terminate()
	require.NoError(h.Start(context.Background()))

	ev, err := h.Call(context.Background(), message.GetState{})
	require.NoError(err)

	up, ok := ev.(message.StateUpdate)
	require.True(ok)
	assert.Equal(uint16(42), up.Snapshot.PC)
}

func TestHost_CallTimeout(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// The engine swallows the command: no reply ever comes.
	fd := &fakeDispatcher{onDispatch: func(message.Envelope, func(message.Event)) {}}
	h := newFakeHost(fd)
	defer h.Terminate()
	h.callTimeout = 30 * time.Millisecond
	require.NoError(h.Start(context.Background()))

	_, err := h.Call(context.Background(), message.Step{})

	var te *TimeoutError
	require.ErrorAs(err, &te)
	assert.Equal("step", te.Op)
}

func TestHost_LateEventIgnored(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fd := &fakeDispatcher{}
	fd.onDispatch = func(env message.Envelope, emit func(message.Event)) {
		switch env.Cmd.(type) {
		case message.Step:
			// Reply well after the caller gave up.
			time.Sleep(80 * time.Millisecond)
		}
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: &message.Snapshot{}})
	}
	h := newFakeHost(fd)
	defer h.Terminate()
	h.callTimeout = 20 * time.Millisecond
	require.NoError(h.Start(context.Background()))

	_, err := h.Call(context.Background(), message.Step{})
	var te *TimeoutError
	assert.ErrorAs(err, &te)

	// The late reply is dropped idempotently; the host keeps working.
	h.callTimeout = time.Second
	_, err = h.Call(context.Background(), message.GetState{})
	assert.NoError(err)
}

func TestHost_CrashRejectsPending(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fd := &fakeDispatcher{}
	fd.onDispatch = func(env message.Envelope, emit func(message.Event)) {
		panic("engine exploded")
	}
	h := newFakeHost(fd)
	require.NoError(h.Start(context.Background()))

	_, err := h.Call(context.Background(), message.GetState{})

	var crash *CrashError
	require.ErrorAs(err, &crash)
	assert.Contains(crash.Message, "engine exploded")

	// The context is gone until a fresh Start.
	assert.Equal(StateUninitialized, h.state.current())
	assert.ErrorIs(h.Send(message.Stop{}), ErrNotInitialized)

	h.Terminate()
}

func TestHost_SubscribeAndCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fd := &fakeDispatcher{}
	fd.onDispatch = func(env message.Envelope, emit func(message.Event)) {
		emit(message.Halted{})
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: &message.Snapshot{}})
	}
	h := newFakeHost(fd)
	defer h.Terminate()

	seen := make(chan message.Event, 16)
	cancel := h.Subscribe(func(ev message.Event) { seen <- ev })

	require.NoError(h.Start(context.Background()))

	// Subscribers observe the readiness broadcast too.
	assert.IsType(message.Ready{}, <-seen)

	_, err := h.Call(context.Background(), message.Step{})
	require.NoError(err)

	// Both the unsolicited and the completion event fan out,
	// independent of the pending operation.
	assert.IsType(message.Halted{}, <-seen)
	assert.IsType(message.StateUpdate{}, <-seen)

	cancel()
	_, err = h.Call(context.Background(), message.Step{})
	require.NoError(err)

	select {
	case ev := <-seen:
		t.Fatalf("cancelled subscriber still notified: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCorrelator_FailAll(t *testing.T) {
	assert := assert.New(t)

	c := newCorrelator()
	res1 := c.add(1, "step", time.Minute)
	res2 := c.add(2, "get-state", time.Minute)

	c.failAll(ErrTerminated)

	assert.ErrorIs((<-res1).err, ErrTerminated)
	assert.ErrorIs((<-res2).err, ErrTerminated)

	// Nothing left: a late event for a failed seq is a no-op.
	c.observe(message.StateUpdate{Seq: 1})
}

func TestCorrelator_TimeoutRacesRegistration(t *testing.T) {
	assert := assert.New(t)

	// A timeout that fires before add even returns still serializes
	// behind the registration and delivers its outcome.
	c := newCorrelator()
	res := c.add(3, "step", time.Nanosecond)

	out := <-res
	var te *TimeoutError
	assert.ErrorAs(out.err, &te)
}

func TestCorrelator_ResolveStopsTimeout(t *testing.T) {
	assert := assert.New(t)

	c := newCorrelator()
	res := c.add(7, "step", 20*time.Millisecond)

	c.observe(message.StateUpdate{Seq: 7, Snapshot: &message.Snapshot{PC: 1}})

	out := <-res
	assert.NoError(out.err)

	// The timeout must not fire a second outcome.
	time.Sleep(40 * time.Millisecond)
	select {
	case <-res:
		t.Fatal("second outcome delivered")
	default:
	}
}
