package bridge

import "time"

const (
	// TickInterval is the run-loop cadence for any positive speed,
	// matching the smooth-animation interval of the visualizer.
	TickInterval = 16 * time.Millisecond

	// MaxBatch is the instructions per tick at speed 0 ("maximum"),
	// where ticks run back to back with no delay.
	MaxBatch = 1000
)

// scheduler drives the continuous run loop of one CPU dispatcher. Each
// dispatcher owns its own scheduler, so multiple engine instances never
// collide on shared timer state. It lives on the context goroutine and
// needs no locking.
type scheduler struct {
	timer   *time.Timer
	c       <-chan time.Time
	speed   int
	running bool
}

// start begins ticking at the given speed.
func (s *scheduler) start(speed int) {
	s.speed = speed
	s.running = true
	s.arm()
}

// arm schedules the next tick. Speed 0 degenerates to a zero-delay
// tick with the large fixed batch.
func (s *scheduler) arm() {
	if s.timer != nil {
		s.timer.Stop()
	}

	delay := TickInterval
	if s.speed == 0 {
		delay = 0
	}

	s.timer = time.NewTimer(delay)
	s.c = s.timer.C
}

// retime changes the cadence mid-run: the armed tick is cancelled and a
// new one armed. No partial-tick state is lost; only completed
// instruction execution mutates the engine. No-op when not running.
func (s *scheduler) retime(speed int) {
	if !s.running {
		return
	}

	s.speed = speed
	s.arm()
}

// batch is the instruction budget of one tick.
func (s *scheduler) batch() int {
	if s.speed == 0 {
		return MaxBatch
	}

	return s.speed
}

// stop ends the run loop. Cooperative: it takes effect between
// instructions, never mid-instruction.
func (s *scheduler) stop() {
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.c = nil
}
