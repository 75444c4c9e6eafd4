package bridge

import (
	"sync"
	"time"

	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

// outcome is a resolved or rejected pending operation.
type outcome struct {
	ev  message.Event
	err error
}

type pendingOp struct {
	op    string
	res   chan outcome
	timer *time.Timer
}

// correlator matches correlated commands to their completion events by
// sequence number, bounding every wait with a timeout. An event whose
// sequence has no pending entry, which is what a late reply after a
// timeout looks like, is ignored.
type correlator struct {
	mu      sync.Mutex
	pending map[uint64]*pendingOp
}

func newCorrelator() *correlator {
	return &correlator{pending: map[uint64]*pendingOp{}}
}

// add registers a pending operation and arms its timeout. The returned
// channel receives exactly one outcome. The timer is created under the
// lock, so even a timeout firing immediately serializes behind the map
// insert and finds the entry.
func (c *correlator) add(seq uint64, op string, timeout time.Duration) <-chan outcome {
	p := &pendingOp{op: op, res: make(chan outcome, 1)}

	c.mu.Lock()
	p.timer = time.AfterFunc(timeout, func() {
		c.finish(seq, outcome{err: &TimeoutError{Op: op}})
	})
	c.pending[seq] = p
	c.mu.Unlock()

	return p.res
}

// take removes and returns the pending entry, exactly once per seq.
func (c *correlator) take(seq uint64) (p *pendingOp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p = c.pending[seq]
	delete(c.pending, seq)

	return
}

func (c *correlator) finish(seq uint64, out outcome) {
	p := c.take(seq)
	if p == nil {
		return
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.res <- out
}

// drop abandons a pending operation without delivering an outcome.
func (c *correlator) drop(seq uint64) {
	p := c.take(seq)
	if p != nil && p.timer != nil {
		p.timer.Stop()
	}
}

// observe resolves the pending operation a completion event is tagged
// with. Unsolicited events pass through untouched.
func (c *correlator) observe(ev message.Event) {
	seq := message.SeqOf(ev)
	if seq == 0 {
		return
	}

	c.finish(seq, outcome{ev: ev})
}

// failAll rejects every pending operation, used on transport failure
// and termination.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	all := c.pending
	c.pending = map[uint64]*pendingOp{}
	c.mu.Unlock()

	for _, p := range all {
		if p.timer != nil {
			p.timer.Stop()
		}
		// Cannot block: res has capacity one, and every resolution path
		// removes the entry from the map before sending, so an entry
		// still present here has never been sent an outcome.
		p.res <- outcome{err: err}
	}
}
