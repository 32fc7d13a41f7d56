// Package playback drives a cursor over the reference candle series. The
// controller is a two-state machine (stopped/playing) with manual stepping,
// scrubbing and a periodic tick while playing. At most one tick goroutine is
// alive per controller; replacing the series or pausing cancels it before any
// new state is committed, so a stale tick can never mutate a new cursor.
package playback

import (
	"sync"
	"time"

	"github.com/raykavin/backreplay/pkg/logger"
)

// State represents the playback state machine position
type State string

const (
	StateStopped State = "STOPPED"
	StatePlaying State = "PLAYING"
)

const defaultSpeed = 250 * time.Millisecond

// Consumer is notified with the new cursor index after every cursor change
type Consumer func(index int)

// Status is the externally visible playback state
type Status struct {
	Index   int
	Total   int
	Playing bool
	Speed   time.Duration
}

// Controller owns the playback cursor for one replay session
type Controller struct {
	mu         sync.Mutex
	log        logger.Logger
	total      int
	index      int
	state      State
	speed      time.Duration
	stop       chan struct{}
	generation uint64
	consumers  []Consumer
}

// Option defines a function type for configuring a Controller instance
type Option func(*Controller)

// WithSpeed sets the initial tick interval
func WithSpeed(speed time.Duration) Option {
	return func(c *Controller) {
		if speed > 0 {
			c.speed = speed
		}
	}
}

// NewController creates a stopped controller with an empty series
func NewController(log logger.Logger, options ...Option) *Controller {
	c := &Controller{
		log:   log,
		state: StateStopped,
		speed: defaultSpeed,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Subscribe registers a consumer to receive cursor updates
func (c *Controller) Subscribe(consumer Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumers = append(c.consumers, consumer)
}

// Load replaces the underlying series. The cursor resets to 0, playback is
// forced to stopped, and any pending tick is cancelled before the new size is
// committed.
func (c *Controller) Load(total int) {
	c.mu.Lock()
	c.haltLocked()
	if total < 0 {
		total = 0
	}
	c.total = total
	c.index = 0
	notify := c.notifierLocked()
	c.mu.Unlock()

	c.log.Debugf("playback: loaded %d bars", total)

	notify()
}

// Play starts periodic advancement. No-op while already playing or when the
// cursor sits at the end of the series.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePlaying || c.index >= c.lastIndexLocked() {
		return
	}

	c.state = StatePlaying
	c.stop = make(chan struct{})
	c.generation++

	go c.run(c.generation, c.stop)
}

// Pause stops periodic advancement, keeping the cursor where it is
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
}

// Step moves the cursor by delta bars, clamped to the series bounds.
// Stepping implicitly pauses playback.
func (c *Controller) Step(delta int) int {
	c.mu.Lock()
	c.haltLocked()
	c.index = c.clampLocked(c.index + delta)
	index := c.index
	notify := c.notifierLocked()
	c.mu.Unlock()

	notify()
	return index
}

// Scrub jumps to an arbitrary clamped index, implicitly pausing playback
func (c *Controller) Scrub(index int) int {
	c.mu.Lock()
	c.haltLocked()
	c.index = c.clampLocked(index)
	clamped := c.index
	notify := c.notifierLocked()
	c.mu.Unlock()

	notify()
	return clamped
}

// SetSpeed changes the tick interval. It takes effect on the next scheduled
// tick and does not reset playback progress.
func (c *Controller) SetSpeed(speed time.Duration) {
	if speed <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
}

// Index returns the current cursor position
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Status returns the externally visible playback state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		Index:   c.index,
		Total:   c.total,
		Playing: c.state == StatePlaying,
		Speed:   c.speed,
	}
}

// run is the tick loop. It lives exactly as long as one Playing phase: the
// stop channel or a generation mismatch ends it.
func (c *Controller) run(generation uint64, stop chan struct{}) {
	timer := time.NewTimer(c.currentSpeed())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			if !c.tick(generation) {
				return
			}
			timer.Reset(c.currentSpeed())
		}
	}
}

// tick advances the cursor by one bar. A tick that fires at the last index
// transitions to stopped instead, so the final frame is shown for one full
// interval before playback ends. Returns false when the loop must exit.
func (c *Controller) tick(generation uint64) bool {
	c.mu.Lock()

	if generation != c.generation || c.state != StatePlaying {
		c.mu.Unlock()
		return false
	}

	if c.index < c.lastIndexLocked() {
		c.index++
		notify := c.notifierLocked()
		c.mu.Unlock()

		notify()
		return true
	}

	c.haltLocked()
	c.mu.Unlock()
	return false
}

func (c *Controller) currentSpeed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// haltLocked cancels the pending tick and forces the stopped state.
// Bumping the generation invalidates any tick already past its timer.
func (c *Controller) haltLocked() {
	c.generation++
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.state = StateStopped
}

func (c *Controller) lastIndexLocked() int {
	if c.total == 0 {
		return 0
	}
	return c.total - 1
}

func (c *Controller) clampLocked(index int) int {
	if index < 0 {
		return 0
	}
	if last := c.lastIndexLocked(); index > last {
		return last
	}
	return index
}

// notifierLocked snapshots the consumer list and current index so consumers
// run without holding the controller lock.
func (c *Controller) notifierLocked() func() {
	index := c.index
	consumers := make([]Consumer, len(c.consumers))
	copy(consumers, c.consumers)

	return func() {
		for _, consumer := range consumers {
			consumer(index)
		}
	}
}
