package grid

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// DefaultThreshold is how close (in lines) the bottom of the viewport must
	// be to the end of the content before more items are requested. It is
	// roughly one or two rows of cards.
	DefaultThreshold = 15
	// DefaultDebounce is the trailing-edge debounce applied to scroll events.
	DefaultDebounce = 100 * time.Millisecond
)

var lastDetectorID int64

func nextDetectorID() int {
	return int(atomic.AddInt64(&lastDetectorID, 1))
}

// State is the load-more gate state.
type State int

const (
	// StateIdle accepts the next proximity trigger.
	StateIdle State = iota
	// StateTriggered has invoked the load-more callback and waits for the
	// owner to report that loading started.
	StateTriggered
	// StateLoading waits for the owner to report that loading finished.
	StateLoading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateLoading:
		return "loading"
	}
	return "unknown"
}

// LoadMoreFunc requests the next page of items. It is fire-and-forget: the
// owner reports progress back through [Detector.Sync].
type LoadMoreFunc func() tea.Cmd

// TickFunc schedules fn after d. [tea.Tick] is the default.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// TickMsg is the debounce timer firing. Only the tick carrying the detector's
// current id and tag is evaluated; any other tick was superseded or belongs to
// a closed detector.
type TickMsg struct {
	id  int
	tag int
}

// DetectorOpt configures a [Detector].
type DetectorOpt func(*Detector)

// WithThreshold sets the proximity threshold in lines.
func WithThreshold(lines int) DetectorOpt {
	return func(d *Detector) {
		if lines >= 0 {
			d.threshold = lines
		}
	}
}

// WithDebounce sets the debounce delay.
func WithDebounce(delay time.Duration) DetectorOpt {
	return func(d *Detector) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

// WithTick replaces the scheduler used for the debounce timer.
func WithTick(tick TickFunc) DetectorOpt {
	return func(d *Detector) {
		if tick != nil {
			d.tick = tick
		}
	}
}

// Detector watches debounced page scroll samples and requests more data once
// per loading cycle when the viewport nears the end of the content.
type Detector struct {
	id  int
	tag int

	state   State
	hasMore bool
	loading bool
	closed  bool

	threshold  int
	delay      time.Duration
	tick       TickFunc
	onLoadMore LoadMoreFunc
}

// NewDetector creates a detector that calls onLoadMore when triggered.
// onLoadMore may be nil.
func NewDetector(onLoadMore LoadMoreFunc, opts ...DetectorOpt) Detector {
	d := Detector{
		id:         nextDetectorID(),
		threshold:  DefaultThreshold,
		delay:      DefaultDebounce,
		tick:       tea.Tick,
		onLoadMore: onLoadMore,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// ID returns the detector's instance id.
func (d Detector) ID() int { return d.id }

// State returns the current gate state.
func (d Detector) State() State { return d.state }

// Closed reports whether [Detector.Close] was called.
func (d Detector) Closed() bool { return d.closed }

// Scroll records a scroll event. It supersedes any pending debounce timer and
// schedules a new one.
func (d *Detector) Scroll() tea.Cmd {
	if d.closed {
		return nil
	}
	d.tag++
	id, tag := d.id, d.tag
	return d.tick(d.delay, func(time.Time) tea.Msg {
		return TickMsg{id: id, tag: tag}
	})
}

// Sync reports the owner's load state. A transition of loading from true to
// false is the only way back to [StateIdle].
func (d *Detector) Sync(hasMore, loading bool) {
	switch {
	case d.loading && !loading:
		d.state = StateIdle
	case loading && d.state == StateTriggered:
		d.state = StateLoading
	}
	d.hasMore = hasMore
	d.loading = loading
}

// Update evaluates a debounce tick against the current page metrics and
// returns the load-more command if the gate opens.
func (d *Detector) Update(msg TickMsg, metrics MetricsProvider) tea.Cmd {
	if d.closed || msg.id != d.id || msg.tag != d.tag {
		return nil
	}
	if metrics == nil || !Near(metrics.Metrics(), d.threshold) {
		return nil
	}
	return d.fire()
}

// Trigger requests more data without a proximity check, subject to the same
// gate. It is used for explicit "load more" key presses.
func (d *Detector) Trigger() tea.Cmd {
	if d.closed {
		return nil
	}
	return d.fire()
}

// Close tears the detector down. Pending ticks become inert and no further
// ticks are scheduled.
func (d *Detector) Close() {
	d.closed = true
	d.tag++
}

func (d *Detector) fire() tea.Cmd {
	if d.state != StateIdle || !d.hasMore || d.loading {
		return nil
	}
	d.state = StateTriggered
	if d.onLoadMore == nil {
		return nil
	}
	return d.onLoadMore()
}

// Near reports whether the visible area ends within threshold lines of the
// end of the content.
func Near(m Metrics, threshold int) bool {
	return m.ScrollTop+m.ClientHeight >= m.ScrollHeight-threshold
}
