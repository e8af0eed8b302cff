package atengine

import (
	"context"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
)

// State is a Command's position in the state machine from spec.md §4.3:
//
//	Queued -> Sending -> AwaitingResponse -> {Complete, Failed, TimedOut, Cancelled}
//
// with a direct Queued|Sending|AwaitingResponse -> Cancelled edge on
// cancellation from any non-terminal state.
type State int

const (
	Queued State = iota
	Sending
	AwaitingResponse
	Complete
	TimedOut
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Sending:
		return "sending"
	case AwaitingResponse:
		return "awaiting-response"
	case Complete:
		return "complete"
	case TimedOut:
		return "timed-out"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the four states that release
// the port for the next queued command.
func (s State) Terminal() bool {
	switch s {
	case Complete, TimedOut, Cancelled, Failed:
		return true
	default:
		return false
	}
}

// Command is a single scheduled I/O operation on a Port.
type Command struct {
	ID      string
	Request []byte
	Timeout time.Duration
	Raw     bool
	Cached  bool

	ctx context.Context

	mu      sync.Mutex
	state   State
	payload string
	err     error
	doneCh  chan struct{}

	// echoPending holds the not-yet-observed suffix of the just-sent
	// command bytes, used by echo suppression. nil once consumed or
	// once the engine has given up waiting for an echo to appear.
	echoPending []byte

	enqueuedAt time.Time
}

func newCommand(ctx context.Context, req []byte, timeout time.Duration, raw, cached bool) *Command {
	return &Command{
		ID:         uuid.NewV4().String(),
		Request:    req,
		Timeout:    timeout,
		Raw:        raw,
		Cached:     cached,
		ctx:        ctx,
		state:      Queued,
		doneCh:     make(chan struct{}),
		enqueuedAt: time.Now(),
	}
}

// State returns the command's current state.
func (c *Command) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Command) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finish transitions the command to a terminal state exactly once. A
// second call (e.g. a timeout racing a successful parse) is a no-op,
// which is what makes "parsers called after cancellation are no-ops"
// and "a timeout that races a successful parse loses" true by
// construction rather than by careful call-site ordering.
func (c *Command) finish(payload string, err error, state State) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.payload = payload
	c.err = err
	c.state = state
	c.mu.Unlock()
	close(c.doneCh)
}

// Result returns the terminal payload/error. Only meaningful after
// <-c.doneCh has been observed to close.
func (c *Command) Result() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload, c.err
}
