// Package atengine is the Serial Port Engine: a single-threaded
// cooperative command queue and reader loop over one serial.Port,
// grounded in the open/close/read/write surface of
// github.com/daedaluz/goserial and the AT response classification of
// atparser. At most one command is ever in flight per port.
package atengine

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ttymodem/mmcore/atparser"
	"github.com/ttymodem/mmcore/metrics"
	"github.com/ttymodem/mmcore/mmerr"
	"github.com/ttymodem/mmcore/mmtypes"
	"github.com/ttymodem/mmcore/serial"
)

const readPollInterval = 200 * time.Millisecond

// bufferFullBytes is the advisory back-pressure threshold: an
// accumulation buffer past this size without reaching a terminator is
// almost certainly runaway, not a slow modem.
const bufferFullBytes = 64 * 1024

// SendOptions configures a single Send call.
type SendOptions struct {
	// Raw requests are written to the device and considered Complete
	// the instant the write succeeds; no response is awaited.
	Raw bool
	// Cached requests are served from the per-port response cache when
	// a prior identical request's payload is still cached. A
	// non-cached request flushes the whole cache before sending,
	// matching the "cached=false always invalidates" rule.
	Cached bool
}

// Port wraps a serial.Port with the command queue, accumulation
// buffer, unsolicited-handler table and response cache described by
// spec.md §4.3.
type Port struct {
	path string
	kind mmtypes.PortKind
	baud serial.CFlag

	logger  mmtypes.Logger
	metrics *metrics.Collector

	mu            sync.Mutex
	openCount     int
	raw           *serial.Port
	stopCh        chan struct{}
	readerDone    chan struct{}
	queue         []*Command
	current       *Command
	buf           []byte
	handlers      []*UnsolicitedHandler
	nextHandlerID int
	cache         *responseCache
	connected     bool
	flashing      bool
	removeEcho    bool
	sendDelay     time.Duration
	bufferFullCh  chan struct{}
}

// NewPort constructs a Port bound to path, not yet opened. cacheCapacity
// below the spec's floor of 8 is silently raised to 8.
func NewPort(path string, kind mmtypes.PortKind, baud serial.CFlag, logger mmtypes.Logger, mc *metrics.Collector, cacheCapacity int) *Port {
	if logger == nil {
		logger = mmtypes.NopLogger{}
	}
	return &Port{
		path:         path,
		kind:         kind,
		baud:         baud,
		logger:       logger,
		metrics:      mc,
		cache:        newResponseCache(cacheCapacity),
		bufferFullCh: make(chan struct{}, 1),
	}
}

func (p *Port) Path() string         { return p.path }
func (p *Port) Kind() mmtypes.PortKind { return p.kind }

// IsOpen reports whether the underlying device is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openCount > 0
}

// BufferFull returns the advisory back-pressure channel; a receive
// signals the accumulation buffer crossed bufferFullBytes without
// reaching a terminator.
func (p *Port) BufferFull() <-chan struct{} { return p.bufferFullCh }

// SetRemoveEcho toggles echo suppression for subsequently sent commands.
func (p *Port) SetRemoveEcho(on bool) {
	p.mu.Lock()
	p.removeEcho = on
	p.mu.Unlock()
}

// SetSendDelay paces outgoing bytes at one byte per d, per spec.md
// §4.3's inter-byte pacing option. d == 0 disables pacing.
func (p *Port) SetSendDelay(d time.Duration) {
	p.mu.Lock()
	p.sendDelay = d
	p.mu.Unlock()
}

// SetConnected suspends (true) or resumes (false) command dispatch; a
// data session in progress must not have AT commands interleaved onto
// the same wire.
func (p *Port) SetConnected(on bool) {
	p.mu.Lock()
	p.connected = on
	if !on {
		p.dispatchNextLocked()
	}
	p.mu.Unlock()
}

func (p *Port) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// AddUnsolicited registers fn to run whenever re matches the
// accumulation buffer, in registration order relative to other
// handlers. Returns an id for RemoveUnsolicited.
func (p *Port) AddUnsolicited(re *regexp.Regexp, fn func(match [][]byte)) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextHandlerID++
	id := p.nextHandlerID
	p.handlers = append(p.handlers, &UnsolicitedHandler{id: id, re: re, fn: fn})
	return id
}

func (p *Port) RemoveUnsolicited(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.handlers {
		if h.id == id {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

// Open opens the underlying device on the first call; subsequent calls
// before a matching Close only bump a refcount, per spec.md §4.1's
// reference-counted open/close.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openCount++
	if p.openCount > 1 {
		return nil
	}
	raw, err := serial.Open(p.path, serial.NewOptions())
	if err != nil {
		p.openCount--
		if os.IsNotExist(err) {
			return mmerr.Wrap(mmerr.SerialOpenFailedNoDevice, p.path, err)
		}
		return mmerr.Wrap(mmerr.SerialOpenFailed, p.path, err)
	}
	if err := raw.ConfigureAT(p.baud); err != nil {
		raw.Close()
		p.openCount--
		return mmerr.Wrap(mmerr.SerialOpenFailed, "configure", err)
	}
	p.raw = raw
	p.stopCh = make(chan struct{})
	p.readerDone = make(chan struct{})
	go p.readLoop()
	return nil
}

// TestAttachRaw attaches an already-open *serial.Port (typically one
// half of a serial.OpenPTY pair) to p and starts its reader loop,
// bypassing Open()'s path-based serial.Open. It exists so other
// packages' tests (atport, probe) can drive a Port against a fake
// modem without a real device path.
func TestAttachRaw(p *Port, raw *serial.Port) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openCount > 0 {
		return mmerr.New(mmerr.WrongState, "port already open")
	}
	p.raw = raw
	p.openCount = 1
	p.stopCh = make(chan struct{})
	p.readerDone = make(chan struct{})
	go p.readLoop()
	return nil
}

// Close drops one open reference; the device is closed and any
// queued/in-flight commands aborted once the last reference drops.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.openCount == 0 {
		p.mu.Unlock()
		return nil
	}
	p.openCount--
	if p.openCount > 0 {
		p.mu.Unlock()
		return nil
	}
	close(p.stopCh)
	raw := p.raw
	p.raw = nil
	p.cache.invalidate()
	p.mu.Unlock()

	<-p.readerDone
	raw.Close()

	p.mu.Lock()
	for _, c := range p.queue {
		c.finish("", mmerr.New(mmerr.Aborted, "port closed"), Cancelled)
	}
	p.queue = nil
	if p.current != nil {
		p.current.finish("", mmerr.New(mmerr.Aborted, "port closed"), Cancelled)
		p.current = nil
	}
	p.buf = nil
	p.mu.Unlock()
	return nil
}

func (p *Port) readLoop() {
	defer close(p.readerDone)
	buf := make([]byte, 4096)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		n, err := p.raw.ReadTimeout(buf, readPollInterval)
		if err != nil {
			if errors.Is(err, serial.ErrClosed) {
				return
			}
			continue
		}
		if n <= 0 {
			continue
		}
		data := append([]byte(nil), buf[:n]...)
		p.mu.Lock()
		p.onBytesLocked(data)
		p.mu.Unlock()
	}
}

func (p *Port) onBytesLocked(data []byte) {
	p.buf = append(p.buf, data...)

	if p.removeEcho {
		p.stripEchoLocked()
	}

	p.dispatchHandlersLocked()

	if len(p.buf) > bufferFullBytes {
		p.signalBufferFullLocked()
	}

	if p.current == nil || p.current.State() != AwaitingResponse {
		return
	}

	resp := atparser.Parse(p.buf, p.logger)
	switch resp.Outcome {
	case atparser.Incomplete:
		return
	case atparser.ParseFailed:
		cmd := p.current
		cmd.finish("", resp.Err, Failed)
		p.current = nil
		p.dispatchNextLocked()
	case atparser.Completed:
		if resp.Err != nil && p.flashing && mmerr.Is(resp.Err, mmerr.ConnectionNoCarrier) {
			// Dropping the line is expected while the baud is being
			// toggled for a flash; absorb it and keep waiting.
			p.buf = p.buf[resp.Consumed:]
			return
		}
		p.buf = p.buf[resp.Consumed:]
		cmd := p.current
		if resp.Err != nil {
			cmd.finish("", resp.Err, Failed)
		} else {
			cmd.finish(resp.Payload, nil, Complete)
			if cmd.Cached {
				p.cache.put(string(cmd.Request), resp.Payload)
			}
		}
		if p.metrics != nil {
			p.metrics.ObserveCommandLatency(p.path, time.Since(cmd.enqueuedAt).Seconds())
		}
		p.current = nil
		p.dispatchNextLocked()
	}
}

func (p *Port) signalBufferFullLocked() {
	select {
	case p.bufferFullCh <- struct{}{}:
	default:
	}
	if p.metrics != nil {
		p.metrics.IncBufferFull(p.path)
	}
}

// dispatchNextLocked pulls the next queued command and starts
// transmitting it, unless dispatch is suspended by an active data
// session. Must be called with p.mu held.
func (p *Port) dispatchNextLocked() {
	if p.connected || p.current != nil || len(p.queue) == 0 {
		return
	}
	cmd := p.queue[0]
	p.queue = p.queue[1:]
	p.current = cmd
	cmd.setState(Sending)
	go p.transmit(cmd)
}

func (p *Port) transmit(cmd *Command) {
	p.mu.Lock()
	raw := p.raw
	delay := p.sendDelay
	removeEcho := p.removeEcho
	p.mu.Unlock()

	if raw == nil {
		p.finishCurrent(cmd, "", mmerr.New(mmerr.SerialNotOpen, "port closed"), Failed)
		return
	}

	var writeErr error
	if delay > 0 {
		lim := rate.NewLimiter(rate.Every(delay), 1)
		for _, b := range cmd.Request {
			if err := lim.Wait(cmd.ctx); err != nil {
				writeErr = err
				break
			}
			if _, err := raw.Write([]byte{b}); err != nil {
				writeErr = err
				break
			}
		}
	} else {
		_, writeErr = raw.Write(cmd.Request)
	}

	if writeErr != nil {
		p.finishCurrent(cmd, "", mmerr.Wrap(mmerr.SerialSendFailed, "write", writeErr), Failed)
		return
	}

	p.mu.Lock()
	if removeEcho {
		cmd.echoPending = append([]byte(nil), cmd.Request...)
	}
	cmd.setState(AwaitingResponse)
	p.mu.Unlock()

	if cmd.Raw {
		p.finishCurrent(cmd, "", nil, Complete)
		return
	}

	timer := time.NewTimer(cmd.Timeout)
	defer timer.Stop()
	select {
	case <-cmd.doneCh:
		return
	case <-timer.C:
		select {
		case <-cmd.doneCh:
			return // a parse completed in the same instant; parse wins
		default:
		}
		p.finishCurrent(cmd, "", mmerr.New(mmerr.SerialResponseTimeout, "timeout waiting for response"), TimedOut)
		if p.metrics != nil {
			p.metrics.IncCommandTimeout(p.path)
		}
	case <-cmd.ctx.Done():
		select {
		case <-cmd.doneCh:
			return
		default:
		}
		p.finishCurrent(cmd, "", mmerr.New(mmerr.Cancelled, "command cancelled"), Cancelled)
	}
}

func (p *Port) finishCurrent(cmd *Command, payload string, err error, state State) {
	p.mu.Lock()
	cmd.finish(payload, err, state)
	if p.current == cmd {
		p.current = nil
		p.dispatchNextLocked()
	}
	p.mu.Unlock()
}

// Send enqueues req and blocks until it reaches a terminal state or ctx
// is cancelled. A cancelled-while-queued command is removed from the
// queue without ever touching the device; a cancelled in-flight
// command is cancelled cooperatively by the transmit goroutine.
func (p *Port) Send(ctx context.Context, req []byte, timeout time.Duration, opts SendOptions) (string, error) {
	p.mu.Lock()
	if p.openCount == 0 {
		p.mu.Unlock()
		return "", mmerr.New(mmerr.SerialNotOpen, "port not open")
	}
	if p.connected {
		p.mu.Unlock()
		return "", mmerr.New(mmerr.WrongState, "port busy: data session active")
	}
	if opts.Cached && !opts.Raw {
		if v, ok := p.cache.get(string(req)); ok {
			if p.metrics != nil {
				p.metrics.IncCacheHit(p.path)
			}
			p.mu.Unlock()
			return v, nil
		}
	}
	if !opts.Cached {
		p.cache.invalidate()
	}
	cmd := newCommand(ctx, req, timeout, opts.Raw, opts.Cached)
	p.queue = append(p.queue, cmd)
	p.dispatchNextLocked()
	p.mu.Unlock()

	select {
	case <-cmd.doneCh:
		return cmd.Result()
	case <-ctx.Done():
		p.mu.Lock()
		if cmd.State() == Queued {
			for i, c := range p.queue {
				if c == cmd {
					p.queue = append(p.queue[:i], p.queue[i+1:]...)
					break
				}
			}
			cmd.finish("", mmerr.New(mmerr.Cancelled, "command cancelled"), Cancelled)
		}
		p.mu.Unlock()
		<-cmd.doneCh
		return cmd.Result()
	}
}

// Flash drops the line for d by setting the baud to B0 and restoring
// the previous speed, per spec.md §4.3's flash operation. A NO CARRIER
// the in-flight command (if any) receives during the window is always
// absorbed rather than propagated; baud-change failures are absorbed
// only when ignoreErrors is set.
func (p *Port) Flash(ctx context.Context, d time.Duration, ignoreErrors bool) error {
	p.mu.Lock()
	raw := p.raw
	baud := p.baud
	p.flashing = true
	p.cache.invalidate()
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.flashing = false
		// A flash signals hang-up: the data session that owned the
		// line is over, so dispatch resumes for queued AT commands.
		p.connected = false
		p.dispatchNextLocked()
		p.mu.Unlock()
	}()

	if raw == nil {
		return mmerr.New(mmerr.SerialFlashFailed, "port not open")
	}

	if err := raw.SetBaud(0); err != nil && !ignoreErrors {
		return mmerr.Wrap(mmerr.SerialFlashFailed, "drop baud", err)
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return mmerr.New(mmerr.Cancelled, "flash cancelled")
	}

	if err := raw.SetBaud(baud); err != nil && !ignoreErrors {
		return mmerr.Wrap(mmerr.SerialFlashFailed, "restore baud", err)
	}
	return nil
}
