package loopback

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

var errAlreadyArmed = errors.New("sysex buffer already armed")

// inputEndpoint receives bytes published to a source or written to a virtual destination.
type inputEndpoint struct {
	bus     *Bus
	name    string
	sink    contracts.RawSink
	chunked bool
	detach  func()

	deliverMu sync.Mutex // one delivery at a time, like a driver thread

	mu      sync.Mutex
	started bool
	closed  bool
	armed   []*contracts.SysexBuffer
	current *contracts.SysexBuffer // buffer being filled
	open    bool                   // a sysex message has started but not ended
	dropped int
}

// chunkedInput exposes buffer arming on top of inputEndpoint.
type chunkedInput struct{ *inputEndpoint }

func (b *Bus) newInput(name string, sink contracts.RawSink) *inputEndpoint {
	return &inputEndpoint{bus: b, name: name, sink: sink, chunked: b.chunked}
}

func (e *inputEndpoint) wrap() contracts.InputEndpoint {
	if e.chunked {
		return chunkedInput{e}
	}
	return e
}

// Start begins delivery.
func (e *inputEndpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: %s", ErrPortGone, e.name)
	}
	e.started = true
	return nil
}

// Stop halts delivery and hands every armed buffer back empty.
func (e *inputEndpoint) Stop() error {
	e.mu.Lock()
	e.started = false
	e.open = false
	returned := e.armed
	if e.current != nil {
		returned = append(returned, e.current)
		e.current = nil
	}
	e.armed = nil
	e.mu.Unlock()

	for _, buf := range returned {
		buf.SetRecorded(0)
		e.sink(contracts.RawEvent{Kind: contracts.RawLong, Buffer: buf, Tick: e.bus.HostTime()})
	}
	return nil
}

// Close detaches the endpoint from the bus.
func (e *inputEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.started = false
	detach := e.detach
	e.mu.Unlock()

	if detach != nil {
		detach()
	}
	return nil
}

// Dropped counts sysex bytes lost because no buffer was armed.
func (e *inputEndpoint) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

func (c chunkedInput) ArmBuffer(buf *contracts.SysexBuffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: %s", ErrPortGone, c.name)
	}
	if slices.Contains(c.armed, buf) || c.current == buf {
		return errAlreadyArmed
	}
	c.armed = append(c.armed, buf)
	return nil
}

func (c chunkedInput) DisarmBuffer(buf *contracts.SysexBuffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = slices.DeleteFunc(c.armed, func(b *contracts.SysexBuffer) bool { return b == buf })
	if c.current == buf {
		c.current = nil
	}
	return nil
}

func (e *inputEndpoint) isStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// receive delivers data to the sink.
func (e *inputEndpoint) receive(data []byte, tick uint64) {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	if !e.isStarted() {
		return
	}
	if !e.chunked {
		e.sink(contracts.RawEvent{Kind: contracts.RawStream, Data: slices.Clone(data), Tick: tick})
		return
	}

	for i := 0; i < len(data); {
		if e.inSysex() || data[i] == 0xF0 {
			i += e.captureSysex(data[i:], tick)
			continue
		}
		n := shortLength(data[i])
		if i+n > len(data) {
			n = len(data) - i
		}
		e.sink(contracts.RawEvent{Kind: contracts.RawShort, Data: slices.Clone(data[i : i+n]), Tick: tick})
		i += n
	}
}

func (e *inputEndpoint) inSysex() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// captureSysex copies sysex bytes into armed buffers, completing a buffer when
// it is full or the message ends. It returns how many bytes it consumed.
func (e *inputEndpoint) captureSysex(data []byte, tick uint64) int {
	e.mu.Lock()
	e.open = true
	buf := e.current
	if buf == nil {
		if len(e.armed) == 0 {
			end := sysexEnd(data)
			e.dropped += end
			if data[end-1] == 0xF7 {
				e.open = false
			}
			e.mu.Unlock()
			return end
		}
		buf = e.armed[0]
		e.armed = e.armed[1:]
		buf.Reset()
		e.current = buf
	}

	n, done := 0, false
	used := buf.Recorded()
	for n < len(data) && used < buf.Capacity() {
		buf.Data()[used] = data[n]
		used++
		n++
		if data[n-1] == 0xF7 {
			done = true
			break
		}
	}
	buf.SetRecorded(used)
	if done {
		e.open = false
	}
	complete := done || used == buf.Capacity()
	if complete {
		e.current = nil
	}
	e.mu.Unlock()

	if complete {
		e.sink(contracts.RawEvent{Kind: contracts.RawLong, Buffer: buf, Tick: tick})
	}
	return n
}

// sysexEnd returns the length of the sysex prefix of data, terminator included.
func sysexEnd(data []byte) int {
	for i, b := range data {
		if b == 0xF7 {
			return i + 1
		}
	}
	return len(data)
}

// shortLength is the size of a non-sysex message in a chunked capture.
func shortLength(status byte) int {
	switch {
	case status < 0x80:
		return 1
	case status < 0xC0:
		return 3
	case status < 0xE0:
		return 2
	case status < 0xF0:
		return 3
	case status == 0xF1 || status == 0xF3:
		return 2
	case status == 0xF2:
		return 3
	default:
		return 1
	}
}

// outputEndpoint writes to one destination or, when virtual, publishes on its own source.
type outputEndpoint struct {
	bus     *Bus
	name    string
	dest    contracts.PortHandle
	source  contracts.PortHandle
	virtual bool

	mu     sync.Mutex
	closed bool
}

func (o *outputEndpoint) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// SendBytes forwards data.
func (o *outputEndpoint) SendBytes(data []byte) error {
	if o.isClosed() {
		return fmt.Errorf("%w: %s", ErrPortGone, o.name)
	}
	tick := o.bus.HostTime()
	if o.virtual {
		return o.bus.publish(o.source, data, tick)
	}
	d, ok := o.bus.lookupDest(o.dest)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPortGone, o.name)
	}
	switch {
	case d.device != nil:
		d.device.accept(data)
	case d.input != nil:
		d.input.receive(data, tick)
	}
	return nil
}

// SendEventList delivers a UMP event list. Only simulated devices accept UMP.
func (o *outputEndpoint) SendEventList(list *contracts.EventList) error {
	if o.isClosed() {
		return fmt.Errorf("%w: %s", ErrPortGone, o.name)
	}
	if o.virtual {
		return fmt.Errorf("loopback: UMP on virtual source: %w", contracts.ErrUnsupported)
	}
	d, ok := o.bus.lookupDest(o.dest)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPortGone, o.name)
	}
	if d.device == nil {
		return fmt.Errorf("loopback: UMP to byte-stream input: %w", contracts.ErrUnsupported)
	}
	d.device.acceptList(list)
	return nil
}

// Close releases the endpoint; a virtual source disappears from the bus.
func (o *outputEndpoint) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	if o.virtual {
		o.bus.removeSource(o.source)
	}
	return nil
}
