package engine

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// ErrSysexAborted is reported when a sysex message is cut short.
var ErrSysexAborted = errors.New("sysex message aborted")

// Pipeline turns raw platform events into logical MIDI messages.
type Pipeline struct {
	ignore contracts.IgnoreFlags
	clock  *Normalizer
	pool   *BufferPool
	warn   func(error)

	sysex   []byte
	inSysex bool
	out     []contracts.Message
}

// NewPipeline creates a pipeline stamping messages with clock. warn receives
// non-fatal conditions; it may be nil.
func NewPipeline(clock *Normalizer, warn func(error)) *Pipeline {
	if warn == nil {
		warn = func(error) {}
	}
	return &Pipeline{clock: clock, warn: warn}
}

// SetIgnoreFlags changes the message families that are dropped.
func (p *Pipeline) SetIgnoreFlags(flags contracts.IgnoreFlags) { p.ignore = flags }

// IgnoreFlags returns the active filter set.
func (p *Pipeline) IgnoreFlags() contracts.IgnoreFlags { return p.ignore }

// Attach binds the sysex buffer pool that long events belong to. nil detaches it.
func (p *Pipeline) Attach(pool *BufferPool) { p.pool = pool }

// Reset drops any partial message and rearms the first-message timestamp.
func (p *Pipeline) Reset() {
	p.sysex = nil
	p.inSysex = false
	p.clock.Reset()
}

// IsEmptyCompletion reports whether ev is a sysex buffer handed back with
// nothing recorded. Such events need no processing at all.
func IsEmptyCompletion(ev contracts.RawEvent) bool {
	if ev.Kind != contracts.RawLong && ev.Kind != contracts.RawLongError {
		return false
	}
	return ev.Buffer == nil || ev.Buffer.Recorded() == 0
}

// Process handles one raw event and returns the messages it completed, in order.
func (p *Pipeline) Process(ev contracts.RawEvent) []contracts.Message {
	p.out = nil
	switch ev.Kind {
	case contracts.RawShort:
		p.processShort(ev.Data, ev.Tick)
	case contracts.RawStream:
		p.processStream(ev.Data, ev.Tick)
	case contracts.RawLong, contracts.RawLongError:
		p.processLong(ev)
	}
	return p.out
}

func (p *Pipeline) processShort(data []byte, tick uint64) {
	if len(data) == 0 || !IsStatus(data[0]) {
		return
	}
	if p.inSysex && !IsRealtime(data[0]) {
		p.abortSysex(fmt.Errorf("%w: interrupted by status 0x%02X", ErrSysexAborted, data[0]))
	}
	n := MessageLength(data[0])
	if n == 0 {
		n = 1
	}
	if n > len(data) {
		n = len(data)
	}
	if p.filtered(data[0]) {
		return
	}
	p.emit(data[:n], tick)
}

func (p *Pipeline) processStream(data []byte, tick uint64) {
	for i := 0; i < len(data); {
		b := data[i]

		if p.inSysex {
			switch {
			case b == statusSysexEnd:
				p.appendSysex(b)
				p.finishSysex(tick)
				i++
			case IsRealtime(b):
				if !p.filtered(b) {
					p.emit(data[i:i+1], tick)
				}
				i++
			case IsStatus(b):
				p.abortSysex(fmt.Errorf("%w: interrupted by status 0x%02X", ErrSysexAborted, b))
			default:
				p.appendSysex(b)
				i++
			}
			continue
		}

		if !IsStatus(b) || b == statusSysexEnd {
			i++
			continue
		}
		if b == statusSysexStart {
			p.inSysex = true
			p.sysex = p.sysex[:0]
			p.appendSysex(b)
			i++
			continue
		}

		n := MessageLength(b)
		if i+n > len(data) {
			return
		}
		if !p.filtered(b) {
			p.emit(data[i:i+n], tick)
		}
		i += n
	}
}

func (p *Pipeline) processLong(ev contracts.RawEvent) {
	buf := ev.Buffer
	if buf == nil || buf.Recorded() == 0 {
		return
	}
	if p.pool == nil || !p.pool.Owns(buf) {
		return
	}

	chunk := buf.Captured()
	switch {
	case ev.Kind == contracts.RawLongError:
		p.warn(fmt.Errorf("%w: driver reported an error on buffer %d", ErrSysexAborted, buf.Index()))
		p.inSysex = false
		p.sysex = nil
	case p.ignore.Sysex:
	case chunk[0] == statusSysexStart:
		p.abortSysex(fmt.Errorf("%w: new sysex started before 0xF7", ErrSysexAborted))
		p.inSysex = true
		p.sysex = append(p.sysex, chunk...)
	case p.inSysex:
		p.sysex = append(p.sysex, chunk...)
	default:
		// Continuation of a message that was already dropped.
	}

	if err := p.pool.Rearm(buf); err != nil {
		p.warn(fmt.Errorf("re-arm sysex buffer %d: %w", buf.Index(), err))
	}

	if p.ignore.Sysex || !p.inSysex {
		return
	}
	if n := len(p.sysex); n > 0 && p.sysex[n-1] == statusSysexEnd {
		p.finishSysex(ev.Tick)
	}
}

func (p *Pipeline) appendSysex(b byte) {
	if p.ignore.Sysex {
		return
	}
	p.sysex = append(p.sysex, b)
}

func (p *Pipeline) finishSysex(tick uint64) {
	p.inSysex = false
	if !p.ignore.Sysex && len(p.sysex) > 0 {
		p.emit(p.sysex, tick)
	}
	p.sysex = nil
}

func (p *Pipeline) abortSysex(err error) {
	if p.inSysex && len(p.sysex) > 0 {
		p.warn(err)
	}
	p.inSysex = false
	p.sysex = nil
}

func (p *Pipeline) filtered(status byte) bool {
	switch status {
	case statusMTCQuarter, statusTimingClock:
		return p.ignore.Timing
	case statusActiveSense:
		return p.ignore.ActiveSensing
	}
	return false
}

// emit stamps and queues a copy of msg, then accepts its tick.
func (p *Pipeline) emit(msg []byte, tick uint64) {
	bytes := make([]byte, len(msg))
	copy(bytes, msg)
	p.out = append(p.out, contracts.Message{Bytes: bytes, Timestamp: p.clock.Delta(tick)})
	p.clock.Accept(tick)
}
