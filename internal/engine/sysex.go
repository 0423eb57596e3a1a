package engine

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/midiport/sdk/contracts"
	"go.uber.org/multierr"
)

var (
	// ErrEmptyCompletion is returned when a buffer with nothing recorded is offered for re-arming.
	ErrEmptyCompletion = errors.New("sysex buffer completed with zero bytes")
	// ErrPoolReleased is returned for buffers that no longer belong to an armed pool.
	ErrPoolReleased = errors.New("sysex buffer pool released")
)

// BufferPool owns the sysex capture buffers of one open input.
// Buffers are only reachable through the pool while it is armed, so a
// buffer delivered after Release is recognized and ignored.
type BufferPool struct {
	buffers []*contracts.SysexBuffer
	armer   contracts.BufferArmer
}

// NewBufferPool allocates count buffers of size bytes each.
func NewBufferPool(count, size int) *BufferPool {
	if count <= 0 {
		count = contracts.DefaultSysexBufferCount
	}
	if size <= 0 {
		size = contracts.DefaultSysexBufferSize
	}
	buffers := make([]*contracts.SysexBuffer, count)
	for i := range buffers {
		buffers[i] = contracts.NewSysexBuffer(i, size)
	}
	return &BufferPool{buffers: buffers}
}

// Len is the number of buffers held by the pool.
func (p *BufferPool) Len() int { return len(p.buffers) }

// Buffers returns the pool's buffers in index order.
func (p *BufferPool) Buffers() []*contracts.SysexBuffer { return p.buffers }

// ArmAll submits every buffer to armer. On failure, buffers armed so far are
// withdrawn and the pool is released.
func (p *BufferPool) ArmAll(armer contracts.BufferArmer) error {
	if p.buffers == nil {
		return ErrPoolReleased
	}
	p.armer = armer
	for i, buf := range p.buffers {
		buf.Reset()
		if err := armer.ArmBuffer(buf); err != nil {
			for _, armed := range p.buffers[:i] {
				_ = armer.DisarmBuffer(armed)
			}
			p.buffers = nil
			p.armer = nil
			return fmt.Errorf("arm sysex buffer %d: %w", i, err)
		}
	}
	return nil
}

// Owns reports whether buf is a live buffer of this pool.
func (p *BufferPool) Owns(buf *contracts.SysexBuffer) bool {
	if buf == nil {
		return false
	}
	i := buf.Index()
	return i >= 0 && i < len(p.buffers) && p.buffers[i] == buf
}

// Rearm resubmits a completed buffer. Buffers with nothing recorded are never
// resubmitted: some drivers hand them back during shutdown and hang if they
// are queued again.
func (p *BufferPool) Rearm(buf *contracts.SysexBuffer) error {
	if buf.Recorded() == 0 {
		return ErrEmptyCompletion
	}
	if p.armer == nil || !p.Owns(buf) {
		return ErrPoolReleased
	}
	buf.Reset()
	return p.armer.ArmBuffer(buf)
}

// Release withdraws every buffer regardless of arm state and drops them.
// Calling Release more than once is harmless.
func (p *BufferPool) Release() error {
	var err error
	if p.armer != nil {
		for _, buf := range p.buffers {
			err = multierr.Append(err, p.armer.DisarmBuffer(buf))
		}
	}
	p.buffers = nil
	p.armer = nil
	return err
}
