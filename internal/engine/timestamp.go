// Package engine holds the transport-independent pieces of the MIDI core:
// timestamp normalization, sysex capture buffers, UMP segmentation and the
// reception pipeline. None of the types here are safe for concurrent use;
// the owning port connection serializes access.
package engine

// Normalizer turns host ticks into deltas between accepted messages.
type Normalizer struct {
	scale    float64
	first    bool
	lastTick uint64
}

// NewNormalizer returns a normalizer whose ticks are worth scale seconds each.
func NewNormalizer(scale float64) *Normalizer {
	return &Normalizer{scale: scale, first: true}
}

// Reset makes the next accepted message carry timestamp 0.
func (n *Normalizer) Reset() {
	n.first = true
	n.lastTick = 0
}

// Delta computes the timestamp for a message at tick without accepting it.
// A tick older than the last accepted one yields 0.
func (n *Normalizer) Delta(tick uint64) float64 {
	if n.first || tick <= n.lastTick {
		return 0
	}
	return float64(tick-n.lastTick) * n.scale
}

// Accept records tick as the last accepted message time.
func (n *Normalizer) Accept(tick uint64) {
	n.first = false
	if tick > n.lastTick {
		n.lastTick = tick
	}
}
