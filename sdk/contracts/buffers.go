package contracts

// SysexBuffer is a fixed-capacity capture buffer handed to the platform.
// The platform fills Data() and records the captured length with SetRecorded.
type SysexBuffer struct {
	index    int
	data     []byte
	recorded int
}

// NewSysexBuffer allocates a buffer of the given capacity tagged with index.
func NewSysexBuffer(index, capacity int) *SysexBuffer {
	return &SysexBuffer{index: index, data: make([]byte, capacity)}
}

// Index is the buffer's slot in its pool.
func (b *SysexBuffer) Index() int { return b.index }

// Capacity is the number of bytes the platform may write.
func (b *SysexBuffer) Capacity() int { return len(b.data) }

// Data is the full writable region.
func (b *SysexBuffer) Data() []byte { return b.data }

// Recorded is the number of bytes captured by the last fill.
func (b *SysexBuffer) Recorded() int { return b.recorded }

// SetRecorded records how many bytes the platform captured, clamped to capacity.
func (b *SysexBuffer) SetRecorded(n int) {
	switch {
	case n < 0:
		n = 0
	case n > len(b.data):
		n = len(b.data)
	}
	b.recorded = n
}

// Captured returns the captured bytes.
func (b *SysexBuffer) Captured() []byte { return b.data[:b.recorded] }

// Reset clears the recorded length before the buffer is handed out again.
func (b *SysexBuffer) Reset() { b.recorded = 0 }

// DefaultEventListCapacity is the largest UMP event list payload, in bytes.
const DefaultEventListCapacity = 65535

// EventList is one bounded UMP container sent atomically by a packet transport.
type EventList struct {
	Timestamp uint64   // Host tick the list is scheduled for.
	Words     []uint32 // Concatenated UMP groups.
}

// Size is the payload size in bytes.
func (l *EventList) Size() int { return len(l.Words) * 4 }
