package engine

import "github.com/leandrodaf/midiport/sdk/contracts"

// umpWordCounts maps a UMP message type (top nibble of the first word) to its group size in words.
var umpWordCounts = [16]int{
	1, 1, 1, 2, 2, 4, 1, 1,
	2, 2, 2, 3, 3, 4, 4, 4,
}

// UMPGroupWords returns how many words the group starting with first occupies.
func UMPGroupWords(first uint32) int {
	return umpWordCounts[first>>28]
}

// FlushFunc sends one filled event list. Its error is reported, not fatal.
type FlushFunc func(list *contracts.EventList) error

// eventListCursor is the in-progress container of one Segment call.
type eventListCursor struct {
	list     *contracts.EventList
	capacity int
}

func newEventListCursor(timestamp uint64, capacity int) *eventListCursor {
	return &eventListCursor{
		list:     &contracts.EventList{Timestamp: timestamp, Words: make([]uint32, 0, capacity/4)},
		capacity: capacity,
	}
}

// add appends group, failing when it would push the list past capacity.
func (c *eventListCursor) add(group []uint32) bool {
	if c.list.Size()+len(group)*4 > c.capacity {
		return false
	}
	c.list.Words = append(c.list.Words, group...)
	return true
}

func (c *eventListCursor) empty() bool { return len(c.list.Words) == 0 }

// Segmenter packs UMP word streams into bounded event lists.
type Segmenter struct {
	capacity int
	flush    FlushFunc
}

// NewSegmenter creates a segmenter emitting lists of at most capacity bytes.
// Capacities below one full 4-word group are raised to it.
func NewSegmenter(capacity int, flush FlushFunc) *Segmenter {
	if capacity <= 0 {
		capacity = contracts.DefaultEventListCapacity
	}
	if capacity < 16 {
		capacity = 16
	}
	return &Segmenter{capacity: capacity, flush: flush}
}

// Capacity is the byte bound of each emitted list.
func (s *Segmenter) Capacity() int { return s.capacity }

// Segment sends words as few event lists as possible. Group boundaries are
// never split; a trailing incomplete group is sent as-is. It returns the
// number of flushes and the flush errors in emission order.
func (s *Segmenter) Segment(timestamp uint64, words []uint32) (int, []error) {
	var (
		flushes int
		errs    []error
	)
	emit := func(c *eventListCursor) {
		flushes++
		if err := s.flush(c.list); err != nil {
			errs = append(errs, err)
		}
	}

	cursor := newEventListCursor(timestamp, s.capacity)
	for len(words) > 0 {
		n := UMPGroupWords(words[0])
		if n > len(words) {
			n = len(words)
		}
		group := words[:n]
		words = words[n:]

		if cursor.add(group) {
			continue
		}
		emit(cursor)
		cursor = newEventListCursor(timestamp, s.capacity)
		cursor.add(group)
	}

	if !cursor.empty() {
		emit(cursor)
	}
	return flushes, errs
}
