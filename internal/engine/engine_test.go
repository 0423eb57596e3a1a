package engine

import (
	"errors"
	"sync"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// recordingArmer is a BufferArmer that records every call.
type recordingArmer struct {
	mu        sync.Mutex
	armed     map[int]int
	disarmed  map[int]int
	failArmAt int // 1-based arm call that fails; 0 never fails
	calls     int
}

func newRecordingArmer() *recordingArmer {
	return &recordingArmer{armed: map[int]int{}, disarmed: map[int]int{}}
}

func (a *recordingArmer) ArmBuffer(buf *contracts.SysexBuffer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failArmAt != 0 && a.calls == a.failArmAt {
		return errors.New("add buffer failed")
	}
	a.armed[buf.Index()]++
	return nil
}

func (a *recordingArmer) DisarmBuffer(buf *contracts.SysexBuffer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmed[buf.Index()]++
	return nil
}

func (a *recordingArmer) totalArms() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.armed {
		n += c
	}
	return n
}

// fill copies chunk into buf as if the driver captured it.
func fill(buf *contracts.SysexBuffer, chunk []byte) {
	n := copy(buf.Data(), chunk)
	buf.SetRecorded(n)
}
