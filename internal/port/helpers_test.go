package port

import (
	"errors"
	"sync"

	"github.com/leandrodaf/midiport/internal/logger"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

// reports collects everything a connection raises.
type reports struct {
	mu       sync.Mutex
	errors   []error
	warnings []error
}

func (r *reports) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *reports) onWarning(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, err)
}

func (r *reports) snapshot() (errs, warnings []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...), append([]error(nil), r.warnings...)
}

func testOptions(p contracts.Platform, r *reports) *contracts.ClientOptions {
	return &contracts.ClientOptions{
		Logger:            logger.NewNopLogger(),
		Platform:          p,
		IgnoreFlags:       &contracts.IgnoreFlags{},
		OnError:           r.onError,
		OnWarning:         r.onWarning,
		SysexBufferCount:  4,
		SysexBufferSize:   64,
		EventListCapacity: contracts.DefaultEventListCapacity,
	}
}

// fakePlatform is a scripted platform with one input and one output port.
type fakePlatform struct {
	mu       sync.Mutex
	ports    []contracts.PortIdentity
	openErr  error
	armErrAt int // 1-based ArmBuffer call that fails
	startErr error

	input  *fakeInput
	output *fakeOutput
}

func newFakePlatform(names ...string) *fakePlatform {
	f := &fakePlatform{}
	for i, n := range names {
		f.ports = append(f.ports, contracts.PortIdentity{Port: uint64(i + 1), PortName: n})
	}
	return f
}

func (f *fakePlatform) Name() string       { return "fake" }
func (f *fakePlatform) HostTime() uint64   { return 0 }
func (f *fakePlatform) TickScale() float64 { return 0.001 }

func (f *fakePlatform) Ports(contracts.Direction, contracts.PortFilter) ([]contracts.PortIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.PortIdentity(nil), f.ports...), nil
}

func (f *fakePlatform) OpenInput(_ contracts.PortIdentity, _ string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	return f.newInput(sink)
}

func (f *fakePlatform) OpenVirtualInput(_ string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	return f.newInput(sink)
}

func (f *fakePlatform) newInput(sink contracts.RawSink) (contracts.InputEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.input = &fakeInput{platform: f, sink: sink, armed: map[int]int{}}
	return f.input, nil
}

func (f *fakePlatform) OpenOutput(contracts.PortIdentity, string) (contracts.OutputEndpoint, error) {
	return f.newOutput()
}

func (f *fakePlatform) OpenVirtualOutput(string) (contracts.OutputEndpoint, error) {
	return f.newOutput()
}

func (f *fakePlatform) newOutput() (contracts.OutputEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.output = &fakeOutput{}
	return f.output, nil
}

// fakeInput captures sysex WinMM-style: Stop hands every armed buffer back empty.
type fakeInput struct {
	platform *fakePlatform
	sink     contracts.RawSink

	mu      sync.Mutex
	calls   int
	armed   map[int]int
	queue   []*contracts.SysexBuffer
	disarms int
	stops   int
	closes  int
	started bool
}

func (i *fakeInput) Start() error {
	if i.platform.startErr != nil {
		return i.platform.startErr
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.started = true
	return nil
}

func (i *fakeInput) Stop() error {
	i.mu.Lock()
	i.stops++
	i.started = false
	queue := i.queue
	i.queue = nil
	i.mu.Unlock()

	for _, buf := range queue {
		buf.SetRecorded(0)
		i.sink(contracts.RawEvent{Kind: contracts.RawLong, Buffer: buf})
	}
	return nil
}

func (i *fakeInput) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closes++
	return nil
}

func (i *fakeInput) ArmBuffer(buf *contracts.SysexBuffer) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	if i.platform.armErrAt != 0 && i.calls == i.platform.armErrAt {
		return errors.New("midiInAddBuffer failed")
	}
	i.armed[buf.Index()]++
	i.queue = append(i.queue, buf)
	return nil
}

func (i *fakeInput) DisarmBuffer(*contracts.SysexBuffer) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disarms++
	return nil
}

// complete pops the oldest armed buffer, fills it with data and delivers it.
func (i *fakeInput) complete(data []byte, tick uint64) {
	i.mu.Lock()
	buf := i.queue[0]
	i.queue = i.queue[1:]
	i.mu.Unlock()

	buf.SetRecorded(copy(buf.Data(), data))
	i.sink(contracts.RawEvent{Kind: contracts.RawLong, Buffer: buf, Tick: tick})
}

func (i *fakeInput) totalArms() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, c := range i.armed {
		n += c
	}
	return n
}

// fakeOutput is a byte-only output endpoint.
type fakeOutput struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closes  int
}

func (o *fakeOutput) SendBytes(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendErr != nil {
		return o.sendErr
	}
	o.sent = append(o.sent, append([]byte(nil), data...))
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return nil
}
