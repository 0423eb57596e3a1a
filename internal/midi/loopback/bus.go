// Package loopback provides an in-process MIDI platform. Simulated devices
// and virtual ports are wired together on a Bus; everything sent to a port
// is delivered synchronously on the sender's goroutine.
package loopback

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

const (
	hardwareClient contracts.ClientHandle = 0
	virtualClient  contracts.ClientHandle = 1
)

// ErrPortGone is returned when the target port was removed from the bus.
var ErrPortGone = errors.New("loopback port no longer exists")

// Option configures a Bus.
type Option func(*Bus)

// WithChunkedSysex makes inputs capture sysex in caller-supplied buffers,
// the way WinMM does, instead of delivering it inline.
func WithChunkedSysex() Option {
	return func(b *Bus) { b.chunked = true }
}

// WithClock replaces the host clock. scale converts one tick to seconds.
func WithClock(now func() uint64, scale float64) Option {
	return func(b *Bus) {
		b.now = now
		b.scale = scale
	}
}

// WithClientName names the bus client; virtual ports report it as their device.
func WithClientName(name string) Option {
	return func(b *Bus) { b.clientName = name }
}

// Bus is an in-process MIDI fabric implementing contracts.Platform.
type Bus struct {
	chunked bool
	now     func() uint64
	scale   float64

	mu          sync.Mutex
	clientName  string
	next        contracts.PortHandle
	sources     map[contracts.PortHandle]*source
	dests       map[contracts.PortHandle]*dest
	watchers    map[int]func()
	nextWatcher int
	openErr     error
}

// source is a readable port: a device's MIDI out or one of our virtual outputs.
type source struct {
	id        contracts.PortIdentity
	virtual   bool
	listeners []*inputEndpoint
}

// dest is a writable port: a device's MIDI in or one of our virtual inputs.
type dest struct {
	id      contracts.PortIdentity
	virtual bool
	device  *Device
	input   *inputEndpoint
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	start := time.Now()
	b := &Bus{
		now:        func() uint64 { return uint64(time.Since(start)) },
		scale:      1e-9,
		clientName: "loopback",
		next:       1,
		sources:    make(map[contracts.PortHandle]*source),
		dests:      make(map[contracts.PortHandle]*dest),
		watchers:   make(map[int]func()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the backend.
func (b *Bus) Name() string { return "loopback" }

// HostTime samples the bus clock.
func (b *Bus) HostTime() uint64 { return b.now() }

// TickScale converts one tick to seconds.
func (b *Bus) TickScale() float64 { return b.scale }

// FailNextOpen makes the next Open* call fail with err.
func (b *Bus) FailNextOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// SetClientName renames the client reported by virtual ports created afterwards.
func (b *Bus) SetClientName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty client name", contracts.ErrInvalidParameter)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clientName = name
	return nil
}

// SetPortName is accepted for symmetry; loopback port names are fixed at creation.
func (b *Bus) SetPortName(string) error {
	return fmt.Errorf("loopback: port rename: %w", contracts.ErrUnsupported)
}

// Ports lists sources for Input and destinations for Output, oldest first.
func (b *Bus) Ports(dir contracts.Direction, filter contracts.PortFilter) ([]contracts.PortIdentity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ports []contracts.PortIdentity
	keep := func(virtual bool) bool {
		return (virtual && filter.Virtual) || (!virtual && filter.Hardware)
	}
	switch dir {
	case contracts.Input:
		for _, s := range b.sources {
			if keep(s.virtual) {
				ports = append(ports, s.id)
			}
		}
	case contracts.Output:
		for _, d := range b.dests {
			if keep(d.virtual) {
				ports = append(ports, d.id)
			}
		}
	default:
		return nil, fmt.Errorf("%w: direction %d", contracts.ErrInvalidParameter, dir)
	}
	slices.SortFunc(ports, func(a, c contracts.PortIdentity) int {
		switch {
		case a.Port < c.Port:
			return -1
		case a.Port > c.Port:
			return 1
		}
		return 0
	})
	return ports, nil
}

// WatchPorts calls notify after every port addition or removal.
func (b *Bus) WatchPorts(notify func()) (func(), error) {
	if notify == nil {
		return nil, fmt.Errorf("%w: nil notify", contracts.ErrInvalidParameter)
	}
	b.mu.Lock()
	id := b.nextWatcher
	b.nextWatcher++
	b.watchers[id] = notify
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}, nil
}

// changed notifies watchers. It must be called without b.mu held.
func (b *Bus) changed() {
	b.mu.Lock()
	watchers := make([]func(), 0, len(b.watchers))
	for _, w := range b.watchers {
		watchers = append(watchers, w)
	}
	b.mu.Unlock()
	for _, w := range watchers {
		w()
	}
}

func (b *Bus) takeOpenErr() error {
	err := b.openErr
	b.openErr = nil
	return err
}

func (b *Bus) identity(client contracts.ClientHandle, device, port string) contracts.PortIdentity {
	h := b.next
	b.next++
	return contracts.PortIdentity{
		Client:       client,
		Port:         h,
		Manufacturer: "loopback",
		DeviceName:   device,
		PortName:     port,
		DisplayName:  device + ": " + port,
	}
}

// OpenInput connects to a source.
func (b *Bus) OpenInput(id contracts.PortIdentity, name string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeOpenErr(); err != nil {
		return nil, err
	}
	src, ok := b.sources[id.Port]
	if !ok || src.id != id {
		return nil, fmt.Errorf("%w: %s", ErrPortGone, id)
	}
	ep := b.newInput(name, sink)
	ep.detach = func() { b.unlisten(id.Port, ep) }
	src.listeners = append(src.listeners, ep)
	return ep.wrap(), nil
}

// OpenVirtualInput creates a virtual destination.
func (b *Bus) OpenVirtualInput(name string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	b.mu.Lock()
	if err := b.takeOpenErr(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	id := b.identity(virtualClient, b.clientName, name)
	ep := b.newInput(name, sink)
	b.dests[id.Port] = &dest{id: id, virtual: true, input: ep}
	ep.detach = func() { b.removeDest(id.Port) }
	b.mu.Unlock()

	b.changed()
	return ep.wrap(), nil
}

// OpenOutput connects to a destination.
func (b *Bus) OpenOutput(id contracts.PortIdentity, name string) (contracts.OutputEndpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeOpenErr(); err != nil {
		return nil, err
	}
	d, ok := b.dests[id.Port]
	if !ok || d.id != id {
		return nil, fmt.Errorf("%w: %s", ErrPortGone, id)
	}
	return &outputEndpoint{bus: b, name: name, dest: id.Port}, nil
}

// OpenVirtualOutput creates a virtual source.
func (b *Bus) OpenVirtualOutput(name string) (contracts.OutputEndpoint, error) {
	b.mu.Lock()
	if err := b.takeOpenErr(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	id := b.identity(virtualClient, b.clientName, name)
	b.sources[id.Port] = &source{id: id, virtual: true}
	b.mu.Unlock()

	b.changed()
	return &outputEndpoint{bus: b, name: name, source: id.Port, virtual: true}, nil
}

func (b *Bus) unlisten(handle contracts.PortHandle, ep *inputEndpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if src, ok := b.sources[handle]; ok {
		src.listeners = slices.DeleteFunc(src.listeners, func(l *inputEndpoint) bool { return l == ep })
	}
}

func (b *Bus) removeDest(handle contracts.PortHandle) {
	b.mu.Lock()
	delete(b.dests, handle)
	b.mu.Unlock()
	b.changed()
}

func (b *Bus) removeSource(handle contracts.PortHandle) {
	b.mu.Lock()
	delete(b.sources, handle)
	b.mu.Unlock()
	b.changed()
}

// publish delivers data to every input listening on a source.
func (b *Bus) publish(handle contracts.PortHandle, data []byte, tick uint64) error {
	b.mu.Lock()
	src, ok := b.sources[handle]
	var listeners []*inputEndpoint
	if ok {
		listeners = slices.Clone(src.listeners)
	}
	b.mu.Unlock()

	if !ok {
		return ErrPortGone
	}
	for _, l := range listeners {
		l.receive(data, tick)
	}
	return nil
}

// lookupDest returns the destination behind handle.
func (b *Bus) lookupDest(handle contracts.PortHandle) (*dest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.dests[handle]
	return d, ok
}
