//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youpy/go-coremidi"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// Error definitions for CoreMIDI connection issues.
var (
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Platform binds CoreMIDI. Ticks are wall-clock nanoseconds taken when a
// packet reaches the read callback.
type Platform struct {
	logger contracts.Logger
	client coremidi.Client
}

// NewPlatform creates the CoreMIDI client every port of this process hangs off.
func NewPlatform(options *contracts.ClientOptions) (contracts.Platform, error) {
	client, err := coremidi.NewClient(options.ClientName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDriverError, err)
	}
	options.Logger.Info("MIDI client successfully created",
		options.Logger.Field().String("client", options.ClientName))

	return &Platform{logger: options.Logger, client: client}, nil
}

func (p *Platform) Name() string       { return "coremidi" }
func (p *Platform) HostTime() uint64   { return uint64(time.Now().UnixNano()) }
func (p *Platform) TickScale() float64 { return 1e-9 }

// Ports lists CoreMIDI sources for Input and destinations for Output. Every
// endpoint is reported as hardware: CoreMIDI does not expose which process
// owns a virtual endpoint through this binding.
func (p *Platform) Ports(dir contracts.Direction, filter contracts.PortFilter) ([]contracts.PortIdentity, error) {
	if !filter.Hardware {
		return nil, nil
	}
	switch dir {
	case contracts.Input:
		sources, err := coremidi.AllSources()
		if err != nil {
			return nil, fmt.Errorf("error listing MIDI sources: %w", err)
		}
		return sourceIdentities(sources), nil
	case contracts.Output:
		destinations, err := coremidi.AllDestinations()
		if err != nil {
			return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
		}
		return destinationIdentities(destinations), nil
	}
	return nil, fmt.Errorf("%w: direction %d", contracts.ErrInvalidParameter, dir)
}

func sourceIdentities(sources []coremidi.Source) []contracts.PortIdentity {
	names := make([]endpointNames, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		names[i] = endpointNames{name: source.Name(), entity: entity.Name(), manufacturer: entity.Manufacturer()}
	}
	return identities(names)
}

func destinationIdentities(destinations []coremidi.Destination) []contracts.PortIdentity {
	names := make([]endpointNames, len(destinations))
	for i, destination := range destinations {
		entity := destination.Entity()
		names[i] = endpointNames{name: destination.Name(), entity: entity.Name(), manufacturer: entity.Manufacturer()}
	}
	return identities(names)
}

func (p *Platform) findSource(id contracts.PortIdentity) (coremidi.Source, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return coremidi.Source{}, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if i := indexOf(sourceIdentities(sources), id); i >= 0 {
		return sources[i], nil
	}
	return coremidi.Source{}, fmt.Errorf("%w: %s", ErrInvalidMIDIDevice, id)
}

func (p *Platform) findDestination(id contracts.PortIdentity) (coremidi.Destination, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return coremidi.Destination{}, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	if i := indexOf(destinationIdentities(destinations), id); i >= 0 {
		return destinations[i], nil
	}
	return coremidi.Destination{}, fmt.Errorf("%w: %s", ErrInvalidMIDIDevice, id)
}

// OpenInput creates an input port for source id. Packets flow after Start.
func (p *Platform) OpenInput(id contracts.PortIdentity, name string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	source, err := p.findSource(id)
	if err != nil {
		return nil, err
	}
	in := &input{logger: p.logger, sink: sink, source: source}
	in.port, err = coremidi.NewInputPort(p.client, name, in.handleMIDIMessage)
	if err != nil {
		p.logger.Error(ErrCreateInputPort.Error(), p.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	p.logger.Info("MIDI input port created", p.logger.Field().String("source", id.String()))
	return in, nil
}

// OpenVirtualInput publishes a CoreMIDI destination other applications can send to.
func (p *Platform) OpenVirtualInput(name string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	in := &input{logger: p.logger, sink: sink, virtual: true}
	_, err := coremidi.NewDestination(p.client, name, func(value []byte, _ uint64) {
		in.deliver(value)
	})
	if err != nil {
		return nil, fmt.Errorf("create virtual destination %q: %w", name, err)
	}
	return in, nil
}

// OpenOutput creates an output port bound to destination id.
func (p *Platform) OpenOutput(id contracts.PortIdentity, name string) (contracts.OutputEndpoint, error) {
	destination, err := p.findDestination(id)
	if err != nil {
		return nil, err
	}
	port, err := coremidi.NewOutputPort(p.client, name)
	if err != nil {
		p.logger.Error(ErrCreateOutputPort.Error(), p.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	return &output{port: &port, destination: &destination}, nil
}

// OpenVirtualOutput publishes a CoreMIDI source other applications can read from.
func (p *Platform) OpenVirtualOutput(name string) (contracts.OutputEndpoint, error) {
	source, err := coremidi.NewSource(p.client, name)
	if err != nil {
		return nil, fmt.Errorf("create virtual source %q: %w", name, err)
	}
	return &output{source: &source}, nil
}

// input forwards packets to the sink while started. The read callback runs
// on a CoreMIDI thread.
type input struct {
	logger  contracts.Logger
	sink    contracts.RawSink
	source  coremidi.Source
	port    coremidi.InputPort
	virtual bool

	started atomic.Bool
	mu      sync.Mutex
	conn    internalPortConnection
	closed  bool
}

func (i *input) handleMIDIMessage(_ coremidi.Source, packet coremidi.Packet) {
	i.deliver(packet.Data)
}

func (i *input) deliver(data []byte) {
	if !i.started.Load() || len(data) == 0 {
		return
	}
	i.sink(contracts.RawEvent{
		Kind: contracts.RawStream,
		Data: data,
		Tick: uint64(time.Now().UnixNano()),
	})
}

func (i *input) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return contracts.ErrNotOpen
	}
	if !i.virtual && i.conn == nil {
		conn, err := i.port.Connect(i.source)
		if err != nil {
			i.logger.Error(ErrMIDIConnectionError.Error(), i.logger.Field().Error("error", err))
			return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
		}
		i.conn = conn
	}
	i.started.Store(true)
	return nil
}

func (i *input) Stop() error {
	i.started.Store(false)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn != nil {
		i.conn.Disconnect()
		i.conn = nil
	}
	return nil
}

func (i *input) Close() error {
	if err := i.Stop(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// output sends through an output port, or injects from a virtual source.
type output struct {
	port        *coremidi.OutputPort
	destination *coremidi.Destination
	source      *coremidi.Source

	closed atomic.Bool
}

func (o *output) SendBytes(data []byte) error {
	if o.closed.Load() {
		return contracts.ErrNotOpen
	}
	packet := coremidi.NewPacket(data, 0)
	if o.source != nil {
		return packet.Received(o.source)
	}
	return packet.Send(o.port, o.destination)
}

func (o *output) Close() error {
	o.closed.Store(true)
	return nil
}
