// Package gomididrv adapts any gitlab.com/gomidi/midi/v2 driver (rtmidi,
// portmidi, webmidi, testdrv) to contracts.Platform.
package gomididrv

import (
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// virtualDriver is implemented by drivers that can create software ports, such as rtmididrv.
type virtualDriver interface {
	OpenVirtualIn(name string) (drivers.In, error)
	OpenVirtualOut(name string) (drivers.Out, error)
}

// Platform drives a gomidi driver. Listen reports milliseconds, so one tick is 1ms.
type Platform struct {
	drv    drivers.Driver
	logger contracts.Logger
	start  time.Time

	mu      sync.Mutex
	virtual map[string]struct{}
}

// New wraps drv.
func New(drv drivers.Driver, logger contracts.Logger) *Platform {
	return &Platform{
		drv:     drv,
		logger:  logger,
		start:   time.Now(),
		virtual: make(map[string]struct{}),
	}
}

// Name identifies the backend.
func (p *Platform) Name() string { return "gomidi/" + p.drv.String() }

// HostTime returns milliseconds since the platform was created.
func (p *Platform) HostTime() uint64 { return uint64(time.Since(p.start).Milliseconds()) }

// TickScale converts one millisecond tick to seconds.
func (p *Platform) TickScale() float64 { return 0.001 }

// Ports lists driver ports. Ports this process created as virtual are
// reported as virtual; everything else counts as hardware.
func (p *Platform) Ports(dir contracts.Direction, filter contracts.PortFilter) ([]contracts.PortIdentity, error) {
	var ports []drivers.Port
	switch dir {
	case contracts.Input:
		ins, err := p.drv.Ins()
		if err != nil {
			return nil, fmt.Errorf("%s: list inputs: %w", p.Name(), err)
		}
		for _, in := range ins {
			ports = append(ports, in)
		}
	case contracts.Output:
		outs, err := p.drv.Outs()
		if err != nil {
			return nil, fmt.Errorf("%s: list outputs: %w", p.Name(), err)
		}
		for _, out := range outs {
			ports = append(ports, out)
		}
	default:
		return nil, fmt.Errorf("%w: direction %d", contracts.ErrInvalidParameter, dir)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]contracts.PortIdentity, 0, len(ports))
	for _, port := range ports {
		_, virtual := p.virtual[port.String()]
		if (virtual && !filter.Virtual) || (!virtual && !filter.Hardware) {
			continue
		}
		ids = append(ids, p.identity(port))
	}
	return ids, nil
}

func (p *Platform) identity(port drivers.Port) contracts.PortIdentity {
	return contracts.PortIdentity{
		Port:        contracts.PortHandle(port.Number()),
		DeviceName:  p.drv.String(),
		PortName:    port.String(),
		DisplayName: port.String(),
	}
}

func (p *Platform) findIn(id contracts.PortIdentity) (drivers.In, error) {
	ins, err := p.drv.Ins()
	if err != nil {
		return nil, err
	}
	for _, in := range ins {
		if p.identity(in) == id {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: input %s not found", contracts.ErrInvalidParameter, id)
}

func (p *Platform) findOut(id contracts.PortIdentity) (drivers.Out, error) {
	outs, err := p.drv.Outs()
	if err != nil {
		return nil, err
	}
	for _, out := range outs {
		if p.identity(out) == id {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: output %s not found", contracts.ErrInvalidParameter, id)
}

// OpenInput opens the driver port behind id. Delivery starts with Start.
func (p *Platform) OpenInput(id contracts.PortIdentity, _ string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	in, err := p.findIn(id)
	if err != nil {
		return nil, err
	}
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("open %s: %w", id, err)
		}
	}
	return &input{in: in, sink: sink, logger: p.logger}, nil
}

// OpenVirtualInput creates a software destination when the driver supports it.
func (p *Platform) OpenVirtualInput(name string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	vd, ok := p.drv.(virtualDriver)
	if !ok {
		return nil, fmt.Errorf("%s: virtual input: %w", p.Name(), contracts.ErrUnsupported)
	}
	in, err := vd.OpenVirtualIn(name)
	if err != nil {
		return nil, err
	}
	p.markVirtual(in.String())
	return &input{in: in, sink: sink, logger: p.logger, release: func() { p.unmarkVirtual(in.String()) }}, nil
}

// OpenOutput opens the driver port behind id.
func (p *Platform) OpenOutput(id contracts.PortIdentity, _ string) (contracts.OutputEndpoint, error) {
	out, err := p.findOut(id)
	if err != nil {
		return nil, err
	}
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("open %s: %w", id, err)
		}
	}
	return &output{out: out}, nil
}

// OpenVirtualOutput creates a software source when the driver supports it.
func (p *Platform) OpenVirtualOutput(name string) (contracts.OutputEndpoint, error) {
	vd, ok := p.drv.(virtualDriver)
	if !ok {
		return nil, fmt.Errorf("%s: virtual output: %w", p.Name(), contracts.ErrUnsupported)
	}
	out, err := vd.OpenVirtualOut(name)
	if err != nil {
		return nil, err
	}
	p.markVirtual(out.String())
	return &output{out: out, release: func() { p.unmarkVirtual(out.String()) }}, nil
}

func (p *Platform) markVirtual(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.virtual[name] = struct{}{}
}

func (p *Platform) unmarkVirtual(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.virtual, name)
}
