package port

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midiport/internal/engine"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

var _ contracts.OutputPort = (*Output)(nil)

// Output is the state machine of one output connection.
type Output struct {
	lister
	logger   contracts.Logger
	capacity int

	mu       sync.Mutex
	state    contracts.ConnectionState
	endpoint contracts.OutputEndpoint
	virtual  bool
}

// NewOutput creates an output connection in the Uninitialized state.
func NewOutput(opts *contracts.ClientOptions) *Output {
	return &Output{
		lister: lister{
			platform: opts.Platform,
			dir:      contracts.Output,
			report:   newReporter(opts),
		},
		logger:   opts.Logger,
		capacity: opts.EventListCapacity,
	}
}

// State returns the current lifecycle state.
func (o *Output) State() contracts.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsPortOpen reports whether the output is Open.
func (o *Output) IsPortOpen() bool {
	return o.State() == contracts.Open
}

// OpenPort connects to the index-th visible output port.
func (o *Output) OpenPort(index int, name string) error {
	return o.openResolved("Output.OpenPort", index, nil, name)
}

// OpenPortByIdentity connects to the output port with identity id.
func (o *Output) OpenPortByIdentity(id contracts.PortIdentity, name string) error {
	return o.openResolved("Output.OpenPortByIdentity", -1, &id, name)
}

func (o *Output) openResolved(op string, index int, id *contracts.PortIdentity, name string) error {
	ports, err := o.platform.Ports(contracts.Output, contracts.AllPorts)
	if err != nil {
		return o.report.fail(contracts.KindDriverError, op, err)
	}
	target, kind, err := resolve(ports, index, id)
	if err != nil {
		return o.report.fail(kind, op, err)
	}
	return o.open(op, false, func() (contracts.OutputEndpoint, error) {
		return o.platform.OpenOutput(target, name)
	})
}

// OpenVirtualPort creates a virtual source other applications can read from.
func (o *Output) OpenVirtualPort(name string) error {
	return o.open("Output.OpenVirtualPort", true, func() (contracts.OutputEndpoint, error) {
		return o.platform.OpenVirtualOutput(name)
	})
}

func (o *Output) open(op string, virtual bool, create func() (contracts.OutputEndpoint, error)) error {
	o.mu.Lock()
	e := o.openLocked(op, virtual, create)
	o.mu.Unlock()

	if e != nil {
		return o.report.raise(e)
	}
	o.logger.Debug("MIDI output opened",
		o.logger.Field().String("op", op),
		o.logger.Field().Bool("virtual", virtual),
		o.logger.Field().String("backend", o.platform.Name()))
	return nil
}

func (o *Output) openLocked(op string, virtual bool, create func() (contracts.OutputEndpoint, error)) *contracts.MIDIError {
	if o.state == contracts.Open {
		if virtual && o.virtual {
			return contracts.NewError(contracts.KindDriverError, op, errors.New("a virtual output port already exists"))
		}
		return contracts.NewError(contracts.KindWarning, op, errors.New("a valid connection already exists"))
	}

	endpoint, err := create()
	if err != nil {
		o.state = contracts.Closed
		return contracts.NewError(contracts.KindDriverError, op, err)
	}
	o.endpoint = endpoint
	o.virtual = virtual
	o.state = contracts.Open
	return nil
}

// ClosePort releases the endpoint. It may be called from any state, any number of times.
func (o *Output) ClosePort() error {
	o.mu.Lock()
	o.state = contracts.Closed
	endpoint := o.endpoint
	o.endpoint = nil
	o.virtual = false
	var err error
	if endpoint != nil {
		err = endpoint.Close()
	}
	o.mu.Unlock()

	if err != nil {
		return o.report.fail(contracts.KindDriverError, "Output.ClosePort", err)
	}
	return nil
}

// SendMessage forwards raw MIDI bytes. A delivery failure is a warning and
// leaves the output open.
func (o *Output) SendMessage(msg []byte) error {
	const op = "Output.SendMessage"
	if len(msg) == 0 {
		return o.report.fail(contracts.KindInvalidParameter, op, fmt.Errorf("%w: empty message", contracts.ErrInvalidParameter))
	}

	o.mu.Lock()
	endpoint := o.endpoint
	var err error
	if endpoint != nil {
		err = endpoint.SendBytes(msg)
	}
	o.mu.Unlock()

	if endpoint == nil {
		return o.report.warn(op, contracts.ErrNotOpen)
	}
	if err != nil {
		return o.report.warn(op, err)
	}
	return nil
}

// SendUMP sends Universal MIDI Packet words through the endpoint's event
// lists, splitting them so no list exceeds the configured capacity. Each
// failed list is reported as a separate warning.
func (o *Output) SendUMP(words []uint32) error {
	const op = "Output.SendUMP"

	o.mu.Lock()
	endpoint := o.endpoint
	var (
		sender contracts.PacketSender
		ok     bool
		errs   []error
	)
	if endpoint != nil {
		if sender, ok = endpoint.(contracts.PacketSender); ok {
			seg := engine.NewSegmenter(o.capacity, sender.SendEventList)
			_, errs = seg.Segment(o.platform.HostTime(), words)
		}
	}
	o.mu.Unlock()

	switch {
	case endpoint == nil:
		return o.report.warn(op, contracts.ErrNotOpen)
	case !ok:
		return o.report.warnf(op, "%s: UMP output: %w", o.platform.Name(), contracts.ErrUnsupported)
	}
	var first error
	for _, err := range errs {
		if w := o.report.warn(op, err); first == nil {
			first = w
		}
	}
	return first
}
