package port

import (
	"errors"
	"sync"

	"github.com/leandrodaf/midiport/internal/engine"
	"github.com/leandrodaf/midiport/sdk/contracts"
	"go.uber.org/multierr"
)

var _ contracts.InputPort = (*Input)(nil)

// Input is the state machine of one input connection.
//
// mu is shared with the platform's delivery goroutine. It guards the
// endpoint, the sysex pool and the pipeline (including its timestamp
// reference), and is held for the whole close sequence so a delivery
// racing with ClosePort either completes first or observes Closed.
type Input struct {
	lister
	logger      contracts.Logger
	bufferCount int
	bufferSize  int

	mu       sync.Mutex
	state    contracts.ConnectionState
	endpoint contracts.InputEndpoint
	virtual  bool
	pool     *engine.BufferPool
	pipeline *engine.Pipeline
	callback contracts.MessageCallback
	pending  []error // pipeline warnings, reported outside mu
}

// NewInput creates an input connection in the Uninitialized state.
func NewInput(opts *contracts.ClientOptions) *Input {
	in := &Input{
		lister: lister{
			platform: opts.Platform,
			dir:      contracts.Input,
			report:   newReporter(opts),
		},
		logger:      opts.Logger,
		bufferCount: opts.SysexBufferCount,
		bufferSize:  opts.SysexBufferSize,
	}
	in.pipeline = engine.NewPipeline(engine.NewNormalizer(opts.Platform.TickScale()), func(err error) {
		in.pending = append(in.pending, err)
	})
	if opts.IgnoreFlags != nil {
		in.pipeline.SetIgnoreFlags(*opts.IgnoreFlags)
	}
	return in
}

// OnMessage installs the consumer callback.
func (in *Input) OnMessage(cb contracts.MessageCallback) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.callback = cb
}

// SetIgnoreFlags changes which message families are dropped.
func (in *Input) SetIgnoreFlags(flags contracts.IgnoreFlags) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pipeline.SetIgnoreFlags(flags)
}

// State returns the current lifecycle state.
func (in *Input) State() contracts.ConnectionState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// IsPortOpen reports whether the input is Open.
func (in *Input) IsPortOpen() bool {
	return in.State() == contracts.Open
}

// OpenPort connects to the index-th visible input port.
func (in *Input) OpenPort(index int, name string) error {
	return in.openResolved("Input.OpenPort", index, nil, name)
}

// OpenPortByIdentity connects to the input port with identity id.
func (in *Input) OpenPortByIdentity(id contracts.PortIdentity, name string) error {
	return in.openResolved("Input.OpenPortByIdentity", -1, &id, name)
}

func (in *Input) openResolved(op string, index int, id *contracts.PortIdentity, name string) error {
	ports, err := in.platform.Ports(contracts.Input, contracts.AllPorts)
	if err != nil {
		return in.report.fail(contracts.KindDriverError, op, err)
	}
	target, kind, err := resolve(ports, index, id)
	if err != nil {
		return in.report.fail(kind, op, err)
	}
	return in.open(op, false, func(sink contracts.RawSink) (contracts.InputEndpoint, error) {
		return in.platform.OpenInput(target, name, sink)
	})
}

// OpenVirtualPort creates a virtual destination other applications can send to.
func (in *Input) OpenVirtualPort(name string) error {
	return in.open("Input.OpenVirtualPort", true, func(sink contracts.RawSink) (contracts.InputEndpoint, error) {
		return in.platform.OpenVirtualInput(name, sink)
	})
}

func (in *Input) open(op string, virtual bool, create func(contracts.RawSink) (contracts.InputEndpoint, error)) error {
	in.mu.Lock()
	e := in.openLocked(op, virtual, create)
	in.mu.Unlock()

	if e != nil {
		return in.report.raise(e)
	}
	in.logger.Debug("MIDI input opened",
		in.logger.Field().String("op", op),
		in.logger.Field().Bool("virtual", virtual),
		in.logger.Field().String("backend", in.platform.Name()))
	return nil
}

func (in *Input) openLocked(op string, virtual bool, create func(contracts.RawSink) (contracts.InputEndpoint, error)) *contracts.MIDIError {
	if in.state == contracts.Open {
		if virtual && in.virtual {
			return contracts.NewError(contracts.KindDriverError, op, errors.New("a virtual input port already exists"))
		}
		return contracts.NewError(contracts.KindWarning, op, errors.New("a valid connection already exists"))
	}

	in.pipeline.Reset()
	endpoint, err := create(in.deliver)
	if err != nil {
		in.state = contracts.Closed
		return contracts.NewError(contracts.KindDriverError, op, err)
	}

	var pool *engine.BufferPool
	if armer, ok := endpoint.(contracts.BufferArmer); ok {
		pool = engine.NewBufferPool(in.bufferCount, in.bufferSize)
		if err := pool.ArmAll(armer); err != nil {
			in.state = contracts.Closed
			return contracts.NewError(contracts.KindDriverError, op, multierr.Append(err, endpoint.Close()))
		}
	}
	in.pipeline.Attach(pool)

	if err := endpoint.Start(); err != nil {
		in.pipeline.Attach(nil)
		if pool != nil {
			err = multierr.Append(err, pool.Release())
		}
		in.state = contracts.Closed
		return contracts.NewError(contracts.KindDriverError, op, multierr.Append(err, endpoint.Close()))
	}

	in.endpoint = endpoint
	in.pool = pool
	in.virtual = virtual
	in.state = contracts.Open
	return nil
}

// deliver is the RawSink handed to the platform.
func (in *Input) deliver(ev contracts.RawEvent) {
	// Drivers hand back unused buffers with nothing recorded while the port is
	// being reset, possibly from inside ClosePort. Those need neither the lock
	// nor a re-arm.
	if engine.IsEmptyCompletion(ev) {
		return
	}

	in.mu.Lock()
	if in.state != contracts.Open {
		in.mu.Unlock()
		return
	}
	msgs := in.pipeline.Process(ev)
	cb := in.callback
	warnings := in.pending
	in.pending = nil
	in.mu.Unlock()

	for _, w := range warnings {
		in.report.warn("Input.receive", w)
	}
	if cb == nil {
		return
	}
	for _, m := range msgs {
		cb(m)
	}
}

// ClosePort stops delivery, withdraws the sysex buffers and releases the
// endpoint. It may be called from any state, any number of times.
func (in *Input) ClosePort() error {
	in.mu.Lock()
	err := in.closeLocked()
	in.mu.Unlock()

	if err != nil {
		return in.report.fail(contracts.KindDriverError, "Input.ClosePort", err)
	}
	return nil
}

func (in *Input) closeLocked() error {
	in.state = contracts.Closed
	if in.endpoint == nil {
		return nil
	}

	err := in.endpoint.Stop()
	in.pipeline.Attach(nil)
	if in.pool != nil {
		err = multierr.Append(err, in.pool.Release())
		in.pool = nil
	}
	err = multierr.Append(err, in.endpoint.Close())
	in.pipeline.Reset()
	in.endpoint = nil
	in.virtual = false
	in.pending = nil
	return err
}
