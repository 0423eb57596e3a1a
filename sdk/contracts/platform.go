package contracts

// Platform is the native binding layer a connection drives. Backends are
// selected at configuration time (see sdk/midi) or injected with WithPlatform.
type Platform interface {
	// Name identifies the backend in logs.
	Name() string

	// Ports enumerates the visible ports of one direction in a stable order.
	Ports(dir Direction, filter PortFilter) ([]PortIdentity, error)

	// HostTime samples the host clock used to stamp raw events.
	HostTime() uint64

	// TickScale converts one host tick to seconds.
	TickScale() float64

	// OpenInput connects to an existing source and starts delivering raw events to sink.
	OpenInput(id PortIdentity, name string, sink RawSink) (InputEndpoint, error)

	// OpenVirtualInput creates a software destination other applications can send to.
	OpenVirtualInput(name string, sink RawSink) (InputEndpoint, error)

	// OpenOutput connects to an existing destination.
	OpenOutput(id PortIdentity, name string) (OutputEndpoint, error)

	// OpenVirtualOutput creates a software source other applications can read from.
	OpenVirtualOutput(name string) (OutputEndpoint, error)
}

// RawEventKind classifies what the platform delivered.
type RawEventKind int

const (
	// RawShort is one packed channel or system message (at most 3 bytes).
	RawShort RawEventKind = iota
	// RawStream is a byte stream that may hold several messages or a sysex fragment.
	RawStream
	// RawLong is a completed sysex capture buffer.
	RawLong
	// RawLongError is a sysex capture buffer the driver completed with an error.
	RawLongError
)

// RawEvent is one delivery from the platform's receive callback.
type RawEvent struct {
	Kind   RawEventKind
	Data   []byte       // RawShort and RawStream payload.
	Buffer *SysexBuffer // RawLong and RawLongError buffer.
	Tick   uint64       // Host tick of the delivery.
}

// RawSink receives raw events. Platforms call it synchronously on their delivery goroutine.
type RawSink func(RawEvent)

// InputEndpoint is a live, connected input handle.
type InputEndpoint interface {
	// Start begins event delivery. Sysex buffers are armed before Start.
	Start() error
	// Stop halts delivery. Armed buffers may be returned to the sink with zero
	// recorded bytes; anything else must not reach the sink from inside Stop.
	Stop() error
	// Close releases the native handle. It is idempotent.
	Close() error
}

// OutputEndpoint is a live output handle.
type OutputEndpoint interface {
	// SendBytes forwards raw MIDI 1.0 bytes.
	SendBytes(data []byte) error
	// Close releases the native handle. It is idempotent.
	Close() error
}

// BufferArmer is implemented by input endpoints that capture sysex in
// caller-supplied chunks and need buffers submitted ahead of time.
type BufferArmer interface {
	ArmBuffer(buf *SysexBuffer) error
	DisarmBuffer(buf *SysexBuffer) error
}

// PacketSender is implemented by output endpoints that speak UMP event lists.
type PacketSender interface {
	SendEventList(list *EventList) error
}

// Renamer is implemented by platforms that can rename their client or ports.
type Renamer interface {
	SetClientName(name string) error
	SetPortName(name string) error
}

// PortNotifier is implemented by platforms that push hot-plug notifications.
// notify is called whenever the port set may have changed.
type PortNotifier interface {
	WatchPorts(notify func()) (stop func(), err error)
}
