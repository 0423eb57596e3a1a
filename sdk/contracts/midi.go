package contracts

import (
	"context"
	"time"
)

// Message is one logical MIDI message as delivered to a consumer.
type Message struct {
	Bytes     []byte  // Complete message, status byte first.
	Timestamp float64 // Seconds since the previous accepted message; 0 for the first one.
}

// IgnoreFlags selects message families the reception pipeline drops.
type IgnoreFlags struct {
	Sysex         bool // System-exclusive messages.
	Timing        bool // Timing clock (0xF8) and MTC quarter frame (0xF1).
	ActiveSensing bool // Active sensing (0xFE).
}

// IgnoreNone lets every message through.
var IgnoreNone = IgnoreFlags{}

// ConnectionState is the lifecycle state of a port connection.
type ConnectionState int

const (
	// Uninitialized means the connection was never opened.
	Uninitialized ConnectionState = iota
	// Open means exactly one endpoint handle is live.
	Open
	// Closed means the endpoint was released; a fresh open returns to Open.
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageCallback receives reassembled messages. It runs on the platform's delivery goroutine.
type MessageCallback func(Message)

// Port is the lifecycle surface shared by inputs and outputs.
type Port interface {
	// OpenPort opens the index-th visible port.
	OpenPort(index int, name string) error
	// OpenPortByIdentity opens the port with this identity.
	OpenPortByIdentity(id PortIdentity, name string) error
	// OpenVirtualPort creates a software-only endpoint.
	OpenVirtualPort(name string) error
	// ClosePort releases the endpoint; safe to call repeatedly.
	ClosePort() error
	IsPortOpen() bool
	State() ConnectionState
	// PortCount is the number of visible ports in this direction.
	PortCount() int
	// PortName is the unique display name of the index-th port.
	PortName(index int) (string, error)
	Ports() ([]PortIdentity, error)
	// SetClientName renames the native client when supported.
	SetClientName(name string)
	// SetPortName renames the local port when supported.
	SetPortName(name string)
}

// InputPort receives MIDI messages from one port.
type InputPort interface {
	Port
	// OnMessage installs the consumer callback.
	OnMessage(cb MessageCallback)
	// SetIgnoreFlags changes which message families are dropped.
	SetIgnoreFlags(flags IgnoreFlags)
}

// OutputPort sends MIDI messages to one port.
type OutputPort interface {
	Port
	// SendMessage sends raw MIDI 1.0 bytes.
	SendMessage(msg []byte) error
	// SendUMP sends Universal MIDI Packet words.
	SendUMP(words []uint32) error
}

// Observer tracks visible ports and reports hot-plug changes.
type Observer interface {
	// Refresh runs one discovery tick.
	Refresh() error
	// Run polls until ctx is done.
	Run(ctx context.Context, interval time.Duration) error
	// Ports returns the last known ports.
	Ports(dir Direction) []PortIdentity
	// Close stops platform notifications.
	Close() error
}
