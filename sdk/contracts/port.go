package contracts

import (
	"cmp"
	"fmt"
)

// ClientHandle is a backend-specific handle to the native client object.
type ClientHandle = uint64

// PortHandle is a backend-specific handle to the native port object.
type PortHandle = uint64

// Direction tells whether a port produces messages for us (Input) or consumes them (Output).
type Direction int

const (
	// Input ports deliver MIDI messages to this process.
	Input Direction = iota
	// Output ports accept MIDI messages from this process.
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// PortFilter selects which kinds of ports an enumeration returns.
type PortFilter struct {
	Hardware bool // Ports backed by a physical or driver-level device.
	Virtual  bool // Software-only ports created by some process.
}

// AllPorts matches hardware and virtual ports.
var AllPorts = PortFilter{Hardware: true, Virtual: true}

// PortIdentity is the stable composite key of a port across enumerations.
// Two identities are equal iff all fields match; the struct is comparable and
// can be used as a map key.
type PortIdentity struct {
	Client ClientHandle // Native client scope, zero when the backend has none.
	Port   PortHandle   // Native port scope.

	Manufacturer string
	DeviceName   string
	PortName     string
	DisplayName  string
}

// Name returns the most descriptive human-readable name available.
func (p PortIdentity) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.PortName != "":
		return p.PortName
	default:
		return p.DeviceName
	}
}

func (p PortIdentity) String() string {
	return fmt.Sprintf("%s [%d:%d]", p.Name(), p.Client, p.Port)
}

// Compare orders identities field by field. It returns -1, 0 or +1.
func (p PortIdentity) Compare(o PortIdentity) int {
	if c := cmp.Compare(p.Client, o.Client); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Port, o.Port); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Manufacturer, o.Manufacturer); c != 0 {
		return c
	}
	if c := cmp.Compare(p.DeviceName, o.DeviceName); c != 0 {
		return c
	}
	if c := cmp.Compare(p.PortName, o.PortName); c != 0 {
		return c
	}
	return cmp.Compare(p.DisplayName, o.DisplayName)
}
