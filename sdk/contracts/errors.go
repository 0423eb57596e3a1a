package contracts

import (
	"errors"
	"fmt"
)

// Error definitions for port lifecycle and transport failures.
var (
	ErrNoDevicesFound   = errors.New("no MIDI devices found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDriverError      = errors.New("MIDI driver error")
	ErrUnsupported      = errors.New("operation not supported by this backend")
	ErrNotOpen          = errors.New("port is not open")
)

// ErrorKind classifies a MIDIError.
type ErrorKind int

const (
	// KindNoDevicesFound means the device universe was empty.
	KindNoDevicesFound ErrorKind = iota
	// KindInvalidParameter means an index or identity matched no visible port.
	KindInvalidParameter
	// KindDriverError means the platform failed to create, arm, or start a resource.
	KindDriverError
	// KindWarning is advisory and never aborts the current operation.
	KindWarning
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoDevicesFound:
		return "no devices found"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindDriverError:
		return "driver error"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MIDIError carries the kind, the failing operation, and the cause.
type MIDIError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *MIDIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MIDIError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the error's kind.
func (e *MIDIError) Is(target error) bool {
	switch target {
	case ErrNoDevicesFound:
		return e.Kind == KindNoDevicesFound
	case ErrInvalidParameter:
		return e.Kind == KindInvalidParameter
	case ErrDriverError:
		return e.Kind == KindDriverError
	}
	return false
}

// NewError builds a MIDIError.
func NewError(kind ErrorKind, op string, err error) *MIDIError {
	return &MIDIError{Kind: kind, Op: op, Err: err}
}

// IsWarning reports whether err is an advisory MIDIError.
func IsWarning(err error) bool {
	var me *MIDIError
	return errors.As(err, &me) && me.Kind == KindWarning
}

// ErrorCallback receives fatal errors or warnings, depending on where it is installed.
type ErrorCallback func(err error)
